// SPDX-License-Identifier: AGPL-3.0-only
package common

import (
	"errors"
	"fmt"
)

// ProviderError is the normalized form of an error payload returned by a
// platform API.
type ProviderError struct {
	Platform string
	Status   int
	Code     string
	Message  string
}

func (e *ProviderError) Error() string {
	name := e.Platform
	if name == "" {
		name = "provider"
	}
	if e.Code != "" {
		return fmt.Sprintf("%s API error (%d %s): %s", name, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%s API error (%d): %s", name, e.Status, e.Message)
}

func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// ProfileStats carries the counters written to the daily account snapshot.
type ProfileStats struct {
	FollowersCount *int64
	FollowingCount *int64
	ContentCount   *int64
	TotalViews     *int64
	TotalLikes     *int64
}
