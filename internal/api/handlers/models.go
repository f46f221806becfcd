// SPDX-License-Identifier: AGPL-3.0-only
package handlers

import (
	"time"

	"github.com/fluffyriot/creatorsync/internal/database"
	"github.com/fluffyriot/creatorsync/internal/helpers"
	"github.com/google/uuid"
)

type ConnectionView struct {
	ID                uuid.UUID         `json:"id"`
	Platform          database.Platform `json:"platform"`
	PlatformAccountID string            `json:"platformAccountId"`
	Scopes            []string          `json:"scopes"`
	IsActive          bool              `json:"isActive"`
	LastSyncAt        *time.Time        `json:"lastSyncAt"`
	CreatedAt         time.Time         `json:"createdAt"`
	Username          string            `json:"username,omitempty"`
	DisplayName       string            `json:"displayName,omitempty"`
	AvatarURL         string            `json:"avatarUrl,omitempty"`
	ProfileURL        string            `json:"profileUrl,omitempty"`
	FollowerCount     *int64            `json:"followerCount,omitempty"`
}

func newConnectionView(c database.Connection) ConnectionView {
	v := ConnectionView{
		ID:                c.ID,
		Platform:          c.Platform,
		PlatformAccountID: c.PlatformAccountID,
		Scopes:            c.Scopes,
		IsActive:          c.IsActive,
		CreatedAt:         c.CreatedAt,
	}
	if v.Scopes == nil {
		v.Scopes = []string{}
	}
	if c.LastSyncAt.Valid {
		t := c.LastSyncAt.Time
		v.LastSyncAt = &t
	}
	return v
}

func (v *ConnectionView) attachProfile(p database.AccountProfile) {
	v.Username = p.Username.String
	v.DisplayName = p.DisplayName.String
	v.AvatarURL = p.AvatarURL.String
	v.ProfileURL = p.ProfileURL.String
	if v.ProfileURL == "" {
		v.ProfileURL, _ = helpers.ProfileURL(p.Platform, p.Username.String)
	}
	if p.FollowerCount.Valid {
		n := p.FollowerCount.Int64
		v.FollowerCount = &n
	}
}
