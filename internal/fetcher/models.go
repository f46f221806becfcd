// SPDX-License-Identifier: AGPL-3.0-only
package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/fluffyriot/creatorsync/internal/database"
	"github.com/google/uuid"
)

const ContentLimit = 100

// SyncResult is the reconciliation report of one sync pass. It is returned
// whether or not the pass succeeded.
type SyncResult struct {
	Success         bool     `json:"success"`
	AccountUpdated  bool     `json:"accountUpdated"`
	SnapshotCreated bool     `json:"snapshotCreated"`
	ItemsSynced     int      `json:"itemsSynced"`
	InsightsSynced  *bool    `json:"insightsSynced,omitempty"`
	Errors          []string `json:"errors"`
}

func (r *SyncResult) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *SyncResult) setInsights(ok bool) {
	r.InsightsSynced = &ok
}

type BatchResult struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

// PlatformSync is implemented once per platform.
type PlatformSync interface {
	Platform() database.Platform
	// SyncAccount only returns an error when no usable API client could be
	// built. Every other failure ends up in SyncResult.Errors.
	SyncAccount(ctx context.Context, connectionID uuid.UUID) (*SyncResult, error)
	SyncAll(ctx context.Context) BatchResult
}

// Recorder observes finished sync passes.
type Recorder interface {
	SyncFinished(platform database.Platform, res *SyncResult, took time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) SyncFinished(database.Platform, *SyncResult, time.Duration) {}
