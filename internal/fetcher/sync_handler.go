// SPDX-License-Identifier: AGPL-3.0-only
package fetcher

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/fluffyriot/creatorsync/internal/database"
	"github.com/fluffyriot/creatorsync/internal/fetcher/sources"
	"github.com/google/uuid"
)

// executeSync wraps one pass: syncFunc runs the platform steps and returns an
// error only when the client could not be resolved. The last sync timestamp
// is written afterwards no matter how many steps failed.
func executeSync(
	ctx context.Context,
	d sources.Deps,
	rec Recorder,
	platform database.Platform,
	connectionID uuid.UUID,
	syncFunc func(res *SyncResult) error,
) (*SyncResult, error) {
	start := time.Now()
	res := &SyncResult{Errors: []string{}}

	defer func() {
		rec.SyncFinished(platform, res, time.Since(start))
	}()

	if err := syncFunc(res); err != nil {
		res.addError("Sync failed: %v", err)
		return res, err
	}

	if err := d.Store.UpdateConnectionLastSync(ctx, connectionID, d.Now()); err != nil {
		log.Printf("Sync: failed to update last sync for %s connection %s: %v", platform, connectionID, err)
	}

	res.Success = len(res.Errors) == 0
	return res, nil
}

// resolveAccount returns the stored profile id when the live fetch failed so
// content and insights can still be attached to it.
func resolveAccount(ctx context.Context, d sources.Deps, connectionID uuid.UUID) (uuid.UUID, error) {
	profile, err := d.Store.GetAccountProfileByConnection(ctx, connectionID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("account record not found: %w", err)
	}
	return profile.ID, nil
}

// saveProfile upserts the freshly fetched profile and falls back to the
// stored record id on failure.
func saveProfile(ctx context.Context, d sources.Deps, res *SyncResult, connectionID uuid.UUID, profile database.AccountProfile) uuid.UUID {
	profile.ConnectionID = connectionID
	saved, err := d.Store.UpsertAccountProfile(ctx, profile)
	if err == nil {
		res.AccountUpdated = true
		return saved.ID
	}

	res.addError("Account update failed: %v", err)
	id, err := resolveAccount(ctx, d, connectionID)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func syncAll(ctx context.Context, d sources.Deps, p PlatformSync) BatchResult {
	var out BatchResult

	conns, err := d.Store.ListActiveConnections(ctx, p.Platform())
	if err != nil {
		log.Printf("Sync: failed to list %s connections: %v", p.Platform(), err)
		return out
	}

	for _, conn := range conns {
		if ctx.Err() != nil {
			break
		}
		res, err := p.SyncAccount(ctx, conn.ID)
		if err == nil && res.Success {
			out.Synced++
			continue
		}
		out.Failed++
		if res != nil {
			log.Printf("Sync: %s connection %s failed: %v", p.Platform(), conn.ID, res.Errors)
		} else {
			log.Printf("Sync: %s connection %s failed: %v", p.Platform(), conn.ID, err)
		}
	}
	return out
}

// Registry selects the sync engine by platform tag.
type Registry struct {
	engines map[database.Platform]PlatformSync
}

func NewRegistry(engines ...PlatformSync) *Registry {
	r := &Registry{engines: make(map[database.Platform]PlatformSync, len(engines))}
	for _, e := range engines {
		r.engines[e.Platform()] = e
	}
	return r
}

// NewDefaultRegistry wires the three platform engines.
func NewDefaultRegistry(d sources.Deps, rec Recorder) *Registry {
	return NewRegistry(
		NewYouTubeSync(d, rec),
		NewInstagramSync(d, rec),
		NewTikTokSync(d, rec),
	)
}

func (r *Registry) Get(p database.Platform) (PlatformSync, bool) {
	e, ok := r.engines[p]
	return e, ok
}

func (r *Registry) SyncConnection(ctx context.Context, conn database.Connection) (*SyncResult, error) {
	e, ok := r.Get(conn.Platform)
	if !ok {
		return nil, fmt.Errorf("no sync engine for platform %q", conn.Platform)
	}
	return e.SyncAccount(ctx, conn.ID)
}

// SyncAll runs the batch of every registered platform in a fixed order.
func (r *Registry) SyncAll(ctx context.Context) map[database.Platform]BatchResult {
	out := make(map[database.Platform]BatchResult, len(r.engines))
	for _, p := range database.Platforms {
		e, ok := r.engines[p]
		if !ok {
			continue
		}
		out[p] = e.SyncAll(ctx)
	}
	return out
}
