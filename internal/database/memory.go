// SPDX-License-Identifier: AGPL-3.0-only
package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type snapshotKey struct {
	account uuid.UUID
	day     time.Time
}

type contentKey struct {
	account uuid.UUID
	content string
}

type insightsKey struct {
	account uuid.UUID
	day     time.Time
	start   time.Time
	end     time.Time
}

// MemoryStore is an in-process Store honouring the same natural keys as the
// PostgreSQL tables. It backs tests and the -memory development mode.
type MemoryStore struct {
	mu          sync.Mutex
	now         func() time.Time
	connections map[uuid.UUID]Connection
	order       []uuid.UUID
	profiles    map[uuid.UUID]AccountProfile
	snapshots   map[snapshotKey]AccountSnapshot
	content     map[contentKey]ContentItem
	insights    map[insightsKey]InsightsSnapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:         time.Now,
		connections: make(map[uuid.UUID]Connection),
		profiles:    make(map[uuid.UUID]AccountProfile),
		snapshots:   make(map[snapshotKey]AccountSnapshot),
		content:     make(map[contentKey]ContentItem),
		insights:    make(map[insightsKey]InsightsSnapshot),
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) UpsertConnection(ctx context.Context, arg UpsertConnectionParams) (Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	for id, c := range m.connections {
		if c.UserID == arg.UserID && c.Platform == arg.Platform && c.PlatformAccountID == arg.PlatformAccountID {
			c.PlatformPageID = arg.PlatformPageID
			c.AccessTokenEncrypted = arg.AccessTokenEncrypted
			c.RefreshTokenEncrypted = arg.RefreshTokenEncrypted
			c.TokenExpiresAt = arg.TokenExpiresAt
			c.RefreshTokenExpiresAt = arg.RefreshTokenExpiresAt
			c.Scopes = append([]string(nil), arg.Scopes...)
			c.IsActive = true
			c.UpdatedAt = now
			m.connections[id] = c
			return c, nil
		}
	}

	c := Connection{
		ID:                    uuid.New(),
		UserID:                arg.UserID,
		Platform:              arg.Platform,
		PlatformAccountID:     arg.PlatformAccountID,
		PlatformPageID:        arg.PlatformPageID,
		AccessTokenEncrypted:  arg.AccessTokenEncrypted,
		RefreshTokenEncrypted: arg.RefreshTokenEncrypted,
		TokenExpiresAt:        arg.TokenExpiresAt,
		RefreshTokenExpiresAt: arg.RefreshTokenExpiresAt,
		Scopes:                append([]string(nil), arg.Scopes...),
		IsActive:              true,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	m.connections[c.ID] = c
	m.order = append(m.order, c.ID)
	return c, nil
}

func (m *MemoryStore) GetConnection(ctx context.Context, id uuid.UUID) (Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.connections[id]
	if !ok {
		return Connection{}, ErrNotFound
	}
	return c, nil
}

func (m *MemoryStore) GetActiveConnectionForUser(ctx context.Context, userID string, platform Platform) (Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var found *Connection
	for _, c := range m.connections {
		if c.UserID != userID || c.Platform != platform || !c.IsActive {
			continue
		}
		if found == nil || c.UpdatedAt.After(found.UpdatedAt) {
			c := c
			found = &c
		}
	}
	if found == nil {
		return Connection{}, ErrNotFound
	}
	return *found, nil
}

func (m *MemoryStore) filterConnections(keep func(Connection) bool) []Connection {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Connection
	for _, id := range m.order {
		if c := m.connections[id]; keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func (m *MemoryStore) ListActiveConnections(ctx context.Context, platform Platform) ([]Connection, error) {
	return m.filterConnections(func(c Connection) bool {
		return c.Platform == platform && c.IsActive
	}), nil
}

func (m *MemoryStore) ListUserConnections(ctx context.Context, userID string) ([]Connection, error) {
	return m.filterConnections(func(c Connection) bool { return c.UserID == userID }), nil
}

func (m *MemoryStore) ListConnections(ctx context.Context) ([]Connection, error) {
	return m.filterConnections(func(Connection) bool { return true }), nil
}

func (m *MemoryStore) UpdateConnectionTokens(ctx context.Context, arg UpdateConnectionTokensParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.connections[arg.ID]
	if !ok {
		return ErrNotFound
	}
	c.AccessTokenEncrypted = arg.AccessTokenEncrypted
	if arg.RefreshTokenEncrypted.Valid {
		c.RefreshTokenEncrypted = arg.RefreshTokenEncrypted
	}
	c.TokenExpiresAt = arg.TokenExpiresAt
	if arg.RefreshTokenExpiresAt.Valid {
		c.RefreshTokenExpiresAt = arg.RefreshTokenExpiresAt
	}
	c.UpdatedAt = m.now().UTC()
	m.connections[arg.ID] = c
	return nil
}

func (m *MemoryStore) UpdateConnectionLastSync(ctx context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.connections[id]
	if !ok {
		return ErrNotFound
	}
	c.LastSyncAt.Time = at.UTC()
	c.LastSyncAt.Valid = true
	c.UpdatedAt = at.UTC()
	m.connections[id] = c
	return nil
}

func (m *MemoryStore) DeactivateConnection(ctx context.Context, id uuid.UUID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.connections[id]
	if !ok || c.UserID != userID {
		return ErrNotFound
	}
	c.IsActive = false
	c.UpdatedAt = m.now().UTC()
	m.connections[id] = c
	return nil
}

func (m *MemoryStore) UpsertAccountProfile(ctx context.Context, arg AccountProfile) (AccountProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	if existing, ok := m.profiles[arg.ConnectionID]; ok {
		arg.ID = existing.ID
		arg.CreatedAt = existing.CreatedAt
		arg.Platform = existing.Platform
	} else {
		arg.ID = uuid.New()
		arg.CreatedAt = now
	}
	arg.UpdatedAt = now
	if arg.Extra == nil {
		arg.Extra = JSONMap{}
	}
	m.profiles[arg.ConnectionID] = arg
	return arg, nil
}

func (m *MemoryStore) GetAccountProfileByConnection(ctx context.Context, connectionID uuid.UUID) (AccountProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[connectionID]
	if !ok {
		return AccountProfile{}, ErrNotFound
	}
	return p, nil
}

func (m *MemoryStore) UpsertAccountSnapshot(ctx context.Context, arg AccountSnapshot) (AccountSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	arg.SnapshotDate = SnapshotDay(arg.SnapshotDate)
	key := snapshotKey{account: arg.AccountID, day: arg.SnapshotDate}
	if existing, ok := m.snapshots[key]; ok {
		arg.ID = existing.ID
		arg.CreatedAt = existing.CreatedAt
	} else {
		arg.ID = uuid.New()
		arg.CreatedAt = m.now().UTC()
	}
	m.snapshots[key] = arg
	return arg, nil
}

func (m *MemoryStore) ListAccountSnapshots(ctx context.Context, accountID uuid.UUID) ([]AccountSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []AccountSnapshot
	for k, s := range m.snapshots {
		if k.account == accountID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SnapshotDate.Before(out[j].SnapshotDate) })
	return out, nil
}

func (m *MemoryStore) UpsertContentItem(ctx context.Context, arg ContentItem) (ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	key := contentKey{account: arg.AccountID, content: arg.PlatformContentID}
	if existing, ok := m.content[key]; ok {
		arg.ID = existing.ID
		arg.CreatedAt = existing.CreatedAt
	} else {
		arg.ID = uuid.New()
		arg.CreatedAt = now
	}
	if arg.SyncedAt.IsZero() {
		arg.SyncedAt = now
	}
	arg.UpdatedAt = now
	arg.Tags = append([]string(nil), arg.Tags...)
	m.content[key] = arg
	return arg, nil
}

func (m *MemoryStore) ListContentItems(ctx context.Context, accountID uuid.UUID) ([]ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []ContentItem
	for k, c := range m.content {
		if k.account == accountID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.Time.After(out[j].PublishedAt.Time) })
	return out, nil
}

func (m *MemoryStore) UpsertInsightsSnapshot(ctx context.Context, arg InsightsSnapshot) (InsightsSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	arg.SnapshotDate = SnapshotDay(arg.SnapshotDate)
	arg.PeriodStart = SnapshotDay(arg.PeriodStart)
	arg.PeriodEnd = SnapshotDay(arg.PeriodEnd)
	key := insightsKey{account: arg.AccountID, day: arg.SnapshotDate, start: arg.PeriodStart, end: arg.PeriodEnd}
	if existing, ok := m.insights[key]; ok {
		arg.ID = existing.ID
		arg.CreatedAt = existing.CreatedAt
	} else {
		arg.ID = uuid.New()
		arg.CreatedAt = m.now().UTC()
	}
	m.insights[key] = arg
	return arg, nil
}

func (m *MemoryStore) ListInsightsSnapshots(ctx context.Context, accountID uuid.UUID) ([]InsightsSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []InsightsSnapshot
	for k, s := range m.insights {
		if k.account == accountID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SnapshotDate.Before(out[j].SnapshotDate) })
	return out, nil
}
