// SPDX-License-Identifier: AGPL-3.0-only
package database

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("record not found")

type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
)

var Platforms = []Platform{PlatformYouTube, PlatformInstagram, PlatformTikTok}

func ParsePlatform(s string) (Platform, error) {
	for _, p := range Platforms {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// DisplayName is used in user facing messages.
func (p Platform) DisplayName() string {
	switch p {
	case PlatformYouTube:
		return "YouTube"
	case PlatformInstagram:
		return "Instagram"
	case PlatformTikTok:
		return "TikTok"
	}
	return string(p)
}

// JSONMap is stored as jsonb.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*m = JSONMap{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported jsonb source %T", src)
	}
	out := JSONMap{}
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*m = out
	return nil
}

type Connection struct {
	ID                    uuid.UUID      `json:"id"`
	UserID                string         `json:"userId"`
	Platform              Platform       `json:"platform"`
	PlatformAccountID     string         `json:"platformAccountId"`
	PlatformPageID        sql.NullString `json:"-"`
	AccessTokenEncrypted  string         `json:"-"`
	RefreshTokenEncrypted sql.NullString `json:"-"`
	TokenExpiresAt        sql.NullTime   `json:"-"`
	RefreshTokenExpiresAt sql.NullTime   `json:"-"`
	Scopes                []string       `json:"scopes"`
	IsActive              bool           `json:"isActive"`
	LastSyncAt            sql.NullTime   `json:"-"`
	CreatedAt             time.Time      `json:"createdAt"`
	UpdatedAt             time.Time      `json:"updatedAt"`
}

type UpsertConnectionParams struct {
	UserID                string
	Platform              Platform
	PlatformAccountID     string
	PlatformPageID        sql.NullString
	AccessTokenEncrypted  string
	RefreshTokenEncrypted sql.NullString
	TokenExpiresAt        sql.NullTime
	RefreshTokenExpiresAt sql.NullTime
	Scopes                []string
}

// UpdateConnectionTokensParams leaves the stored refresh token and its expiry
// untouched when the corresponding field is not Valid.
type UpdateConnectionTokensParams struct {
	ID                    uuid.UUID
	AccessTokenEncrypted  string
	RefreshTokenEncrypted sql.NullString
	TokenExpiresAt        sql.NullTime
	RefreshTokenExpiresAt sql.NullTime
}

type AccountProfile struct {
	ID                uuid.UUID
	ConnectionID      uuid.UUID
	Platform          Platform
	PlatformAccountID string
	Username          sql.NullString
	DisplayName       sql.NullString
	Bio               sql.NullString
	AvatarURL         sql.NullString
	ProfileURL        sql.NullString
	FollowerCount     sql.NullInt64
	FollowingCount    sql.NullInt64
	ContentCount      sql.NullInt64
	TotalViews        sql.NullInt64
	TotalLikes        sql.NullInt64
	IsVerified        bool
	AccountType       sql.NullString
	Extra             JSONMap
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type AccountSnapshot struct {
	ID             uuid.UUID
	AccountID      uuid.UUID
	SnapshotDate   time.Time
	FollowerCount  sql.NullInt64
	FollowingCount sql.NullInt64
	ContentCount   sql.NullInt64
	TotalViews     sql.NullInt64
	TotalLikes     sql.NullInt64
	CreatedAt      time.Time
}

type ContentItem struct {
	ID                uuid.UUID
	AccountID         uuid.UUID
	PlatformContentID string
	ContentType       string
	ProductType       sql.NullString
	Title             sql.NullString
	Description       sql.NullString
	PublishedAt       sql.NullTime
	ThumbnailURL      sql.NullString
	MediaURL          sql.NullString
	Permalink         sql.NullString
	DurationSeconds   sql.NullInt64
	PrivacyStatus     sql.NullString
	Tags              []string
	ViewCount         sql.NullInt64
	LikeCount         sql.NullInt64
	CommentCount      sql.NullInt64
	ShareCount        sql.NullInt64
	PlayCount         sql.NullInt64
	ReachCount        sql.NullInt64
	SavedCount        sql.NullInt64
	Extra             JSONMap
	SyncedAt          time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type InsightsSnapshot struct {
	ID                    uuid.UUID
	AccountID             uuid.UUID
	SnapshotDate          time.Time
	PeriodStart           time.Time
	PeriodEnd             time.Time
	Metrics               JSONMap
	Breakdowns            JSONMap
	EstimatedRevenueCents sql.NullInt64
	CreatedAt             time.Time
}

// SnapshotDay truncates t to its UTC calendar day.
func SnapshotDay(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}
