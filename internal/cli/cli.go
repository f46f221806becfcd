// SPDX-License-Identifier: AGPL-3.0-only
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"syscall"
	"time"

	"github.com/fluffyriot/creatorsync/internal/auth"
	"github.com/fluffyriot/creatorsync/internal/database"
	"github.com/fluffyriot/creatorsync/internal/fetcher"
	"github.com/fluffyriot/creatorsync/internal/identity"
	"golang.org/x/term"
)

// SyncAll runs one batch for platform, or for every platform when platform
// is empty, and returns the per-platform counts.
func SyncAll(ctx context.Context, reg *fetcher.Registry, platform string) (map[database.Platform]fetcher.BatchResult, error) {
	if platform == "" {
		return reg.SyncAll(ctx), nil
	}

	p, err := database.ParsePlatform(platform)
	if err != nil {
		return nil, err
	}
	engine, ok := reg.Get(p)
	if !ok {
		return nil, fmt.Errorf("no sync engine for platform %q", p)
	}
	return map[database.Platform]fetcher.BatchResult{p: engine.SyncAll(ctx)}, nil
}

func HandleSyncAll(reg *fetcher.Registry, platform string) {
	results, err := SyncAll(context.Background(), reg, platform)
	if err != nil {
		log.Fatalf("Sync failed: %v", err)
	}

	for _, p := range database.Platforms {
		res, ok := results[p]
		if !ok {
			continue
		}
		fmt.Printf("%-10s synced=%d failed=%d\n", p, res.Synced, res.Failed)
	}
}

// rotateBlob moves one token blob to the new key. Blobs that already open
// under to are left alone so an interrupted rotation can be re-run.
func rotateBlob(blob string, from, to *auth.TokenCipher) (string, bool, error) {
	if _, err := to.Decrypt(blob); err == nil {
		return blob, false, nil
	}
	out, err := auth.ReEncrypt(blob, from, to)
	if err != nil {
		return "", false, err
	}
	return out, true, nil
}

// RotateKey re-encrypts the stored tokens of every connection, inactive
// ones included, from one key to the other. It stops at the first failure
// and returns the number of connections rewritten so far. Connections whose
// tokens already use the new key are skipped, so a failed run can be
// repeated with the same keys.
func RotateKey(ctx context.Context, store database.Store, from, to *auth.TokenCipher) (int, error) {
	conns, err := store.ListConnections(ctx)
	if err != nil {
		return 0, fmt.Errorf("list connections: %w", err)
	}

	rotated := 0
	for _, conn := range conns {
		access, accessMoved, err := rotateBlob(conn.AccessTokenEncrypted, from, to)
		if err != nil {
			return rotated, fmt.Errorf("connection %s access token: %w", conn.ID, err)
		}

		var refresh sql.NullString
		refreshMoved := false
		if conn.RefreshTokenEncrypted.Valid && conn.RefreshTokenEncrypted.String != "" {
			blob, moved, err := rotateBlob(conn.RefreshTokenEncrypted.String, from, to)
			if err != nil {
				return rotated, fmt.Errorf("connection %s refresh token: %w", conn.ID, err)
			}
			refresh = sql.NullString{String: blob, Valid: true}
			refreshMoved = moved
		}
		if !accessMoved && !refreshMoved {
			continue
		}

		err = store.UpdateConnectionTokens(ctx, database.UpdateConnectionTokensParams{
			ID:                    conn.ID,
			AccessTokenEncrypted:  access,
			RefreshTokenEncrypted: refresh,
			TokenExpiresAt:        conn.TokenExpiresAt,
		})
		if err != nil {
			return rotated, fmt.Errorf("connection %s: %w", conn.ID, err)
		}
		rotated++
	}
	return rotated, nil
}

func HandleRotateKey(store database.Store, current *auth.TokenCipher) {
	fmt.Print("Enter new TOKEN_ENCRYPTION_KEY: ")
	byteKey, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		log.Fatalf("\nFailed to read key: %v", err)
	}
	fmt.Println()

	key, err := auth.ParseKey(strings.TrimSpace(string(byteKey)))
	if err != nil {
		log.Fatalf("Invalid key: %v", err)
	}
	next, err := auth.NewTokenCipher(key)
	if err != nil {
		log.Fatalf("Invalid key: %v", err)
	}

	n, err := RotateKey(context.Background(), store, current, next)
	if err != nil {
		log.Fatalf("Key rotation stopped after %d connections: %v", n, err)
	}

	fmt.Printf("Re-encrypted tokens of %d connections. Update TOKEN_ENCRYPTION_KEY before restarting.\n", n)
}

// HandleIssueToken prints a bearer token for userID, for local testing
// against the API.
func HandleIssueToken(p *identity.HS256Provider, userID string, ttl time.Duration) {
	if userID == "" {
		log.Fatal("--user is required")
	}

	token, err := p.Sign(userID, ttl)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
	fmt.Println(token)
}
