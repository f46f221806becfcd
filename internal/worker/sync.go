// SPDX-License-Identifier: AGPL-3.0-only
package worker

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log"
	"time"

	"github.com/fluffyriot/creatorsync/internal/database"
	"github.com/fluffyriot/creatorsync/internal/fetcher/sources"
)

const maxRetries = 3

func backoffWithJitter(attempt int) time.Duration {
	const (
		baseDelay = 10 * time.Second
		maxDelay  = 15 * time.Minute
	)

	delay := baseDelay * (1 << attempt)
	if delay > maxDelay {
		delay = maxDelay
	}

	var b [8]byte
	_, _ = rand.Read(b[:])
	jitter := time.Duration(binary.LittleEndian.Uint64(b[:]) % uint64(delay))

	return jitter
}

func RunSync(ctx context.Context, s Syncer) {
	log.Println("Worker: Starting sync...")
	start := time.Now()

	var synced, failed int
	for platform, res := range s.SyncAll(ctx) {
		log.Printf("Worker: %s batch finished: %d synced, %d failed", platform, res.Synced, res.Failed)
		synced += res.Synced
		failed += res.Failed
	}

	log.Printf("Worker: Completed sync of %d connections (%d failed) in %s", synced+failed, failed, time.Since(start).Round(time.Millisecond))
}

// syncConnection runs one queued initial sync. Errors are only logged; a
// connection that needs reconnecting is not retried.
func (w *Worker) syncConnection(conn database.Connection) {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		isLastRetry := attempt == maxRetries

		err := func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("Worker Panic in connection sync (connection=%s attempt=%d): %v", conn.ID, attempt+1, r)
					err = errors.New("panic during sync")
				}
			}()

			res, err := w.Syncer.SyncConnection(w.ctx, conn)
			if err != nil {
				return err
			}
			if !res.Success {
				log.Printf("Worker: Initial %s sync for connection %s finished with errors: %v", conn.Platform, conn.ID, res.Errors)
			}
			return nil
		}()

		if err == nil {
			return
		}
		if errors.Is(err, sources.ErrReconnectRequired) || w.ctx.Err() != nil {
			log.Printf("Worker Connection sync FAILED (connection=%s): %v", conn.ID, err)
			return
		}
		if isLastRetry {
			log.Printf("Worker Connection sync FAILED after %d attempts (connection=%s): %v", attempt+1, conn.ID, err)
			return
		}

		delay := w.retryDelay(attempt)
		log.Printf("Worker Connection sync error (connection=%s attempt=%d). Retrying in %s: %v", conn.ID, attempt+1, delay, err)
		select {
		case <-time.After(delay):
		case <-w.ctx.Done():
			return
		}
	}
}
