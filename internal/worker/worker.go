// SPDX-License-Identifier: AGPL-3.0-only
package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/fluffyriot/creatorsync/internal/database"
	"github.com/fluffyriot/creatorsync/internal/fetcher"
	"golang.org/x/sync/errgroup"
)

const queueSize = 64

// Syncer is satisfied by *fetcher.Registry.
type Syncer interface {
	SyncAll(ctx context.Context) map[database.Platform]fetcher.BatchResult
	SyncConnection(ctx context.Context, conn database.Connection) (*fetcher.SyncResult, error)
}

// Worker runs the scheduled batch and a bounded pool for single connection
// syncs queued by the OAuth callbacks.
type Worker struct {
	Syncer   Syncer
	Ticker   *time.Ticker
	StopChan chan bool

	queue      chan database.Connection
	pool       *errgroup.Group
	ctx        context.Context
	cancel     context.CancelFunc
	retryDelay func(attempt int) time.Duration

	mu        sync.Mutex
	running   bool
	active    bool
	closed    bool
	schedDone chan struct{}
}

func NewWorker(s Syncer, concurrency int) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		Syncer:     s,
		StopChan:   make(chan bool),
		queue:      make(chan database.Connection, queueSize),
		pool:       &errgroup.Group{},
		ctx:        ctx,
		cancel:     cancel,
		retryDelay: backoffWithJitter,
	}
	for i := 0; i < concurrency; i++ {
		w.pool.Go(func() error {
			for conn := range w.queue {
				w.syncConnection(conn)
			}
			return nil
		})
	}
	return w
}

func (w *Worker) Start(interval time.Duration) {
	w.mu.Lock()
	if w.active || w.closed {
		w.mu.Unlock()
		log.Println("Worker: Scheduler already active or worker closed")
		return
	}
	w.active = true
	w.schedDone = make(chan struct{})
	done := w.schedDone
	w.mu.Unlock()

	ticker := time.NewTicker(interval)
	w.Ticker = ticker
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if w.ctx.Err() != nil {
					return
				}
				w.SyncAll()
			case <-w.StopChan:
				return
			case <-w.ctx.Done():
				return
			}
		}
	}()
	log.Printf("Background worker started with interval: %v", interval)
}

// Stop halts the scheduler and waits for a running batch to return. After
// the worker context is cancelled that batch aborts, so Stop returns promptly.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.active {
		w.mu.Unlock()
		log.Println("Worker: Scheduler not active")
		return
	}
	w.active = false
	done := w.schedDone
	w.mu.Unlock()

	select {
	case w.StopChan <- true:
	case <-done:
	}
	<-done
	log.Println("Background worker stopped")
}

func (w *Worker) IsActive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// SyncAll runs one batch over every platform. A call while a batch is still
// running is skipped.
func (w *Worker) SyncAll() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		log.Println("Worker: Sync already in progress, skipping...")
		return
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	RunSync(w.ctx, w.Syncer)
}

// Enqueue schedules the initial sync of a freshly linked connection. It never
// blocks the caller; a full queue drops the job with a log line.
func (w *Worker) Enqueue(conn database.Connection) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		log.Printf("Worker: Queue closed, dropping initial sync for %s connection %s", conn.Platform, conn.ID)
		return
	}

	select {
	case w.queue <- conn:
	default:
		log.Printf("Worker: Queue full, dropping initial sync for %s connection %s", conn.Platform, conn.ID)
	}
}

// Close cancels running syncs, stops the scheduler and waits for the pool to
// drain.
func (w *Worker) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	w.cancel()
	if w.IsActive() {
		w.Stop()
	}
	_ = w.pool.Wait()
}
