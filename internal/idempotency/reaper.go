package idempotency

import (
	"context"
	"log/slog"
	"time"

	"github.com/mailfold/mailfold/internal/store"
)

// Reaper default configuration constants
const (
	// DefaultReapInterval is how often the reaper scans for expired records.
	DefaultReapInterval = 10 * time.Second
	// DefaultRecordTTL is how long idempotency records are kept. In-flight
	// records left behind by a crash are reclaimed by the same TTL.
	DefaultRecordTTL = 24 * time.Hour
)

// Reaper periodically deletes idempotency records older than the TTL, so the
// idempotency store's growth stays bounded.
type Reaper struct {
	repo     store.IdempotencyRepo
	ttl      time.Duration
	interval time.Duration
}

// NewReaper creates a new Reaper. Non-positive ttl or interval fall back to
// the defaults.
func NewReaper(repo store.IdempotencyRepo, ttl, interval time.Duration) *Reaper {
	if ttl <= 0 {
		ttl = DefaultRecordTTL
	}
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	return &Reaper{repo: repo, ttl: ttl, interval: interval}
}

// Run starts the reaping loop. It blocks until the context is cancelled.
// Cleanup failures are logged and the loop continues; a reaper error never
// crashes the process.
func (r *Reaper) Run(ctx context.Context) {
	slog.Info("Reaper.Run: starting idempotency reaper", "ttl", r.ttl, "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Reaper.Run: stopping")
			return
		case <-ticker.C:
			n, err := r.ReapOnce(ctx)
			if err != nil {
				slog.Error("Reaper.Run: cleanup failed", "error", err)
				continue
			}
			slog.Info("Reaper.Run: expired idempotency records cleaned", "deleted", n)
		}
	}
}

// ReapOnce deletes all records older than the TTL in one statement and
// returns the number deleted.
func (r *Reaper) ReapOnce(ctx context.Context) (int64, error) {
	return r.repo.DeleteExpiredIdempotencyKeys(ctx, time.Now().Add(-r.ttl))
}
