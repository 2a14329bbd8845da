// Package store provides the IdempotencyRepo interface for request deduplication.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mailfold/mailfold/internal/models"
)

// IdempotencyRepo defines the interface for durable idempotency records.
//
// A record is created "in flight" (no saved response) by TryInsertIdempotencyKey
// and completed exactly once by PendingRequest.SaveResponse. Records are never
// deleted except by TTL expiry.
type IdempotencyRepo interface {
	// TryInsertIdempotencyKey inserts a new in-flight idempotency record inside
	// a fresh transaction. If the insert wins, it returns a PendingRequest
	// holding the open transaction; the caller adds its unit of work to that
	// transaction and finalizes it via SaveResponse. If a record already exists
	// the transaction is discarded and (nil, nil) is returned.
	TryInsertIdempotencyKey(ctx context.Context, userID, key string) (*PendingRequest, error)

	// GetSavedResponse fetches the completed response for a record, or nil if
	// the record does not exist or is still in flight.
	GetSavedResponse(ctx context.Context, userID, key string) (*models.SavedResponse, error)

	// DeleteExpiredIdempotencyKeys deletes all records created before olderThan
	// in one statement and returns the number of rows deleted.
	DeleteExpiredIdempotencyKeys(ctx context.Context, olderThan time.Time) (int64, error)
}

// PendingRequest is the open-transaction handle returned when an idempotency
// insert wins. The unit of work that produces the response must execute on
// Tx() so that the work and the saved response commit atomically.
type PendingRequest struct {
	tx      *sql.Tx
	userID  string
	key     string
	saveSQL string
}

// Tx exposes the open transaction for the caller's unit of work.
func (p *PendingRequest) Tx() *sql.Tx {
	return p.tx
}

// SaveResponse serializes the response into the idempotency record and
// commits the transaction. The record is mutated exactly once.
func (p *PendingRequest) SaveResponse(resp models.SavedResponse) error {
	headers, err := json.Marshal(resp.Headers)
	if err != nil {
		return fmt.Errorf("marshal response headers failed: %w", err)
	}
	if _, err := p.tx.Exec(p.saveSQL, resp.StatusCode, string(headers), resp.Body, p.userID, p.key); err != nil {
		return fmt.Errorf("save idempotent response failed: %w", err)
	}
	if err := p.tx.Commit(); err != nil {
		return fmt.Errorf("commit idempotent response failed: %w", err)
	}
	return nil
}

// Rollback abandons the pending request, releasing the in-flight record's
// transaction without completing it.
func (p *PendingRequest) Rollback() error {
	return p.tx.Rollback()
}
