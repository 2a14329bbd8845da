// Package idempotency implements the request deduplication gateway: client
// write requests carry an idempotency key, and retried requests replay the
// originally saved response instead of re-running the work.
package idempotency

import (
	"github.com/mailfold/mailfold/internal/models"
)

// ValidateKey checks the shape of a client-supplied idempotency key.
// This is a pure validation rule and never touches the database.
func ValidateKey(key string) error {
	if key == "" {
		return models.ErrEmptyIdempotencyKey
	}
	if len(key) > models.MaxIdempotencyKeyLength {
		return models.ErrIdempotencyKeyTooLong
	}
	return nil
}
