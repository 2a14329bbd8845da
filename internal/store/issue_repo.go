// Package store provides the IssueRepo interface for the publish write path.
package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/mailfold/mailfold/internal/models"
)

// IssueRepo defines the interface for newsletter issue persistence and the
// transactional fan-out of delivery tasks.
type IssueRepo interface {
	// InsertIssue inserts a newsletter issue row on the supplied transaction
	// and returns its generated ID.
	InsertIssue(ctx context.Context, tx *sql.Tx, title, textContent, htmlContent string) (uuid.UUID, error)

	// EnqueueDeliveryTasks inserts one delivery task per currently-confirmed
	// subscriber on the supplied transaction, so the issue and its whole task
	// set commit together or not at all. Returns the number of tasks created.
	EnqueueDeliveryTasks(ctx context.Context, tx *sql.Tx, issueID uuid.UUID) (int64, error)

	// GetIssue fetches an issue by ID using the pool, not an open claim
	// transaction. Issues are immutable after publish, so a plain read is safe.
	GetIssue(ctx context.Context, issueID uuid.UUID) (*models.NewsletterIssue, error)
}
