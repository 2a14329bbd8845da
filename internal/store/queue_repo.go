// Package store provides the DeliveryQueueRepo interface for draining
// per-recipient delivery tasks.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mailfold/mailfold/internal/models"
)

// DeliveryQueueRepo defines the interface for claiming pending delivery tasks.
type DeliveryQueueRepo interface {
	// ClaimDueTask claims one task whose execute_after has passed, holding its
	// row lock in an open transaction so concurrent workers skip it rather
	// than block. Returns (nil, nil) when no task is eligible.
	ClaimDueTask(ctx context.Context, now time.Time) (*ClaimedTask, error)
}

// ClaimedTask is a delivery task claimed under an open transaction. Exactly
// one of Complete, ScheduleRetry, or Release must be called to end the claim.
type ClaimedTask struct {
	Task models.DeliveryTask

	tx        *sql.Tx
	retrySQL  string
	deleteSQL string
}

// Complete deletes the task and commits. Used both for successful delivery
// and for permanent give-up; the row's disappearance is the terminal signal.
func (c *ClaimedTask) Complete() error {
	if _, err := c.tx.Exec(c.deleteSQL, c.Task.IssueID, c.Task.SubscriberEmail); err != nil {
		return fmt.Errorf("delete delivery task failed: %w", err)
	}
	if err := c.tx.Commit(); err != nil {
		return fmt.Errorf("commit delivery task delete failed: %w", err)
	}
	return nil
}

// ScheduleRetry increments the retry count, pushes execute_after forward by
// wait, and commits. The task becomes claimable again once eligible.
func (c *ClaimedTask) ScheduleRetry(wait time.Duration) error {
	next := c.Task.ExecuteAfter.Add(wait)
	if _, err := c.tx.Exec(c.retrySQL, c.Task.NRetries+1, next, c.Task.IssueID, c.Task.SubscriberEmail); err != nil {
		return fmt.Errorf("schedule delivery retry failed: %w", err)
	}
	if err := c.tx.Commit(); err != nil {
		return fmt.Errorf("commit delivery retry failed: %w", err)
	}
	return nil
}

// Release rolls the claim back without mutating the task. The row lock is
// dropped and the task is immediately claimable by any worker.
func (c *ClaimedTask) Release() error {
	return c.tx.Rollback()
}
