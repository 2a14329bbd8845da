package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Compile-time check that SQLiteStore implements DeliveryQueueRepo.
var _ DeliveryQueueRepo = (*SQLiteStore)(nil)

const (
	sqliteRetryTaskSQL = `UPDATE issue_delivery_queue
	 SET n_retries = ?, execute_after = ?
	 WHERE newsletter_issue_id = ? AND subscriber_email = ?`

	sqliteDeleteTaskSQL = `DELETE FROM issue_delivery_queue
	 WHERE newsletter_issue_id = ? AND subscriber_email = ?`
)

// ClaimDueTask on SQLite relies on the immediate transaction lock set via
// the DSN: only one claim transaction is active at a time, so the plain
// SELECT cannot hand the same row to two workers.
func (s *SQLiteStore) ClaimDueTask(ctx context.Context, now time.Time) (*ClaimedTask, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim transaction failed: %w", err)
	}

	claim := &ClaimedTask{tx: tx, retrySQL: sqliteRetryTaskSQL, deleteSQL: sqliteDeleteTaskSQL}
	err = tx.QueryRowContext(ctx,
		`SELECT newsletter_issue_id, subscriber_email, n_retries, execute_after
		 FROM issue_delivery_queue
		 WHERE execute_after < ?
		 LIMIT 1`,
		now,
	).Scan(&claim.Task.IssueID, &claim.Task.SubscriberEmail, &claim.Task.NRetries, &claim.Task.ExecuteAfter)
	if err == sql.ErrNoRows {
		_ = tx.Rollback()
		return nil, nil
	}
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("claim delivery task failed: %w", err)
	}
	return claim, nil
}
