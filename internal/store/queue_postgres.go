package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Compile-time check that PostgresStore implements DeliveryQueueRepo.
var _ DeliveryQueueRepo = (*PostgresStore)(nil)

const (
	postgresRetryTaskSQL = `UPDATE issue_delivery_queue
	 SET n_retries = $1, execute_after = $2
	 WHERE newsletter_issue_id = $3 AND subscriber_email = $4`

	postgresDeleteTaskSQL = `DELETE FROM issue_delivery_queue
	 WHERE newsletter_issue_id = $1 AND subscriber_email = $2`
)

func (s *PostgresStore) ClaimDueTask(ctx context.Context, now time.Time) (*ClaimedTask, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim transaction failed: %w", err)
	}

	claim := &ClaimedTask{tx: tx, retrySQL: postgresRetryTaskSQL, deleteSQL: postgresDeleteTaskSQL}
	err = tx.QueryRowContext(ctx,
		`SELECT newsletter_issue_id, subscriber_email, n_retries, execute_after
		 FROM issue_delivery_queue
		 WHERE execute_after < $1
		 LIMIT 1
		 FOR UPDATE SKIP LOCKED`,
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
