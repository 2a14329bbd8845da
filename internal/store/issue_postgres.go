package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mailfold/mailfold/internal/models"
)

// Compile-time check that PostgresStore implements IssueRepo.
var _ IssueRepo = (*PostgresStore)(nil)

func (s *PostgresStore) InsertIssue(ctx context.Context, tx *sql.Tx, title, textContent, htmlContent string) (uuid.UUID, error) {
	issueID := uuid.New()
	_, err := tx.ExecContext(ctx,
		`INSERT INTO newsletter_issues (newsletter_issue_id, title, text_content, html_content, published_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		issueID, title, textContent, htmlContent, time.Now(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert newsletter issue failed: %w", err)
	}
	slog.Debug("PostgresStore.InsertIssue", "issueID", issueID, "title", title)
	return issueID, nil
}

func (s *PostgresStore) EnqueueDeliveryTasks(ctx context.Context, tx *sql.Tx, issueID uuid.UUID) (int64, error) {
	result, err := tx.ExecContext(ctx,
		`INSERT INTO issue_delivery_queue (newsletter_issue_id, subscriber_email, n_retries, execute_after)
		 SELECT $1, email, 0, $2
		 FROM subscriptions
		 WHERE status = $3
		 ON CONFLICT DO NOTHING`,
		issueID, time.Now(), string(models.SubscriberStatusConfirmed),
	)
	if err != nil {
		return 0, fmt.Errorf("enqueue delivery tasks failed: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delivery task rows affected check failed: %w", err)
	}
	slog.Debug("PostgresStore.EnqueueDeliveryTasks", "issueID", issueID, "tasks", n)
	return n, nil
}

func (s *PostgresStore) GetIssue(ctx context.Context, issueID uuid.UUID) (*models.NewsletterIssue, error) {
	var issue models.NewsletterIssue
	err := s.db.QueryRowContext(ctx,
		`SELECT newsletter_issue_id, title, text_content, html_content, published_at
		 FROM newsletter_issues
		 WHERE newsletter_issue_id = $1`,
		issueID,
	).Scan(&issue.ID, &issue.Title, &issue.TextContent, &issue.HTMLContent, &issue.PublishedAt)
	if err != nil {
		return nil, fmt.Errorf("fetch newsletter issue %s failed: %w", issueID, err)
	}
	return &issue, nil
}
