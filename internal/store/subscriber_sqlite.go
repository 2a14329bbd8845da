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

// Compile-time check that SQLiteStore implements SubscriberRepo.
var _ SubscriberRepo = (*SQLiteStore)(nil)

func (s *SQLiteStore) InsertPendingSubscriber(ctx context.Context, email, name, token string) (uuid.UUID, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin subscriber transaction failed: %w", err)
	}

	subscriberID := uuid.New()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO subscriptions (id, email, name, status, subscribed_at)
		 VALUES (?, ?, ?, ?, ?)`,
		subscriberID, email, name, string(models.SubscriberStatusPending), time.Now(),
	)
	if err != nil {
		_ = tx.Rollback()
		return uuid.Nil, fmt.Errorf("insert subscriber failed: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO subscription_tokens (subscription_token, subscriber_id)
		 VALUES (?, ?)`,
		token, subscriberID,
	)
	if err != nil {
		_ = tx.Rollback()
		return uuid.Nil, fmt.Errorf("insert subscription token failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("commit subscriber transaction failed: %w", err)
	}
	slog.Debug("SQLiteStore.InsertPendingSubscriber", "subscriberID", subscriberID)
	return subscriberID, nil
}

func (s *SQLiteStore) ConfirmSubscriber(ctx context.Context, token string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions
		 SET status = ?
		 WHERE id = (SELECT subscriber_id FROM subscription_tokens WHERE subscription_token = ?)`,
		string(models.SubscriberStatusConfirmed), token,
	)
	if err != nil {
		return false, fmt.Errorf("confirm subscriber failed: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("confirm subscriber rows affected check failed: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) GetSubscriberByEmail(ctx context.Context, email string) (*models.Subscriber, error) {
	var sub models.Subscriber
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, status, subscribed_at
		 FROM subscriptions
		 WHERE email = ?`,
		email,
	).Scan(&sub.ID, &sub.Email, &sub.Name, &sub.Status, &sub.SubscribedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch subscriber failed: %w", err)
	}
	return &sub, nil
}
