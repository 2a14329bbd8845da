package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/mailfold/mailfold/internal/models"
)

// Compile-time check that SQLiteStore implements IdempotencyRepo.
var _ IdempotencyRepo = (*SQLiteStore)(nil)

const sqliteSaveResponseSQL = `UPDATE idempotency
	 SET response_status_code = ?, response_headers = ?, response_body = ?
	 WHERE user_id = ? AND idempotency_key = ?`

func (s *SQLiteStore) TryInsertIdempotencyKey(ctx context.Context, userID, key string) (*PendingRequest, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin idempotency transaction failed: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO idempotency (user_id, idempotency_key, created_at)
		 VALUES (?, ?, ?)`,
		userID, key, time.Now(),
	)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("insert idempotency key failed: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("idempotency rows affected check failed: %w", err)
	}
	if n == 0 {
		_ = tx.Rollback()
		slog.Debug("SQLiteStore.TryInsertIdempotencyKey: key already exists", "userID", userID)
		return nil, nil
	}

	return &PendingRequest{tx: tx, userID: userID, key: key, saveSQL: sqliteSaveResponseSQL}, nil
}

func (s *SQLiteStore) GetSavedResponse(ctx context.Context, userID, key string) (*models.SavedResponse, error) {
	var (
		statusCode sql.NullInt64
		headers    sql.NullString
		body       []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT response_status_code, response_headers, response_body
		 FROM idempotency
		 WHERE user_id = ? AND idempotency_key = ?`,
		userID, key,
	).Scan(&statusCode, &headers, &body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch saved response failed: %w", err)
	}
	return decodeSavedResponse(statusCode, headers, body)
}

func (s *SQLiteStore) DeleteExpiredIdempotencyKeys(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM idempotency WHERE created_at < ?`, olderThan,
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired idempotency keys failed: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expired idempotency rows affected check failed: %w", err)
	}
	return n, nil
}
