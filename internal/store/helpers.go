package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mailfold/mailfold/internal/models"
)

// decodeSavedResponse rebuilds a SavedResponse from its stored columns.
// A NULL status code means the record is still in flight; callers get nil.
func decodeSavedResponse(statusCode sql.NullInt64, headers sql.NullString, body []byte) (*models.SavedResponse, error) {
	if !statusCode.Valid {
		return nil, nil
	}
	resp := models.SavedResponse{
		StatusCode: int(statusCode.Int64),
		Body:       body,
	}
	if headers.Valid && headers.String != "" {
		if err := json.Unmarshal([]byte(headers.String), &resp.Headers); err != nil {
			return nil, fmt.Errorf("unmarshal saved response headers failed: %w", err)
		}
	}
	return &resp, nil
}
