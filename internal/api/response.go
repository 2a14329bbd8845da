// Package api provides HTTP response utilities for mailfold.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mailfold/mailfold/internal/models"
)

// Pre-marshaled fallback responses to avoid runtime JSON encoding failures
var (
	fallbackErrorResponse []byte
)

// init validates that our fallback responses can be marshaled
func init() {
	var err error
	fallbackErrorResponse, err = json.Marshal(models.Error("Internal server error"))
	if err != nil {
		panic(fmt.Sprintf("Failed to marshal fallback error response at startup: %v", err))
	}
}

// writeJSONResponse writes a JSON response to the http.ResponseWriter with the given status code.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	// Marshal the response to JSON first to catch encoding errors before writing headers
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		jsonData = fallbackErrorResponse
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, writeErr := w.Write(jsonData); writeErr != nil {
		slog.Error("Server.writeJSONResponse: failed to write JSON response", "error", writeErr)
	}
}

// writeSavedResponse writes a serialized response verbatim: same status,
// headers in their original order, and the exact body bytes. Both the first
// publish response and every idempotent replay go through this path, so the
// two are observably identical.
func writeSavedResponse(w http.ResponseWriter, resp models.SavedResponse) {
	for _, h := range resp.Headers {
		w.Header().Add(h.Name, string(h.Value))
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(resp.Body); err != nil {
		slog.Error("Server.writeSavedResponse: failed to write response body", "error", err)
	}
}

// savedJSONResponse marshals an API envelope into the serialized response
// form used by the idempotency store.
func savedJSONResponse(statusCode int, response interface{}) (models.SavedResponse, error) {
	body, err := json.Marshal(response)
	if err != nil {
		return models.SavedResponse{}, fmt.Errorf("marshal response body failed: %w", err)
	}
	return models.SavedResponse{
		StatusCode: statusCode,
		Headers:    []models.HeaderPair{{Name: "Content-Type", Value: []byte("application/json")}},
		Body:       body,
	}, nil
}
