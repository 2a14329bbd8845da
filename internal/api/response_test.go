package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mailfold/mailfold/internal/models"
)

func TestWriteSavedResponseVerbatim(t *testing.T) {
	saved := models.SavedResponse{
		StatusCode: http.StatusCreated,
		Headers: []models.HeaderPair{
			{Name: "Content-Type", Value: []byte("application/json")},
			{Name: "X-Custom", Value: []byte("value-1")},
		},
		Body: []byte(`{"status":"ok"}`),
	}

	rr := httptest.NewRecorder()
	writeSavedResponse(rr, saved)

	if rr.Code != http.StatusCreated {
		t.Errorf("expected status %d, got %d", http.StatusCreated, rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("expected Content-Type header, got %q", got)
	}
	if got := rr.Header().Get("X-Custom"); got != "value-1" {
		t.Errorf("expected X-Custom header, got %q", got)
	}
	if rr.Body.String() != `{"status":"ok"}` {
		t.Errorf("unexpected body: %s", rr.Body.String())
	}
}

func TestSavedJSONResponse(t *testing.T) {
	saved, err := savedJSONResponse(http.StatusOK, models.SuccessWithMessage("accepted", nil))
	if err != nil {
		t.Fatalf("savedJSONResponse failed: %v", err)
	}
	if saved.StatusCode != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, saved.StatusCode)
	}
	if len(saved.Headers) != 1 || saved.Headers[0].Name != "Content-Type" {
		t.Errorf("expected a single Content-Type header, got %+v", saved.Headers)
	}
	if string(saved.Body) != `{"status":"ok","message":"accepted"}` {
		t.Errorf("unexpected body: %s", saved.Body)
	}
}

func TestWriteJSONResponseFallsBackOnMarshalFailure(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJSONResponse(rr, http.StatusOK, func() {}) // functions cannot be marshaled

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected fallback status 500, got %d", rr.Code)
	}
	if rr.Body.String() != string(fallbackErrorResponse) {
		t.Errorf("expected fallback body, got %s", rr.Body.String())
	}
}
