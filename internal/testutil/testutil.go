// Package testutil provides common test utilities and helpers for mailfold tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/mailfold/mailfold/internal/models"
	"github.com/mailfold/mailfold/internal/store"
	"github.com/mailfold/mailfold/internal/util"
)

// NewTestStore creates a SQLite store in a temporary directory. The store is
// closed automatically when the test finishes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLiteStore(store.WithDSN(filepath.Join(t.TempDir(), "mailfold-test.db")))
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("failed to close test store: %v", err)
		}
	})
	return st
}

// SeedConfirmedSubscriber stores a confirmed subscriber through the regular
// signup and confirmation path.
func SeedConfirmedSubscriber(t *testing.T, st store.Store, email string) {
	t.Helper()
	ctx := context.Background()
	token := util.GenerateSubscriptionToken()
	if _, err := st.InsertPendingSubscriber(ctx, email, "Test Subscriber", token); err != nil {
		t.Fatalf("failed to insert subscriber %s: %v", email, err)
	}
	confirmed, err := st.ConfirmSubscriber(ctx, token)
	if err != nil {
		t.Fatalf("failed to confirm subscriber %s: %v", email, err)
	}
	if !confirmed {
		t.Fatalf("confirmation token for %s not found", email)
	}
}

// PublishTestIssue publishes an issue through the real idempotent write path
// and returns the issue ID and the number of delivery tasks fanned out.
func PublishTestIssue(t *testing.T, st store.Store, title, text, html string) (uuid.UUID, int64) {
	t.Helper()
	ctx := context.Background()

	pending, err := st.TryInsertIdempotencyKey(ctx, "test-user", util.GenerateRandomAlphaNumeric(20))
	if err != nil {
		t.Fatalf("failed to insert idempotency key: %v", err)
	}
	if pending == nil {
		t.Fatal("expected fresh idempotency key to win the insert")
	}

	issueID, err := st.InsertIssue(ctx, pending.Tx(), title, text, html)
	if err != nil {
		t.Fatalf("failed to insert issue: %v", err)
	}
	taskCount, err := st.EnqueueDeliveryTasks(ctx, pending.Tx(), issueID)
	if err != nil {
		t.Fatalf("failed to enqueue delivery tasks: %v", err)
	}
	if err := pending.SaveResponse(models.SavedResponse{StatusCode: http.StatusOK, Body: []byte(`{"status":"ok"}`)}); err != nil {
		t.Fatalf("failed to save response: %v", err)
	}
	return issueID, taskCount
}

// SentEmail records one send observed by the FakeSender.
type SentEmail struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// FakeSender is an in-memory email sender for tests. Failures can be scripted
// per recipient.
type FakeSender struct {
	mu           sync.Mutex
	sent         []SentEmail
	attempts     map[string]int
	failuresLeft map[string]int
	alwaysFail   map[string]bool
}

// NewFakeSender creates a FakeSender that succeeds for every recipient.
func NewFakeSender() *FakeSender {
	return &FakeSender{
		attempts:     make(map[string]int),
		failuresLeft: make(map[string]int),
		alwaysFail:   make(map[string]bool),
	}
}

// FailNext makes the next n sends to the given recipient fail.
func (f *FakeSender) FailNext(to string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failuresLeft[to] = n
}

// AlwaysFail makes every send to the given recipient fail.
func (f *FakeSender) AlwaysFail(to string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alwaysFail[to] = true
}

// Send records the attempt and applies scripted failures.
func (f *FakeSender) Send(_ context.Context, to, subject, textBody, htmlBody string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts[to]++
	if f.alwaysFail[to] {
		return fmt.Errorf("provider rejected send to %s", to)
	}
	if f.failuresLeft[to] > 0 {
		f.failuresLeft[to]--
		return fmt.Errorf("provider rejected send to %s", to)
	}
	f.sent = append(f.sent, SentEmail{To: to, Subject: subject, TextBody: textBody, HTMLBody: htmlBody})
	return nil
}

// Sent returns a copy of all successfully sent emails.
func (f *FakeSender) Sent() []SentEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentEmail(nil), f.sent...)
}

// Attempts returns the number of send attempts (successes and failures) for
// the given recipient.
func (f *FakeSender) Attempts(to string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[to]
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes a JSON response and validates the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}
