package store_test

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/mailfold/mailfold/internal/models"
	"github.com/mailfold/mailfold/internal/testutil"
)

func TestSubscriberLifecycle(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	subscriberID, err := st.InsertPendingSubscriber(ctx, "pending@example.com", "Pat", "token-1")
	if err != nil {
		t.Fatalf("InsertPendingSubscriber failed: %v", err)
	}

	sub, err := st.GetSubscriberByEmail(ctx, "pending@example.com")
	if err != nil {
		t.Fatalf("GetSubscriberByEmail failed: %v", err)
	}
	if sub == nil {
		t.Fatal("expected the subscriber to be stored")
	}
	if sub.ID != subscriberID || sub.Name != "Pat" || sub.Status != models.SubscriberStatusPending {
		t.Errorf("unexpected subscriber before confirmation: %+v", sub)
	}

	confirmed, err := st.ConfirmSubscriber(ctx, "token-1")
	if err != nil {
		t.Fatalf("ConfirmSubscriber failed: %v", err)
	}
	if !confirmed {
		t.Fatal("expected token-1 to confirm a subscriber")
	}

	sub, err = st.GetSubscriberByEmail(ctx, "pending@example.com")
	if err != nil {
		t.Fatalf("GetSubscriberByEmail failed: %v", err)
	}
	if sub == nil || sub.Status != models.SubscriberStatusConfirmed {
		t.Errorf("expected confirmed subscriber, got %+v", sub)
	}

	missing, err := st.GetSubscriberByEmail(ctx, "stranger@example.com")
	if err != nil {
		t.Fatalf("GetSubscriberByEmail failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for an unknown address, got %+v", missing)
	}
}

func TestConfirmSubscriberUnknownToken(t *testing.T) {
	st := testutil.NewTestStore(t)

	confirmed, err := st.ConfirmSubscriber(context.Background(), "no-such-token")
	if err != nil {
		t.Fatalf("ConfirmSubscriber failed: %v", err)
	}
	if confirmed {
		t.Error("expected unknown token to confirm nothing")
	}
}

func TestIdempotencyInsertAndReplay(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	pending, err := st.TryInsertIdempotencyKey(ctx, "user-1", "key-1")
	if err != nil {
		t.Fatalf("TryInsertIdempotencyKey failed: %v", err)
	}
	if pending == nil {
		t.Fatal("expected fresh key to win the insert")
	}

	want := models.SavedResponse{
		StatusCode: http.StatusOK,
		Headers: []models.HeaderPair{
			{Name: "Content-Type", Value: []byte("application/json")},
			{Name: "X-Request-Id", Value: []byte("abc-123")},
		},
		Body: []byte(`{"status":"ok","result":{"issue_id":"x"}}`),
	}
	if err := pending.SaveResponse(want); err != nil {
		t.Fatalf("SaveResponse failed: %v", err)
	}

	// Same key again: insert must be a no-op.
	dup, err := st.TryInsertIdempotencyKey(ctx, "user-1", "key-1")
	if err != nil {
		t.Fatalf("duplicate TryInsertIdempotencyKey failed: %v", err)
	}
	if dup != nil {
		t.Fatal("expected duplicate key insert to be a no-op")
	}

	got, err := st.GetSavedResponse(ctx, "user-1", "key-1")
	if err != nil {
		t.Fatalf("GetSavedResponse failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected a saved response")
	}
	if got.StatusCode != want.StatusCode {
		t.Errorf("status code mismatch: want %d, got %d", want.StatusCode, got.StatusCode)
	}
	if !bytes.Equal(got.Body, want.Body) {
		t.Errorf("body mismatch: want %q, got %q", want.Body, got.Body)
	}
	if len(got.Headers) != len(want.Headers) {
		t.Fatalf("header count mismatch: want %d, got %d", len(want.Headers), len(got.Headers))
	}
	for i := range want.Headers {
		if got.Headers[i].Name != want.Headers[i].Name || !bytes.Equal(got.Headers[i].Value, want.Headers[i].Value) {
			t.Errorf("header %d mismatch: want %v, got %v", i, want.Headers[i], got.Headers[i])
		}
	}
}

func TestIdempotencyKeysAreScopedPerUser(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	first, err := st.TryInsertIdempotencyKey(ctx, "user-1", "shared-key")
	if err != nil {
		t.Fatalf("TryInsertIdempotencyKey failed: %v", err)
	}
	if first == nil {
		t.Fatal("expected user-1 insert to win")
	}
	if err := first.SaveResponse(models.SavedResponse{StatusCode: http.StatusOK, Body: []byte("one")}); err != nil {
		t.Fatalf("SaveResponse failed: %v", err)
	}

	second, err := st.TryInsertIdempotencyKey(ctx, "user-2", "shared-key")
	if err != nil {
		t.Fatalf("TryInsertIdempotencyKey for user-2 failed: %v", err)
	}
	if second == nil {
		t.Fatal("expected the same key under a different user to win its own insert")
	}
	if err := second.Rollback(); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
}

func TestGetSavedResponseInFlight(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	pending, err := st.TryInsertIdempotencyKey(ctx, "user-1", "key-crash")
	if err != nil {
		t.Fatalf("TryInsertIdempotencyKey failed: %v", err)
	}
	// Simulate a crash after the record became visible but before the
	// response was saved.
	if err := pending.Tx().Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	got, err := st.GetSavedResponse(ctx, "user-1", "key-crash")
	if err != nil {
		t.Fatalf("GetSavedResponse failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected no saved response for in-flight record, got %+v", got)
	}
}

func TestDeleteExpiredIdempotencyKeys(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	pending, err := st.TryInsertIdempotencyKey(ctx, "user-1", "key-old")
	if err != nil {
		t.Fatalf("TryInsertIdempotencyKey failed: %v", err)
	}
	if err := pending.SaveResponse(models.SavedResponse{StatusCode: http.StatusOK, Body: []byte("old")}); err != nil {
		t.Fatalf("SaveResponse failed: %v", err)
	}

	// A cutoff in the future expires the record; a cutoff in the past does not.
	n, err := st.DeleteExpiredIdempotencyKeys(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("DeleteExpiredIdempotencyKeys failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no deletions with a past cutoff, got %d", n)
	}

	n, err = st.DeleteExpiredIdempotencyKeys(ctx, time.Now().Add(time.Second))
	if err != nil {
		t.Fatalf("DeleteExpiredIdempotencyKeys failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 deletion with a future cutoff, got %d", n)
	}

	got, err := st.GetSavedResponse(ctx, "user-1", "key-old")
	if err != nil {
		t.Fatalf("GetSavedResponse failed: %v", err)
	}
	if got != nil {
		t.Error("expected record to be gone after expiry")
	}
}

func TestPublishFanOut(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	testutil.SeedConfirmedSubscriber(t, st, "a@example.com")
	testutil.SeedConfirmedSubscriber(t, st, "b@example.com")
	if _, err := st.InsertPendingSubscriber(ctx, "never@example.com", "Pending", "tok-x"); err != nil {
		t.Fatalf("InsertPendingSubscriber failed: %v", err)
	}

	issueID, taskCount := testutil.PublishTestIssue(t, st, "Issue #1", "plain text", "<p>html</p>")
	if taskCount != 2 {
		t.Errorf("expected 2 delivery tasks for 2 confirmed subscribers, got %d", taskCount)
	}

	issue, err := st.GetIssue(ctx, issueID)
	if err != nil {
		t.Fatalf("GetIssue failed: %v", err)
	}
	if issue.Title != "Issue #1" || issue.TextContent != "plain text" || issue.HTMLContent != "<p>html</p>" {
		t.Errorf("stored issue does not match: %+v", issue)
	}
}

func TestClaimScheduleRetryAndComplete(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	testutil.SeedConfirmedSubscriber(t, st, "a@example.com")
	issueID, _ := testutil.PublishTestIssue(t, st, "Issue #1", "text", "<p>html</p>")

	claim, err := st.ClaimDueTask(ctx, time.Now())
	if err != nil {
		t.Fatalf("ClaimDueTask failed: %v", err)
	}
	if claim == nil {
		t.Fatal("expected an eligible task")
	}
	if claim.Task.IssueID != issueID || claim.Task.SubscriberEmail != "a@example.com" {
		t.Errorf("unexpected task: %+v", claim.Task)
	}
	if claim.Task.NRetries != 0 {
		t.Errorf("expected 0 retries on fresh task, got %d", claim.Task.NRetries)
	}

	if err := claim.ScheduleRetry(time.Hour); err != nil {
		t.Fatalf("ScheduleRetry failed: %v", err)
	}

	// The task is no longer eligible until the retry wait has passed.
	claim, err = st.ClaimDueTask(ctx, time.Now())
	if err != nil {
		t.Fatalf("ClaimDueTask failed: %v", err)
	}
	if claim != nil {
		t.Fatalf("expected no eligible task after retry reschedule, got %+v", claim.Task)
	}

	// With a clock past the retry wait the task comes back with its
	// incremented retry count.
	claim, err = st.ClaimDueTask(ctx, time.Now().Add(2*time.Hour))
	if err != nil {
		t.Fatalf("ClaimDueTask failed: %v", err)
	}
	if claim == nil {
		t.Fatal("expected task to be eligible again")
	}
	if claim.Task.NRetries != 1 {
		t.Errorf("expected 1 retry after reschedule, got %d", claim.Task.NRetries)
	}

	if err := claim.Complete(); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	claim, err = st.ClaimDueTask(ctx, time.Now().Add(2*time.Hour))
	if err != nil {
		t.Fatalf("ClaimDueTask failed: %v", err)
	}
	if claim != nil {
		t.Errorf("expected empty queue after completion, got %+v", claim.Task)
	}
}

func TestClaimReleaseKeepsTask(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	testutil.SeedConfirmedSubscriber(t, st, "a@example.com")
	testutil.PublishTestIssue(t, st, "Issue #1", "text", "<p>html</p>")

	claim, err := st.ClaimDueTask(ctx, time.Now())
	if err != nil {
		t.Fatalf("ClaimDueTask failed: %v", err)
	}
	if claim == nil {
		t.Fatal("expected an eligible task")
	}
	if err := claim.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	claim, err = st.ClaimDueTask(ctx, time.Now())
	if err != nil {
		t.Fatalf("ClaimDueTask failed: %v", err)
	}
	if claim == nil {
		t.Fatal("expected released task to be claimable again")
	}
	if claim.Task.NRetries != 0 {
		t.Errorf("release must not mutate the task, got %d retries", claim.Task.NRetries)
	}
	if err := claim.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
}
