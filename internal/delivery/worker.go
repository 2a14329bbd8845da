// Package delivery implements the worker loop that drains the issue delivery
// queue: claim one task under a row lock, attempt the send, then delete or
// reschedule the task. Any number of workers may run concurrently; all
// coordination happens through the store's transactional guarantees.
package delivery

import (
	"context"
	"log/slog"
	"time"

	"github.com/mailfold/mailfold/internal/email"
	"github.com/mailfold/mailfold/internal/store"
	"github.com/mailfold/mailfold/internal/util"
)

// Worker configuration constants
const (
	// DefaultIdleInterval is how long a worker sleeps when the queue is empty.
	DefaultIdleInterval = 10 * time.Second
	// DefaultErrorBackoff is how long a worker sleeps after an unexpected
	// claim or commit failure.
	DefaultErrorBackoff = 2 * time.Second
	// DefaultRetryLimit is the maximum number of send attempts per task.
	DefaultRetryLimit = 3
	// DefaultRetryWait is the fixed interval added to a task's eligibility
	// time after a transient send failure.
	DefaultRetryWait = time.Minute
)

// Outcome is the result of one worker iteration.
type Outcome string

const (
	// OutcomeCompleted means a task was resolved: delivered, skipped for a
	// malformed address, or abandoned after the retry budget.
	OutcomeCompleted Outcome = "completed"
	// OutcomeRetryLater means the task failed transiently and was rescheduled.
	OutcomeRetryLater Outcome = "retry_later"
	// OutcomeEmpty means no task was eligible.
	OutcomeEmpty Outcome = "empty"
)

// Sender is the outbound email collaborator.
type Sender interface {
	Send(ctx context.Context, to, subject, textBody, htmlBody string) error
}

// Store is the storage surface a worker needs: claiming queue tasks and
// reading the immutable issue content.
type Store interface {
	store.DeliveryQueueRepo
	store.IssueRepo
}

// Worker drains the delivery queue one task at a time.
type Worker struct {
	id           string
	store        Store
	sender       Sender
	retryLimit   int
	retryWait    time.Duration
	idleInterval time.Duration
	errorBackoff time.Duration
}

// NewWorker creates a delivery worker. Non-positive retryLimit or retryWait
// fall back to the defaults.
func NewWorker(st Store, sender Sender, retryLimit int, retryWait time.Duration) *Worker {
	if retryLimit <= 0 {
		retryLimit = DefaultRetryLimit
	}
	if retryWait <= 0 {
		retryWait = DefaultRetryWait
	}
	return &Worker{
		id:           util.GenerateRandomHex(8),
		store:        st,
		sender:       sender,
		retryLimit:   retryLimit,
		retryWait:    retryWait,
		idleInterval: DefaultIdleInterval,
		errorBackoff: DefaultErrorBackoff,
	}
}

// Run executes tasks until the context is cancelled. Empty queue and
// unexpected errors pause the loop; completed and rescheduled tasks do not.
func (w *Worker) Run(ctx context.Context) {
	slog.Info("Worker.Run: starting delivery worker", "worker", w.id, "retryLimit", w.retryLimit, "retryWait", w.retryWait)

	for {
		if ctx.Err() != nil {
			slog.Info("Worker.Run: stopping", "worker", w.id)
			return
		}

		outcome, err := w.TryExecuteTask(ctx)
		switch {
		case err != nil:
			// The claim transaction was rolled back, so the task (if any)
			// is already claimable again by any worker.
			slog.Error("Worker.Run: task execution failed", "worker", w.id, "error", err)
			sleepCtx(ctx, w.errorBackoff)
		case outcome == OutcomeEmpty:
			sleepCtx(ctx, w.idleInterval)
		}
	}
}

// TryExecuteTask claims and processes at most one eligible task. It is the
// single-step entry point used both by Run and by deterministic tests.
func (w *Worker) TryExecuteTask(ctx context.Context) (Outcome, error) {
	claim, err := w.store.ClaimDueTask(ctx, time.Now())
	if err != nil {
		return "", err
	}
	if claim == nil {
		return OutcomeEmpty, nil
	}
	task := claim.Task

	if err := email.ValidateAddress(task.SubscriberEmail); err != nil {
		slog.Error("Worker.TryExecuteTask: skipping a confirmed subscriber, their stored contact details are invalid",
			"worker", w.id, "issueID", task.IssueID, "error", err)
		return w.complete(claim)
	}

	issue, err := w.store.GetIssue(ctx, task.IssueID)
	if err != nil {
		_ = claim.Release()
		return "", err
	}

	if sendErr := w.sender.Send(ctx, task.SubscriberEmail, issue.Title, issue.TextContent, issue.HTMLContent); sendErr != nil {
		if task.NRetries+1 >= w.retryLimit {
			slog.Warn("Worker.TryExecuteTask: failed to deliver issue, retry budget exhausted, abandoning task",
				"worker", w.id, "issueID", task.IssueID, "to", task.SubscriberEmail, "attempts", task.NRetries+1, "error", sendErr)
			return w.complete(claim)
		}
		slog.Warn("Worker.TryExecuteTask: failed to deliver issue, retrying later",
			"worker", w.id, "issueID", task.IssueID, "to", task.SubscriberEmail, "attempt", task.NRetries+1, "error", sendErr)
		if err := claim.ScheduleRetry(w.retryWait); err != nil {
			_ = claim.Release()
			return "", err
		}
		return OutcomeRetryLater, nil
	}

	slog.Debug("Worker.TryExecuteTask: issue delivered", "worker", w.id, "issueID", task.IssueID, "to", task.SubscriberEmail)
	return w.complete(claim)
}

func (w *Worker) complete(claim *store.ClaimedTask) (Outcome, error) {
	if err := claim.Complete(); err != nil {
		_ = claim.Release()
		return "", err
	}
	return OutcomeCompleted, nil
}

// sleepCtx sleeps for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
