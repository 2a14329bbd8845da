// Package models defines the core data structures for mailfold.
//
// It includes types for newsletter issues, per-recipient delivery tasks,
// idempotency records, and subscribers, which are shared across modules.
package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// SubscriberStatus represents the confirmation state of a subscriber.
type SubscriberStatus string

const (
	// SubscriberStatusPending means the subscriber signed up but has not confirmed yet.
	SubscriberStatusPending SubscriberStatus = "pending_confirmation"
	// SubscriberStatusConfirmed means the subscriber confirmed their address.
	SubscriberStatusConfirmed SubscriberStatus = "confirmed"
)

// Validation constants for input validation
const (
	// MaxIdempotencyKeyLength defines the maximum allowed length for an idempotency key
	MaxIdempotencyKeyLength = 50
	// MaxTitleLength defines the maximum allowed length for an issue title
	MaxTitleLength = 200
)

// Error variables for better error handling and testability
var (
	ErrEmptyIdempotencyKey   = errors.New("idempotency key cannot be empty")
	ErrIdempotencyKeyTooLong = errors.New("idempotency key exceeds maximum length")
	ErrEmptyTitle            = errors.New("issue title cannot be empty")
	ErrTitleTooLong          = errors.New("issue title exceeds maximum length")
	ErrEmptyContent          = errors.New("issue content cannot be empty")
	ErrEmptyUserID           = errors.New("user id cannot be empty")
	ErrInvalidEmail          = errors.New("invalid email address")
)

// Subscriber represents a newsletter subscriber.
type Subscriber struct {
	ID           uuid.UUID        `json:"id"`
	Email        string           `json:"email"`
	Name         string           `json:"name"`
	Status       SubscriberStatus `json:"status"`
	SubscribedAt time.Time        `json:"subscribed_at"`
}

// NewsletterIssue represents a published newsletter issue. Issues are
// immutable once created.
type NewsletterIssue struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	TextContent string    `json:"text_content"`
	HTMLContent string    `json:"html_content"`
	PublishedAt time.Time `json:"published_at"`
}

// DeliveryTask represents one pending delivery of an issue to a recipient.
// Its identity is the (issue, recipient) pair; deletion of the row is the
// only terminal signal (delivered or abandoned).
type DeliveryTask struct {
	IssueID         uuid.UUID `json:"newsletter_issue_id"`
	SubscriberEmail string    `json:"subscriber_email"`
	NRetries        int       `json:"n_retries"`
	ExecuteAfter    time.Time `json:"execute_after"`
}

// HeaderPair is one response header name/value pair. Values are kept as raw
// bytes so replayed responses match the original byte-for-byte.
type HeaderPair struct {
	Name  string `json:"name"`
	Value []byte `json:"value"`
}

// SavedResponse is the serialized HTTP response stored against an
// idempotency record and replayed verbatim on duplicate requests.
type SavedResponse struct {
	StatusCode int          `json:"status_code"`
	Headers    []HeaderPair `json:"headers"`
	Body       []byte       `json:"body"`
}

// IssueContent carries the two renderings of an issue body.
type IssueContent struct {
	Text string `json:"text"`
	HTML string `json:"html"`
}

// PublishRequest is the request body for publishing a newsletter issue.
type PublishRequest struct {
	Title          string       `json:"title"`
	Content        IssueContent `json:"content"`
	IdempotencyKey string       `json:"idempotency_key"`
}

// Validate checks the publish request fields, excluding the idempotency key
// which is validated separately by the idempotency package.
func (p PublishRequest) Validate() error {
	if p.Title == "" {
		return ErrEmptyTitle
	}
	if len(p.Title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	if p.Content.Text == "" || p.Content.HTML == "" {
		return ErrEmptyContent
	}
	return nil
}

// SubscribeRequest is the request body for the subscribe endpoint.
type SubscribeRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse is the standard JSON envelope returned by the HTTP API.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with the given message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
