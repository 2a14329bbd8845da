// Package store provides the SubscriberRepo interface for the subscriber directory.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/mailfold/mailfold/internal/models"
)

// SubscriberRepo defines the interface for subscriber signup and confirmation.
type SubscriberRepo interface {
	// InsertPendingSubscriber stores a new subscriber with pending status and
	// their confirmation token in one transaction.
	InsertPendingSubscriber(ctx context.Context, email, name, token string) (uuid.UUID, error)

	// ConfirmSubscriber flips the subscriber matching token to confirmed.
	// Returns false if the token is unknown.
	ConfirmSubscriber(ctx context.Context, token string) (bool, error)

	// GetSubscriberByEmail fetches a subscriber by address, or nil if the
	// address has never signed up.
	GetSubscriberByEmail(ctx context.Context, email string) (*models.Subscriber, error)
}
