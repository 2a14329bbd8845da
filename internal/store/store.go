// Package store provides storage backends for mailfold.
//
// All coordination between the publish path, the delivery workers, and the
// expiry reaper happens through the relational store: the idempotency table,
// the newsletter issues table, and the per-recipient delivery queue.
package store

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option configures a store backend.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// Store aggregates the repositories backed by a single database.
type Store interface {
	IdempotencyRepo
	IssueRepo
	DeliveryQueueRepo
	SubscriberRepo

	// Close releases the underlying database handle.
	Close() error
}
