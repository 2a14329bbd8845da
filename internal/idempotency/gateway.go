package idempotency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mailfold/mailfold/internal/models"
	"github.com/mailfold/mailfold/internal/store"
)

// ErrInFlight is returned when a duplicate request arrives while the first
// request with the same key has not saved its response yet (or crashed
// before completing). Waiting out the first request is out of scope; the
// condition surfaces as a server error and the crashed-record case is
// reclaimed by TTL expiry.
var ErrInFlight = errors.New("request with this idempotency key is already in flight")

// NextAction is the gateway's decision for an incoming request. It is a
// sealed two-variant type: callers switch over StartProcessing and
// ReturnSaved exhaustively rather than testing nullable fields.
type NextAction interface {
	isNextAction()
}

// StartProcessing means this request won the idempotency insert and must run
// the unit of work on the pending request's transaction.
type StartProcessing struct {
	Pending *store.PendingRequest
}

// ReturnSaved means an earlier request with the same key completed; its
// response is replayed verbatim.
type ReturnSaved struct {
	Response models.SavedResponse
}

func (StartProcessing) isNextAction() {}
func (ReturnSaved) isNextAction()     {}

// Gateway wraps a write endpoint with idempotency-key deduplication.
type Gateway struct {
	repo store.IdempotencyRepo
}

// NewGateway creates a new Gateway backed by the given repository.
func NewGateway(repo store.IdempotencyRepo) *Gateway {
	return &Gateway{repo: repo}
}

// TryProcess decides whether the request should start fresh work or replay a
// saved response. The key must already have passed ValidateKey.
func (g *Gateway) TryProcess(ctx context.Context, userID, key string) (NextAction, error) {
	pending, err := g.repo.TryInsertIdempotencyKey(ctx, userID, key)
	if err != nil {
		return nil, fmt.Errorf("idempotency insert failed: %w", err)
	}
	if pending != nil {
		return StartProcessing{Pending: pending}, nil
	}

	saved, err := g.repo.GetSavedResponse(ctx, userID, key)
	if err != nil {
		return nil, fmt.Errorf("saved response lookup failed: %w", err)
	}
	if saved == nil {
		slog.Warn("Gateway.TryProcess: duplicate request with no saved response", "userID", userID)
		return nil, ErrInFlight
	}
	slog.Debug("Gateway.TryProcess: replaying saved response", "userID", userID, "status", saved.StatusCode)
	return ReturnSaved{Response: *saved}, nil
}

// SaveResponse completes the pending request: the response is serialized
// into the idempotency record, the transaction commits, and the same
// response is returned so in-process callers and replay callers see the
// same shape.
func (g *Gateway) SaveResponse(pending *store.PendingRequest, resp models.SavedResponse) (models.SavedResponse, error) {
	if err := pending.SaveResponse(resp); err != nil {
		return models.SavedResponse{}, err
	}
	return resp, nil
}
