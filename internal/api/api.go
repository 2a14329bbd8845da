// Package api provides HTTP handlers and the main API server logic for mailfold.
//
// It exposes endpoints for publishing newsletter issues, subscriber signup
// and confirmation, and health checks. Publishing goes through the
// idempotency gateway so retried requests replay the original response.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mailfold/mailfold/internal/idempotency"
	"github.com/mailfold/mailfold/internal/store"
)

// UserIDHeader carries the caller identity for idempotency scoping. Session
// authentication is handled upstream; this header stands in for the
// authenticated user.
const UserIDHeader = "X-User-ID"

// shutdownTimeout bounds graceful HTTP shutdown on context cancellation.
const shutdownTimeout = 5 * time.Second

// EmailSender sends a single email. Satisfied by *email.Client.
type EmailSender interface {
	Send(ctx context.Context, to, subject, textBody, htmlBody string) error
}

// Server is the mailfold HTTP API server.
type Server struct {
	store       store.Store
	gateway     *idempotency.Gateway
	emailSender EmailSender
	baseURL     string
}

// NewServer creates an API server. baseURL is the externally reachable
// address used to build confirmation links.
func NewServer(st store.Store, gateway *idempotency.Gateway, emailSender EmailSender, baseURL string) *Server {
	return &Server{
		store:       st,
		gateway:     gateway,
		emailSender: emailSender,
		baseURL:     baseURL,
	}
}

// Handler returns the route multiplexer for the API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/newsletters", s.publishHandler)
	mux.HandleFunc("/subscriptions", s.subscribeHandler)
	mux.HandleFunc("/subscriptions/confirm", s.confirmHandler)
	return mux
}

// Run starts the HTTP server on addr and blocks until the context is
// cancelled or the server fails.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: mailfold API listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server.Run: shutdown failed", "error", err)
			return err
		}
		slog.Info("Server.Run: stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
