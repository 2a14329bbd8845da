// Package api provides HTTP handlers for mailfold endpoints.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mailfold/mailfold/internal/email"
	"github.com/mailfold/mailfold/internal/idempotency"
	"github.com/mailfold/mailfold/internal/models"
	"github.com/mailfold/mailfold/internal/util"
)

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(nil))
}

// publishHandler accepts a newsletter issue and fans out delivery tasks for
// every confirmed subscriber in the same transaction that records the issue.
// The response only reflects successful enqueueing; delivery happens
// asynchronously and its failures are observable through logs, not here.
func (s *Server) publishHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.publishHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	userID := r.Header.Get(UserIDHeader)
	if userID == "" {
		slog.Warn("Server.publishHandler: missing user id header")
		writeJSONResponse(w, http.StatusUnauthorized, models.Error(models.ErrEmptyUserID.Error()))
		return
	}

	var req models.PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.publishHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := idempotency.ValidateKey(req.IdempotencyKey); err != nil {
		slog.Warn("Server.publishHandler: invalid idempotency key", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.publishHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	action, err := s.gateway.TryProcess(r.Context(), userID, req.IdempotencyKey)
	if err != nil {
		if errors.Is(err, idempotency.ErrInFlight) {
			slog.Error("Server.publishHandler: duplicate request still in flight", "userID", userID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error(err.Error()))
			return
		}
		slog.Error("Server.publishHandler: idempotency gateway failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process request"))
		return
	}

	switch a := action.(type) {
	case idempotency.ReturnSaved:
		slog.Info("Server.publishHandler: replaying saved response", "userID", userID)
		writeSavedResponse(w, a.Response)

	case idempotency.StartProcessing:
		pending := a.Pending
		tx := pending.Tx()

		issueID, err := s.store.InsertIssue(r.Context(), tx, req.Title, req.Content.Text, req.Content.HTML)
		if err != nil {
			_ = pending.Rollback()
			slog.Error("Server.publishHandler: failed to insert issue", "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to store newsletter issue"))
			return
		}

		taskCount, err := s.store.EnqueueDeliveryTasks(r.Context(), tx, issueID)
		if err != nil {
			_ = pending.Rollback()
			slog.Error("Server.publishHandler: failed to enqueue delivery tasks", "error", err, "issueID", issueID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to enqueue deliveries"))
			return
		}

		saved, err := savedJSONResponse(http.StatusOK, models.SuccessWithMessage(
			"The newsletter issue has been accepted, emails will go out shortly",
			map[string]interface{}{"issue_id": issueID, "recipients": taskCount},
		))
		if err != nil {
			_ = pending.Rollback()
			slog.Error("Server.publishHandler: failed to build response", "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to build response"))
			return
		}

		resp, err := s.gateway.SaveResponse(pending, saved)
		if err != nil {
			_ = pending.Rollback()
			slog.Error("Server.publishHandler: failed to save response", "error", err, "issueID", issueID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to persist request outcome"))
			return
		}

		slog.Info("Server.publishHandler: issue published", "issueID", issueID, "recipients", taskCount)
		writeSavedResponse(w, resp)
	}
}

func (s *Server) subscribeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.subscribeHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req models.SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.subscribeHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := email.ValidateAddress(req.Email); err != nil {
		slog.Warn("Server.subscribeHandler: invalid email", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(models.ErrInvalidEmail.Error()))
		return
	}

	existing, err := s.store.GetSubscriberByEmail(r.Context(), req.Email)
	if err != nil {
		slog.Error("Server.subscribeHandler: failed to look up subscriber", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to store subscriber"))
		return
	}
	if existing != nil {
		slog.Warn("Server.subscribeHandler: email already subscribed", "subscriberID", existing.ID, "status", existing.Status)
		if existing.Status == models.SubscriberStatusConfirmed {
			writeJSONResponse(w, http.StatusConflict, models.Error("This email is already subscribed"))
		} else {
			writeJSONResponse(w, http.StatusConflict, models.Error("A confirmation email was already sent to this address"))
		}
		return
	}

	token := util.GenerateSubscriptionToken()
	subscriberID, err := s.store.InsertPendingSubscriber(r.Context(), req.Email, req.Name, token)
	if err != nil {
		slog.Error("Server.subscribeHandler: failed to store subscriber", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to store subscriber"))
		return
	}

	link := fmt.Sprintf("%s/subscriptions/confirm?token=%s", s.baseURL, token)
	err = s.emailSender.Send(r.Context(), req.Email,
		"Welcome to our newsletter!",
		fmt.Sprintf("Welcome to our newsletter! Visit %s to confirm your subscription.", link),
		fmt.Sprintf(`Welcome to our newsletter!<br />Click <a href="%s">here</a> to confirm your subscription.`, link),
	)
	if err != nil {
		slog.Error("Server.subscribeHandler: failed to send confirmation email", "error", err, "subscriberID", subscriberID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to send confirmation email"))
		return
	}

	slog.Info("Server.subscribeHandler: subscriber stored", "subscriberID", subscriberID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Confirmation email sent", nil))
}

func (s *Server) confirmHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		slog.Warn("Server.confirmHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing confirmation token"))
		return
	}

	confirmed, err := s.store.ConfirmSubscriber(r.Context(), token)
	if err != nil {
		slog.Error("Server.confirmHandler: failed to confirm subscriber", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to confirm subscription"))
		return
	}
	if !confirmed {
		slog.Warn("Server.confirmHandler: unknown confirmation token")
		writeJSONResponse(w, http.StatusUnauthorized, models.Error("Unknown confirmation token"))
		return
	}

	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Subscription confirmed", nil))
}
