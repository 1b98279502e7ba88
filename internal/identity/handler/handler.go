package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"cartsync/internal/identity"
	"cartsync/internal/platform/middleware"
	"cartsync/internal/transport/http/shared"
	"cartsync/pkg/domain"
	dErrors "cartsync/pkg/domain-errors"
)

// Service is the slice of the identity service the HTTP layer consumes.
type Service interface {
	SignIn(ctx context.Context, identityID domain.IdentityID) (*identity.SignInResult, error)
	SignOut(ctx context.Context, sessionID domain.SessionID) error
}

// Handler handles session endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
}

// New creates a session Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
	}
}

// RegisterPublic registers the sign-in route, which needs no bearer token.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/session", h.handleSignIn)
}

// RegisterAuthenticated registers the sign-out route, which does.
func (h *Handler) RegisterAuthenticated(r chi.Router) {
	r.Delete("/session", h.handleSignOut)
}

type signInRequest struct {
	IdentityID string `json:"identity_id"`
}

type signInResponse struct {
	Token     string    `json:"token"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid sign-in request",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.service.SignIn(ctx, domain.IdentityID(req.IdentityID))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			shared.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "sign-in failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "sign-in failed"))
		return
	}

	shared.WriteJSON(w, http.StatusCreated, signInResponse{
		Token:     result.Token,
		SessionID: result.Session.ID.String(),
		ExpiresAt: result.Session.ExpiresAt,
	})
}

func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID := middleware.GetSessionID(ctx)
	if sessionID.IsNil() {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "no session"))
		return
	}

	if err := h.service.SignOut(ctx, sessionID); err != nil {
		h.logger.ErrorContext(ctx, "sign-out failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "sign-out failed"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
