package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"cartsync/internal/identity/session"
	"cartsync/internal/identity/token"
	"cartsync/pkg/domain"
	dErrors "cartsync/pkg/domain-errors"
	"cartsync/pkg/platform/sentinel"
)

// Service runs the sign-in lifecycle for the terminal: it mints sessions and
// tokens, and flips the Notifier so the cart engine reloads.
type Service struct {
	notifier   *Notifier
	sessions   session.Store
	tokens     *token.Service
	logger     *slog.Logger
	sessionTTL time.Duration
}

// NewService constructs the identity service.
func NewService(notifier *Notifier, sessions session.Store, tokens *token.Service, sessionTTL time.Duration, logger *slog.Logger) *Service {
	return &Service{
		notifier:   notifier,
		sessions:   sessions,
		tokens:     tokens,
		logger:     logger,
		sessionTTL: sessionTTL,
	}
}

// SignInResult carries the outcome of a successful sign-in.
type SignInResult struct {
	Token   string
	Session *session.Session
}

// SignIn creates a session for identityID, signs an access token, and makes
// identityID the terminal's current identity.
func (s *Service) SignIn(ctx context.Context, identityID domain.IdentityID) (*SignInResult, error) {
	if identityID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "identity id is required")
	}

	now := time.Now()
	sess := &session.Session{
		ID:         domain.NewSessionID(),
		IdentityID: identityID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.sessionTTL),
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save session")
	}

	signed, err := s.tokens.Generate(identityID, sess.ID, s.sessionTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "sign token")
	}

	s.notifier.SignIn(identityID)
	s.logger.InfoContext(ctx, "identity signed in",
		"identity_id", identityID,
		"session_id", sess.ID,
	)
	return &SignInResult{Token: signed, Session: sess}, nil
}

// SignOut drops the session and clears the current identity. An unknown or
// already-expired session still signs the terminal out.
func (s *Service) SignOut(ctx context.Context, sessionID domain.SessionID) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "delete session")
	}
	s.notifier.SignOut()
	s.logger.InfoContext(ctx, "identity signed out",
		"session_id", sessionID,
	)
	return nil
}

// Resolve validates a bearer token and returns its live session.
func (s *Service) Resolve(ctx context.Context, tokenString string) (*session.Session, error) {
	claims, err := s.tokens.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	sessionID, err := domain.ParseSessionID(claims.SessionID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid session id in token")
	}
	sess, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "session no longer active")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find session")
	}
	return sess, nil
}
