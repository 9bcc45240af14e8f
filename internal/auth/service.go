package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/septivank/sensor-telemetry-api/internal/db"
	"github.com/septivank/sensor-telemetry-api/internal/logging"
	"github.com/septivank/sensor-telemetry-api/internal/observability"
	"go.uber.org/zap"
)

// CredentialStore looks up admin credentials.
// FindCredentialByUsername returns (nil, nil) when the login is unknown.
type CredentialStore interface {
	FindCredentialByUsername(ctx context.Context, username string) (*db.Credential, error)
}

// LoginEvent describes the outcome of one login attempt.
type LoginEvent struct {
	Username   string
	Succeeded  bool
	Reason     string
	OccurredAt time.Time
}

// EventPublisher receives login outcomes. It may be nil when messaging is disabled.
type EventPublisher interface {
	PublishLoginEvent(ctx context.Context, event LoginEvent) error
}

// Login outcome labels, shared by events and metrics.
const (
	OutcomeSuccess            = "success"
	OutcomeNotFound           = "not_found"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeError              = "error"
)

// Service authenticates admins and issues session tokens
type Service struct {
	store     CredentialStore
	tokens    *TokenIssuer
	publisher EventPublisher
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewService creates a new auth service
func NewService(
	store CredentialStore,
	tokens *TokenIssuer,
	publisher EventPublisher,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:     store,
		tokens:    tokens,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// Authenticate checks username/password against the stored credential and
// returns a signed session token on success.
func (s *Service) Authenticate(ctx context.Context, username, password string) (string, error) {
	logger := logging.FromContext(ctx, s.logger).With(zap.String("username", username))

	if strings.TrimSpace(username) == "" {
		s.record(ctx, logger, username, OutcomeInvalidCredentials)
		return "", fmt.Errorf("%w: empty username", ErrInvalidCredentials)
	}

	cred, err := s.store.FindCredentialByUsername(ctx, username)
	if err != nil {
		s.record(ctx, logger, username, OutcomeError)
		return "", fmt.Errorf("failed to look up credential: %w", err)
	}
	if cred == nil {
		s.record(ctx, logger, username, OutcomeNotFound)
		return "", ErrNotFound
	}

	ok, err := VerifyPassword(password, cred.PasswordHash)
	if err != nil {
		s.record(ctx, logger, username, OutcomeError)
		return "", fmt.Errorf("failed to verify password of admin %d: %w", cred.ID, err)
	}
	if !ok {
		s.record(ctx, logger, username, OutcomeInvalidCredentials)
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(cred.Username)
	if err != nil {
		s.record(ctx, logger, username, OutcomeError)
		return "", err
	}

	s.record(ctx, logger, username, OutcomeSuccess)
	return token, nil
}

func (s *Service) record(ctx context.Context, logger *zap.Logger, username, outcome string) {
	s.metrics.LoginAttempt(outcome)

	if outcome == OutcomeSuccess {
		logger.Info("admin logged in")
	} else {
		logger.Warn("login rejected", zap.String("outcome", outcome))
	}

	if s.publisher == nil {
		return
	}

	event := LoginEvent{
		Username:   username,
		Succeeded:  outcome == OutcomeSuccess,
		OccurredAt: time.Now().UTC(),
	}
	if !event.Succeeded {
		event.Reason = outcome
	}

	// Login never fails because the event could not be delivered
	if err := s.publisher.PublishLoginEvent(ctx, event); err != nil {
		logger.Error("failed to publish login event", zap.Error(err))
	}
}
