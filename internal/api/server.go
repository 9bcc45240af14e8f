package api

import (
	"context"
	"net/http"

	"github.com/septivank/sensor-telemetry-api/internal/auth"
	"github.com/septivank/sensor-telemetry-api/internal/observability"
	"github.com/septivank/sensor-telemetry-api/internal/readings"
	"github.com/septivank/sensor-telemetry-api/internal/validator"
	"go.uber.org/zap"
)

// Authenticator exchanges credentials for a session token
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (string, error)
}

// TokenValidator checks bearer tokens on protected routes
type TokenValidator interface {
	ValidateAndExtract(token string) (*auth.Claims, error)
}

// ReadingsProvider returns the latest reading of every sensor
type ReadingsProvider interface {
	GetCurrentReadings(ctx context.Context) ([]readings.Reading, error)
}

// Deps holds everything the HTTP layer needs.
type Deps struct {
	Auth           Authenticator
	Tokens         TokenValidator
	Readings       ReadingsProvider
	Validator      *validator.Validator
	Metrics        *observability.Metrics
	AllowedOrigins []string
	Logger         *zap.Logger
}

// Server serves the sensor API.
type Server struct {
	auth           Authenticator
	tokens         TokenValidator
	readings       ReadingsProvider
	validator      *validator.Validator
	metrics        *observability.Metrics
	allowedOrigins []string
	logger         *zap.Logger
	handler        http.Handler
}

// New builds the server and its router.
func New(deps Deps) *Server {
	s := &Server{
		auth:           deps.Auth,
		tokens:         deps.Tokens,
		readings:       deps.Readings,
		validator:      deps.Validator,
		metrics:        deps.Metrics,
		allowedOrigins: deps.AllowedOrigins,
		logger:         deps.Logger,
	}
	s.handler = s.buildRouter()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
