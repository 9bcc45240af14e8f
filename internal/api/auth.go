package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/septivank/sensor-telemetry-api/internal/auth"
	"github.com/septivank/sensor-telemetry-api/internal/logging"
	"go.uber.org/zap"
)

// loginRequest is the request body for POST /api/auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the response body for POST /api/auth/login.
type loginResponse struct {
	Token string `json:"token"`
}

// meResponse is the response body for GET /api/auth/me.
type meResponse struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleLogin authenticates an admin and returns a session token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if result := s.validator.ValidateLogin(req.Username, req.Password); !result.IsValid {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, result.Reason)
		return
	}

	token, err := s.auth.Authenticate(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, loginResponse{Token: token})
	case errors.Is(err, auth.ErrNotFound):
		writeNotFound(w, "admin not found")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeUnauthorized(w, "invalid credentials")
	default:
		logging.FromContext(r.Context(), s.logger).Error("login failed", zap.Error(err))
		writeInternalError(w, "failed to authenticate")
	}
}

// handleMe returns the identity carried by the caller's token.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeUnauthorized(w, "invalid token")
		return
	}

	resp := meResponse{
		Username: claims.Subject,
		Role:     claims.Role,
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.UTC()
	}
	writeJSON(w, http.StatusOK, resp)
}
