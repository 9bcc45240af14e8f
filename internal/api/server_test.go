package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/septivank/sensor-telemetry-api/internal/airquality"
	"github.com/septivank/sensor-telemetry-api/internal/auth"
	"github.com/septivank/sensor-telemetry-api/internal/db"
	"github.com/septivank/sensor-telemetry-api/internal/observability"
	"github.com/septivank/sensor-telemetry-api/internal/readings"
	"github.com/septivank/sensor-telemetry-api/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubAuthenticator struct {
	token string
	err   error
	calls int
}

func (a *stubAuthenticator) Authenticate(_ context.Context, _, _ string) (string, error) {
	a.calls++
	return a.token, a.err
}

type stubReadings struct {
	current []readings.Reading
	err     error
	panics  bool
}

func (p *stubReadings) GetCurrentReadings(_ context.Context) ([]readings.Reading, error) {
	if p.panics {
		panic("boom")
	}
	return p.current, p.err
}

type testEnv struct {
	server   *Server
	auth     *stubAuthenticator
	readings *stubReadings
	issuer   *auth.TokenIssuer
	metrics  *observability.Metrics
}

func newTestEnv(t *testing.T, origins ...string) *testEnv {
	t.Helper()

	issuer, err := auth.NewTokenIssuer([]byte("api-test-secret"), time.Hour)
	require.NoError(t, err)

	if len(origins) == 0 {
		origins = []string{"*"}
	}

	env := &testEnv{
		auth:     &stubAuthenticator{},
		readings: &stubReadings{current: []readings.Reading{}},
		issuer:   issuer,
		metrics:  observability.NewMetrics(),
	}
	env.server = New(Deps{
		Auth:           env.auth,
		Tokens:         issuer,
		Readings:       env.readings,
		Validator:      validator.NewValidator(10),
		Metrics:        env.metrics,
		AllowedOrigins: origins,
		Logger:         zap.NewNop(),
	})
	return env
}

func (e *testEnv) do(method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) Error {
	t.Helper()
	var body Error
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t)
	env.auth.token = "signed.jwt.token"

	rec := env.do(http.MethodPost, "/api/auth/login", `{"username":"admin","password":"s3cret"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"token":"signed.jwt.token"}`, rec.Body.String())
}

func TestLogin_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unknown admin", auth.ErrNotFound, http.StatusNotFound, ErrCodeNotFound},
		{"wrong password", auth.ErrInvalidCredentials, http.StatusUnauthorized, ErrCodeUnauthorized},
		{"wrapped invalid credentials", fmt.Errorf("%w: empty username", auth.ErrInvalidCredentials), http.StatusUnauthorized, ErrCodeUnauthorized},
		{"store failure", errors.New("failed to look up credential: pool closed"), http.StatusInternalServerError, ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.auth.err = tt.err

			rec := env.do(http.MethodPost, "/api/auth/login", `{"username":"admin","password":"x"}`, nil)

			assert.Equal(t, tt.status, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.status, body.Status)
			assert.Equal(t, tt.code, body.Code)
			assert.NotContains(t, body.Message, "pool closed")
		})
	}
}

func TestLogin_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"malformed json", `{"username":`, ErrCodeBadRequest},
		{"empty username", `{"username":"","password":"x"}`, ErrCodeValidation},
		{"username too long", `{"username":"` + strings.Repeat("a", 65) + `","password":"x"}`, ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			rec := env.do(http.MethodPost, "/api/auth/login", tt.body, nil)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
			assert.Zero(t, env.auth.calls)
		})
	}
}

func TestLogin_BodyTooLarge(t *testing.T) {
	env := newTestEnv(t)
	body := `{"username":"admin","password":"` + strings.Repeat("x", maxRequestBodySize) + `"}`

	rec := env.do(http.MethodPost, "/api/auth/login", body, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, env.auth.calls)
}

func TestLogin_WrongMethod(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/auth/login", "", nil)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCurrentReadings(t *testing.T) {
	env := newTestEnv(t)
	ts := time.Date(2025, 11, 3, 9, 30, 0, 0, time.UTC)
	env.readings.current = []readings.Reading{
		{
			SensorReading: db.SensorReading{
				ID: 2, SensorID: "A", BuildingName: "Main", RoomNumber: "101",
				Timestamp: ts, CO2: 720, Temperature: 21, Humidity: 40,
			},
			AirQuality: airquality.Good,
		},
	}

	rec := env.do(http.MethodGet, "/api/sensors/current", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{
		"id": 2, "sensor_id": "A", "building_name": "Main", "room_number": "101",
		"ts": "2025-11-03T09:30:00Z", "co2": 720, "temperature": 21, "humidity": 40,
		"air_quality": "good"
	}]`, rec.Body.String())
}

func TestCurrentReadings_EmptyIsArray(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/sensors/current", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestCurrentReadings_Failure(t *testing.T) {
	env := newTestEnv(t)
	env.readings.err = errors.New("connection refused")

	rec := env.do(http.MethodGet, "/api/sensors/current", "", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, ErrCodeInternal, decodeError(t, rec).Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	env := newTestEnv(t)
	env.readings.panics = true

	rec := env.do(http.MethodGet, "/api/sensors/current", "", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, ErrCodeInternal, decodeError(t, rec).Code)
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	token, err := env.issuer.Issue("admin")
	require.NoError(t, err)

	rec := env.do(http.MethodGet, "/api/auth/me", "", map[string]string{"Authorization": "Bearer " + token})

	require.Equal(t, http.StatusOK, rec.Code)
	var body meResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "admin", body.Username)
	assert.Equal(t, auth.RoleAdmin, body.Role)
	assert.WithinDuration(t, time.Now().Add(time.Hour), body.ExpiresAt, time.Minute)
}

func TestMe_Unauthorized(t *testing.T) {
	env := newTestEnv(t)
	expired, err := env.issuer.IssueAt("admin", time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic YWRtaW46czNjcmV0"},
		{"empty bearer", "Bearer "},
		{"garbage", "Bearer not-a-jwt"},
		{"expired", "Bearer " + expired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := map[string]string{}
			if tt.header != "" {
				header["Authorization"] = tt.header
			}

			rec := env.do(http.MethodGet, "/api/auth/me", "", header)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, ErrCodeUnauthorized, decodeError(t, rec).Code)
		})
	}
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t)

	generated := env.do(http.MethodGet, "/health", "", nil)
	assert.Len(t, generated.Header().Get("X-Request-ID"), 36)

	echoed := env.do(http.MethodGet, "/health", "", map[string]string{"X-Request-ID": "abc-123"})
	assert.Equal(t, "abc-123", echoed.Header().Get("X-Request-ID"))
}

func TestRequestID_CarriedByAccessLog(t *testing.T) {
	env := newTestEnv(t)
	core, logs := observer.New(zap.InfoLevel)
	env.server.logger = zap.New(core)

	env.do(http.MethodGet, "/health", "", map[string]string{"X-Request-ID": "abc-123"})

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "abc-123", entries[0].ContextMap()["request_id"])
	assert.Equal(t, int64(http.StatusOK), entries[0].ContextMap()["status"])
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, "https://campus.example")

	preflight := env.do(http.MethodOptions, "/api/auth/login", "", map[string]string{
		"Origin":                         "https://campus.example",
		"Access-Control-Request-Method":  http.MethodPost,
		"Access-Control-Request-Headers": "Content-Type",
	})
	assert.Equal(t, http.StatusOK, preflight.Code)
	assert.Equal(t, "https://campus.example", preflight.Header().Get("Access-Control-Allow-Origin"))

	foreign := env.do(http.MethodGet, "/health", "", map[string]string{"Origin": "https://evil.example"})
	assert.Empty(t, foreign.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(http.MethodGet, "/api/sensors/current", "", nil)

	rec := env.do(http.MethodGet, "/metrics", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{route="/api/sensors/current",status="200"} 1`)
}
