package httputil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/poubelles/poubelles-backend/pkg/config"
	"github.com/poubelles/poubelles-backend/pkg/errors"
	"github.com/poubelles/poubelles-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRaw_WritesBareBody(t *testing.T) {
	rr := httptest.NewRecorder()
	Raw(rr, http.StatusOK, []int{})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "store failure keeps cause out of the body",
			err:        errors.StoreUnavailable("failed to retrieve bins", fmt.Errorf("disk I/O error")),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"failed to retrieve bins"}`,
		},
		{
			name:       "not found",
			err:        errors.NotFound("bin"),
			wantStatus: http.StatusNotFound,
			wantBody:   `{"error":"bin not found"}`,
		},
		{
			name:       "plain error is generic",
			err:        fmt.Errorf("boom"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"an unexpected error occurred"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			ErrorMessage(rr, tt.err)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.JSONEq(t, tt.wantBody, rr.Body.String())
		})
	}
}

func TestError_Envelope(t *testing.T) {
	rr := httptest.NewRecorder()
	Error(rr, errors.Forbidden("store is opened read-only"))

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.JSONEq(t, `{"success":false,"error":{"code":"FORBIDDEN","message":"store is opened read-only"}}`, rr.Body.String())
}

func TestValidate_UsesJSONFieldNames(t *testing.T) {
	type payload struct {
		BinID  int64 `json:"bin_id" validate:"required"`
		Niveau int   `json:"niveau"`
	}

	err := Validate(payload{Niveau: 140})
	require.Error(t, err)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	assert.Equal(t, "this field is required", appErr.Details["bin_id"])

	assert.NoError(t, Validate(payload{BinID: 3, Niveau: 140}))
}

func TestRequestID_PropagatesIncomingHeader(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/poubelles", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))
}

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Len(t, rr.Header().Get("X-Request-ID"), 36)
}

func TestRateLimit_RejectsOverBudget(t *testing.T) {
	h := RateLimit(2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/poubelles", nil)
		req.RemoteAddr = "192.0.2.10:5555"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimit_DisabledWhenNonPositive(t *testing.T) {
	h := RateLimit(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	for i := 0; i < 5; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/poubelles", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	}
}

func TestCORS_AllowsConfiguredOrigin(t *testing.T) {
	h := CORS(config.CORSConfig{AllowedOrigins: []string{"http://localhost:5173"}})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/poubelles", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/poubelles", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecureHeaders_SetsNosniff(t *testing.T) {
	h := SecureHeaders(config.EnvDevelopment)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/poubelles", nil))

	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}

func TestRecoverer_ReturnsJSON500(t *testing.T) {
	h := Recoverer(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"an unexpected error occurred"}`, rr.Body.String())
}
