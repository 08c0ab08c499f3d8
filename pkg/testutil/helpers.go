package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewHTTPRequest creates a new HTTP request for testing handlers
func NewHTTPRequest(method, path string, body interface{}) *http.Request {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// ExecuteRequest executes an HTTP request and returns the response recorder
func ExecuteRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// AssertStatus asserts the response status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	assert.Equal(t, expected, rr.Code, "unexpected status code. Body: %s", rr.Body.String())
}

// ParseJSONBody parses the response body into the target
func ParseJSONBody(t *testing.T, rr *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	err := json.Unmarshal(rr.Body.Bytes(), target)
	require.NoError(t, err, "failed to parse response body: %s", rr.Body.String())
}

// DefaultTestContext creates a context with a 30-second timeout, cancelled when the test ends
func DefaultTestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// RequireEventually retries condition until it passes or the timeout elapses
func RequireEventually(t *testing.T, condition func() bool, timeout, interval time.Duration, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(interval)
	}
	t.Fatal(msg)
}

// SkipIfShort skips the test if running with -short flag
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

// SkipIfNoDocker skips tests that need a container runtime when none is configured
func SkipIfNoDocker(t *testing.T) {
	t.Helper()
	if os.Getenv("POUBELLES_SKIP_DOCKER") != "" {
		t.Skip("skipping container test: POUBELLES_SKIP_DOCKER is set")
	}
}
