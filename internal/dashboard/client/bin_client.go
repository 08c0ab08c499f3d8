package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/poubelles/poubelles-backend/internal/bins/domain"
	"github.com/poubelles/poubelles-backend/pkg/logger"
)

// maxBodyBytes bounds how much of a response the client will read
const maxBodyBytes = 8 << 20

// Failure kinds. Every error returned by ListBins matches exactly one of them via errors.Is.
var (
	ErrNetworkUnavailable = errors.New("bin service unreachable")
	ErrMalformedResponse  = errors.New("malformed bin list response")
	ErrServiceFailure     = errors.New("bin service reported a failure")
)

// ServiceError is a non-2xx answer from the bin service
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("bin service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("bin service returned status %d: %s", e.StatusCode, e.Message)
}

// Is makes ServiceError match ErrServiceFailure
func (e *ServiceError) Is(target error) bool {
	return target == ErrServiceFailure
}

// BinClient provides HTTP access to the bin listing endpoint
type BinClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewBinClient creates a client for the bin service at baseURL. timeout bounds each request.
func NewBinClient(baseURL string, timeout time.Duration, log *logger.Logger) *BinClient {
	return &BinClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
	}
}

// ListBins fetches the current snapshot. An empty fleet is returned as an empty slice with a nil error.
func (c *BinClient) ListBins(ctx context.Context) ([]domain.BinRecord, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/poubelles", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetworkUnavailable, err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", ErrNetworkUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(body, &errResp); err != nil {
			c.logger.Debug().Err(err).Int("status", resp.StatusCode).Msg("error response has no JSON message")
		}
		return nil, &ServiceError{StatusCode: resp.StatusCode, Message: errResp.Error}
	}

	// Anything but an array (including null) is malformed, never an empty fleet.
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: expected a JSON array", ErrMalformedResponse)
	}

	bins := []domain.BinRecord{}
	if err := json.Unmarshal(trimmed, &bins); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	c.logger.Debug().Int("bins", len(bins)).Msg("fetched bin snapshot")
	return bins, nil
}
