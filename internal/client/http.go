package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	logpkg "github.com/stationkit/redeemq/pkg/log"
)

// RemoteClient performs one redemption attempt against the remote service.
// A non-nil error indicates a transport failure (no classified response);
// domain outcomes, including failures, arrive as a RedeemResult with nil error.
type RemoteClient interface {
	Redeem(ctx context.Context, req RedeemRequest, idempotencyKey string) (RedeemResult, error)
}

// HTTPClient implements RemoteClient over the JSON wire contract.
type HTTPClient struct {
	baseURL  string
	hc       *http.Client
	validate *validator.Validate
	logger   logpkg.Logger
}

// NewHTTPClient creates an HTTPClient for the given base URL. timeout bounds
// each redeem call; expiry surfaces as a transport error and is therefore
// retryable by the queue.
func NewHTTPClient(baseURL string, timeout time.Duration, logger logpkg.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		hc:       &http.Client{Timeout: timeout},
		validate: validator.New(),
		logger:   logger,
	}
}

// WithHTTPClient overrides the underlying http.Client (used by tests to
// inject failing transports).
func (c *HTTPClient) WithHTTPClient(hc *http.Client) *HTTPClient {
	c.hc = hc
	return c
}

// Redeem posts the request with the Idempotency-Key header and classifies the
// response per the wire contract.
func (c *HTTPClient) Redeem(ctx context.Context, req RedeemRequest, idempotencyKey string) (RedeemResult, error) {
	if err := c.validate.Struct(req); err != nil {
		return RedeemResult{}, fmt.Errorf("client: invalid redeem request: %w", err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return RedeemResult{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/redeem", bytes.NewReader(body))
	if err != nil {
		return RedeemResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(IdempotencyKeyHeader, idempotencyKey)

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return RedeemResult{}, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return RedeemResult{}, err
	}

	var result RedeemResult
	if jsonErr := json.Unmarshal(raw, &result); jsonErr == nil {
		if valErr := c.validate.Struct(result); valErr == nil {
			return result, nil
		} else if resp.StatusCode == http.StatusOK {
			// A malformed 2xx body is indistinguishable from a broken proxy;
			// propagate as a transport error so the queue retries.
			return RedeemResult{}, fmt.Errorf("client: malformed redeem response: %w", valErr)
		}
	} else if resp.StatusCode == http.StatusOK {
		return RedeemResult{}, fmt.Errorf("client: malformed redeem response: %w", jsonErr)
	}

	// Non-success HTTP status without a parseable failure body.
	c.logger.Warn("unclassified redeem response",
		logpkg.Int("http_status", resp.StatusCode),
		logpkg.Int("body_bytes", len(raw)),
	)
	return RedeemResult{
		Status:    StatusUnknownError,
		Message:   fmt.Sprintf("http %d", resp.StatusCode),
		Retryable: resp.StatusCode >= 500,
	}, nil
}
