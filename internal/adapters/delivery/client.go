// Package delivery transmits assembled batches to the remote collector and
// classifies the outcome of each send.
//
// Classification rules: 2xx is success, 4xx is terminal (the payload is
// defective and resending it unmodified cannot help), 5xx and transport
// errors are retryable. Retryable failures are retried in-process with
// capped exponential backoff plus jitter before being handed back to the
// caller for spooling.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/okian/beacon/internal/domain/model"
	"github.com/okian/beacon/pkg/logger"
	"github.com/okian/beacon/pkg/metrics"
)

// Default delivery configuration constants.
const (
	defaultMaxRetries     = 3
	defaultBaseDelay      = 500 * time.Millisecond
	defaultMaxJitter      = time.Second
	defaultRequestTimeout = 10 * time.Second
	defaultUserAgent      = "beacon-go-sdk/1.0"
	apiKeyHeader          = "X-Api-Key"
)

// Client sends one batch and reports the outcome.
type Client interface {
	Send(ctx context.Context, b *model.Batch) model.DeliveryOutcome
}

// Sleeper blocks for d or until ctx is done. Injected so backoff behavior
// is testable without real delays.
type Sleeper func(ctx context.Context, d time.Duration) error

// HTTPClient implements Client over HTTP POST.
type HTTPClient struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	userAgent  string
	maxRetries int
	baseDelay  time.Duration
	maxJitter  time.Duration
	sleep      Sleeper
	rng        func() float64
	logger     logger.Logger
}

// NewHTTPClient creates a delivery client for the given collector endpoint.
func NewHTTPClient(endpoint string, opts ...Option) (*HTTPClient, error) {
	if endpoint == "" {
		return nil, ErrNoEndpoint
	}

	c := &HTTPClient{
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		endpoint:   endpoint,
		userAgent:  defaultUserAgent,
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		maxJitter:  defaultMaxJitter,
		sleep:      sleepCtx,
		rng:        rand.Float64,
	}

	// Apply all options
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = logger.Get().Named("delivery")
	}

	return c, nil
}

// Send performs up to maxRetries network attempts for one batch. The batch
// is never mutated; the serialized body is built once and reused.
func (c *HTTPClient) Send(ctx context.Context, b *model.Batch) model.DeliveryOutcome {
	start := time.Now()
	defer func() {
		metrics.RecordDeliveryLatency(float64(time.Since(start).Milliseconds()))
	}()

	body, err := json.Marshal(b)
	if err != nil {
		// A batch that cannot serialize will never succeed.
		metrics.RecordTerminalFailure()
		return model.TerminalFailure(fmt.Sprintf("marshal: %v", err))
	}

	var lastReason string
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			metrics.RecordDeliveryRetry()
			if err := c.sleep(ctx, Backoff(attempt-1, c.baseDelay, c.maxJitter, c.rng)); err != nil {
				metrics.RecordRetryableFailure()
				return model.RetryableFailure(fmt.Sprintf("canceled during backoff: %v", err))
			}
		}

		metrics.RecordDeliveryAttempt()
		status, err := c.post(ctx, body)
		switch {
		case err != nil:
			// Transport failure: timeout, connection refused, reset.
			lastReason = fmt.Sprintf("transport: %v", err)
			metrics.RecordErrorByComponent("delivery", "transport")
		case status >= 200 && status < 300:
			metrics.RecordBatchDelivered()
			return model.Success()
		case status >= 400 && status < 500:
			metrics.RecordTerminalFailure()
			c.logger.Warn(ctx, "batch rejected by collector",
				logger.String("batchID", b.BatchID),
				logger.Int("status", status),
			)
			return model.TerminalFailure(fmt.Sprintf("HTTP %d", status))
		default:
			lastReason = fmt.Sprintf("HTTP %d", status)
			metrics.RecordErrorByComponent("delivery", "server_error")
		}

		c.logger.Debug(ctx, "delivery attempt failed",
			logger.String("batchID", b.BatchID),
			logger.Int("attempt", attempt+1),
			logger.String("reason", lastReason),
		)
	}

	metrics.RecordRetryableFailure()
	return model.RetryableFailure(lastReason)
}

// post performs a single HTTP POST and returns the status code.
func (c *HTTPClient) post(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

// sleepCtx blocks for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
