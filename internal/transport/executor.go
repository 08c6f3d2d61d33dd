// Copyright 2025 The Uplink Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/uplinkhq/uplink/internal/log"
	"github.com/uplinkhq/uplink/pkg/envelope"
)

const (
	// DefaultAttemptTimeout bounds a single upstream attempt.
	DefaultAttemptTimeout = 30 * time.Second

	// DefaultMaxResponseBytes caps how much of an upstream body is read (10MB).
	DefaultMaxResponseBytes = 10 * 1024 * 1024
)

// Request is a fully built outbound HTTP request. URL is complete including
// query string; Body is marshalled as JSON when non-nil.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    any
}

// ExecOptions carry per-invocation execution knobs.
type ExecOptions struct {
	// BreakerKey selects the circuit breaker and rate limiter, usually the
	// integration id. Empty disables both.
	BreakerKey string

	// Timeout bounds each attempt; zero selects DefaultAttemptTimeout.
	Timeout time.Duration

	// IdempotencyKey, when set, is forwarded as the Idempotency-Key header
	// so retried writes stay safe.
	IdempotencyKey string
}

// Result is the outcome of an execution including all retries.
type Result struct {
	Success    bool
	StatusCode int
	Headers    http.Header

	// Data is the decoded JSON response body; non-JSON bodies come back as
	// a string.
	Data any

	// Err is set when Success is false.
	Err *Error

	// Attempts counts attempts actually made (1 = no retries).
	Attempts int

	// Duration covers all attempts including backoff waits;
	// LastAttemptDuration covers only the final round trip.
	Duration            time.Duration
	LastAttemptDuration time.Duration
}

// RetryCount is Attempts minus the initial try, never negative.
func (r *Result) RetryCount() int {
	if r.Attempts <= 1 {
		return 0
	}
	return r.Attempts - 1
}

// Executor executes outbound requests.
type Executor interface {
	Execute(ctx context.Context, req *Request, opts ExecOptions) *Result
}

// RateLimitConfig tunes the optional per-key outbound rate limiter.
// RequestsPerSecond <= 0 disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

/// HTTPExecutor is the production Executor: net/http with retries, circuit
// breaking and rate limiting keyed by integration.
type HTTPExecutor struct {
	client           *http.Client
	retry            *RetryConfig
	breakers         *BreakerRegistry
	rateCfg          RateLimitConfig
	logger           *slog.Logger
	maxResponseBytes int64

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPExecutor builds an executor. Nil arguments select defaults.
func NewHTTPExecutor(client *http.Client, retryCfg *RetryConfig, breakers *BreakerRegistry, rateCfg RateLimitConfig, logger *slog.Logger) *HTTPExecutor {
	if client == nil {
		client = &http.Client{}
	}
	if retryCfg == nil {
		retryCfg = DefaultRetryConfig()
	}
	if breakers == nil {
		breakers = NewBreakerRegistry(DefaultBreakerConfig())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPExecutor{
		client:           client,
		retry:            retryCfg,
		breakers:         breakers,
		rateCfg:          rateCfg,
		logger:           log.WithComponent(logger, "transport"),
		maxResponseBytes: DefaultMaxResponseBytes,
		limiters:         make(map[string]*rate.Limiter),
	}
}

// Execute runs the request with the full retry/breaker/limiter stack.
func (e *HTTPExecutor) Execute(ctx context.Context, req *Request, opts ExecOptions) *Result {
	start := time.Now()
	result := &Result{}

	var breaker *Breaker
	if opts.BreakerKey != "" {
		breaker = e.breakers.Get(opts.BreakerKey)
		if err := breaker.Allow(); err != nil {
			result.Err = err
			result.Duration = time.Since(start)
			return result
		}
		if err := e.waitForRate(ctx, opts.BreakerKey); err != nil {
			breaker.RecordFailure()
			result.Err = err
			result.Duration = time.Since(start)
			return result
		}
	}

	var lastErr *Error
	for attempt := 1; attempt <= e.retry.MaxAttempts; attempt++ {
		result.Attempts = attempt

		attemptStart := time.Now()
		status, headers, data, err := e.attempt(ctx, req, opts)
		result.LastAttemptDuration = time.Since(attemptStart)

		if err == nil {
			result.Success = true
			result.StatusCode = status
			result.Headers = headers
			result.Data = data
			result.Duration = time.Since(start)
			if breaker != nil {
				breaker.RecordSuccess()
			}
			return result
		}
		lastErr = err
		result.StatusCode = err.StatusCode
		result.Headers = headers
		result.Data = data

		retry, retryAfter := e.retry.shouldRetry(err)
		if !retry || attempt >= e.retry.MaxAttempts || ctx.Err() != nil {
			break
		}

		delay := e.retry.backoff(attempt, retryAfter)
		e.logger.Debug("retrying upstream request",
			slog.String("method", req.Method),
			slog.Int("attempt", attempt),
			slog.Int("status", err.StatusCode),
			slog.Duration("backoff", delay))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			lastErr = &Error{Code: envelope.CodeTimeout, Message: "request cancelled during retry backoff", Cause: ctx.Err()}
			attempt = e.retry.MaxAttempts
		}
	}

	if breaker != nil && breakerCounts(lastErr) {
		breaker.RecordFailure()
	} else if breaker != nil {
		breaker.RecordSuccess()
	}
	result.Err = lastErr
	result.Duration = time.Since(start)
	return result
}

// attempt performs one round trip. A non-nil *Error means the attempt
// failed; headers and decoded body are still returned for HTTP-level errors
// so callers can log upstream detail.
func (e *HTTPExecutor) attempt(ctx context.Context, req *Request, opts ExecOptions) (int, http.Header, any, *Error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return 0, nil, nil, &Error{Code: envelope.CodeInternalError, Message: "failed to encode request body", Cause: err}
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, req.URL, body)
	if err != nil {
		return 0, nil, nil, &Error{Code: envelope.CodeConfigurationError, Message: "failed to build request", Cause: err}
	}

	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	for name, value := range req.Headers {
		httpReq.Header.Set(sanitizeHeaderPart(name), sanitizeHeaderPart(value))
	}
	if opts.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", sanitizeHeaderPart(opts.IdempotencyKey))
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || attemptCtx.Err() == context.DeadlineExceeded {
			return 0, nil, nil, &Error{
				Code:    envelope.CodeTimeout,
				Message: fmt.Sprintf("request timed out after %v", timeout),
				Cause:   err,
			}
		}
		return 0, nil, nil, &Error{Code: envelope.CodeExternalAPIError, Message: "connection failed", Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, e.maxResponseBytes))
	if err != nil {
		return resp.StatusCode, resp.Header, nil, &Error{
			Code:       envelope.CodeExternalAPIError,
			Message:    "failed to read response body",
			StatusCode: resp.StatusCode,
			Cause:      err,
		}
	}
	data := decodeBody(raw)

	if resp.StatusCode >= 400 {
		return resp.StatusCode, resp.Header, data, ErrorFromStatus(resp.StatusCode, resp.Header.Get("Retry-After"))
	}
	return resp.StatusCode, resp.Header, data, nil
}

func (e *HTTPExecutor) waitForRate(ctx context.Context, key string) *Error {
	if e.rateCfg.RequestsPerSecond <= 0 {
		return nil
	}

	e.mu.Lock()
	limiter, ok := e.limiters[key]
	if !ok {
		burst := e.rateCfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(e.rateCfg.RequestsPerSecond), burst)
		e.limiters[key] = limiter
	}
	e.mu.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		return &Error{Code: envelope.CodeRateLimited, Message: "outbound rate limit wait aborted", Cause: err}
	}
	return nil
}

// breakerCounts reports whether a failure should trip the breaker. Client
// errors other than 429 say nothing about upstream health.
func breakerCounts(err *Error) bool {
	if err == nil {
		return false
	}
	switch err.Code {
	case envelope.CodeTimeout, envelope.CodeRateLimited:
		return true
	case envelope.CodeExternalAPIError:
		return err.StatusCode == 0 || err.StatusCode >= 500
	default:
		return false
	}
}

// decodeBody parses JSON bodies; anything else is passed through as text.
func decodeBody(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	var data any
	if err := json.Unmarshal(raw, &data); err == nil {
		return data
	}
	return string(raw)
}

// sanitizeHeaderPart strips CR/LF so catalog-sourced values cannot inject
// headers.
func sanitizeHeaderPart(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, "\n", "")
}
