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
	"fmt"
	"math/rand"
	"time"

	"github.com/uplinkhq/uplink/pkg/envelope"
)

// RetryConfig configures the retry engine.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first
	// (default 3).
	MaxAttempts int `yaml:"max_attempts"`

	// InitialBackoff is the first retry delay (default 1s).
	InitialBackoff time.Duration `yaml:"initial_backoff"`

	// MaxBackoff caps the delay, including Retry-After hints (default 30s).
	MaxBackoff time.Duration `yaml:"max_backoff"`

	// BackoffFactor is the exponential multiplier (default 2.0).
	BackoffFactor float64 `yaml:"backoff_factor"`

	// RetryableStatuses lists HTTP status codes worth re-attempting.
	// Default: 408, 429, 500, 502, 503, 504.
	RetryableStatuses []int `yaml:"retryable_statuses"`
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffFactor:     2.0,
		RetryableStatuses: []int{408, 429, 500, 502, 503, 504},
	}
}

// Validate checks the configuration for operator mistakes.
func (c *RetryConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.InitialBackoff < 0 {
		return fmt.Errorf("initial_backoff must be non-negative, got %v", c.InitialBackoff)
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("max_backoff (%v) must be >= initial_backoff (%v)", c.MaxBackoff, c.InitialBackoff)
	}
	if c.BackoffFactor < 1.0 {
		return fmt.Errorf("backoff_factor must be >= 1.0, got %f", c.BackoffFactor)
	}
	return nil
}

// IsRetryableStatus reports whether statusCode is in the retryable list.
func (c *RetryConfig) IsRetryableStatus(statusCode int) bool {
	for _, code := range c.RetryableStatuses {
		if code == statusCode {
			return true
		}
	}
	return false
}

// shouldRetry decides whether err warrants another attempt and extracts the
// upstream's Retry-After hint.
//
// Retried: retryable statuses (408, 429, 5xx by default), timeouts and
// connection-level failures. Never retried: other 4xx, circuit-open, and
// errors of unknown type.
func (c *RetryConfig) shouldRetry(err error) (bool, time.Duration) {
	te, ok := err.(*Error)
	if !ok {
		return false, 0
	}
	if te.Code == envelope.CodeCircuitOpen {
		return false, 0
	}
	if te.StatusCode > 0 {
		if !c.IsRetryableStatus(te.StatusCode) {
			return false, 0
		}
		return true, te.RetryAfter
	}
	return te.Retryable(), 0
}

// backoff computes the delay before retry number attempt (1-based).
//
// delay = min(InitialBackoff * BackoffFactor^(attempt-1), MaxBackoff),
// raised to Retry-After when the upstream asked for more (still capped at
// MaxBackoff), plus 0-100ms of jitter.
func (c *RetryConfig) backoff(attempt int, retryAfter time.Duration) time.Duration {
	base := float64(c.InitialBackoff)
	for i := 1; i < attempt; i++ {
		base *= c.BackoffFactor
	}
	if base > float64(c.MaxBackoff) {
		base = float64(c.MaxBackoff)
	}

	delay := time.Duration(base)
	if retryAfter > delay {
		delay = retryAfter
	}
	if delay > c.MaxBackoff {
		delay = c.MaxBackoff
	}

	jitter := time.Duration(rand.Int63n(101)) * time.Millisecond
	return delay + jitter
}
