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

// Package transport executes outbound HTTP requests with retries, circuit
// breaking and rate limiting. It is the only package that talks to external
// APIs.
package transport

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/uplinkhq/uplink/pkg/envelope"
)

// Error is a classified transport failure. The Code maps directly onto the
// wire-contract error table.
type Error struct {
	Code       envelope.ErrorCode
	Message    string
	StatusCode int

	// RetryAfter is the upstream-suggested wait, when one was given.
	RetryAfter time.Duration

	Cause error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("transport: %s", e.Message)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s [HTTP %d]", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether the retry engine may re-attempt this failure.
func (e *Error) Retryable() bool { return e.Code.Retryable() }

// ErrorFromStatus classifies an upstream HTTP status into a transport error.
// Response bodies are never included in messages; they travel separately on
// the execution result for logging.
func ErrorFromStatus(statusCode int, retryAfterHeader string) *Error {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return &Error{
			Code:       envelope.CodeRateLimited,
			Message:    "upstream rate limit exceeded",
			StatusCode: statusCode,
			RetryAfter: ParseRetryAfter(retryAfterHeader),
		}
	case statusCode == http.StatusRequestTimeout, statusCode == http.StatusGatewayTimeout:
		return &Error{
			Code:       envelope.CodeTimeout,
			Message:    fmt.Sprintf("upstream returned %d %s", statusCode, http.StatusText(statusCode)),
			StatusCode: statusCode,
			RetryAfter: ParseRetryAfter(retryAfterHeader),
		}
	default:
		return &Error{
			Code:       envelope.CodeExternalAPIError,
			Message:    fmt.Sprintf("upstream returned %d %s", statusCode, http.StatusText(statusCode)),
			StatusCode: statusCode,
			RetryAfter: ParseRetryAfter(retryAfterHeader),
		}
	}
}

// ParseRetryAfter parses a Retry-After header value. Both the numeric
// seconds form and the HTTP-date form are accepted; anything else yields 0.
func ParseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	at, err := http.ParseTime(value)
	if err != nil {
		return 0
	}
	delay := time.Until(at)
	if delay < 0 {
		return 0
	}
	return delay
}
