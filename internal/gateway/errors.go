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

// Package gateway orchestrates single-action invocations: context loading,
// parameter validation, request building, credential injection, execution
// and envelope assembly.
package gateway

import (
	"fmt"
	"time"

	"github.com/uplinkhq/uplink/pkg/envelope"
)

// Error is a typed pipeline failure carrying its wire-contract code. Every
// known failure in the pipeline is one of these; anything else surfaces as
// INTERNAL_ERROR at the orchestrator boundary.
type Error struct {
	Code    envelope.ErrorCode
	Message string

	// Details is optional structured context for the envelope (violated
	// fields, upstream status, ...).
	Details any

	// RetryAfter optionally overrides the envelope's backoff hint.
	RetryAfter time.Duration

	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds a typed pipeline error.
func NewError(code envelope.ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf builds a typed pipeline error with a formatted message.
func Errorf(code envelope.ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Envelope renders the error as a wire response.
func (e *Error) Envelope(requestID string) *envelope.Response {
	resp := envelope.NewError(e.Code, e.Message, requestID, e.Details)
	if e.RetryAfter > 0 {
		resp.Error.SuggestedResolution.RetryAfterMs = e.RetryAfter.Milliseconds()
	}
	return resp
}
