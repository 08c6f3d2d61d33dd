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

// Package envelope defines the uniform response contract every invocation
// returns, regardless of which external API was called or how it failed.
package envelope

import "time"

// Response is the uniform invocation envelope. Success responses carry Data
// and Meta; error responses carry Error. Composite tool invocations
// additionally carry CompositeToolContext on failure so callers can tell a
// routing mistake apart from a broken downstream call.
type Response struct {
	Success bool `json:"success"`

	// Data is the final (validated, mapped) response payload.
	Data any `json:"data,omitempty"`

	// Context is an optional LLM-facing preamble rendered from the
	// connection's preamble template.
	Context string `json:"context,omitempty"`

	// ReferenceData is optional cached lookup data for agent context.
	ReferenceData any `json:"referenceData,omitempty"`

	// ResolvedInputs echoes the parameters actually sent upstream after
	// mapping and default filling.
	ResolvedInputs map[string]any `json:"resolvedInputs,omitempty"`

	Meta  *Meta      `json:"meta,omitempty"`
	Error *ErrorBody `json:"error,omitempty"`

	CompositeToolContext *CompositeToolContext `json:"compositeToolContext,omitempty"`
}

// Meta carries per-invocation metadata on success responses.
type Meta struct {
	RequestID string        `json:"requestId"`
	Timestamp time.Time     `json:"timestamp"`
	Execution ExecutionMeta `json:"execution"`

	Validation *ValidationMeta `json:"validation,omitempty"`
	Mapping    *MappingMeta    `json:"mapping,omitempty"`
	Pagination any             `json:"pagination,omitempty"`
}

// ExecutionMeta describes how the upstream call went.
type ExecutionMeta struct {
	LatencyMs         int64 `json:"latencyMs"`
	RetryCount        int   `json:"retryCount"`
	Cached            bool  `json:"cached"`
	ExternalLatencyMs int64 `json:"externalLatencyMs,omitempty"`
}

// ValidationMeta summarizes response validation of the upstream payload.
type ValidationMeta struct {
	Validated bool     `json:"validated"`
	Mode      string   `json:"mode,omitempty"`
	Issues    []string `json:"issues,omitempty"`
}

// MappingMeta reports which field-mapping phases actually ran.
type MappingMeta struct {
	InputApplied  bool `json:"inputApplied"`
	OutputApplied bool `json:"outputApplied"`
}

// ErrorBody is the error half of the wire contract.
type ErrorBody struct {
	Code                ErrorCode  `json:"code"`
	Message             string     `json:"message"`
	Details             any        `json:"details,omitempty"`
	RequestID           string     `json:"requestId"`
	SuggestedResolution Resolution `json:"suggestedResolution"`
}

// Resolution tells the caller what to do about an error.
type Resolution struct {
	Action       string `json:"action"`
	Description  string `json:"description"`
	Retryable    bool   `json:"retryable"`
	RetryAfterMs int64  `json:"retryAfterMs,omitempty"`
}

// CompositeToolContext describes how a composite invocation was routed. On
// errors it additionally carries the phase in which the failure occurred so
// agents can tell a bad operation choice from broken credentials from a
// failing upstream call.
type CompositeToolContext struct {
	ToolSlug          string `json:"toolSlug"`
	SelectedOperation string `json:"selectedOperation,omitempty"`
	RoutingMode       string `json:"routingMode,omitempty"`
	RoutingReason     string `json:"routingReason,omitempty"`
	UsedDefault       bool   `json:"usedDefault,omitempty"`
	ErrorPhase        Phase  `json:"errorPhase,omitempty"`
}

// Phase identifies the composite invocation stage where an error occurred.
type Phase string

const (
	PhaseRouting          Phase = "routing"
	PhaseContextLoading   Phase = "context_loading"
	PhaseParameterMapping Phase = "parameter_mapping"
	PhaseExecution        Phase = "execution"
)

// NewError builds a complete error envelope for the given code, filling the
// suggested resolution from the code table.
func NewError(code ErrorCode, message, requestID string, details any) *Response {
	return &Response{
		Success: false,
		Error: &ErrorBody{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: requestID,
			SuggestedResolution: Resolution{
				Action:      code.SuggestedAction(),
				Description: code.Description(),
				Retryable:   code.Retryable(),
			},
		},
	}
}

// NewSuccess builds a success envelope skeleton; callers attach data and
// optional metadata sections.
func NewSuccess(requestID string, data any) *Response {
	return &Response{
		Success: true,
		Data:    data,
		Meta: &Meta{
			RequestID: requestID,
			Timestamp: time.Now().UTC(),
		},
	}
}
