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

package envelope

import "net/http"

// ErrorCode identifies a gateway failure class. Codes are part of the wire
// contract: callers (and agent frameworks built on top of them) branch on
// these values.
type ErrorCode string

const (
	// CodeValidationError indicates the supplied input failed schema validation.
	CodeValidationError ErrorCode = "VALIDATION_ERROR"

	// CodeIntegrationNotFound indicates the integration slug is unknown to this tenant.
	CodeIntegrationNotFound ErrorCode = "INTEGRATION_NOT_FOUND"

	// CodeActionNotFound indicates the action slug is unknown within the integration.
	CodeActionNotFound ErrorCode = "ACTION_NOT_FOUND"

	// CodeIntegrationDisabled indicates the integration exists but has been disabled.
	CodeIntegrationDisabled ErrorCode = "INTEGRATION_DISABLED"

	// CodeConfigurationError indicates operator-fixable setup problems (e.g. no base URL).
	CodeConfigurationError ErrorCode = "CONFIGURATION_ERROR"

	// CodeCredentialsMissing indicates no credential is stored for the connection.
	CodeCredentialsMissing ErrorCode = "CREDENTIALS_MISSING"

	// CodeCredentialsExpired indicates the stored credential needs re-authentication.
	CodeCredentialsExpired ErrorCode = "CREDENTIALS_EXPIRED"

	// CodeResponseValidationError indicates the upstream response violated the
	// action's output schema in strict mode.
	CodeResponseValidationError ErrorCode = "RESPONSE_VALIDATION_ERROR"

	// CodeRateLimited indicates the upstream API rejected the call with 429.
	CodeRateLimited ErrorCode = "RATE_LIMITED"

	// CodeCircuitOpen indicates the per-integration circuit breaker is open.
	CodeCircuitOpen ErrorCode = "CIRCUIT_OPEN"

	// CodeExternalAPIError indicates a non-retryable upstream failure.
	CodeExternalAPIError ErrorCode = "EXTERNAL_API_ERROR"

	// CodeTimeout indicates the upstream call exceeded its deadline.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeInternalError indicates an unexpected gateway-side failure.
	CodeInternalError ErrorCode = "INTERNAL_ERROR"

	// CodeRoutingFailed indicates a composite tool could not select an
	// operation (missing selector, unknown selector, or no rule matched).
	CodeRoutingFailed ErrorCode = "ROUTING_FAILED"
)

// Suggested resolution actions. These are coarse machine-readable hints so an
// agent can decide between retrying, fixing input, and escalating.
const (
	ActionRetryWithModifiedInput = "RETRY_WITH_MODIFIED_INPUT"
	ActionCheckIntegrationConfig = "CHECK_INTEGRATION_CONFIG"
	ActionRefreshCredentials     = "REFRESH_CREDENTIALS"
	ActionContactProvider        = "CONTACT_EXTERNAL_PROVIDER"
	ActionRetryAfterDelay        = "RETRY_AFTER_DELAY"
	ActionEscalateToAdmin        = "ESCALATE_TO_ADMIN"
)

// codeInfo captures the fixed classification of an error code.
type codeInfo struct {
	status      int
	action      string
	retryable   bool
	description string
}

var codeTable = map[ErrorCode]codeInfo{
	CodeValidationError:         {http.StatusBadRequest, ActionRetryWithModifiedInput, true, "Fix the reported input fields and retry"},
	CodeIntegrationNotFound:     {http.StatusNotFound, ActionCheckIntegrationConfig, false, "Verify the integration slug and tenant configuration"},
	CodeActionNotFound:          {http.StatusNotFound, ActionCheckIntegrationConfig, false, "Verify the action slug exists for this integration"},
	CodeIntegrationDisabled:     {http.StatusForbidden, ActionCheckIntegrationConfig, false, "Re-enable the integration before invoking it"},
	CodeConfigurationError:      {http.StatusBadRequest, ActionCheckIntegrationConfig, false, "An operator must fix the integration setup"},
	CodeCredentialsMissing:      {http.StatusUnauthorized, ActionRefreshCredentials, false, "Connect the account to store credentials"},
	CodeCredentialsExpired:      {http.StatusUnauthorized, ActionRefreshCredentials, true, "Re-authenticate the connection, then retry"},
	CodeResponseValidationError: {http.StatusBadGateway, ActionContactProvider, false, "The provider response no longer matches the expected schema"},
	CodeRateLimited:             {http.StatusTooManyRequests, ActionRetryAfterDelay, true, "Wait for the rate limit window and retry"},
	CodeCircuitOpen:             {http.StatusServiceUnavailable, ActionRetryAfterDelay, true, "The integration is failing; retry after the cooldown"},
	CodeExternalAPIError:        {http.StatusBadGateway, ActionContactProvider, false, "The external API rejected the request"},
	CodeTimeout:                 {http.StatusGatewayTimeout, ActionRetryAfterDelay, true, "The external API did not respond in time"},
	CodeInternalError:           {http.StatusInternalServerError, ActionEscalateToAdmin, false, "An unexpected error occurred; contact an administrator"},
	CodeRoutingFailed:           {http.StatusBadRequest, ActionRetryWithModifiedInput, true, "Adjust the routing input or operation selector and retry"},
}

// HTTPStatus returns the HTTP status associated with the code.
// Unknown codes map to 500.
func (c ErrorCode) HTTPStatus() int {
	if info, ok := codeTable[c]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// SuggestedAction returns the machine-readable resolution hint for the code.
func (c ErrorCode) SuggestedAction() string {
	if info, ok := codeTable[c]; ok {
		return info.action
	}
	return ActionEscalateToAdmin
}

// Retryable reports whether a caller may retry after the suggested action.
func (c ErrorCode) Retryable() bool {
	if info, ok := codeTable[c]; ok {
		return info.retryable
	}
	return false
}

// Description returns the human-readable resolution description for the code.
func (c ErrorCode) Description() string {
	if info, ok := codeTable[c]; ok {
		return info.description
	}
	return "An unexpected error occurred; contact an administrator"
}
