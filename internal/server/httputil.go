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

package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/uplinkhq/uplink/pkg/envelope"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeEnvelope writes an invocation envelope, deriving the HTTP status from
// the error code table (200 on success).
func writeEnvelope(w http.ResponseWriter, resp *envelope.Response) {
	status := http.StatusOK
	if resp.Error != nil {
		status = resp.Error.Code.HTTPStatus()
	}
	writeJSON(w, status, resp)
}

// writeError writes a bare error envelope for request-level failures that
// never reached the pipeline (bad JSON, unknown routes).
func writeError(w http.ResponseWriter, code envelope.ErrorCode, message, requestID string) {
	writeJSON(w, code.HTTPStatus(), envelope.NewError(code, message, requestID, nil))
}
