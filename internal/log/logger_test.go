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

package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONLoggerCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "debug", Format: FormatJSON, Output: &buf})

	WithInvocation(WithRequestID(logger, "req-1"), "jira", "create-ticket").
		Info("invocation complete", Duration("latency", 42))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-1", line[RequestIDKey])
	assert.Equal(t, "jira", line[IntegrationKey])
	assert.Equal(t, "create-ticket", line[ActionKey])
	assert.Equal(t, float64(42), line["latency_ms"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"trace", LevelTrace},
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), tt.in)
	}
}

func TestTraceLevelSuppressedByDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

	Trace(logger, "verbose detail")
	assert.Empty(t, buf.String())

	buf.Reset()
	logger = New(&Config{Level: "trace", Format: FormatJSON, Output: &buf})
	Trace(logger, "verbose detail")
	assert.Contains(t, buf.String(), "verbose detail")
}

func TestSanitizers(t *testing.T) {
	assert.Equal(t, "...WXYZ", SanitizeAPIKey("sk-live-1234WXYZ"))
	assert.Equal(t, "[REDACTED]", SanitizeAPIKey("abc"))
	assert.Equal(t, "[REDACTED]", SanitizeSecret("hunter2"))
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

	WithComponent(logger, "transport").Info("request sent")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "transport", line["component"])
}
