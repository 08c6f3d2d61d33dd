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

package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return recorder
}

func attrValue(span sdktrace.ReadOnlySpan, key string) any {
	for _, attr := range span.Attributes() {
		if string(attr.Key) == key {
			return attr.Value.AsInterface()
		}
	}
	return nil
}

func TestInvocationSpanSuccess(t *testing.T) {
	recorder := withRecorder(t)

	_, span := StartInvocation(context.Background(), "jira", "create-ticket", "req-1")
	span.End("")

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	got := ended[0]
	assert.Equal(t, "invoke: jira/create-ticket", got.Name())
	assert.Equal(t, "jira", attrValue(got, "uplink.integration"))
	assert.Equal(t, "req-1", attrValue(got, "uplink.request_id"))
	assert.Equal(t, codes.Ok, got.Status().Code)
}

func TestInvocationSpanError(t *testing.T) {
	recorder := withRecorder(t)

	_, span := StartInvocation(context.Background(), "jira", "create-ticket", "req-1")
	span.End("RATE_LIMITED")

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "RATE_LIMITED", attrValue(ended[0], "uplink.error_code"))
}

func TestRoutingSpanRecordsDecision(t *testing.T) {
	recorder := withRecorder(t)

	_, span := StartRouting(context.Background(), "tickets", "rule_based")
	span.SetOperation("create-jira", true)
	span.End("")

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "route: tickets", ended[0].Name())
	assert.Equal(t, "create-jira", attrValue(ended[0], "uplink.operation"))
	assert.Equal(t, true, attrValue(ended[0], "uplink.used_default"))
}

func TestNilSpanIsSafe(t *testing.T) {
	var span *InvocationSpan
	span.SetOperation("x", false)
	span.End("BOOM")
}
