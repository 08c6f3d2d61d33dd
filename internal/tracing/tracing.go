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

// Package tracing instruments invocations with OpenTelemetry spans. Without
// a configured tracer provider the spans are no-ops, so every call site can
// trace unconditionally.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/uplinkhq/uplink"

func tracer() trace.Tracer {
	return otel.Tracer(scopeName)
}

// InvocationSpan wraps an OpenTelemetry span with gateway-specific helpers.
type InvocationSpan struct {
	span trace.Span
}

// StartInvocation creates a span for one gateway invocation.
func StartInvocation(ctx context.Context, integration, action, requestID string) (context.Context, *InvocationSpan) {
	ctx, span := tracer().Start(ctx, "invoke: "+integration+"/"+action,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("uplink.integration", integration),
			attribute.String("uplink.action", action),
			attribute.String("uplink.request_id", requestID),
		),
	)
	return ctx, &InvocationSpan{span: span}
}

// StartRouting creates a span for a composite tool's routing phase.
func StartRouting(ctx context.Context, tool, mode string) (context.Context, *InvocationSpan) {
	ctx, span := tracer().Start(ctx, "route: "+tool,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("uplink.tool", tool),
			attribute.String("uplink.routing_mode", mode),
		),
	)
	return ctx, &InvocationSpan{span: span}
}

// SetOperation records the routing decision on a routing span.
func (s *InvocationSpan) SetOperation(slug string, usedDefault bool) {
	if s == nil || s.span == nil {
		return
	}
	s.span.SetAttributes(
		attribute.String("uplink.operation", slug),
		attribute.Bool("uplink.used_default", usedDefault),
	)
}

// End finishes the span. A non-empty errorCode marks the span failed and
// records the envelope error code.
func (s *InvocationSpan) End(errorCode string) {
	if s == nil || s.span == nil {
		return
	}
	if errorCode != "" {
		s.span.SetAttributes(attribute.String("uplink.error_code", errorCode))
		s.span.SetStatus(codes.Error, errorCode)
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}
