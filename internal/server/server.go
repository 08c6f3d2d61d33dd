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

// Package server exposes the gateway over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/uplinkhq/uplink/internal/catalog"
	"github.com/uplinkhq/uplink/internal/composite"
	"github.com/uplinkhq/uplink/internal/gateway"
	"github.com/uplinkhq/uplink/internal/log"
	"github.com/uplinkhq/uplink/internal/logstore"
	"github.com/uplinkhq/uplink/internal/metrics"
	"github.com/uplinkhq/uplink/pkg/envelope"
)

const (
	// TenantHeader names the caller's tenant. Missing headers fall back to
	// DefaultTenant so single-tenant deployments need no header at all.
	TenantHeader  = "X-Tenant-ID"
	DefaultTenant = "default"

	// RequestIDHeader carries the caller-supplied request id; one is
	// generated when absent and echoed back either way.
	RequestIDHeader = "X-Request-ID"
)

// InvocationLister serves the recent-invocations endpoint.
type InvocationLister interface {
	List(ctx context.Context, filter logstore.Filter) ([]*gateway.InvocationRecord, error)
}

// Server is the daemon's HTTP API.
type Server struct {
	gw          *gateway.Gateway
	tools       *composite.Handler
	invocations InvocationLister
	logger      *slog.Logger
	mux         *http.ServeMux
}

// New assembles the API. invocations may be nil when persistence is
// disabled; the listing endpoint then answers 404.
func New(gw *gateway.Gateway, tools *composite.Handler, invocations InvocationLister, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		gw:          gw,
		tools:       tools,
		invocations: invocations,
		logger:      log.WithComponent(logger, "api"),
		mux:         http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /v1/integrations/{integration}/actions/{action}/invoke",
		s.instrument("invoke_action", s.handleInvokeAction))
	s.mux.HandleFunc("POST /v1/tools/{tool}/invoke",
		s.instrument("invoke_tool", s.handleInvokeTool))
	s.mux.HandleFunc("GET /v1/tools/{tool}/schema",
		s.instrument("tool_schema", s.handleToolSchema))
	s.mux.HandleFunc("GET /v1/invocations",
		s.instrument("list_invocations", s.handleListInvocations))
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// statusRecorder captures the response status for instrumentation.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument wraps a handler with request-id propagation and prometheus
// counters keyed by logical route.
func (s *Server) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)
		r = r.WithContext(withRequestID(r.Context(), requestID))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		metrics.ObserveHTTP(route, strconv.Itoa(rec.status), time.Since(start))
	}
}

type requestIDKey struct{}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func tenantFrom(r *http.Request) string {
	if tenant := r.Header.Get(TenantHeader); tenant != "" {
		return tenant
	}
	return DefaultTenant
}

// invokeBody is the request payload for both invoke endpoints. Operation is
// only meaningful for composite tools.
type invokeBody struct {
	Params       map[string]any        `json:"params"`
	ConnectionID string                `json:"connectionId,omitempty"`
	Operation    string                `json:"operation,omitempty"`
	Options      gateway.InvokeOptions `json:"options,omitempty"`
}

func decodeInvokeBody(w http.ResponseWriter, r *http.Request, requestID string) (*invokeBody, bool) {
	var body invokeBody
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, envelope.CodeValidationError, "request body is not valid JSON", requestID)
			return nil, false
		}
	}
	if body.Params == nil {
		body.Params = map[string]any{}
	}
	return &body, true
}

func (s *Server) handleInvokeAction(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r.Context())
	body, ok := decodeInvokeBody(w, r, requestID)
	if !ok {
		return
	}

	resp := s.gw.Invoke(r.Context(), &gateway.InvokeRequest{
		TenantID:        tenantFrom(r),
		IntegrationSlug: r.PathValue("integration"),
		ActionSlug:      r.PathValue("action"),
		ConnectionID:    body.ConnectionID,
		RequestID:       requestID,
		Params:          body.Params,
		Options:         body.Options,
	})
	writeEnvelope(w, resp)
}

func (s *Server) handleInvokeTool(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r.Context())
	body, ok := decodeInvokeBody(w, r, requestID)
	if !ok {
		return
	}

	resp := s.tools.Invoke(r.Context(), &composite.ToolRequest{
		TenantID:     tenantFrom(r),
		ToolSlug:     r.PathValue("tool"),
		ConnectionID: body.ConnectionID,
		RequestID:    requestID,
		Params:       body.Params,
		Selector:     body.Operation,
		Options:      body.Options,
	})
	writeEnvelope(w, resp)
}

func (s *Server) handleToolSchema(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r.Context())
	toolSlug := r.PathValue("tool")

	result, err := s.tools.Schema(r.Context(), tenantFrom(r), toolSlug)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			// Same wire shape as an invoke against an unknown tool.
			writeEnvelope(w, envelope.NewError(envelope.CodeRoutingFailed,
				"composite tool \""+toolSlug+"\" not found", requestID,
				map[string]any{"routingCode": "TOOL_NOT_FOUND"}))
			return
		}
		s.logger.Error("schema build failed", slog.String("tool", toolSlug), log.Error(err))
		writeError(w, envelope.CodeInternalError, "failed to build tool schema", requestID)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tool":     toolSlug,
		"schema":   result.Schema,
		"warnings": result.Warnings,
	})
}

func (s *Server) handleListInvocations(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r.Context())
	if s.invocations == nil {
		writeError(w, envelope.CodeConfigurationError, "invocation persistence is disabled", requestID)
		return
	}

	filter := logstore.Filter{
		TenantID:    tenantFrom(r),
		Integration: r.URL.Query().Get("integration"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, envelope.CodeValidationError, "limit must be a positive integer", requestID)
			return
		}
		filter.Limit = limit
	}
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, envelope.CodeValidationError, "since must be RFC 3339", requestID)
			return
		}
		filter.Since = &since
	}

	records, err := s.invocations.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("invocation listing failed", log.Error(err))
		writeError(w, envelope.CodeInternalError, "failed to list invocations", requestID)
		return
	}
	if records == nil {
		records = []*gateway.InvocationRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"invocations": records})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
