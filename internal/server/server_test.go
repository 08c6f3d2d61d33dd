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
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uplinkhq/uplink/internal/catalog"
	"github.com/uplinkhq/uplink/internal/composite"
	"github.com/uplinkhq/uplink/internal/gateway"
	"github.com/uplinkhq/uplink/internal/logstore"
	"github.com/uplinkhq/uplink/internal/store"
	"github.com/uplinkhq/uplink/internal/transport"
	"github.com/uplinkhq/uplink/pkg/envelope"
)

// newTestServer wires a real store, gateway and composite handler against a
// stub upstream.
func newTestServer(t *testing.T, upstream http.HandlerFunc, lister InvocationLister) *Server {
	t.Helper()

	stub := httptest.NewServer(upstream)
	t.Cleanup(stub.Close)

	m := store.NewMemory()
	m.AddIntegration(&catalog.Integration{
		ID: "int-jira", TenantID: "default", Slug: "jira", Name: "Jira",
		AuthType:   catalog.AuthBearer,
		AuthConfig: catalog.AuthConfig{BaseURL: stub.URL},
		Status:     catalog.IntegrationActive,
	})
	m.AddAction(&catalog.Action{
		ID: "act-create", TenantID: "default", IntegrationID: "int-jira",
		Slug: "create-ticket", Name: "Create Ticket",
		HTTPMethod: "POST", EndpointTemplate: "/rest/api/2/issue",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"summary": map[string]any{"type": "string"},
			},
			"required": []any{"summary"},
		},
	})
	m.SetCredential("int-jira", "", &catalog.BearerCredential{Token: "jira-tok"})
	m.AddTool(
		&catalog.CompositeTool{
			ID: "tool-tickets", TenantID: "default", Slug: "tickets", Name: "Tickets",
			RoutingMode:        catalog.RoutingRuleBased,
			DefaultOperationID: "op-create",
		},
		[]catalog.Operation{{
			ID: "op-create", ToolID: "tool-tickets", ActionID: "act-create",
			Slug: "create", ParameterMapping: map[string]string{"title": "summary"},
		}},
		nil,
	)

	loader := &gateway.Loader{Integrations: m, Actions: m, Connections: m, Credentials: m}
	executor := transport.NewHTTPExecutor(nil, &transport.RetryConfig{
		MaxAttempts: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffFactor: 1.0,
	}, nil, transport.RateLimitConfig{}, nil)
	gw := gateway.New(loader, executor, nil, nil, nil, nil)
	tools := composite.NewHandler(m, m, gw, nil)

	return New(gw, tools, lister, nil)
}

func doJSON(t *testing.T, s *Server, method, target, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), "body: %s", rec.Body.String())
	return rec, decoded
}

func TestInvokeActionEndpoint(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer jira-tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"TICKET-1"}`))
	}, nil)

	rec, body := doJSON(t, s, http.MethodPost,
		"/v1/integrations/jira/actions/create-ticket/invoke",
		`{"params":{"summary":"Broken login"}}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	data := body["data"].(map[string]any)
	assert.Equal(t, "TICKET-1", data["id"])
}

func TestInvokeActionEchoesCallerRequestID(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}, nil)

	rec, body := doJSON(t, s, http.MethodPost,
		"/v1/integrations/jira/actions/create-ticket/invoke",
		`{"params":{"summary":"x"}}`,
		map[string]string{RequestIDHeader: "req-caller-1"})

	assert.Equal(t, "req-caller-1", rec.Header().Get(RequestIDHeader))
	meta := body["meta"].(map[string]any)
	assert.Equal(t, "req-caller-1", meta["requestId"])
}

func TestInvokeActionErrorStatusFromCodeTable(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}, nil)

	rec, body := doJSON(t, s, http.MethodPost,
		"/v1/integrations/unknown/actions/create-ticket/invoke",
		`{"params":{}}`, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, string(envelope.CodeIntegrationNotFound), errBody["code"])
}

func TestInvokeActionRejectsBadJSON(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}, nil)

	rec, body := doJSON(t, s, http.MethodPost,
		"/v1/integrations/jira/actions/create-ticket/invoke", `{not json`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, string(envelope.CodeValidationError), errBody["code"])
}

func TestInvokeToolEndpointMapsUnifiedParams(t *testing.T) {
	var seen map[string]any
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&seen))
		w.Write([]byte(`{"ok":true}`))
	}, nil)

	rec, body := doJSON(t, s, http.MethodPost, "/v1/tools/tickets/invoke",
		`{"params":{"title":"Broken login"}}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Broken login", seen["summary"], "unified title mapped to summary")

	toolCtx := body["compositeToolContext"].(map[string]any)
	assert.Equal(t, "tickets", toolCtx["toolSlug"])
	assert.Equal(t, "create", toolCtx["selectedOperation"])
}

func TestToolSchemaEndpoint(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}, nil)

	rec, body := doJSON(t, s, http.MethodGet, "/v1/tools/tickets/schema", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tickets", body["tool"])

	merged := body["schema"].(map[string]any)
	props := merged["properties"].(map[string]any)
	assert.Contains(t, props, "summary")

	// Unknown tool: same wire shape as invoking one.
	rec, body = doJSON(t, s, http.MethodGet, "/v1/tools/nope/schema", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "ROUTING_FAILED", errBody["code"])
	assert.Contains(t, errBody["message"].(string), "nope")
	details := errBody["details"].(map[string]any)
	assert.Equal(t, "TOOL_NOT_FOUND", details["routingCode"])
}

type stubLister struct {
	records []*gateway.InvocationRecord
	gotten  logstore.Filter
}

func (s *stubLister) List(_ context.Context, filter logstore.Filter) ([]*gateway.InvocationRecord, error) {
	s.gotten = filter
	return s.records, nil
}

func TestListInvocationsEndpoint(t *testing.T) {
	lister := &stubLister{records: []*gateway.InvocationRecord{{
		RequestID: "req-1", TenantID: "default", Integration: "jira",
		Action: "create-ticket", Success: true, LatencyMs: 12,
		CreatedAt: time.Now(),
	}}}
	s := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}, lister)

	rec, body := doJSON(t, s, http.MethodGet,
		"/v1/invocations?integration=jira&limit=10&since=2026-01-01T00:00:00Z", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	records := body["invocations"].([]any)
	require.Len(t, records, 1)
	assert.Equal(t, "req-1", records[0].(map[string]any)["requestId"])

	assert.Equal(t, "default", lister.gotten.TenantID)
	assert.Equal(t, "jira", lister.gotten.Integration)
	assert.Equal(t, 10, lister.gotten.Limit)
	require.NotNil(t, lister.gotten.Since)

	rec, _ = doJSON(t, s, http.MethodGet, "/v1/invocations?limit=zero", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListInvocationsDisabled(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}, nil)

	rec, body := doJSON(t, s, http.MethodGet, "/v1/invocations", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, string(envelope.CodeConfigurationError), errBody["code"])
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}, nil)

	rec, body := doJSON(t, s, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	// Hit an instrumented route so the collectors have samples to expose.
	doJSON(t, s, http.MethodGet, "/v1/tools/tickets/schema", "", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mrec := httptest.NewRecorder()
	s.ServeHTTP(mrec, req)
	assert.Equal(t, http.StatusOK, mrec.Code)
	assert.Contains(t, mrec.Body.String(), "uplink_")
}

func TestTenantHeaderScopesLookups(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}, nil)

	rec, _ := doJSON(t, s, http.MethodPost,
		"/v1/integrations/jira/actions/create-ticket/invoke",
		`{"params":{"summary":"x"}}`,
		map[string]string{TenantHeader: "other-tenant"})

	assert.Equal(t, http.StatusNotFound, rec.Code, "integrations are tenant-scoped")
}
