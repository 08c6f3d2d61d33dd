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

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/uplinkhq/uplink/internal/catalog"
	"github.com/uplinkhq/uplink/internal/log"
	"github.com/uplinkhq/uplink/internal/metrics"
	"github.com/uplinkhq/uplink/internal/schema"
	"github.com/uplinkhq/uplink/internal/tracing"
	"github.com/uplinkhq/uplink/internal/transport"
	"github.com/uplinkhq/uplink/pkg/envelope"
)

// FieldMapper applies input and output mapping scoped to one invocation:
// the action plus the tenant and connection it runs under. Implementations
// may key expressions off any part of that scope. Both directions are
// best-effort for the pipeline.
type FieldMapper interface {
	ApplyInput(ctx context.Context, action *catalog.Action, tenantID, connectionID string, params map[string]any) (map[string]any, bool, error)
	ApplyOutput(ctx context.Context, action *catalog.Action, tenantID, connectionID string, data any) (any, bool, error)
}

// ReferenceDataProvider serves cached reference datasets.
type ReferenceDataProvider interface {
	Get(ctx context.Context, tenantID, key string) (any, error)
}

// InvocationRecord is the audit snapshot of one invocation.
type InvocationRecord struct {
	RequestID   string         `json:"requestId"`
	TenantID    string         `json:"tenantId"`
	Integration string         `json:"integration"`
	Action      string         `json:"action"`
	Connection  string         `json:"connection,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
	Success     bool           `json:"success"`
	StatusCode  int            `json:"statusCode,omitempty"`
	ErrorCode   string         `json:"errorCode,omitempty"`
	LatencyMs   int64          `json:"latencyMs"`
	RetryCount  int            `json:"retryCount"`
	Response    any            `json:"response,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// InvocationLogger persists invocation records. Implementations must treat
// failures as their own problem; the pipeline never propagates them.
type InvocationLogger interface {
	LogInvocation(ctx context.Context, rec *InvocationRecord) error
}

// InvokeOptions are caller-supplied execution knobs.
type InvokeOptions struct {
	// SkipValidation disables input schema validation.
	SkipValidation bool `json:"skipValidation,omitempty"`

	// TimeoutMs bounds each upstream attempt.
	TimeoutMs int64 `json:"timeoutMs,omitempty"`

	// IdempotencyKey is forwarded unchanged to the executor so retried
	// writes stay safe.
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

// InvokeRequest asks the gateway to run one action.
type InvokeRequest struct {
	TenantID        string
	IntegrationSlug string
	ActionSlug      string
	ConnectionID    string

	// RequestID is generated when empty.
	RequestID string

	Params  map[string]any
	Options InvokeOptions
}

// Gateway runs the invocation pipeline. All collaborators except the loader
// and executor are optional; a nil collaborator simply skips its step.
type Gateway struct {
	loader   *Loader
	executor transport.Executor
	mapper   FieldMapper
	refdata  ReferenceDataProvider
	invlog   InvocationLogger
	logger   *slog.Logger
}

// New assembles a Gateway.
func New(loader *Loader, executor transport.Executor, mapper FieldMapper, refdata ReferenceDataProvider, invlog InvocationLogger, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		loader:   loader,
		executor: executor,
		mapper:   mapper,
		refdata:  refdata,
		invlog:   invlog,
		logger:   log.WithComponent(logger, "gateway"),
	}
}

// Loader exposes the context loader for the composite handler, which
// resolves context by action id before delegating back to InvokePrepared.
func (g *Gateway) Loader() *Loader { return g.loader }

// Invoke runs the full pipeline for a direct (integration, action) call.
func (g *Gateway) Invoke(ctx context.Context, req *InvokeRequest) *envelope.Response {
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	ictx, loadErr := g.loader.Load(ctx, req.TenantID, req.IntegrationSlug, req.ActionSlug, req.ConnectionID)
	if loadErr != nil {
		g.logger.Info("invocation rejected during context loading",
			slog.String(log.RequestIDKey, requestID),
			slog.String("code", string(loadErr.Code)),
			slog.String("error", loadErr.Message))
		return loadErr.Envelope(requestID)
	}
	return g.InvokePrepared(ctx, ictx, req, requestID)
}

// InvokePrepared runs the pipeline from input mapping onward against an
// already-loaded invocation context.
func (g *Gateway) InvokePrepared(ctx context.Context, ictx *InvocationContext, req *InvokeRequest, requestID string) *envelope.Response {
	start := time.Now()
	logger := log.WithInvocation(log.WithRequestID(g.logger, requestID), ictx.Integration.Slug, ictx.Action.Slug)
	ctx, span := tracing.StartInvocation(ctx, ictx.Integration.Slug, ictx.Action.Slug, requestID)

	resp := g.run(ctx, ictx, req, requestID, start, logger)

	code := ""
	if resp.Error != nil {
		code = string(resp.Error.Code)
	}
	span.End(code)
	metrics.ObserveInvocation(ictx.Integration.Slug, ictx.Action.Slug, code, time.Since(start))
	return resp
}

func (g *Gateway) run(ctx context.Context, ictx *InvocationContext, req *InvokeRequest, requestID string, start time.Time, logger *slog.Logger) *envelope.Response {
	params := copyParams(req.Params)
	meta := envelope.MappingMeta{}

	// Input mapping is best-effort; the unmapped input is the fallback.
	if g.mapper != nil {
		mapped, ok := attemptOptional(logger, "input_mapping", func() (map[string]any, error) {
			out, applied, err := g.mapper.ApplyInput(ctx, ictx.Action, req.TenantID, ictx.Connection.ID, params)
			if err != nil {
				return nil, err
			}
			meta.InputApplied = applied
			return out, nil
		})
		if ok && mapped != nil {
			params = mapped
		}
	}

	if !req.Options.SkipValidation {
		if issues := schema.Validate(ictx.Action.InputSchema, params); len(issues) > 0 {
			verr := &Error{
				Code:    envelope.CodeValidationError,
				Message: fmt.Sprintf("input failed validation with %d issue(s)", len(issues)),
				Details: issueDetails(issues),
			}
			g.logInvocation(ctx, logger, ictx, req, requestID, start, nil, verr)
			return verr.Envelope(requestID)
		}
	}

	// The credential is fetched after input validation; a caller with both
	// invalid input and a missing credential gets VALIDATION_ERROR. The
	// composite path arrives with the credential already loaded.
	if ictx.Credential == nil && ictx.Integration.AuthType != catalog.AuthNone {
		cred, credErr := g.loader.LoadCredential(ctx, req.TenantID, ictx.Integration, ictx.Connection.ID)
		if credErr != nil {
			g.logInvocation(ctx, logger, ictx, req, requestID, start, nil, credErr)
			return credErr.Envelope(requestID)
		}
		ictx.Credential = cred
	}

	httpReq, buildErr := buildRequest(ictx.Action, ictx.Integration, ictx.Connection, ictx.Credential, params)
	if buildErr != nil {
		g.logInvocation(ctx, logger, ictx, req, requestID, start, nil, buildErr)
		return buildErr.Envelope(requestID)
	}

	execOpts := transport.ExecOptions{
		BreakerKey:     ictx.Integration.ID,
		IdempotencyKey: req.Options.IdempotencyKey,
	}
	if req.Options.TimeoutMs > 0 {
		execOpts.Timeout = time.Duration(req.Options.TimeoutMs) * time.Millisecond
	}

	result := g.executor.Execute(ctx, httpReq, execOpts)
	if result.Err != nil {
		execErr := &Error{
			Code:       result.Err.Code,
			Message:    result.Err.Message,
			RetryAfter: result.Err.RetryAfter,
		}
		if result.StatusCode > 0 {
			execErr.Details = map[string]any{"statusCode": result.StatusCode}
		}
		logger.Warn("upstream execution failed",
			slog.String("code", string(result.Err.Code)),
			slog.Int("status", result.StatusCode),
			slog.Int("attempts", result.Attempts))
		g.logInvocation(ctx, logger, ictx, req, requestID, start, result, execErr)
		return execErr.Envelope(requestID)
	}

	// Output schema validation always sees pre-mapping data.
	data := result.Data
	var validationMeta *envelope.ValidationMeta
	if len(ictx.Action.OutputSchema) > 0 {
		validation := schema.ValidateResponse(data, ictx.Action.OutputSchema, schema.ValidationMode(ictx.Action.ValidationMode))
		validationMeta = &envelope.ValidationMeta{
			Validated: true,
			Mode:      string(validation.Mode),
			Issues:    issueSummaries(validation.Issues),
		}
		if !validation.Valid {
			verr := &Error{
				Code:    envelope.CodeResponseValidationError,
				Message: responseValidationMessage(validation.Issues),
				Details: map[string]any{"issueCount": len(validation.Issues), "issues": issueSummaries(validation.Issues)},
			}
			g.logInvocation(ctx, logger, ictx, req, requestID, start, result, verr)
			return verr.Envelope(requestID)
		}
		data = validation.Data
	}

	if g.mapper != nil {
		mapped, ok := attemptOptional(logger, "output_mapping", func() (any, error) {
			out, applied, err := g.mapper.ApplyOutput(ctx, ictx.Action, req.TenantID, ictx.Connection.ID, data)
			if err != nil {
				return nil, err
			}
			meta.OutputApplied = applied
			return out, nil
		})
		if ok {
			data = mapped
		}
	}

	var preamble string
	if ictx.Connection.PreambleTemplate != "" {
		preamble, _ = attemptOptional(logger, "preamble", func() (string, error) {
			return renderPreamble(ictx.Connection.PreambleTemplate, preambleData{
				Integration: ictx.Integration.Name,
				Action:      ictx.Action.Name,
				Connection:  ictx.Connection.Name,
				Data:        data,
			})
		})
	}

	var referenceData any
	if g.refdata != nil && ictx.Action.ReferenceDataKey != "" {
		referenceData, _ = attemptOptional(logger, "reference_data", func() (any, error) {
			return g.refdata.Get(ctx, req.TenantID, ictx.Action.ReferenceDataKey)
		})
	}

	g.logInvocation(ctx, logger, ictx, req, requestID, start, result, nil)

	resp := envelope.NewSuccess(requestID, data)
	resp.Context = preamble
	resp.ReferenceData = referenceData
	resp.ResolvedInputs = params
	resp.Meta.Execution = envelope.ExecutionMeta{
		LatencyMs:         time.Since(start).Milliseconds(),
		RetryCount:        result.RetryCount(),
		ExternalLatencyMs: result.LastAttemptDuration.Milliseconds(),
	}
	resp.Meta.Validation = validationMeta
	if meta.InputApplied || meta.OutputApplied {
		resp.Meta.Mapping = &meta
	}
	return resp
}

// logInvocation records the call best-effort.
func (g *Gateway) logInvocation(ctx context.Context, logger *slog.Logger, ictx *InvocationContext, req *InvokeRequest, requestID string, start time.Time, result *transport.Result, invErr *Error) {
	if g.invlog == nil {
		return
	}

	rec := &InvocationRecord{
		RequestID:   requestID,
		TenantID:    req.TenantID,
		Integration: ictx.Integration.Slug,
		Action:      ictx.Action.Slug,
		Connection:  ictx.Connection.ID,
		Params:      req.Params,
		Success:     invErr == nil,
		LatencyMs:   time.Since(start).Milliseconds(),
		CreatedAt:   time.Now().UTC(),
	}
	if result != nil {
		rec.StatusCode = result.StatusCode
		rec.RetryCount = result.RetryCount()
		rec.Response = result.Data
	}
	if invErr != nil {
		rec.ErrorCode = string(invErr.Code)
	}

	attemptOptional(logger, "invocation_log", func() (struct{}, error) {
		return struct{}{}, g.invlog.LogInvocation(ctx, rec)
	})
}

func copyParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

func issueDetails(issues []schema.Issue) []map[string]string {
	details := make([]map[string]string, 0, len(issues))
	for _, issue := range issues {
		details = append(details, map[string]string{
			"field":   issue.Path,
			"message": issue.Message,
		})
	}
	return details
}

// issueSummaries caps reported issues at three plus a count, keeping error
// payloads small when a provider's schema drifts wholesale.
func issueSummaries(issues []schema.Issue) []string {
	if len(issues) == 0 {
		return nil
	}
	limit := len(issues)
	if limit > 3 {
		limit = 3
	}
	summaries := make([]string, 0, limit)
	for _, issue := range issues[:limit] {
		summaries = append(summaries, fmt.Sprintf("%s: %s", issue.Path, issue.Message))
	}
	return summaries
}

func responseValidationMessage(issues []schema.Issue) string {
	return fmt.Sprintf("upstream response failed output schema validation with %d issue(s)", len(issues))
}
