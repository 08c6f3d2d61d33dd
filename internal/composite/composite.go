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

// Package composite invokes composite tools: route to one operation, map
// unified parameters to the target action's raw names, then delegate to the
// gateway pipeline. Errors are tagged with the phase they occurred in.
package composite

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/uplinkhq/uplink/internal/catalog"
	"github.com/uplinkhq/uplink/internal/gateway"
	"github.com/uplinkhq/uplink/internal/log"
	"github.com/uplinkhq/uplink/internal/mapper"
	"github.com/uplinkhq/uplink/internal/metrics"
	"github.com/uplinkhq/uplink/internal/router"
	"github.com/uplinkhq/uplink/internal/schema"
	"github.com/uplinkhq/uplink/internal/tracing"
	"github.com/uplinkhq/uplink/pkg/envelope"
)

// ToolRequest asks the handler to invoke one composite tool.
type ToolRequest struct {
	TenantID     string
	ToolSlug     string
	ConnectionID string

	// RequestID is generated when empty.
	RequestID string

	// Params is the raw agent input; the reserved operation/operationSlug
	// keys are lifted out before mapping.
	Params map[string]any

	// Selector optionally names the operation out-of-band. A reserved key
	// inside Params wins over this.
	Selector string

	Options gateway.InvokeOptions
}

// Handler executes composite tool invocations.
type Handler struct {
	tools   catalog.ToolStore
	actions catalog.ActionStore
	gw      *gateway.Gateway
	logger  *slog.Logger
}

// NewHandler assembles a composite handler.
func NewHandler(tools catalog.ToolStore, actions catalog.ActionStore, gw *gateway.Gateway, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		tools:   tools,
		actions: actions,
		gw:      gw,
		logger:  log.WithComponent(logger, "composite"),
	}
}

// Invoke routes and executes one composite tool call.
func (h *Handler) Invoke(ctx context.Context, req *ToolRequest) *envelope.Response {
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	logger := log.WithRequestID(h.logger, requestID)

	toolCtx := &envelope.CompositeToolContext{ToolSlug: req.ToolSlug}

	tool, err := h.tools.ToolBySlug(ctx, req.TenantID, req.ToolSlug)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return h.routingFailure(toolCtx, requestID, "TOOL_NOT_FOUND",
				"composite tool \""+req.ToolSlug+"\" not found")
		}
		toolCtx.ErrorPhase = envelope.PhaseRouting
		resp := envelope.NewError(envelope.CodeInternalError, "tool lookup failed", requestID, nil)
		resp.CompositeToolContext = toolCtx
		return resp
	}
	toolCtx.RoutingMode = string(tool.RoutingMode)

	selector, cleaned := router.ExtractSelector(req.Params)
	if selector == "" {
		selector = req.Selector
	}

	ctx, routeSpan := tracing.StartRouting(ctx, tool.Slug, string(tool.RoutingMode))
	decision, err := router.Route(ctx, tool, h.tools, cleaned, selector)
	if err != nil {
		var routeErr *router.Error
		if errors.As(err, &routeErr) {
			routeSpan.End(string(routeErr.Code))
			metrics.ObserveRouting(tool.Slug, string(tool.RoutingMode), string(routeErr.Code))
			return h.routingFailure(toolCtx, requestID, string(routeErr.Code), routeErr.Message)
		}
		routeSpan.End(string(envelope.CodeInternalError))
		logger.Error("routing failed unexpectedly", slog.String("tool", tool.Slug), log.Error(err))
		toolCtx.ErrorPhase = envelope.PhaseRouting
		resp := envelope.NewError(envelope.CodeInternalError, "routing failed", requestID, nil)
		resp.CompositeToolContext = toolCtx
		return resp
	}

	op := decision.Operation
	toolCtx.SelectedOperation = op.Slug
	toolCtx.RoutingReason = decision.Reason
	toolCtx.UsedDefault = decision.UsedDefault
	routeSpan.SetOperation(op.Slug, decision.UsedDefault)
	routeSpan.End("")
	routingResult := "matched"
	if decision.UsedDefault {
		routingResult = "default"
	}
	metrics.ObserveRouting(tool.Slug, string(tool.RoutingMode), routingResult)

	ictx, loadErr := h.gw.Loader().LoadForAction(ctx, req.TenantID, op.ActionID, req.ConnectionID)
	if loadErr != nil {
		toolCtx.ErrorPhase = envelope.PhaseContextLoading
		resp := loadErr.Envelope(requestID)
		resp.CompositeToolContext = toolCtx
		return resp
	}

	mapped := mapper.Map(cleaned, op, ictx.Action.InputSchema, tool.UnifiedSchema, mapper.Options{
		SkipValidation: req.Options.SkipValidation,
	})
	if !mapped.Success {
		toolCtx.ErrorPhase = envelope.PhaseParameterMapping
		verr := &gateway.Error{
			Code:    envelope.CodeValidationError,
			Message: "mapped parameters failed the operation's input schema",
			Details: mappingIssueDetails(mapped),
		}
		resp := verr.Envelope(requestID)
		resp.CompositeToolContext = toolCtx
		return resp
	}

	// The mapper already validated; the gateway must not re-validate
	// against raw unified names.
	opts := req.Options
	opts.SkipValidation = true

	resp := h.gw.InvokePrepared(ctx, ictx, &gateway.InvokeRequest{
		TenantID:        req.TenantID,
		IntegrationSlug: ictx.Integration.Slug,
		ActionSlug:      ictx.Action.Slug,
		ConnectionID:    req.ConnectionID,
		Params:          mapped.Params,
		Options:         opts,
	}, requestID)

	if resp.Error != nil {
		toolCtx.ErrorPhase = envelope.PhaseExecution
	}
	resp.CompositeToolContext = toolCtx
	return resp
}

// routingFailure renders a routing-phase failure as ROUTING_FAILED with the
// specific router code in the details.
func (h *Handler) routingFailure(toolCtx *envelope.CompositeToolContext, requestID, code, message string) *envelope.Response {
	toolCtx.ErrorPhase = envelope.PhaseRouting
	resp := envelope.NewError(envelope.CodeRoutingFailed, message, requestID, map[string]any{"routingCode": code})
	resp.CompositeToolContext = toolCtx
	return resp
}

func mappingIssueDetails(result *mapper.Result) []map[string]string {
	details := make([]map[string]string, 0, len(result.Issues))
	for _, issue := range result.Issues {
		details = append(details, map[string]string{
			"field":   issue.Path,
			"message": issue.Message,
		})
	}
	return details
}

// Schema builds the tool's unified input schema by merging its operations'
// action schemas; agent-driven tools additionally get the synthetic
// operation selector property.
func (h *Handler) Schema(ctx context.Context, tenantID, toolSlug string) (*schema.MergeResult, error) {
	tool, err := h.tools.ToolBySlug(ctx, tenantID, toolSlug)
	if err != nil {
		return nil, err
	}
	operations, err := h.tools.Operations(ctx, tool.ID)
	if err != nil {
		return nil, err
	}

	entries := make([]schema.OperationSchema, 0, len(operations))
	for _, op := range operations {
		action, err := h.actions.ActionByID(ctx, tenantID, op.ActionID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, schema.OperationSchema{Operation: op, Schema: action.InputSchema})
	}

	if tool.RoutingMode == catalog.RoutingAgentDriven {
		return schema.BuildAgentDrivenSchema(entries, schema.MergeOptions{}), nil
	}
	return schema.Merge(entries, schema.MergeOptions{}), nil
}
