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

// Package router selects one operation of a composite tool per invocation.
// It holds no state between calls.
package router

import (
	"context"
	"fmt"

	"github.com/uplinkhq/uplink/internal/catalog"
	"github.com/uplinkhq/uplink/internal/rules"
)

// Reserved parameter keys an agent may use to name the operation inline.
// They are lifted into an explicit selector and stripped before mapping so
// they can never collide with a domain parameter sent upstream.
const (
	ReservedOperationKey     = "operation"
	ReservedOperationSlugKey = "operationSlug"
)

// ErrorCode classifies routing failures.
type ErrorCode string

const (
	// ErrMissingOperationParameter: agent-driven tool invoked without a selector.
	ErrMissingOperationParameter ErrorCode = "MISSING_OPERATION_PARAMETER"
	// ErrOperationNotFound: selector or rule references no known operation.
	ErrOperationNotFound ErrorCode = "OPERATION_NOT_FOUND"
	// ErrNoRuleMatched: no rule matched and the tool has no default operation.
	ErrNoRuleMatched ErrorCode = "NO_RULE_MATCHED"
	// ErrInvalidRoutingMode: unreachable given the data-model invariant,
	// kept as a defensive check.
	ErrInvalidRoutingMode ErrorCode = "INVALID_ROUTING_MODE"
)

// Error is a routing failure with a classification code.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("routing failed (%s): %s", e.Code, e.Message)
}

// Decision is the routing outcome for one invocation.
type Decision struct {
	Operation *catalog.Operation
	Mode      catalog.RoutingMode

	// Reason is a human-readable explanation of why this operation was
	// selected.
	Reason string

	// MatchedRule is set for rule-based routing when a rule matched.
	MatchedRule *catalog.RoutingRule

	// UsedDefault reports that no rule matched and the tool's default
	// operation was used as fallback.
	UsedDefault bool
}

// ExtractSelector lifts the reserved operation keys out of raw agent params.
// It returns the selector (the "operation" key wins over "operationSlug")
// and a copy of the params with both reserved keys removed.
func ExtractSelector(params map[string]any) (string, map[string]any) {
	selector := ""
	if v, ok := params[ReservedOperationKey].(string); ok && v != "" {
		selector = v
	} else if v, ok := params[ReservedOperationSlugKey].(string); ok && v != "" {
		selector = v
	}

	cleaned := make(map[string]any, len(params))
	for k, v := range params {
		if k == ReservedOperationKey || k == ReservedOperationSlugKey {
			continue
		}
		cleaned[k] = v
	}
	return selector, cleaned
}

// Route selects one operation for the tool. For agent-driven tools the
// caller-supplied selector (slug or id) is required; for rule-based tools
// the tool's rules are evaluated in ascending priority order with the
// default operation as fallback.
func Route(ctx context.Context, tool *catalog.CompositeTool, store catalog.ToolStore, input map[string]any, selector string) (*Decision, error) {
	operations, err := store.Operations(ctx, tool.ID)
	if err != nil {
		return nil, fmt.Errorf("loading operations for tool %q: %w", tool.Slug, err)
	}

	switch tool.RoutingMode {
	case catalog.RoutingAgentDriven:
		return routeAgentDriven(tool, operations, selector)
	case catalog.RoutingRuleBased:
		return routeRuleBased(ctx, tool, store, operations, input)
	default:
		return nil, &Error{
			Code:    ErrInvalidRoutingMode,
			Message: fmt.Sprintf("tool %q has unsupported routing mode %q", tool.Slug, tool.RoutingMode),
		}
	}
}

func routeAgentDriven(tool *catalog.CompositeTool, operations []catalog.Operation, selector string) (*Decision, error) {
	if selector == "" {
		return nil, &Error{
			Code:    ErrMissingOperationParameter,
			Message: fmt.Sprintf("tool %q is agent-driven and requires an %q parameter naming the operation", tool.Slug, ReservedOperationKey),
		}
	}

	for i := range operations {
		op := &operations[i]
		if op.Slug == selector || op.ID == selector {
			return &Decision{
				Operation: op,
				Mode:      catalog.RoutingAgentDriven,
				Reason:    fmt.Sprintf("caller selected operation %q", selector),
			}, nil
		}
	}

	return nil, &Error{
		Code:    ErrOperationNotFound,
		Message: fmt.Sprintf("operation %q not found in tool %q", selector, tool.Slug),
	}
}

func routeRuleBased(ctx context.Context, tool *catalog.CompositeTool, store catalog.ToolStore, operations []catalog.Operation, input map[string]any) (*Decision, error) {
	ruleList, err := store.Rules(ctx, tool.ID)
	if err != nil {
		return nil, fmt.Errorf("loading rules for tool %q: %w", tool.Slug, err)
	}

	if match := rules.FirstMatch(ruleList, input); match != nil {
		op := operationByID(operations, match.Rule.OperationID)
		if op == nil {
			// A rule referencing a nonexistent operation is an internal
			// consistency failure, not caller error.
			return nil, &Error{
				Code:    ErrOperationNotFound,
				Message: fmt.Sprintf("rule %s references unknown operation %s", match.Rule.ID, match.Rule.OperationID),
			}
		}
		return &Decision{
			Operation:   op,
			Mode:        catalog.RoutingRuleBased,
			Reason:      match.Reason,
			MatchedRule: match.Rule,
		}, nil
	}

	if tool.DefaultOperationID != "" {
		op := operationByID(operations, tool.DefaultOperationID)
		if op == nil {
			return nil, &Error{
				Code:    ErrOperationNotFound,
				Message: fmt.Sprintf("default operation %s not found in tool %q", tool.DefaultOperationID, tool.Slug),
			}
		}
		return &Decision{
			Operation:   op,
			Mode:        catalog.RoutingRuleBased,
			Reason:      "no routing rule matched; falling back to default operation",
			UsedDefault: true,
		}, nil
	}

	return nil, &Error{
		Code:    ErrNoRuleMatched,
		Message: fmt.Sprintf("no routing rule matched for tool %q and no default operation is configured", tool.Slug),
	}
}

func operationByID(operations []catalog.Operation, id string) *catalog.Operation {
	for i := range operations {
		if operations[i].ID == id {
			return &operations[i]
		}
	}
	return nil
}
