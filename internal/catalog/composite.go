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

package catalog

// RoutingMode selects how a composite tool picks an operation per call.
type RoutingMode string

const (
	// RoutingRuleBased evaluates routing rules in priority order.
	RoutingRuleBased RoutingMode = "rule_based"
	// RoutingAgentDriven requires the caller to name the operation.
	RoutingAgentDriven RoutingMode = "agent_driven"
)

// CompositeTool presents several operations as a single callable tool.
type CompositeTool struct {
	ID       string `json:"id" yaml:"id"`
	TenantID string `json:"tenantId" yaml:"tenant_id"`
	Slug     string `json:"slug" yaml:"slug"`
	Name     string `json:"name" yaml:"name"`

	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	RoutingMode RoutingMode `json:"routingMode" yaml:"routing_mode"`

	// DefaultOperationID, when set, must reference one of the tool's own
	// operations; rule-based routing falls back to it when no rule matches.
	DefaultOperationID string `json:"defaultOperationId,omitempty" yaml:"default_operation_id,omitempty"`

	// UnifiedSchema is the merged input schema the tool presents, with
	// per-operation parameter name mappings.
	UnifiedSchema *UnifiedSchemaConfig `json:"unifiedInputSchema,omitempty" yaml:"unified_input_schema,omitempty"`
}

// Operation binds a composite tool to one action with its own parameter
// mapping. Slugs are unique within the tool.
type Operation struct {
	ID       string `json:"id" yaml:"id"`
	ToolID   string `json:"toolId" yaml:"tool_id"`
	ActionID string `json:"actionId" yaml:"action_id"`
	Slug     string `json:"slug" yaml:"slug"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`

	// ParameterMapping renames unified parameter names to the parameter
	// names the underlying action expects (unified name -> target param).
	ParameterMapping map[string]string `json:"parameterMapping,omitempty" yaml:"parameter_mapping,omitempty"`

	// Priority orders operations for default listings (ascending
	// tie-break). It does not influence routing.
	Priority int `json:"priority" yaml:"priority"`
}

// ConditionType is the closed grammar of routing rule conditions.
type ConditionType string

const (
	ConditionContains   ConditionType = "contains"
	ConditionEquals     ConditionType = "equals"
	ConditionMatches    ConditionType = "matches"
	ConditionStartsWith ConditionType = "starts_with"
	ConditionEndsWith   ConditionType = "ends_with"
)

// RoutingRule selects an operation for rule-based tools. Rules are evaluated
// in ascending priority order; the first match wins.
type RoutingRule struct {
	ID          string `json:"id" yaml:"id"`
	ToolID      string `json:"toolId" yaml:"tool_id"`
	OperationID string `json:"operationId" yaml:"operation_id"`

	ConditionType ConditionType `json:"conditionType" yaml:"condition_type"`

	// ConditionField is a dot-path into the invocation input
	// (e.g. "ticket.system").
	ConditionField string `json:"conditionField" yaml:"condition_field"`
	ConditionValue string `json:"conditionValue" yaml:"condition_value"`
	CaseSensitive  bool   `json:"caseSensitive" yaml:"case_sensitive"`

	Priority int `json:"priority" yaml:"priority"`
}

// UnifiedSchemaConfig is the mapping table the parameter mapper consumes:
// unified parameter name -> type/required plus per-operation target names.
type UnifiedSchemaConfig struct {
	Parameters map[string]UnifiedParameter `json:"parameters" yaml:"parameters"`
}

// UnifiedParameter describes one parameter of the unified schema.
type UnifiedParameter struct {
	Type        string `json:"type,omitempty" yaml:"type,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool   `json:"required" yaml:"required"`
	Enum        []any  `json:"enum,omitempty" yaml:"enum,omitempty"`
	Default     any    `json:"default,omitempty" yaml:"default,omitempty"`

	// OperationMappings maps operation slug -> target parameter for every
	// operation that accepts this parameter.
	OperationMappings map[string]OperationMapping `json:"operationMappings,omitempty" yaml:"operation_mappings,omitempty"`
}

// OperationMapping names the raw parameter one operation expects for a
// unified parameter.
type OperationMapping struct {
	TargetParam string `json:"targetParam" yaml:"target_param"`
}
