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

package schema

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/uplinkhq/uplink/internal/catalog"
)

// TypeConflictStrategy resolves disagreeing property types across operations.
type TypeConflictStrategy string

const (
	// ConflictWiden widens conflicting types to string and emits a warning.
	// This is the default: string survives any caller input.
	ConflictWiden TypeConflictStrategy = "string"
	// ConflictFirst keeps the type of the first operation that declared it.
	ConflictFirst TypeConflictStrategy = "first"
	// ConflictMostCommon behaves like ConflictFirst today; the strategies
	// are kept distinct in the contract so tooling can opt in if a real
	// frequency-based resolution ever becomes necessary.
	ConflictMostCommon TypeConflictStrategy = "most-common"
)

// RequiredStrategy decides when a unified parameter is required.
type RequiredStrategy string

const (
	// RequiredAny marks a parameter required if any contributing operation
	// requires it. This is the default.
	RequiredAny RequiredStrategy = "any"
	// RequiredAll marks a parameter required only if every operation that
	// exposes it requires it.
	RequiredAll RequiredStrategy = "all"
)

// MergeOptions tune schema merging. The zero value means: widen type
// conflicts to string, required-if-any, keep operation-specific parameters.
type MergeOptions struct {
	TypeConflict TypeConflictStrategy
	Required     RequiredStrategy

	// DropOperationSpecific removes parameters that are not supported by
	// every operation.
	DropOperationSpecific bool
}

// OperationSchema pairs an operation with its action's raw input schema.
type OperationSchema struct {
	Operation catalog.Operation
	Schema    map[string]any
}

// MergeResult is the merged view of N operations' input schemas.
type MergeResult struct {
	// Schema is the unified JSON-Schema-shaped object (type, properties,
	// required).
	Schema map[string]any

	// Config is the mapping table the parameter mapper consumes.
	Config *catalog.UnifiedSchemaConfig

	// Warnings are non-fatal merge notes (e.g. type conflicts), advisory
	// for tool authors.
	Warnings []string
}

// paramState tracks merge bookkeeping for one unified parameter.
type paramState struct {
	param      catalog.UnifiedParameter
	exposedBy  int // operations exposing this parameter
	requiredBy int // operations requiring it
}

// Merge combines the operations' input schemas into one unified schema plus
// a bidirectional parameter-name mapping table.
//
// The unified name of a raw property is found by reverse lookup through the
// operation's parameter mapping: if some mapping entry targets the raw
// property, the entry's key is the unified name; otherwise the raw name is
// used unchanged.
func Merge(operations []OperationSchema, opts MergeOptions) *MergeResult {
	if opts.TypeConflict == "" {
		opts.TypeConflict = ConflictWiden
	}
	if opts.Required == "" {
		opts.Required = RequiredAny
	}

	merged := make(map[string]*paramState)
	var order []string // unified names in first-seen order
	var warnings []string

	for _, entry := range operations {
		op := entry.Operation
		props := Properties(entry.Schema)
		required := make(map[string]bool)
		for _, name := range RequiredNames(entry.Schema) {
			required[name] = true
		}

		for _, rawName := range sortedKeys(props) {
			propSchema, ok := props[rawName].(map[string]any)
			if !ok {
				continue
			}
			unified := unifiedName(op.ParameterMapping, rawName)

			state, exists := merged[unified]
			if !exists {
				state = seedParam(propSchema, required[rawName])
				merged[unified] = state
				order = append(order, unified)
			} else {
				mergeParam(state, propSchema, unified, op.Slug, opts.TypeConflict, &warnings)
				if required[rawName] {
					state.requiredBy++
				}
			}
			state.exposedBy++
			if state.param.OperationMappings == nil {
				state.param.OperationMappings = make(map[string]catalog.OperationMapping)
			}
			state.param.OperationMappings[op.Slug] = catalog.OperationMapping{TargetParam: rawName}
		}
	}

	if opts.DropOperationSpecific {
		kept := order[:0]
		for _, name := range order {
			if merged[name].exposedBy == len(operations) {
				kept = append(kept, name)
			} else {
				delete(merged, name)
			}
		}
		order = kept
	}

	properties := make(map[string]any, len(merged))
	config := &catalog.UnifiedSchemaConfig{Parameters: make(map[string]catalog.UnifiedParameter, len(merged))}
	var requiredList []string

	for _, name := range order {
		state := merged[name]
		switch opts.Required {
		case RequiredAll:
			state.param.Required = state.requiredBy == state.exposedBy && state.exposedBy > 0
		default:
			state.param.Required = state.requiredBy > 0
		}

		properties[name] = propertyObject(state.param)
		config.Parameters[name] = state.param
		if state.param.Required {
			requiredList = append(requiredList, name)
		}
	}

	unifiedSchema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(requiredList) > 0 {
		unifiedSchema["required"] = requiredList
	}

	return &MergeResult{Schema: unifiedSchema, Config: config, Warnings: warnings}
}

// BuildAgentDrivenSchema merges the operations' schemas and injects the
// synthetic required "operation" selector enum for agent-driven tools.
func BuildAgentDrivenSchema(operations []OperationSchema, opts MergeOptions) *MergeResult {
	result := Merge(operations, opts)

	slugs := make([]any, 0, len(operations))
	for _, entry := range operations {
		slugs = append(slugs, entry.Operation.Slug)
	}

	props, _ := result.Schema["properties"].(map[string]any)
	props["operation"] = map[string]any{
		"type":        "string",
		"enum":        slugs,
		"description": "The operation to invoke",
	}

	required := []string{"operation"}
	if existing, ok := result.Schema["required"].([]string); ok {
		required = append(required, existing...)
	}
	result.Schema["required"] = required

	return result
}

func seedParam(propSchema map[string]any, required bool) *paramState {
	param := catalog.UnifiedParameter{
		Description: stringValue(propSchema["description"]),
		Default:     propSchema["default"],
	}
	if types := schemaTypes(propSchema); len(types) > 0 {
		param.Type = types[0]
	}
	if enum, ok := propSchema["enum"].([]any); ok {
		param.Enum = append([]any(nil), enum...)
	}

	state := &paramState{param: param}
	if required {
		state.requiredBy = 1
	}
	return state
}

func mergeParam(state *paramState, propSchema map[string]any, unified, opSlug string, strategy TypeConflictStrategy, warnings *[]string) {
	var newType string
	if types := schemaTypes(propSchema); len(types) > 0 {
		newType = types[0]
	}
	if newType != "" {
		if state.param.Type != "" && newType != state.param.Type {
			switch strategy {
			case ConflictWiden:
				*warnings = append(*warnings, fmt.Sprintf(
					"parameter %q: type %q from operation %q conflicts with %q; widening to string",
					unified, newType, opSlug, state.param.Type))
				state.param.Type = "string"
			case ConflictFirst, ConflictMostCommon:
				// Keep the first-seen type.
			}
		} else if state.param.Type == "" {
			state.param.Type = newType
		}
	}

	if enum, ok := propSchema["enum"].([]any); ok {
		state.param.Enum = unionEnum(state.param.Enum, enum)
	}

	if desc := stringValue(propSchema["description"]); len(desc) > len(state.param.Description) {
		state.param.Description = desc
	}

	if state.param.Default == nil {
		state.param.Default = propSchema["default"]
	}
}

func unifiedName(mapping map[string]string, rawName string) string {
	// Deterministic reverse lookup: smallest key wins if several map to
	// the same target.
	var keys []string
	for unified, target := range mapping {
		if target == rawName {
			keys = append(keys, unified)
		}
	}
	if len(keys) == 0 {
		return rawName
	}
	sort.Strings(keys)
	return keys[0]
}

func unionEnum(existing, incoming []any) []any {
	for _, candidate := range incoming {
		found := false
		for _, have := range existing {
			if reflect.DeepEqual(have, candidate) {
				found = true
				break
			}
		}
		if !found {
			existing = append(existing, candidate)
		}
	}
	return existing
}

func propertyObject(param catalog.UnifiedParameter) map[string]any {
	prop := map[string]any{}
	if param.Type != "" {
		prop["type"] = param.Type
	}
	if param.Description != "" {
		prop["description"] = param.Description
	}
	if len(param.Enum) > 0 {
		prop["enum"] = param.Enum
	}
	if param.Default != nil {
		prop["default"] = param.Default
	}
	return prop
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

