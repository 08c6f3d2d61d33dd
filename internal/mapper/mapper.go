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

// Package mapper translates unified composite tool parameters into the raw
// parameter names the selected operation's action expects, fills schema
// defaults, and validates the result.
package mapper

import (
	"sort"

	"github.com/uplinkhq/uplink/internal/catalog"
	"github.com/uplinkhq/uplink/internal/router"
	"github.com/uplinkhq/uplink/internal/schema"
)

// Options tune a mapping pass.
type Options struct {
	// StripUnknown removes parameters the action's schema does not declare.
	StripUnknown bool

	// SkipValidation skips the final schema validation.
	SkipValidation bool
}

// ParamTrace records how one parameter travelled through mapping.
type ParamTrace struct {
	UnifiedName string `json:"unifiedName"`
	TargetName  string `json:"targetName"`
	Value       any    `json:"value"`

	// Mapped is true when the parameter was renamed through a mapping
	// table, false for passthrough and default-filled parameters.
	Mapped bool `json:"mapped"`
}

// Result is the outcome of one mapping pass.
type Result struct {
	// Params are the mapped parameters ready for the request builder.
	Params map[string]any

	// Trace is the per-parameter audit trail.
	Trace []ParamTrace

	// Unmapped lists unified parameters that had no mapping entry for the
	// selected operation and were passed through unchanged.
	Unmapped []string

	// Issues are validation failures; empty when validation was skipped.
	Issues []schema.Issue

	// Success is true iff validation produced no issues.
	Success bool
}

// Map translates unified input for the selected operation.
//
// When a unified schema config with at least one parameter exists it drives
// the renaming (reserved routing keys are skipped); otherwise the
// operation's own parameter mapping applies. Either way the operation-level
// mapping is applied once more as a final override: an operation-specific
// mapping always wins.
func Map(input map[string]any, op *catalog.Operation, actionSchema map[string]any, unified *catalog.UnifiedSchemaConfig, opts Options) *Result {
	result := &Result{Params: make(map[string]any, len(input))}

	if unified != nil && len(unified.Parameters) > 0 {
		mapWithUnifiedConfig(input, op, unified, result)
	} else {
		mapWithOperationMapping(input, op, result)
	}

	applyOperationOverride(op, result)
	fillDefaults(actionSchema, result)

	if opts.StripUnknown {
		stripUnknown(actionSchema, result)
	}

	if !opts.SkipValidation {
		result.Issues = schema.Validate(actionSchema, result.Params)
	}
	result.Success = len(result.Issues) == 0
	return result
}

func mapWithUnifiedConfig(input map[string]any, op *catalog.Operation, unified *catalog.UnifiedSchemaConfig, result *Result) {
	for _, key := range sortedInputKeys(input) {
		if key == router.ReservedOperationKey || key == router.ReservedOperationSlugKey {
			continue
		}
		value := input[key]

		if param, ok := unified.Parameters[key]; ok {
			if mapping, ok := param.OperationMappings[op.Slug]; ok && mapping.TargetParam != "" {
				result.Params[mapping.TargetParam] = value
				result.Trace = append(result.Trace, ParamTrace{
					UnifiedName: key, TargetName: mapping.TargetParam, Value: value, Mapped: true,
				})
				continue
			}
		}

		result.Params[key] = value
		result.Trace = append(result.Trace, ParamTrace{UnifiedName: key, TargetName: key, Value: value})
		result.Unmapped = append(result.Unmapped, key)
	}
}

func mapWithOperationMapping(input map[string]any, op *catalog.Operation, result *Result) {
	for _, key := range sortedInputKeys(input) {
		value := input[key]
		if target, ok := op.ParameterMapping[key]; ok && target != "" {
			result.Params[target] = value
			result.Trace = append(result.Trace, ParamTrace{
				UnifiedName: key, TargetName: target, Value: value, Mapped: true,
			})
			continue
		}
		result.Params[key] = value
		result.Trace = append(result.Trace, ParamTrace{UnifiedName: key, TargetName: key, Value: value})
	}
}

// applyOperationOverride re-applies the operation's own mapping over
// whatever the unified config produced, renaming keys still present under
// their unified name.
func applyOperationOverride(op *catalog.Operation, result *Result) {
	for _, unifiedName := range sortedMappingKeys(op.ParameterMapping) {
		target := op.ParameterMapping[unifiedName]
		if target == "" || target == unifiedName {
			continue
		}
		value, ok := result.Params[unifiedName]
		if !ok {
			continue
		}
		result.Params[target] = value
		delete(result.Params, unifiedName)

		for i := range result.Trace {
			if result.Trace[i].UnifiedName == unifiedName {
				result.Trace[i].TargetName = target
				result.Trace[i].Mapped = true
			}
		}
	}
}

func fillDefaults(actionSchema map[string]any, result *Result) {
	props := schema.Properties(actionSchema)
	for _, name := range sortedInputKeys(props) {
		propSchema, ok := props[name].(map[string]any)
		if !ok {
			continue
		}
		defaultValue, hasDefault := propSchema["default"]
		if !hasDefault || defaultValue == nil {
			continue
		}
		if _, present := result.Params[name]; present {
			continue
		}
		result.Params[name] = defaultValue
		result.Trace = append(result.Trace, ParamTrace{
			UnifiedName: name, TargetName: name, Value: defaultValue,
		})
	}
}

func stripUnknown(actionSchema map[string]any, result *Result) {
	props := schema.Properties(actionSchema)
	if len(props) == 0 {
		return
	}
	for name := range result.Params {
		if _, known := props[name]; !known {
			delete(result.Params, name)
		}
	}
}

func sortedInputKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedMappingKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
