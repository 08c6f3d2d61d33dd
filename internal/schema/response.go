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

import "strconv"

// ValidationMode controls how response validation failures are handled.
type ValidationMode string

const (
	// ModeStrict fails the invocation when the upstream response violates
	// the output schema.
	ModeStrict ValidationMode = "strict"
	// ModeLenient records violations as metadata and coerces obvious
	// scalar mismatches, but never fails the invocation.
	ModeLenient ValidationMode = "lenient"
)

// ResponseValidation is the outcome of validating an upstream response
// against an action's output schema.
type ResponseValidation struct {
	Valid  bool
	Mode   ValidationMode
	Issues []Issue

	// Data is the (possibly coercion-adjusted) response payload.
	Data any
}

// ValidateResponse checks raw upstream data against the output schema.
// Validation always sees pre-mapping data. In lenient mode, numeric strings
// are coerced where the schema expects numbers and the result is always
// valid; in strict mode any violation invalidates the response.
func ValidateResponse(data any, outputSchema map[string]any, mode ValidationMode) ResponseValidation {
	if mode == "" {
		mode = ModeLenient
	}

	if mode == ModeLenient {
		data = coerce(outputSchema, data)
	}

	issues := Validate(outputSchema, data)
	return ResponseValidation{
		Valid:  mode == ModeLenient || len(issues) == 0,
		Mode:   mode,
		Issues: issues,
		Data:   data,
	}
}

// coerce walks the schema and adjusts scalar values that trivially convert
// to the declared type. It never fails; values it cannot coerce are
// returned untouched for the validator to report.
func coerce(schema map[string]any, data any) any {
	if len(schema) == 0 {
		return data
	}

	types := schemaTypes(schema)
	if len(types) == 1 {
		switch types[0] {
		case "number", "integer":
			if s, ok := data.(string); ok {
				if n, err := strconv.ParseFloat(s, 64); err == nil {
					return n
				}
			}
		case "boolean":
			if s, ok := data.(string); ok {
				if b, err := strconv.ParseBool(s); err == nil {
					return b
				}
			}
		}
	}

	switch v := data.(type) {
	case map[string]any:
		props := Properties(schema)
		for name, raw := range v {
			if propSchema, ok := props[name].(map[string]any); ok {
				v[name] = coerce(propSchema, raw)
			}
		}
		return v
	case []any:
		items, ok := schema["items"].(map[string]any)
		if !ok {
			return v
		}
		for i, element := range v {
			v[i] = coerce(items, element)
		}
		return v
	default:
		return data
	}
}
