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

// Package schema provides JSON-Schema-lite validation and the merging of
// several operations' input schemas into one unified schema.
//
// The validator supports the keyword subset actions actually use: type
// (including type lists), properties, required, enum, and items. One
// deliberate leniency applies everywhere: a numeric value is accepted where
// a string is expected, because agent-produced inputs stringify loosely.
package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// Issue is one validation violation, addressed by a JSON-path-ish location.
type Issue struct {
	Path    string `json:"path"`
	Keyword string `json:"keyword"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s (%s)", i.Path, i.Message, i.Keyword)
}

// Validate checks data against a JSON-Schema-shaped object and returns every
// violation found. A nil or empty schema validates anything.
func Validate(schema map[string]any, data any) []Issue {
	if len(schema) == 0 {
		return nil
	}
	var issues []Issue
	validate(schema, data, "$", &issues)
	return issues
}

func validate(schema map[string]any, data any, path string, issues *[]Issue) {
	if types := schemaTypes(schema); len(types) > 0 {
		if !matchesAnyType(types, data) {
			*issues = append(*issues, Issue{
				Path:    path,
				Keyword: "type",
				Message: fmt.Sprintf("expected %s, got %s", strings.Join(types, " or "), typeName(data)),
			})
			return
		}
	}

	if enum, ok := schema["enum"].([]any); ok && len(enum) > 0 {
		if !enumContains(enum, data) {
			*issues = append(*issues, Issue{
				Path:    path,
				Keyword: "enum",
				Message: fmt.Sprintf("value %v is not one of the allowed values", data),
			})
		}
	}

	if obj, ok := data.(map[string]any); ok {
		validateObject(schema, obj, path, issues)
	}
	if arr, ok := data.([]any); ok {
		validateArray(schema, arr, path, issues)
	}
}

func validateObject(schema map[string]any, obj map[string]any, path string, issues *[]Issue) {
	// Required names must be present and non-null.
	for _, name := range RequiredNames(schema) {
		if v, ok := obj[name]; !ok || v == nil {
			*issues = append(*issues, Issue{
				Path:    path + "." + name,
				Keyword: "required",
				Message: fmt.Sprintf("missing required property %q", name),
			})
		}
	}

	props, _ := schema["properties"].(map[string]any)
	for name, raw := range props {
		propSchema, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		value, present := obj[name]
		if !present || value == nil {
			continue
		}
		validate(propSchema, value, path+"."+name, issues)
	}
}

func validateArray(schema map[string]any, arr []any, path string, issues *[]Issue) {
	items, ok := schema["items"].(map[string]any)
	if !ok {
		return
	}
	for i, element := range arr {
		validate(items, element, fmt.Sprintf("%s[%d]", path, i), issues)
	}
}

// schemaTypes returns the declared type names, handling both a single type
// string and a type list.
func schemaTypes(schema map[string]any) []string {
	switch t := schema["type"].(type) {
	case string:
		return []string{t}
	case []any:
		types := make([]string, 0, len(t))
		for _, entry := range t {
			if s, ok := entry.(string); ok {
				types = append(types, s)
			}
		}
		return types
	case []string:
		return t
	default:
		return nil
	}
}

// MatchesType reports whether the value satisfies the named JSON type,
// applying the numeric-for-string leniency.
func MatchesType(typeName string, value any) bool {
	switch typeName {
	case "object":
		_, ok := value.(map[string]any)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "string":
		if _, ok := value.(string); ok {
			return true
		}
		// Numeric values are accepted where a string is expected.
		return isNumber(value)
	case "number":
		return isNumber(value)
	case "integer":
		switch v := value.(type) {
		case float64:
			return v == float64(int64(v))
		case float32:
			return v == float32(int64(v))
		case int, int8, int16, int32, int64, uint, uint32, uint64:
			return true
		default:
			return false
		}
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "null":
		return value == nil
	default:
		// Unknown declared type: accept rather than reject.
		return true
	}
}

func matchesAnyType(types []string, value any) bool {
	for _, t := range types {
		if MatchesType(t, value) {
			return true
		}
	}
	return false
}

func isNumber(value any) bool {
	switch value.(type) {
	case float64, float32, int, int8, int16, int32, int64, uint, uint32, uint64:
		return true
	default:
		return false
	}
}

func typeName(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int8, int16, int32, int64, uint, uint32, uint64:
		return "number"
	default:
		return fmt.Sprintf("%T", value)
	}
}

func enumContains(enum []any, value any) bool {
	for _, candidate := range enum {
		if reflect.DeepEqual(candidate, value) {
			return true
		}
		// JSON decoding yields float64; tolerate int/float mismatches.
		if isNumber(candidate) && isNumber(value) && numericValue(candidate) == numericValue(value) {
			return true
		}
	}
	return false
}

func numericValue(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int8:
		return float64(v)
	case int16:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case uint:
		return float64(v)
	case uint32:
		return float64(v)
	case uint64:
		return float64(v)
	default:
		return 0
	}
}

// RequiredNames returns the schema's required list, tolerating both []any
// and []string shapes.
func RequiredNames(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []any:
		names := make([]string, 0, len(req))
		for _, entry := range req {
			if s, ok := entry.(string); ok {
				names = append(names, s)
			}
		}
		return names
	case []string:
		return req
	default:
		return nil
	}
}

// Properties returns the schema's properties map, or nil.
func Properties(schema map[string]any) map[string]any {
	props, _ := schema["properties"].(map[string]any)
	return props
}

// PropertySchema returns the schema object for one named property, or nil.
func PropertySchema(schema map[string]any, name string) map[string]any {
	prop, _ := Properties(schema)[name].(map[string]any)
	return prop
}
