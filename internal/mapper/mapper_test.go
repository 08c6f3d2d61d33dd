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

package mapper

import (
	"reflect"
	"testing"

	"github.com/uplinkhq/uplink/internal/catalog"
)

func unifiedConfig() *catalog.UnifiedSchemaConfig {
	return &catalog.UnifiedSchemaConfig{
		Parameters: map[string]catalog.UnifiedParameter{
			"title": {
				Type: "string",
				OperationMappings: map[string]catalog.OperationMapping{
					"create-ticket": {TargetParam: "summary"},
					"create-issue":  {TargetParam: "title"},
				},
			},
			"body": {
				Type: "string",
				OperationMappings: map[string]catalog.OperationMapping{
					"create-ticket": {TargetParam: "description"},
				},
			},
		},
	}
}

func TestMapUnifiedConfig(t *testing.T) {
	op := &catalog.Operation{Slug: "create-ticket"}
	input := map[string]any{
		"operation": "create-ticket",
		"title":     "Fix login",
		"body":      "Users cannot log in",
		"labels":    []any{"bug"},
	}

	result := Map(input, op, nil, unifiedConfig(), Options{SkipValidation: true})

	want := map[string]any{
		"summary":     "Fix login",
		"description": "Users cannot log in",
		"labels":      []any{"bug"},
	}
	if !reflect.DeepEqual(result.Params, want) {
		t.Errorf("Params = %v, want %v", result.Params, want)
	}
	if _, ok := result.Params["operation"]; ok {
		t.Error("reserved operation key must be stripped")
	}
	if !reflect.DeepEqual(result.Unmapped, []string{"labels"}) {
		t.Errorf("Unmapped = %v, want [labels]", result.Unmapped)
	}

	var sawTitle bool
	for _, trace := range result.Trace {
		if trace.UnifiedName == "title" {
			sawTitle = true
			if trace.TargetName != "summary" || !trace.Mapped {
				t.Errorf("title trace = %+v, want mapped to summary", trace)
			}
		}
	}
	if !sawTitle {
		t.Error("no trace entry for title")
	}
}

func TestMapOperationMappingFallback(t *testing.T) {
	op := &catalog.Operation{
		Slug:             "create-issue",
		ParameterMapping: map[string]string{"title": "name"},
	}
	input := map[string]any{"title": "Fix login", "priority": "high"}

	result := Map(input, op, nil, nil, Options{SkipValidation: true})

	if result.Params["name"] != "Fix login" {
		t.Errorf("Params = %v, want title renamed to name", result.Params)
	}
	if result.Params["priority"] != "high" {
		t.Errorf("Params = %v, want priority passed through", result.Params)
	}
	if _, ok := result.Params["title"]; ok {
		t.Error("old key title must be deleted after rename")
	}
}

func TestMapOperationMappingOverridesUnifiedConfig(t *testing.T) {
	// The unified config has no entry for create-ticket's "extra" param,
	// but the operation's own mapping renames it. Operation mapping wins.
	op := &catalog.Operation{
		Slug:             "create-ticket",
		ParameterMapping: map[string]string{"extra": "custom_field"},
	}
	input := map[string]any{"title": "Fix login", "extra": "x"}

	result := Map(input, op, nil, unifiedConfig(), Options{SkipValidation: true})

	if result.Params["custom_field"] != "x" {
		t.Errorf("Params = %v, want extra renamed by operation override", result.Params)
	}
	if _, ok := result.Params["extra"]; ok {
		t.Error("unified name must be deleted after override rename")
	}
	if result.Params["summary"] != "Fix login" {
		t.Errorf("Params = %v, want unified mapping still applied", result.Params)
	}
}

func TestMapFillsSchemaDefaults(t *testing.T) {
	op := &catalog.Operation{Slug: "create-ticket"}
	actionSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary":  map[string]any{"type": "string"},
			"priority": map[string]any{"type": "string", "default": "medium"},
		},
	}

	result := Map(map[string]any{"summary": "hi"}, op, actionSchema, nil, Options{})

	if result.Params["priority"] != "medium" {
		t.Errorf("Params = %v, want default priority filled", result.Params)
	}
	if !result.Success {
		t.Errorf("expected success, issues: %v", result.Issues)
	}

	// An explicit value is never overwritten by the default.
	result = Map(map[string]any{"summary": "hi", "priority": "urgent"}, op, actionSchema, nil, Options{})
	if result.Params["priority"] != "urgent" {
		t.Errorf("Params = %v, explicit value must win over default", result.Params)
	}
}

func TestMapStripUnknown(t *testing.T) {
	op := &catalog.Operation{Slug: "create-ticket"}
	actionSchema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"summary": map[string]any{"type": "string"}},
	}

	result := Map(map[string]any{"summary": "hi", "junk": 1}, op, actionSchema, nil, Options{StripUnknown: true})

	if _, ok := result.Params["junk"]; ok {
		t.Errorf("Params = %v, want unknown parameter stripped", result.Params)
	}
}

func TestMapValidationFailure(t *testing.T) {
	op := &catalog.Operation{Slug: "create-ticket"}
	actionSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary": map[string]any{"type": "string"},
		},
		"required": []any{"summary"},
	}

	result := Map(map[string]any{}, op, actionSchema, nil, Options{})

	if result.Success {
		t.Fatal("expected validation failure for missing required parameter")
	}
	if len(result.Issues) != 1 {
		t.Fatalf("expected 1 issue, got %v", result.Issues)
	}
}
