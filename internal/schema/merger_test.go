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
	"strings"
	"testing"

	"github.com/uplinkhq/uplink/internal/catalog"
)

func opSchema(slug string, mapping map[string]string, schema map[string]any) OperationSchema {
	return OperationSchema{
		Operation: catalog.Operation{Slug: slug, ParameterMapping: mapping},
		Schema:    schema,
	}
}

func TestMergeTypeConflictWidensToString(t *testing.T) {
	ops := []OperationSchema{
		opSchema("op-a", nil, map[string]any{
			"properties": map[string]any{"x": map[string]any{"type": "string"}},
			"required":   []any{"x"},
		}),
		opSchema("op-b", nil, map[string]any{
			"properties": map[string]any{"x": map[string]any{"type": "number"}},
			"required":   []any{"x"},
		}),
	}

	result := Merge(ops, MergeOptions{})

	param, ok := result.Config.Parameters["x"]
	if !ok {
		t.Fatal("unified parameter x missing")
	}
	if param.Type != "string" {
		t.Errorf("type = %q, want string (widened)", param.Type)
	}
	if !param.Required {
		t.Error("x should be required")
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected exactly one warning, got %v", result.Warnings)
	}
	if !strings.Contains(result.Warnings[0], `"x"`) || !strings.Contains(result.Warnings[0], "op-b") {
		t.Errorf("warning %q should name the parameter and the conflicting operation", result.Warnings[0])
	}
}

func TestMergeTypeConflictKeepFirst(t *testing.T) {
	ops := []OperationSchema{
		opSchema("op-a", nil, map[string]any{
			"properties": map[string]any{"x": map[string]any{"type": "number"}},
		}),
		opSchema("op-b", nil, map[string]any{
			"properties": map[string]any{"x": map[string]any{"type": "boolean"}},
		}),
	}

	result := Merge(ops, MergeOptions{TypeConflict: ConflictFirst})
	if got := result.Config.Parameters["x"].Type; got != "number" {
		t.Errorf("type = %q, want number (first)", got)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}
}

func TestMergeUnifiedNameFromParameterMapping(t *testing.T) {
	// op-jira calls the field "summary", op-linear calls it "title";
	// both map the unified name "title" onto their raw field.
	ops := []OperationSchema{
		opSchema("create-ticket", map[string]string{"title": "summary"}, map[string]any{
			"properties": map[string]any{"summary": map[string]any{"type": "string", "description": "Issue summary"}},
			"required":   []any{"summary"},
		}),
		opSchema("create-issue", nil, map[string]any{
			"properties": map[string]any{"title": map[string]any{"type": "string", "description": "The title shown in the issue list"}},
		}),
	}

	result := Merge(ops, MergeOptions{})

	param, ok := result.Config.Parameters["title"]
	if !ok {
		t.Fatalf("expected unified parameter title, got %v", result.Config.Parameters)
	}
	if got := param.OperationMappings["create-ticket"].TargetParam; got != "summary" {
		t.Errorf("create-ticket target = %q, want summary", got)
	}
	if got := param.OperationMappings["create-issue"].TargetParam; got != "title" {
		t.Errorf("create-issue target = %q, want title", got)
	}
	// Longer description wins.
	if param.Description != "The title shown in the issue list" {
		t.Errorf("description = %q, want the longer one", param.Description)
	}
	// Required under "any" because create-ticket requires it.
	if !param.Required {
		t.Error("title should be required under the any strategy")
	}
}

func TestMergeRequiredAllStrategy(t *testing.T) {
	ops := []OperationSchema{
		opSchema("op-a", nil, map[string]any{
			"properties": map[string]any{"x": map[string]any{"type": "string"}},
			"required":   []any{"x"},
		}),
		opSchema("op-b", nil, map[string]any{
			"properties": map[string]any{"x": map[string]any{"type": "string"}},
		}),
	}

	result := Merge(ops, MergeOptions{Required: RequiredAll})
	if result.Config.Parameters["x"].Required {
		t.Error("x should not be required under all: op-b does not require it")
	}

	result = Merge(ops, MergeOptions{Required: RequiredAny})
	if !result.Config.Parameters["x"].Required {
		t.Error("x should be required under any")
	}
}

func TestMergeEnumUnionAndDefault(t *testing.T) {
	ops := []OperationSchema{
		opSchema("op-a", nil, map[string]any{
			"properties": map[string]any{"priority": map[string]any{
				"type": "string", "enum": []any{"low", "high"},
			}},
		}),
		opSchema("op-b", nil, map[string]any{
			"properties": map[string]any{"priority": map[string]any{
				"type": "string", "enum": []any{"high", "urgent"}, "default": "low",
			}},
		}),
	}

	result := Merge(ops, MergeOptions{})
	param := result.Config.Parameters["priority"]
	if len(param.Enum) != 3 {
		t.Errorf("enum = %v, want union of 3 values", param.Enum)
	}
	if param.Default != "low" {
		t.Errorf("default = %v, want low", param.Default)
	}
}

func TestMergeDropOperationSpecific(t *testing.T) {
	ops := []OperationSchema{
		opSchema("op-a", nil, map[string]any{
			"properties": map[string]any{
				"shared": map[string]any{"type": "string"},
				"only-a": map[string]any{"type": "string"},
			},
		}),
		opSchema("op-b", nil, map[string]any{
			"properties": map[string]any{"shared": map[string]any{"type": "string"}},
		}),
	}

	result := Merge(ops, MergeOptions{DropOperationSpecific: true})
	if _, ok := result.Config.Parameters["shared"]; !ok {
		t.Error("shared parameter should survive")
	}
	if _, ok := result.Config.Parameters["only-a"]; ok {
		t.Error("operation-specific parameter should be dropped")
	}
}

func TestBuildAgentDrivenSchema(t *testing.T) {
	ops := []OperationSchema{
		opSchema("create-ticket", nil, map[string]any{
			"properties": map[string]any{"title": map[string]any{"type": "string"}},
		}),
		opSchema("create-issue", nil, map[string]any{
			"properties": map[string]any{"title": map[string]any{"type": "string"}},
		}),
	}

	result := BuildAgentDrivenSchema(ops, MergeOptions{})

	props := result.Schema["properties"].(map[string]any)
	opProp, ok := props["operation"].(map[string]any)
	if !ok {
		t.Fatal("operation property missing from agent-driven schema")
	}
	enum := opProp["enum"].([]any)
	if len(enum) != 2 || enum[0] != "create-ticket" || enum[1] != "create-issue" {
		t.Errorf("operation enum = %v, want the operation slugs", enum)
	}

	required := result.Schema["required"].([]string)
	if len(required) == 0 || required[0] != "operation" {
		t.Errorf("required = %v, want operation first", required)
	}
}
