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

package jq

import (
	"context"
	"testing"
	"time"
)

func TestEval(t *testing.T) {
	e := NewEvaluator(0, 0)
	ctx := context.Background()

	tests := []struct {
		name       string
		expression string
		data       any
		want       any
		wantErr    bool
	}{
		{
			name:       "empty expression is identity",
			expression: "",
			data:       map[string]any{"a": float64(1)},
			want:       map[string]any{"a": float64(1)},
		},
		{
			name:       "field access",
			expression: ".issue.key",
			data:       map[string]any{"issue": map[string]any{"key": "PROJ-1"}},
			want:       "PROJ-1",
		},
		{
			name:       "missing field yields nil",
			expression: ".nope",
			data:       map[string]any{"a": float64(1)},
			want:       nil,
		},
		{
			name:       "syntax error",
			expression: ".[unclosed",
			data:       map[string]any{},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Eval(ctx, tt.expression, tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Eval() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			switch want := tt.want.(type) {
			case map[string]any:
				gotMap, ok := got.(map[string]any)
				if !ok || len(gotMap) != len(want) {
					t.Errorf("Eval() = %v, want %v", got, tt.want)
				}
			default:
				if got != tt.want {
					t.Errorf("Eval() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestEvalMultipleOutputsCollected(t *testing.T) {
	e := NewEvaluator(0, 0)
	got, err := e.Eval(context.Background(), ".[] | .id", []any{
		map[string]any{"id": "a"},
		map[string]any{"id": "b"},
	})
	if err != nil {
		t.Fatal(err)
	}
	results, ok := got.([]any)
	if !ok || len(results) != 2 || results[0] != "a" || results[1] != "b" {
		t.Errorf("Eval() = %v, want [a b]", got)
	}
}

func TestEvalInputSizeLimit(t *testing.T) {
	e := NewEvaluator(time.Second, 16)
	_, err := e.Eval(context.Background(), ".", map[string]any{"k": "a long enough value"})
	if err == nil {
		t.Fatal("expected input size error")
	}
}

func TestCheck(t *testing.T) {
	if err := Check(".a.b"); err != nil {
		t.Errorf("Check(valid) = %v", err)
	}
	if err := Check(".["); err == nil {
		t.Error("Check(invalid) should fail")
	}
	if err := Check(""); err != nil {
		t.Errorf("Check(empty) = %v", err)
	}
}
