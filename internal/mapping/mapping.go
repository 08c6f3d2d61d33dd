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

// Package mapping applies per-action jq field-mapping expressions to request
// parameters and response payloads. Mapping is best-effort: callers treat a
// returned error as "keep the original value".
package mapping

import (
	"context"
	"fmt"

	"github.com/uplinkhq/uplink/internal/catalog"
	"github.com/uplinkhq/uplink/internal/jq"
)

// Mapper evaluates an action's input and output mapping expressions.
type Mapper struct {
	eval *jq.Evaluator
}

// New returns a Mapper backed by the given evaluator. A nil evaluator gets
// the default timeout and size limits.
func New(eval *jq.Evaluator) *Mapper {
	if eval == nil {
		eval = jq.NewEvaluator(0, 0)
	}
	return &Mapper{eval: eval}
}

// ApplyInput transforms mapped parameters through the action's input
// mapping. It returns the parameters unchanged (applied=false) when no
// expression is configured, and an error when the expression fails or does
// not yield an object. Expressions here are per-action; the tenant and
// connection scope is part of the contract for implementations that key
// mappings per connection.
func (m *Mapper) ApplyInput(ctx context.Context, action *catalog.Action, tenantID, connectionID string, params map[string]any) (map[string]any, bool, error) {
	if action.InputMapping == "" {
		return params, false, nil
	}

	out, err := m.eval.Eval(ctx, action.InputMapping, anyMap(params))
	if err != nil {
		return params, false, fmt.Errorf("input mapping for action %q: %w", action.Slug, err)
	}
	mapped, ok := out.(map[string]any)
	if !ok {
		return params, false, fmt.Errorf("input mapping for action %q yielded %T, want object", action.Slug, out)
	}
	return mapped, true, nil
}

// ApplyOutput transforms the validated response payload through the action's
// output mapping. Unlike input mapping the result may be any JSON value.
func (m *Mapper) ApplyOutput(ctx context.Context, action *catalog.Action, tenantID, connectionID string, data any) (any, bool, error) {
	if action.OutputMapping == "" {
		return data, false, nil
	}

	out, err := m.eval.Eval(ctx, action.OutputMapping, data)
	if err != nil {
		return data, false, fmt.Errorf("output mapping for action %q: %w", action.Slug, err)
	}
	return out, true, nil
}

// anyMap widens the map type so gojq sees plain decoded JSON.
func anyMap(m map[string]any) any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
