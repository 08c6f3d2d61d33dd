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

// Package jq evaluates jq expressions with timeout and input-size guards.
// Response field mapping and reference data extraction both run untrusted
// catalog-authored expressions through here.
package jq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/itchyny/gojq"
)

const (
	// DefaultTimeout bounds a single expression evaluation.
	DefaultTimeout = 1 * time.Second

	// DefaultMaxInputSize caps the JSON-encoded size of the input (10MB).
	DefaultMaxInputSize = 10 * 1024 * 1024
)

// Evaluator runs jq expressions against decoded JSON values.
type Evaluator struct {
	timeout      time.Duration
	maxInputSize int64
}

// NewEvaluator returns an Evaluator; zero arguments select the defaults.
func NewEvaluator(timeout time.Duration, maxInputSize int64) *Evaluator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxInputSize <= 0 {
		maxInputSize = DefaultMaxInputSize
	}
	return &Evaluator{timeout: timeout, maxInputSize: maxInputSize}
}

// Eval runs expression against data. An empty expression is the identity.
// Multiple jq outputs are collected into an array; zero outputs yield nil.
func (e *Evaluator) Eval(ctx context.Context, expression string, data any) (any, error) {
	if expression == "" {
		return data, nil
	}
	if err := e.checkInputSize(data); err != nil {
		return nil, err
	}

	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("compile error: %w", err)
	}

	evalCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	iter := code.RunWithContext(evalCtx, data)
	var results []any
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			if evalCtx.Err() != nil {
				return nil, fmt.Errorf("evaluation timeout after %v", e.timeout)
			}
			return nil, err
		}
		results = append(results, v)
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}

// Check compiles expression without running it, for catching syntax errors
// at catalog load time.
func Check(expression string) error {
	if expression == "" {
		return nil
	}
	query, err := gojq.Parse(expression)
	if err != nil {
		return fmt.Errorf("invalid jq expression: %w", err)
	}
	if _, err := gojq.Compile(query); err != nil {
		return fmt.Errorf("jq compilation failed: %w", err)
	}
	return nil
}

func (e *Evaluator) checkInputSize(data any) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal input: %w", err)
	}
	if int64(len(encoded)) > e.maxInputSize {
		return fmt.Errorf("input size (%d bytes) exceeds maximum (%d bytes)", len(encoded), e.maxInputSize)
	}
	return nil
}
