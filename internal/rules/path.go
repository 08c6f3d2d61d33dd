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

// Package rules evaluates routing rule conditions against invocation input.
package rules

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync"
)

// Path is a pre-parsed dot-path into a JSON-shaped input object. Parsing
// once and reusing the segments avoids re-splitting on every evaluation.
type Path []string

// ParsePath splits a dot-path ("ticket.system") into segments. Malformed
// paths (empty string, empty segments) produce a path that extracts no
// value; they are never an error.
func ParsePath(raw string) Path {
	if raw == "" {
		return nil
	}
	segments := strings.Split(raw, ".")
	for _, s := range segments {
		if s == "" {
			return nil
		}
	}
	return segments
}

// pathCache memoizes parsed dot-paths. Condition fields come from the
// catalog, so the key space is small and stable for the process lifetime.
var pathCache sync.Map // string -> Path

// CachedPath returns the pre-parsed form of raw, parsing each distinct path
// at most once.
func CachedPath(raw string) Path {
	if cached, ok := pathCache.Load(raw); ok {
		return cached.(Path)
	}
	parsed := ParsePath(raw)
	pathCache.Store(raw, parsed)
	return parsed
}

// Extract walks the input and returns the leaf value coerced to a string.
// Any missing or non-object intermediate, an absent leaf, or a null leaf
// yields ok=false. Scalar leaves coerce to their string form; object and
// array leaves serialize to compact JSON.
func (p Path) Extract(input map[string]any) (string, bool) {
	if len(p) == 0 || input == nil {
		return "", false
	}

	var current any = input
	for _, segment := range p {
		obj, ok := current.(map[string]any)
		if !ok {
			return "", false
		}
		current, ok = obj[segment]
		if !ok {
			return "", false
		}
	}

	return coerceToString(current)
}

// coerceToString renders a leaf value for condition comparison.
func coerceToString(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case json.Number:
		return v.String(), true
	default:
		// Objects and arrays serialize to JSON text so rules can still
		// match against them.
		data, err := json.Marshal(v)
		if err != nil {
			return "", false
		}
		return string(data), true
	}
}
