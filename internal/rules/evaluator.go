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

package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/uplinkhq/uplink/internal/catalog"
)

// MaxPatternLength caps `matches` condition patterns. Go's regexp engine is
// linear-time, so the cap only guards against absurd inputs; an over-long
// pattern is a non-match, not an error.
const MaxPatternLength = 512

// Result is the outcome of evaluating one rule against an input.
type Result struct {
	Rule    *catalog.RoutingRule
	Matched bool

	// Reason is a human-readable explanation of the match or non-match,
	// surfaced to callers as the routing reason.
	Reason string
}

// EvaluateCondition reports whether fieldValue satisfies the condition.
// String conditions lowercase both sides unless caseSensitive; `matches`
// compiles conditionValue as a regular expression with case-insensitive
// matching unless caseSensitive. An invalid pattern and an unknown condition
// type both yield no match, never an error.
func EvaluateCondition(condType catalog.ConditionType, fieldValue, conditionValue string, caseSensitive bool) bool {
	field, cond := fieldValue, conditionValue
	if !caseSensitive && condType != catalog.ConditionMatches {
		field = strings.ToLower(field)
		cond = strings.ToLower(cond)
	}

	switch condType {
	case catalog.ConditionContains:
		return strings.Contains(field, cond)
	case catalog.ConditionEquals:
		return field == cond
	case catalog.ConditionStartsWith:
		return strings.HasPrefix(field, cond)
	case catalog.ConditionEndsWith:
		return strings.HasSuffix(field, cond)
	case catalog.ConditionMatches:
		if len(conditionValue) > MaxPatternLength {
			return false
		}
		pattern := conditionValue
		if !caseSensitive {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(fieldValue)
	default:
		return false
	}
}

// EvaluateRule evaluates a single rule against the invocation input. A field
// that cannot be extracted is an automatic non-match with a "field not
// found" reason.
func EvaluateRule(rule *catalog.RoutingRule, input map[string]any) Result {
	fieldValue, ok := CachedPath(rule.ConditionField).Extract(input)
	if !ok {
		return Result{
			Rule:    rule,
			Matched: false,
			Reason:  fmt.Sprintf("field %q not found in input", rule.ConditionField),
		}
	}

	matched := EvaluateCondition(rule.ConditionType, fieldValue, rule.ConditionValue, rule.CaseSensitive)
	if matched {
		return Result{
			Rule:    rule,
			Matched: true,
			Reason:  fmt.Sprintf("field %q (%q) %s %q", rule.ConditionField, fieldValue, rule.ConditionType, rule.ConditionValue),
		}
	}
	return Result{
		Rule:    rule,
		Matched: false,
		Reason:  fmt.Sprintf("field %q (%q) does not satisfy %s %q", rule.ConditionField, fieldValue, rule.ConditionType, rule.ConditionValue),
	}
}

// FirstMatch returns the first matching rule's result, or nil when none
// match. Rules must arrive pre-sorted in ascending priority order; that
// total order is a correctness invariant of rule-based routing, not an
// optimization.
func FirstMatch(ruleList []catalog.RoutingRule, input map[string]any) *Result {
	for i := range ruleList {
		result := EvaluateRule(&ruleList[i], input)
		if result.Matched {
			return &result
		}
	}
	return nil
}
