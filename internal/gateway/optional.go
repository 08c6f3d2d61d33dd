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

package gateway

import "log/slog"

// attemptOptional runs a best-effort step. Field mapping, reference data,
// preamble rendering and invocation logging all go through here: a failure
// is logged and replaced with the zero value, never propagated. This is the
// single place enforcing the "best effort never fails the call" rule.
func attemptOptional[T any](logger *slog.Logger, step string, fn func() (T, error)) (T, bool) {
	value, err := fn()
	if err != nil {
		logger.Warn("best-effort step failed",
			slog.String("step", step),
			slog.String("error", err.Error()))
		var zero T
		return zero, false
	}
	return value, true
}
