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

import (
	"strings"
	"text/template"
)

// preambleData is what a connection's preamble template may reference.
type preambleData struct {
	Integration string
	Action      string
	Connection  string
	Data        any
}

// renderPreamble renders the connection's LLM-facing context string. Only
// called when the connection declares a template; failures bubble to the
// best-effort combinator.
func renderPreamble(tmpl string, data preambleData) (string, error) {
	parsed, err := template.New("preamble").Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var out strings.Builder
	if err := parsed.Execute(&out, data); err != nil {
		return "", err
	}
	return out.String(), nil
}
