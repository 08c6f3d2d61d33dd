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
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/uplinkhq/uplink/internal/catalog"
	"github.com/uplinkhq/uplink/internal/transport"
	"github.com/uplinkhq/uplink/pkg/envelope"
)

// buildRequest assembles the outbound HTTP request for an action invocation.
//
// Base URL precedence: credential override, then connection override, then
// integration authConfig, then an already-absolute endpoint template; none
// of those is a CONFIGURATION_ERROR. Parameters consumed by {name} path
// placeholders are excluded from body and query.
func buildRequest(action *catalog.Action, integration *catalog.Integration, connection *catalog.Connection, cred catalog.Credential, params map[string]any) (*transport.Request, *Error) {
	frags, err := applyCredential(cred)
	if err != nil {
		return nil, &Error{Code: envelope.CodeConfigurationError, Message: "unsupported credential configuration", Cause: err}
	}

	path, consumed, buildErr := buildURL(action.EndpointTemplate, params)
	if buildErr != nil {
		return nil, buildErr
	}

	fullURL, buildErr := resolveBaseURL(path, cred, connection, integration)
	if buildErr != nil {
		return nil, buildErr
	}

	remaining := make(map[string]any, len(params))
	for name, value := range params {
		if !consumed[name] {
			remaining[name] = value
		}
	}

	method := strings.ToUpper(action.HTTPMethod)
	if method == "" {
		method = http.MethodGet
	}

	req := &transport.Request{Method: method, URL: fullURL, Headers: frags.headers}

	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		body := remaining
		for name, value := range frags.body {
			body[name] = value
		}
		if len(body) > 0 {
			req.Body = body
		}
		req.URL = appendQuery(req.URL, nil, frags.query)
	default:
		// GET/DELETE/HEAD carry parameters in the query string; empty and
		// null values are dropped so strict REST backends do not choke.
		req.URL = appendQuery(req.URL, remaining, frags.query)
	}

	return req, nil
}

// resolveBaseURL applies the base URL precedence to the templated path.
func resolveBaseURL(path string, cred catalog.Credential, connection *catalog.Connection, integration *catalog.Integration) (string, *Error) {
	var base string
	if cred != nil {
		base = cred.BaseURL()
	}
	if base == "" && connection != nil {
		base = connection.BaseURL
	}
	if base == "" {
		base = integration.AuthConfig.BaseURL
	}
	if base == "" {
		if isAbsoluteURL(path) {
			return path, nil
		}
		return "", Errorf(envelope.CodeConfigurationError,
			"integration %q has no base URL and the endpoint is not absolute", integration.Slug)
	}
	if isAbsoluteURL(path) {
		return path, nil
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/"), nil
}

// buildURL substitutes {name} placeholders in the endpoint template with
// percent-encoded parameter values. A placeholder without a corresponding
// parameter is a VALIDATION_ERROR naming the parameter. The returned set
// holds the parameter names consumed by the path.
func buildURL(template string, params map[string]any) (string, map[string]bool, *Error) {
	consumed := make(map[string]bool)
	var out strings.Builder
	var missing []string

	remainder := template
	for {
		start := strings.Index(remainder, "{")
		if start < 0 {
			out.WriteString(remainder)
			break
		}
		end := strings.Index(remainder[start:], "}")
		if end < 0 {
			out.WriteString(remainder)
			break
		}
		end += start

		out.WriteString(remainder[:start])
		name := remainder[start+1 : end]
		remainder = remainder[end+1:]

		value, ok := params[name]
		if !ok || value == nil {
			missing = append(missing, name)
			continue
		}
		out.WriteString(url.PathEscape(paramString(value)))
		consumed[name] = true
	}

	if len(missing) > 0 {
		return "", nil, &Error{
			Code:    envelope.CodeValidationError,
			Message: fmt.Sprintf("missing required path parameter(s): %s", strings.Join(missing, ", ")),
			Details: map[string]any{"missingParameters": missing},
		}
	}
	return out.String(), consumed, nil
}

// appendQuery attaches parameters and credential query fragments to rawURL.
// Nil and empty-string parameter values are dropped.
func appendQuery(rawURL string, params map[string]any, credQuery map[string]string) string {
	if len(params) == 0 && len(credQuery) == 0 {
		return rawURL
	}

	values := url.Values{}
	for name, value := range params {
		if value == nil {
			continue
		}
		s := paramString(value)
		if s == "" {
			continue
		}
		values.Set(name, s)
	}
	for name, value := range credQuery {
		values.Set(name, value)
	}
	if len(values) == 0 {
		return rawURL
	}

	separator := "?"
	if strings.Contains(rawURL, "?") {
		separator = "&"
	}
	return rawURL + separator + values.Encode()
}

// paramString renders a parameter value for use in a path or query.
func paramString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
