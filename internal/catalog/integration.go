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

// Package catalog defines the entity model the gateway reads: integrations,
// actions, connections, credentials, and composite tools. The gateway never
// mutates these definitions; management APIs own their lifecycle.
package catalog

// AuthType identifies how an integration authenticates against its API.
type AuthType string

const (
	AuthNone         AuthType = "none"
	AuthOAuth2       AuthType = "oauth2"
	AuthAPIKey       AuthType = "api_key"
	AuthBasic        AuthType = "basic"
	AuthBearer       AuthType = "bearer"
	AuthCustomHeader AuthType = "custom_header"
)

// IntegrationStatus gates whether actions of an integration may be invoked.
type IntegrationStatus string

const (
	IntegrationActive   IntegrationStatus = "active"
	IntegrationDisabled IntegrationStatus = "disabled"
)

// Integration is a named external API grouping many actions under one
// authentication type. Integrations are tenant-scoped.
type Integration struct {
	ID       string `json:"id" yaml:"id"`
	TenantID string `json:"tenantId" yaml:"tenant_id"`
	Slug     string `json:"slug" yaml:"slug"`
	Name     string `json:"name" yaml:"name"`

	AuthType   AuthType          `json:"authType" yaml:"auth_type"`
	AuthConfig AuthConfig        `json:"authConfig" yaml:"auth_config"`
	Status     IntegrationStatus `json:"status" yaml:"status"`
}

// AuthConfig carries integration-level auth settings. BaseURL is the default
// base URL for all actions; connections and credentials may override it.
type AuthConfig struct {
	BaseURL string `json:"baseUrl,omitempty" yaml:"base_url,omitempty"`

	// Extra holds provider-specific settings (audience, API version header
	// values, and similar) that the credential applicator does not interpret.
	Extra map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Action is one invocable external HTTP operation owned by an integration.
// Immutable per invocation.
type Action struct {
	ID            string `json:"id" yaml:"id"`
	TenantID      string `json:"tenantId" yaml:"tenant_id"`
	IntegrationID string `json:"integrationId" yaml:"integration_id"`
	Slug          string `json:"slug" yaml:"slug"`
	Name          string `json:"name" yaml:"name"`
	Description   string `json:"description,omitempty" yaml:"description,omitempty"`

	// HTTPMethod is the uppercase method (GET, POST, ...).
	HTTPMethod string `json:"httpMethod" yaml:"http_method"`

	// EndpointTemplate is the path (or absolute URL) with {param}
	// placeholders, e.g. "/repos/{owner}/{repo}/issues".
	EndpointTemplate string `json:"endpointTemplate" yaml:"endpoint_template"`

	// InputSchema and OutputSchema are JSON-Schema-shaped objects.
	InputSchema  map[string]any `json:"inputSchema,omitempty" yaml:"input_schema,omitempty"`
	OutputSchema map[string]any `json:"outputSchema,omitempty" yaml:"output_schema,omitempty"`

	// InputMapping and OutputMapping are optional jq expressions applied to
	// the mapped parameters before the request is built and to the upstream
	// response payload after validation. Both are best-effort.
	InputMapping  string `json:"inputMapping,omitempty" yaml:"input_mapping,omitempty"`
	OutputMapping string `json:"outputMapping,omitempty" yaml:"output_mapping,omitempty"`

	// ValidationMode selects strict or lenient response validation.
	ValidationMode string `json:"validationMode,omitempty" yaml:"validation_mode,omitempty"`

	// ReferenceDataKey names an optional cached reference dataset attached
	// to successful responses for agent context.
	ReferenceDataKey string `json:"referenceDataKey,omitempty" yaml:"reference_data_key,omitempty"`
}
