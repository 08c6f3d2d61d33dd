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

package catalog

// ConnectionStatus gates whether a connection is usable for invocations.
type ConnectionStatus string

const (
	ConnectionActive   ConnectionStatus = "active"
	ConnectionError    ConnectionStatus = "error"
	ConnectionDisabled ConnectionStatus = "disabled"
)

// Connection is a caller-specific instantiation of an integration. At most
// one connection per integration is primary; resolution order is
// explicit-id, primary-if-active, first-active, auto-created default.
type Connection struct {
	ID            string `json:"id" yaml:"id"`
	TenantID      string `json:"tenantId" yaml:"tenant_id"`
	IntegrationID string `json:"integrationId" yaml:"integration_id"`
	Name          string `json:"name" yaml:"name"`

	// BaseURL overrides the integration's default base URL when set.
	BaseURL string `json:"baseUrl,omitempty" yaml:"base_url,omitempty"`

	// PreambleTemplate, when set, renders an LLM-facing context string
	// that is prefixed to successful responses.
	PreambleTemplate string `json:"preambleTemplate,omitempty" yaml:"preamble_template,omitempty"`

	Status    ConnectionStatus `json:"status" yaml:"status"`
	IsPrimary bool             `json:"isPrimary" yaml:"is_primary"`
}

// Usable reports whether invocations may run over this connection.
func (c *Connection) Usable() bool {
	return c.Status == ConnectionActive
}
