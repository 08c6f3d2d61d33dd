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

package store

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/uplinkhq/uplink/internal/catalog"
)

// catalogFile is the on-disk catalog shape. Child entities nest under their
// parent so the file never repeats tenant and integration ids; the loader
// fills them in.
type catalogFile struct {
	Integrations  []integrationDoc   `yaml:"integrations"`
	Tools         []toolDoc          `yaml:"tools"`
	ReferenceData []referenceDataDoc `yaml:"reference_data"`
}

// referenceDataDoc is one static reference dataset served to agents.
type referenceDataDoc struct {
	TenantID string `yaml:"tenant_id"`
	Key      string `yaml:"key"`
	Data     any    `yaml:"data"`
}

type integrationDoc struct {
	catalog.Integration `yaml:",inline"`

	Actions     []catalog.Action `yaml:"actions"`
	Connections []connectionDoc  `yaml:"connections"`

	// Credential is the integration-wide fallback used when a connection
	// carries no credential of its own.
	Credential *credentialDoc `yaml:"credential"`
}

type connectionDoc struct {
	catalog.Connection `yaml:",inline"`

	Credential *credentialDoc `yaml:"credential"`
}

type toolDoc struct {
	catalog.CompositeTool `yaml:",inline"`

	Operations []catalog.Operation   `yaml:"operations"`
	Rules      []catalog.RoutingRule `yaml:"rules"`
}

// credentialDoc is the union of all credential variants plus the kind
// discriminator. Decoding keeps only the fields the kind defines.
type credentialDoc struct {
	Kind    catalog.CredentialKind   `yaml:"kind"`
	Status  catalog.CredentialStatus `yaml:"status"`
	BaseURL string                   `yaml:"base_url"`

	AccessToken  string    `yaml:"access_token"`
	RefreshToken string    `yaml:"refresh_token"`
	TokenType    string    `yaml:"token_type"`
	ExpiresAt    time.Time `yaml:"expires_at"`

	Key       string                  `yaml:"key"`
	Placement catalog.APIKeyPlacement `yaml:"placement"`
	FieldName string                  `yaml:"field_name"`

	Username string `yaml:"username"`
	Password string `yaml:"password"`

	Token   string            `yaml:"token"`
	Headers map[string]string `yaml:"headers"`
}

func (d *credentialDoc) toCredential() (catalog.Credential, error) {
	meta := catalog.CredentialMeta{State: d.Status, BaseURLOverride: d.BaseURL}
	switch d.Kind {
	case catalog.CredentialOAuth2:
		return &catalog.OAuth2Credential{
			CredentialMeta: meta,
			AccessToken:    d.AccessToken,
			RefreshToken:   d.RefreshToken,
			TokenType:      d.TokenType,
			ExpiresAt:      d.ExpiresAt,
		}, nil
	case catalog.CredentialAPIKey:
		return &catalog.APIKeyCredential{
			CredentialMeta: meta,
			Key:            d.Key,
			Placement:      d.Placement,
			FieldName:      d.FieldName,
		}, nil
	case catalog.CredentialBasic:
		return &catalog.BasicCredential{
			CredentialMeta: meta,
			Username:       d.Username,
			Password:       d.Password,
		}, nil
	case catalog.CredentialBearer:
		return &catalog.BearerCredential{
			CredentialMeta: meta,
			Token:          d.Token,
		}, nil
	case catalog.CredentialCustomHeader:
		return &catalog.CustomHeaderCredential{
			CredentialMeta: meta,
			Headers:        d.Headers,
			Token:          d.Token,
		}, nil
	default:
		return nil, fmt.Errorf("unknown credential kind %q", d.Kind)
	}
}

// LoadFile reads a YAML catalog file into a fresh Memory store.
func LoadFile(path string) (*Memory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return Load(raw)
}

// Load parses YAML catalog bytes into a fresh Memory store.
func Load(raw []byte) (*Memory, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	m := NewMemory()
	for i := range file.Integrations {
		if err := loadIntegration(m, &file.Integrations[i]); err != nil {
			return nil, err
		}
	}
	for i := range file.Tools {
		if err := loadTool(m, &file.Tools[i]); err != nil {
			return nil, err
		}
	}
	for _, rd := range file.ReferenceData {
		if rd.Key == "" {
			return nil, fmt.Errorf("reference data entry missing key")
		}
		m.AddReferenceData(rd.TenantID, rd.Key, rd.Data)
	}
	return m, nil
}

func loadIntegration(m *Memory, doc *integrationDoc) error {
	integration := doc.Integration
	if integration.Slug == "" {
		return fmt.Errorf("integration missing slug")
	}
	if integration.ID == "" {
		integration.ID = uuid.NewString()
	}
	if integration.Status == "" {
		integration.Status = catalog.IntegrationActive
	}
	if integration.AuthType == "" {
		integration.AuthType = catalog.AuthNone
	}
	m.AddIntegration(&integration)

	for i := range doc.Actions {
		action := doc.Actions[i]
		if action.Slug == "" {
			return fmt.Errorf("integration %q: action missing slug", integration.Slug)
		}
		if action.ID == "" {
			action.ID = uuid.NewString()
		}
		action.TenantID = integration.TenantID
		action.IntegrationID = integration.ID
		m.AddAction(&action)
	}

	for i := range doc.Connections {
		conn := doc.Connections[i].Connection
		if conn.ID == "" {
			conn.ID = uuid.NewString()
		}
		if conn.Status == "" {
			conn.Status = catalog.ConnectionActive
		}
		conn.TenantID = integration.TenantID
		conn.IntegrationID = integration.ID
		m.AddConnection(&conn)

		if doc.Connections[i].Credential != nil {
			cred, err := doc.Connections[i].Credential.toCredential()
			if err != nil {
				return fmt.Errorf("integration %q connection %q: %w", integration.Slug, conn.Name, err)
			}
			m.SetCredential(integration.ID, conn.ID, cred)
		}
	}

	if doc.Credential != nil {
		cred, err := doc.Credential.toCredential()
		if err != nil {
			return fmt.Errorf("integration %q: %w", integration.Slug, err)
		}
		m.SetCredential(integration.ID, "", cred)
	}
	return nil
}

func loadTool(m *Memory, doc *toolDoc) error {
	tool := doc.CompositeTool
	if tool.Slug == "" {
		return fmt.Errorf("tool missing slug")
	}
	if tool.ID == "" {
		tool.ID = uuid.NewString()
	}
	if tool.RoutingMode == "" {
		tool.RoutingMode = catalog.RoutingRuleBased
	}

	// Operations may be referenced by rules (and the tool default) through
	// their slug when ids are omitted in the file.
	slugToID := make(map[string]string, len(doc.Operations))
	operations := make([]catalog.Operation, 0, len(doc.Operations))
	for i := range doc.Operations {
		op := doc.Operations[i]
		if op.Slug == "" {
			return fmt.Errorf("tool %q: operation missing slug", tool.Slug)
		}
		if op.ID == "" {
			op.ID = uuid.NewString()
		}
		op.ToolID = tool.ID
		if op.ActionID == "" {
			return fmt.Errorf("tool %q operation %q: missing action_id", tool.Slug, op.Slug)
		}
		slugToID[op.Slug] = op.ID
		operations = append(operations, op)
	}

	if tool.DefaultOperationID != "" {
		if id, ok := slugToID[tool.DefaultOperationID]; ok {
			tool.DefaultOperationID = id
		}
	}

	rules := make([]catalog.RoutingRule, 0, len(doc.Rules))
	for i := range doc.Rules {
		rule := doc.Rules[i]
		if rule.ID == "" {
			rule.ID = uuid.NewString()
		}
		rule.ToolID = tool.ID
		if id, ok := slugToID[rule.OperationID]; ok {
			rule.OperationID = id
		}
		if rule.OperationID == "" {
			return fmt.Errorf("tool %q: rule missing operation_id", tool.Slug)
		}
		rules = append(rules, rule)
	}

	m.AddTool(&tool, operations, rules)
	return nil
}
