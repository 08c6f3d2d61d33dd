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

// Package store holds the in-memory catalog backing the daemon, loaded from
// a declarative YAML file. Reads dominate; the only write path is the
// race-safe auto-creation of default connections.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/uplinkhq/uplink/internal/catalog"
)

// Memory implements every catalog read contract over in-memory slices.
type Memory struct {
	mu           sync.RWMutex
	integrations []*catalog.Integration
	actions      []*catalog.Action
	connections  []*catalog.Connection
	credentials  map[string]catalog.Credential
	tools        []*catalog.CompositeTool
	operations   map[string][]catalog.Operation
	rules        map[string][]catalog.RoutingRule
	refdata      map[string]any
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		credentials: make(map[string]catalog.Credential),
		operations:  make(map[string][]catalog.Operation),
		rules:       make(map[string][]catalog.RoutingRule),
		refdata:     make(map[string]any),
	}
}

// scopedKey joins two identifiers into one map key; NUL cannot appear in
// either part.
func scopedKey(a, b string) string {
	return a + "\x00" + b
}

// AddIntegration registers an integration definition.
func (m *Memory) AddIntegration(i *catalog.Integration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.integrations = append(m.integrations, i)
}

// AddAction registers an action definition.
func (m *Memory) AddAction(a *catalog.Action) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, a)
}

// AddConnection registers a connection.
func (m *Memory) AddConnection(c *catalog.Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections = append(m.connections, c)
}

// SetCredential stores the decrypted credential for (integration,
// connection). An empty connectionID registers an integration-wide
// credential used when no connection-specific one exists.
func (m *Memory) SetCredential(integrationID, connectionID string, cred catalog.Credential) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credentials[scopedKey(integrationID, connectionID)] = cred
}

// AddTool registers a composite tool with its operations and rules.
// Operations and rules are kept sorted by ascending priority.
func (m *Memory) AddTool(t *catalog.CompositeTool, operations []catalog.Operation, rules []catalog.RoutingRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tools = append(m.tools, t)

	ops := append([]catalog.Operation(nil), operations...)
	sort.SliceStable(ops, func(i, j int) bool { return ops[i].Priority < ops[j].Priority })
	m.operations[t.ID] = ops

	rs := append([]catalog.RoutingRule(nil), rules...)
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].Priority < rs[j].Priority })
	m.rules[t.ID] = rs
}

// IntegrationBySlug implements catalog.IntegrationStore.
func (m *Memory) IntegrationBySlug(_ context.Context, tenantID, slug string) (*catalog.Integration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, i := range m.integrations {
		if i.TenantID == tenantID && i.Slug == slug {
			return i, nil
		}
	}
	return nil, catalog.ErrNotFound
}

// IntegrationByID implements catalog.IntegrationStore.
func (m *Memory) IntegrationByID(_ context.Context, tenantID, id string) (*catalog.Integration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, i := range m.integrations {
		if i.TenantID == tenantID && i.ID == id {
			return i, nil
		}
	}
	return nil, catalog.ErrNotFound
}

// ActionBySlug implements catalog.ActionStore.
func (m *Memory) ActionBySlug(_ context.Context, tenantID, integrationID, slug string) (*catalog.Action, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.actions {
		if a.TenantID == tenantID && a.IntegrationID == integrationID && a.Slug == slug {
			return a, nil
		}
	}
	return nil, catalog.ErrNotFound
}

// ActionByID implements catalog.ActionStore.
func (m *Memory) ActionByID(_ context.Context, tenantID, id string) (*catalog.Action, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.actions {
		if a.TenantID == tenantID && a.ID == id {
			return a, nil
		}
	}
	return nil, catalog.ErrNotFound
}

// ResolveConnection implements catalog.ConnectionResolver. With no explicit
// id the order is primary-if-active, first-active, auto-created default.
// Auto-creation holds the write lock across the re-check so two concurrent
// first-calls converge on one connection.
func (m *Memory) ResolveConnection(_ context.Context, tenantID, integrationID, connectionID string) (*catalog.Connection, error) {
	if connectionID != "" {
		m.mu.RLock()
		defer m.mu.RUnlock()
		for _, c := range m.connections {
			if c.TenantID == tenantID && c.IntegrationID == integrationID && c.ID == connectionID {
				return c, nil
			}
		}
		return nil, catalog.ErrNotFound
	}

	m.mu.RLock()
	if c := pickConnection(m.connections, tenantID, integrationID); c != nil {
		m.mu.RUnlock()
		return c, nil
	}
	m.mu.RUnlock()

	// Find-or-create under the write lock: another caller may have created
	// the default between the locks.
	m.mu.Lock()
	defer m.mu.Unlock()
	if c := pickConnection(m.connections, tenantID, integrationID); c != nil {
		return c, nil
	}
	created := &catalog.Connection{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		IntegrationID: integrationID,
		Name:          "Default",
		Status:        catalog.ConnectionActive,
		IsPrimary:     true,
	}
	m.connections = append(m.connections, created)
	return created, nil
}

func pickConnection(connections []*catalog.Connection, tenantID, integrationID string) *catalog.Connection {
	var firstActive *catalog.Connection
	for _, c := range connections {
		if c.TenantID != tenantID || c.IntegrationID != integrationID || !c.Usable() {
			continue
		}
		if c.IsPrimary {
			return c
		}
		if firstActive == nil {
			firstActive = c
		}
	}
	return firstActive
}

// DecryptedCredential implements catalog.CredentialSource. Connection-bound
// credentials win over integration-wide ones; (nil, nil) means none stored.
func (m *Memory) DecryptedCredential(_ context.Context, integrationID, tenantID, connectionID string) (catalog.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if cred, ok := m.credentials[scopedKey(integrationID, connectionID)]; ok {
		return cred, nil
	}
	if cred, ok := m.credentials[scopedKey(integrationID, "")]; ok {
		return cred, nil
	}
	return nil, nil
}

// AddReferenceData registers a static reference dataset for a tenant.
func (m *Memory) AddReferenceData(tenantID, key string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refdata[scopedKey(tenantID, key)] = data
}

// FetchReferenceData implements refdata.Source over the catalog's static
// datasets.
func (m *Memory) FetchReferenceData(_ context.Context, tenantID, key string) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if data, ok := m.refdata[scopedKey(tenantID, key)]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("reference data %q: %w", key, catalog.ErrNotFound)
}

// ToolBySlug implements catalog.ToolStore.
func (m *Memory) ToolBySlug(_ context.Context, tenantID, slug string) (*catalog.CompositeTool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tools {
		if t.TenantID == tenantID && t.Slug == slug {
			return t, nil
		}
	}
	return nil, catalog.ErrNotFound
}

// Operations implements catalog.ToolStore; results are priority-ascending.
func (m *Memory) Operations(_ context.Context, toolID string) ([]catalog.Operation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]catalog.Operation(nil), m.operations[toolID]...), nil
}

// OperationByID implements catalog.ToolStore.
func (m *Memory) OperationByID(_ context.Context, toolID, id string) (*catalog.Operation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, op := range m.operations[toolID] {
		if op.ID == id {
			op := op
			return &op, nil
		}
	}
	return nil, catalog.ErrNotFound
}

// Rules implements catalog.ToolStore; results are priority-ascending.
func (m *Memory) Rules(_ context.Context, toolID string) ([]catalog.RoutingRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]catalog.RoutingRule(nil), m.rules[toolID]...), nil
}
