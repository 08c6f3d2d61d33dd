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

import (
	"context"
	"errors"
)

// ErrNotFound is returned by store lookups when no entity matches.
var ErrNotFound = errors.New("catalog: not found")

// IntegrationStore reads integration definitions.
type IntegrationStore interface {
	IntegrationBySlug(ctx context.Context, tenantID, slug string) (*Integration, error)
	IntegrationByID(ctx context.Context, tenantID, id string) (*Integration, error)
}

// ActionStore reads action definitions.
type ActionStore interface {
	ActionBySlug(ctx context.Context, tenantID, integrationID, slug string) (*Action, error)
	ActionByID(ctx context.Context, tenantID, id string) (*Action, error)
}

// ConnectionResolver resolves the connection an invocation runs over.
// With an empty connectionID the resolution order is primary-if-active,
// first-active, then an auto-created default; auto-creation must be
// race-safe (find-or-create) because two first-calls may arrive at once.
type ConnectionResolver interface {
	ResolveConnection(ctx context.Context, tenantID, integrationID, connectionID string) (*Connection, error)
}

// CredentialSource fetches decrypted credentials. A (nil, nil) return means
// no credential is stored for the connection.
type CredentialSource interface {
	DecryptedCredential(ctx context.Context, integrationID, tenantID, connectionID string) (Credential, error)
}

// ToolStore reads composite tool definitions. Operations and Rules return
// their results in ascending priority order; the router and schema merger
// rely on that total order.
type ToolStore interface {
	ToolBySlug(ctx context.Context, tenantID, slug string) (*CompositeTool, error)
	Operations(ctx context.Context, toolID string) ([]Operation, error)
	OperationByID(ctx context.Context, toolID, id string) (*Operation, error)
	Rules(ctx context.Context, toolID string) ([]RoutingRule, error)
}
