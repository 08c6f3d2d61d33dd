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
	"context"
	"errors"
	"time"

	"github.com/uplinkhq/uplink/internal/catalog"
	"github.com/uplinkhq/uplink/pkg/envelope"
)

// InvocationContext is everything the pipeline needs about the target:
// definitions plus the resolved connection and decrypted credential.
type InvocationContext struct {
	Integration *catalog.Integration
	Action      *catalog.Action
	Connection  *catalog.Connection

	// Credential is nil when the integration's auth type is none, and on
	// the direct path until the pipeline fetches it after input validation.
	Credential catalog.Credential
}

// Loader resolves invocation context from the catalog stores.
type Loader struct {
	Integrations catalog.IntegrationStore
	Actions      catalog.ActionStore
	Connections  catalog.ConnectionResolver
	Credentials  catalog.CredentialSource
}

// Load resolves by slugs, the direct invocation path. The credential is NOT
// fetched here; the pipeline fetches it after input validation, so invalid
// input wins over a missing credential.
func (l *Loader) Load(ctx context.Context, tenantID, integrationSlug, actionSlug, connectionID string) (*InvocationContext, *Error) {
	integration, err := l.Integrations.IntegrationBySlug(ctx, tenantID, integrationSlug)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, Errorf(envelope.CodeIntegrationNotFound, "integration %q not found", integrationSlug)
		}
		return nil, &Error{Code: envelope.CodeInternalError, Message: "integration lookup failed", Cause: err}
	}

	action, err := l.Actions.ActionBySlug(ctx, tenantID, integration.ID, actionSlug)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, Errorf(envelope.CodeActionNotFound, "action %q not found for integration %q", actionSlug, integrationSlug)
		}
		return nil, &Error{Code: envelope.CodeInternalError, Message: "action lookup failed", Cause: err}
	}

	return l.finish(ctx, tenantID, integration, action, connectionID, false)
}

// LoadForAction resolves by action id, the composite routing path where the
// selected operation already pins the action. The composite handler's
// context-loading phase owns the credential fetch, so it happens here.
func (l *Loader) LoadForAction(ctx context.Context, tenantID, actionID, connectionID string) (*InvocationContext, *Error) {
	action, err := l.Actions.ActionByID(ctx, tenantID, actionID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, Errorf(envelope.CodeActionNotFound, "action %q not found", actionID)
		}
		return nil, &Error{Code: envelope.CodeInternalError, Message: "action lookup failed", Cause: err}
	}

	integration, err := l.Integrations.IntegrationByID(ctx, tenantID, action.IntegrationID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, Errorf(envelope.CodeIntegrationNotFound, "integration for action %q not found", action.Slug)
		}
		return nil, &Error{Code: envelope.CodeInternalError, Message: "integration lookup failed", Cause: err}
	}

	return l.finish(ctx, tenantID, integration, action, connectionID, true)
}

func (l *Loader) finish(ctx context.Context, tenantID string, integration *catalog.Integration, action *catalog.Action, connectionID string, withCredential bool) (*InvocationContext, *Error) {
	// A cross-tenant hit reads as not-found so existence never leaks.
	if integration.TenantID != tenantID {
		return nil, Errorf(envelope.CodeIntegrationNotFound, "integration %q not found", integration.Slug)
	}
	if integration.Status == catalog.IntegrationDisabled {
		return nil, Errorf(envelope.CodeIntegrationDisabled, "integration %q is disabled", integration.Slug)
	}

	connection, err := l.Connections.ResolveConnection(ctx, tenantID, integration.ID, connectionID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, Errorf(envelope.CodeConfigurationError, "connection %q not found for integration %q", connectionID, integration.Slug)
		}
		return nil, &Error{Code: envelope.CodeInternalError, Message: "connection resolution failed", Cause: err}
	}
	if !connection.Usable() {
		return nil, Errorf(envelope.CodeConfigurationError, "connection %q for integration %q is not usable", connection.ID, integration.Slug)
	}

	ictx := &InvocationContext{Integration: integration, Action: action, Connection: connection}

	if withCredential && integration.AuthType != catalog.AuthNone {
		cred, credErr := l.LoadCredential(ctx, tenantID, integration, connection.ID)
		if credErr != nil {
			return nil, credErr
		}
		ictx.Credential = cred
	}
	return ictx, nil
}

// LoadCredential fetches and checks the decrypted credential for a resolved
// connection. Absent maps to CREDENTIALS_MISSING, expired or needs_reauth to
// CREDENTIALS_EXPIRED, revoked to CREDENTIALS_MISSING.
func (l *Loader) LoadCredential(ctx context.Context, tenantID string, integration *catalog.Integration, connectionID string) (catalog.Credential, *Error) {
	cred, err := l.Credentials.DecryptedCredential(ctx, integration.ID, tenantID, connectionID)
	if err != nil {
		return nil, &Error{Code: envelope.CodeInternalError, Message: "credential fetch failed", Cause: err}
	}
	if cred == nil {
		return nil, Errorf(envelope.CodeCredentialsMissing,
			"no credential stored for integration %q; connect the account first", integration.Slug)
	}

	switch cred.Status() {
	case catalog.CredentialExpired, catalog.CredentialNeedsReauth:
		return nil, Errorf(envelope.CodeCredentialsExpired,
			"credential for integration %q requires re-authentication", integration.Slug)
	case catalog.CredentialRevoked:
		return nil, Errorf(envelope.CodeCredentialsMissing,
			"credential for integration %q was revoked; connect the account again", integration.Slug)
	}

	if oauth, ok := cred.(*catalog.OAuth2Credential); ok && !oauth.ExpiresAt.IsZero() && time.Now().After(oauth.ExpiresAt) {
		return nil, Errorf(envelope.CodeCredentialsExpired,
			"OAuth2 token for integration %q expired", integration.Slug)
	}
	return cred, nil
}
