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

import "time"

// CredentialKind tags the closed set of credential variants.
type CredentialKind string

const (
	CredentialOAuth2       CredentialKind = "oauth2"
	CredentialAPIKey       CredentialKind = "api_key"
	CredentialBasic        CredentialKind = "basic"
	CredentialBearer       CredentialKind = "bearer"
	CredentialCustomHeader CredentialKind = "custom_header"
)

// CredentialStatus gates credential usability independent of the
// connection's own status.
type CredentialStatus string

const (
	CredentialActive      CredentialStatus = "active"
	CredentialExpired     CredentialStatus = "expired"
	CredentialRevoked     CredentialStatus = "revoked"
	CredentialNeedsReauth CredentialStatus = "needs_reauth"
)

// Credential is decrypted secret material for one connection, tagged by auth
// variant. The variant set is closed: the credential applicator switches
// exhaustively over the concrete types, and adding a variant without
// handling it there is a compile-visible omission (the sealed marker keeps
// outside packages from adding variants).
type Credential interface {
	Kind() CredentialKind
	Status() CredentialStatus

	// BaseURL returns the credential-level base URL override, or "".
	// It takes precedence over both connection and integration base URLs.
	BaseURL() string

	sealedCredential()
}

// CredentialMeta holds the fields shared by every variant. Embed it in each
// concrete credential type.
type CredentialMeta struct {
	State           CredentialStatus `json:"status" yaml:"status"`
	BaseURLOverride string           `json:"baseUrl,omitempty" yaml:"base_url,omitempty"`
}

func (m CredentialMeta) Status() CredentialStatus {
	if m.State == "" {
		return CredentialActive
	}
	return m.State
}

func (m CredentialMeta) BaseURL() string { return m.BaseURLOverride }

func (CredentialMeta) sealedCredential() {}

// OAuth2Credential carries a decrypted OAuth2 token set.
type OAuth2Credential struct {
	CredentialMeta `yaml:",inline"`

	AccessToken  string    `json:"accessToken" yaml:"access_token"`
	RefreshToken string    `json:"refreshToken,omitempty" yaml:"refresh_token,omitempty"`
	TokenType    string    `json:"tokenType,omitempty" yaml:"token_type,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt,omitempty" yaml:"expires_at,omitempty"`
}

func (*OAuth2Credential) Kind() CredentialKind { return CredentialOAuth2 }

// APIKeyPlacement says where an API key is injected into the request.
type APIKeyPlacement string

const (
	PlacementHeader APIKeyPlacement = "header"
	PlacementQuery  APIKeyPlacement = "query"
	PlacementBody   APIKeyPlacement = "body"
)

// APIKeyCredential carries a single API key plus its placement.
type APIKeyCredential struct {
	CredentialMeta `yaml:",inline"`

	Key       string          `json:"key" yaml:"key"`
	Placement APIKeyPlacement `json:"placement,omitempty" yaml:"placement,omitempty"`

	// FieldName is the header, query parameter, or body field carrying the
	// key. Defaults to "X-API-Key" for headers and "api_key" otherwise.
	FieldName string `json:"fieldName,omitempty" yaml:"field_name,omitempty"`
}

func (*APIKeyCredential) Kind() CredentialKind { return CredentialAPIKey }

// BasicCredential carries HTTP basic auth credentials.
type BasicCredential struct {
	CredentialMeta `yaml:",inline"`

	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

func (*BasicCredential) Kind() CredentialKind { return CredentialBasic }

// BearerCredential carries an opaque bearer token.
type BearerCredential struct {
	CredentialMeta `yaml:",inline"`

	Token string `json:"token" yaml:"token"`
}

func (*BearerCredential) Kind() CredentialKind { return CredentialBearer }

// CustomHeaderCredential carries a free-form header map. Historically this
// variant was stored as a bearer-typed record with a headers field; the
// optional Token preserves that shape and is applied as a bearer token when
// present.
type CustomHeaderCredential struct {
	CredentialMeta `yaml:",inline"`

	Headers map[string]string `json:"headers" yaml:"headers"`
	Token   string            `json:"token,omitempty" yaml:"token,omitempty"`
}

func (*CustomHeaderCredential) Kind() CredentialKind { return CredentialCustomHeader }
