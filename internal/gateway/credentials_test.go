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
	"encoding/base64"
	"testing"

	"github.com/uplinkhq/uplink/internal/catalog"
)

func TestApplyCredentialVariants(t *testing.T) {
	tests := []struct {
		name       string
		cred       catalog.Credential
		wantHeader map[string]string
		wantQuery  map[string]string
		wantBody   map[string]any
	}{
		{
			name:       "nil contributes nothing",
			cred:       nil,
			wantHeader: map[string]string{},
		},
		{
			name:       "oauth2 default scheme",
			cred:       &catalog.OAuth2Credential{AccessToken: "at"},
			wantHeader: map[string]string{"Authorization": "Bearer at"},
		},
		{
			name:       "oauth2 custom token type",
			cred:       &catalog.OAuth2Credential{AccessToken: "at", TokenType: "MAC"},
			wantHeader: map[string]string{"Authorization": "MAC at"},
		},
		{
			name:       "bearer",
			cred:       &catalog.BearerCredential{Token: "tok"},
			wantHeader: map[string]string{"Authorization": "Bearer tok"},
		},
		{
			name: "basic",
			cred: &catalog.BasicCredential{Username: "u", Password: "p"},
			wantHeader: map[string]string{
				"Authorization": "Basic " + base64.StdEncoding.EncodeToString([]byte("u:p")),
			},
		},
		{
			name:       "api key header default name",
			cred:       &catalog.APIKeyCredential{Key: "k"},
			wantHeader: map[string]string{"X-API-Key": "k"},
		},
		{
			name:      "api key query",
			cred:      &catalog.APIKeyCredential{Key: "k", Placement: catalog.PlacementQuery, FieldName: "token"},
			wantQuery: map[string]string{"token": "k"},
		},
		{
			name:     "api key body",
			cred:     &catalog.APIKeyCredential{Key: "k", Placement: catalog.PlacementBody},
			wantBody: map[string]any{"api_key": "k"},
		},
		{
			name: "custom header with legacy bearer token",
			cred: &catalog.CustomHeaderCredential{
				Headers: map[string]string{"X-Custom": "v"},
				Token:   "tok",
			},
			wantHeader: map[string]string{"X-Custom": "v", "Authorization": "Bearer tok"},
		},
		{
			name: "custom header explicit authorization wins over token",
			cred: &catalog.CustomHeaderCredential{
				Headers: map[string]string{"Authorization": "Custom scheme"},
				Token:   "tok",
			},
			wantHeader: map[string]string{"Authorization": "Custom scheme"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frags, err := applyCredential(tt.cred)
			if err != nil {
				t.Fatal(err)
			}
			for name, want := range tt.wantHeader {
				if frags.headers[name] != want {
					t.Errorf("header %s = %q, want %q", name, frags.headers[name], want)
				}
			}
			for name, want := range tt.wantQuery {
				if frags.query[name] != want {
					t.Errorf("query %s = %q, want %q", name, frags.query[name], want)
				}
			}
			for name, want := range tt.wantBody {
				if frags.body[name] != want {
					t.Errorf("body %s = %v, want %v", name, frags.body[name], want)
				}
			}
		})
	}
}
