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
	"fmt"

	"github.com/uplinkhq/uplink/internal/catalog"
)

// credentialFragments are the disjoint request pieces a credential
// contributes. The request builder merges them last so credential values win
// over caller parameters.
type credentialFragments struct {
	headers map[string]string
	query   map[string]string
	body    map[string]any
}

func emptyFragments() credentialFragments {
	return credentialFragments{
		headers: map[string]string{},
		query:   map[string]string{},
		body:    map[string]any{},
	}
}

// applyCredential translates a credential into request fragments. The switch
// is exhaustive over the sealed variant set; a variant added to the catalog
// without a case here fails loudly at runtime rather than silently sending
// an unauthenticated request.
func applyCredential(cred catalog.Credential) (credentialFragments, error) {
	frags := emptyFragments()
	if cred == nil {
		return frags, nil
	}

	switch c := cred.(type) {
	case *catalog.OAuth2Credential:
		scheme := c.TokenType
		if scheme == "" {
			scheme = "Bearer"
		}
		frags.headers["Authorization"] = scheme + " " + c.AccessToken

	case *catalog.BearerCredential:
		frags.headers["Authorization"] = "Bearer " + c.Token

	case *catalog.BasicCredential:
		encoded := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.Password))
		frags.headers["Authorization"] = "Basic " + encoded

	case *catalog.APIKeyCredential:
		switch c.Placement {
		case catalog.PlacementQuery:
			frags.query[fieldNameOr(c.FieldName, "api_key")] = c.Key
		case catalog.PlacementBody:
			frags.body[fieldNameOr(c.FieldName, "api_key")] = c.Key
		default:
			frags.headers[fieldNameOr(c.FieldName, "X-API-Key")] = c.Key
		}

	case *catalog.CustomHeaderCredential:
		for name, value := range c.Headers {
			frags.headers[name] = value
		}
		if c.Token != "" {
			if _, set := frags.headers["Authorization"]; !set {
				frags.headers["Authorization"] = "Bearer " + c.Token
			}
		}

	default:
		return frags, fmt.Errorf("unhandled credential variant %q", cred.Kind())
	}

	return frags, nil
}

func fieldNameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
