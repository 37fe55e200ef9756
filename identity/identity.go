/*
 * Copyright 2017-2022 Provide Technologies Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/edudao/scholarship/common"
)

// Attributes optionally disclosed by the zero-knowledge credential flow
type Attributes struct {
	AgeAbove18 *bool   `json:"age_above_18,omitempty"`
	State      *string `json:"state,omitempty"`
	PinCode    *string `json:"pin_code,omitempty"`
}

// Status is the verifier's verdict for a wallet address
type Status struct {
	Verified   bool        `json:"verified"`
	Attributes *Attributes `json:"disclosed_attributes,omitempty"`
}

// Verifier is the consumed identity collaborator; the credential flow itself
// is an external black box
type Verifier interface {
	Status(ctx context.Context, address string) (*Status, error)
}

// DefaultVerifier resolves the identity verifier for the current configuration;
// without a configured verifier endpoint every address is unverified
func DefaultVerifier() Verifier {
	if common.IdentityVerifierURL != nil {
		return NewHTTPVerifier(*common.IdentityVerifierURL)
	}
	return &StaticVerifier{}
}

// StaticVerifier reports a fixed set of verified addresses; it backs tests and
// deployments without an external verifier
type StaticVerifier struct {
	VerifiedAddresses []string
	DisclosedAttrs    *Attributes
}

// Status reports verified iff the address is in the configured set
func (v *StaticVerifier) Status(_ context.Context, address string) (*Status, error) {
	for _, addr := range v.VerifiedAddresses {
		if strings.EqualFold(addr, address) {
			return &Status{Verified: true, Attributes: v.DisclosedAttrs}, nil
		}
	}
	return &Status{Verified: false}, nil
}

// HTTPVerifier queries an external identity verification service
type HTTPVerifier struct {
	endpoint string
	client   *http.Client
}

// NewHTTPVerifier returns a verifier bound to the given endpoint
func NewHTTPVerifier(endpoint string) *HTTPVerifier {
	return &HTTPVerifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: time.Second * 10},
	}
}

// Status fetches the verification status for the given address
func (v *HTTPVerifier) Status(ctx context.Context, address string) (*Status, error) {
	uri := fmt.Sprintf("%s/status?address=%s", strings.TrimSuffix(v.endpoint, "/"), url.QueryEscape(address))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}

	resp, err := v.client.Do(req)
	if err != nil {
		common.Log.Warningf("failed to query identity verifier; %s", err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity verifier returned status %d", resp.StatusCode)
	}

	status := &Status{}
	if err := json.NewDecoder(resp.Body).Decode(status); err != nil {
		return nil, err
	}
	return status, nil
}
