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

package session

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/edudao/scholarship/common"
)

// Role resolved from a connected wallet address
type Role string

const (
	// RoleRegular is any disconnected visitor
	RoleRegular Role = "regular"

	// RoleStudent is any connected address without a reserved role
	RoleStudent Role = "student"

	// RoleGovernment is the configured government officer address
	RoleGovernment Role = "government"

	// RoleFinancier is the configured financier address
	RoleFinancier Role = "financier"
)

// WalletAddressHeader carries the caller's connected wallet address
const WalletAddressHeader = "X-Wallet-Address"

// Session is the explicit per-request caller identity passed into every
// workflow operation
type Session struct {
	Address  string `json:"address,omitempty"`
	Role     Role   `json:"role"`
	Verified bool   `json:"verified"`
}

// ResolveRole maps a wallet address onto a role; the two reserved addresses
// are compared case-insensitively and every other non-empty address is a
// student by default
func ResolveRole(address string) Role {
	if address == "" {
		return RoleRegular
	}
	if strings.EqualFold(address, common.GovernmentAddress) {
		return RoleGovernment
	}
	if strings.EqualFold(address, common.FinancierAddress) {
		return RoleFinancier
	}
	return RoleStudent
}

// New returns the session for the given wallet address
func New(address string) *Session {
	return &Session{
		Address: address,
		Role:    ResolveRole(address),
	}
}

// Resolve builds the session for the current request from the wallet address
// header; a missing or malformed header yields a disconnected regular session
func Resolve(c *gin.Context) *Session {
	address := c.GetHeader(WalletAddressHeader)
	if address != "" && !common.ValidAddress(address) {
		common.Log.Warningf("ignoring malformed wallet address header: %s", address)
		address = ""
	}
	return New(address)
}

// Connected returns true when a wallet address is attached to the session
func (s *Session) Connected() bool {
	return s.Address != ""
}
