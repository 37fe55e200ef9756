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

package common

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"
)

const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var seededRand *rand.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))

var addressRegexp = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// PanicIfEmpty panics if the given string is empty
func PanicIfEmpty(val string, msg string) {
	if val == "" {
		panic(msg)
	}
}

// StringOrNil returns the given string or nil when empty
func StringOrNil(str string) *string {
	if str == "" {
		return nil
	}
	return &str
}

// RandomString generates a random string of the given length
func RandomString(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[seededRand.Intn(len(charset))]
	}
	return string(b)
}

// ValidAddress returns true when the given string is a well-formed 0x-prefixed address
func ValidAddress(addr string) bool {
	return addressRegexp.MatchString(addr)
}

// FormatAddress abbreviates an address for display, i.e. 0x303C...1ff1
func FormatAddress(addr string) string {
	if len(addr) < 10 {
		return addr
	}
	return fmt.Sprintf("%s...%s", addr[0:6], addr[len(addr)-4:])
}

// SameAddress compares two addresses case-insensitively
func SameAddress(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}
