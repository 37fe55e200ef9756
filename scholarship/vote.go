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

package scholarship

import (
	"time"

	"github.com/jinzhu/gorm"
	uuid "github.com/kthomas/go.uuid"
	provide "github.com/provideplatform/provide-go/api"

	"github.com/edudao/scholarship/common"
)

// Vote is a single address's advisory for/against signal on a scholarship;
// immutable once cast, at most one per (scholarship, voter) pair
type Vote struct {
	ID        uuid.UUID `sql:"primary_key;type:uuid" json:"id"`
	CreatedAt time.Time `sql:"not null" json:"created_at"`

	ScholarshipID uuid.UUID `sql:"not null;type:uuid" json:"scholarship_id"`
	VoterAddress  *string   `sql:"not null" json:"voter_address"`
	VoteType      bool      `sql:"not null" json:"vote_type"`

	Errors []*provide.Error `sql:"-" json:"-"`
}

func (v *Vote) insert(db *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID, _ = uuid.NewV4()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	result := db.Create(&v)
	if errs := result.GetErrors(); len(errs) > 0 {
		for _, err := range errs {
			v.Errors = append(v.Errors, &provide.Error{
				Message: common.StringOrNil(err.Error()),
			})
		}
		return errs[0]
	}
	return nil
}

// voteFor resolves the vote a voter has cast on the given scholarship,
// returning nil when none exists
func voteFor(db *gorm.DB, scholarshipID uuid.UUID, voterAddress string) *Vote {
	v := &Vote{}
	db.Where(
		"votes.scholarship_id = ? AND lower(votes.voter_address) = lower(?)",
		scholarshipID,
		voterAddress,
	).Find(&v)
	if v == nil || v.ID == uuid.Nil {
		return nil
	}
	return v
}
