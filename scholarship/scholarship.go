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

const ScholarshipStatusPending = "pending"
const ScholarshipStatusApproved = "approved"

// ScholarshipStatusRejected is a reachable terminal state reserved for an
// administrative path; no exposed operation currently transitions into it
const ScholarshipStatusRejected = "rejected"
const ScholarshipStatusCompleted = "completed"

// Scholarship is a funding proposal with an amount, deadline and lifecycle
// status; vote tallies, applicants and the resolved recipient are never stored
// here but derived from the vote and application tables on every read
type Scholarship struct {
	ID        uuid.UUID `sql:"primary_key;type:uuid" json:"id"`
	CreatedAt time.Time `sql:"not null" json:"created_at"`

	Title          *string   `sql:"not null" json:"title"`
	Description    *string   `sql:"not null" json:"description"`
	Amount         float64   `sql:"not null" json:"amount"`
	CreatorAddress *string   `sql:"not null" json:"creator_address"`
	Status         *string   `sql:"not null;default:'pending'" json:"status"`
	Deadline       time.Time `sql:"not null" json:"deadline"`

	Errors []*provide.Error `sql:"-" json:"-"`
}

// validate the proposal params prior to insert
func (s *Scholarship) validate() *common.Error {
	if s.Title == nil || *s.Title == "" {
		return common.NewError(common.ErrCodeValidationFailed, "title is required")
	}
	if s.Description == nil || *s.Description == "" {
		return common.NewError(common.ErrCodeValidationFailed, "description is required")
	}
	if s.Amount <= 0 {
		return common.NewError(common.ErrCodeValidationFailed, "amount must be greater than zero")
	}
	if !s.Deadline.After(time.Now()) {
		return common.NewError(common.ErrCodeValidationFailed, "deadline must be in the future")
	}
	return nil
}

func (s *Scholarship) insert(db *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID, _ = uuid.NewV4()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if s.Status == nil {
		s.Status = common.StringOrNil(ScholarshipStatusPending)
	}

	result := db.Create(&s)
	if errs := result.GetErrors(); len(errs) > 0 {
		for _, err := range errs {
			s.Errors = append(s.Errors, &provide.Error{
				Message: common.StringOrNil(err.Error()),
			})
		}
		return errs[0]
	}
	return nil
}

func (s *Scholarship) updateStatus(db *gorm.DB, status string) error {
	s.Status = common.StringOrNil(status)
	result := db.Save(&s)
	if errs := result.GetErrors(); len(errs) > 0 {
		for _, err := range errs {
			s.Errors = append(s.Errors, &provide.Error{
				Message: common.StringOrNil(err.Error()),
			})
		}
		return errs[0]
	}
	return nil
}

// FindScholarship resolves a scholarship by id, returning nil when no row
// exists
func FindScholarship(db *gorm.DB, scholarshipID uuid.UUID) *Scholarship {
	s := &Scholarship{}
	db.Where("scholarships.id = ?", scholarshipID).Find(&s)
	if s == nil || s.ID == uuid.Nil {
		return nil
	}
	return s
}
