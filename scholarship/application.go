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

const ApplicationStatusPending = "pending"
const ApplicationStatusApproved = "approved"

// Application is a student's request to be the recipient of a scholarship; at
// most one application exists per (scholarship, applicant) pair, enforced by a
// unique index at the store layer
type Application struct {
	ID        uuid.UUID `sql:"primary_key;type:uuid" json:"id"`
	CreatedAt time.Time `sql:"not null" json:"created_at"`

	ScholarshipID    uuid.UUID `sql:"not null;type:uuid" json:"scholarship_id"`
	ApplicantAddress *string   `sql:"not null" json:"applicant_address"`
	Status           *string   `sql:"not null;default:'pending'" json:"status"`

	Errors []*provide.Error `sql:"-" json:"-"`
}

func (a *Application) insert(db *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID, _ = uuid.NewV4()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.Status == nil {
		a.Status = common.StringOrNil(ApplicationStatusPending)
	}

	result := db.Create(&a)
	if errs := result.GetErrors(); len(errs) > 0 {
		for _, err := range errs {
			a.Errors = append(a.Errors, &provide.Error{
				Message: common.StringOrNil(err.Error()),
			})
		}
		return errs[0]
	}
	return nil
}

func (a *Application) updateStatus(db *gorm.DB, status string) error {
	a.Status = common.StringOrNil(status)
	result := db.Save(&a)
	if errs := result.GetErrors(); len(errs) > 0 {
		for _, err := range errs {
			a.Errors = append(a.Errors, &provide.Error{
				Message: common.StringOrNil(err.Error()),
			})
		}
		return errs[0]
	}
	return nil
}

// FindApplication resolves an application by id, returning nil when no row
// exists
func FindApplication(db *gorm.DB, applicationID uuid.UUID) *Application {
	a := &Application{}
	db.Where("applications.id = ?", applicationID).Find(&a)
	if a == nil || a.ID == uuid.Nil {
		return nil
	}
	return a
}

// applicationsFor lists the applications an applicant has filed against the
// given scholarship; under correct workflow usage at most one row exists
func applicationsFor(db *gorm.DB, scholarshipID uuid.UUID, applicantAddress string) []*Application {
	var applications []*Application
	db.Where(
		"applications.scholarship_id = ? AND lower(applications.applicant_address) = lower(?)",
		scholarshipID,
		applicantAddress,
	).Find(&applications)
	return applications
}

// ListApplications lists applications, optionally filtered by applicant
// address
func ListApplications(db *gorm.DB, applicantAddress *string) []*Application {
	var applications []*Application
	query := db.Order("created_at DESC")
	if applicantAddress != nil {
		query = query.Where("lower(applications.applicant_address) = lower(?)", *applicantAddress)
	}
	query.Find(&applications)
	return applications
}
