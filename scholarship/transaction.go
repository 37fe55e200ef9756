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

// TransactionStatusPending is written before the on-chain payment is
// submitted; a pending row with no transaction hash marks a funding attempt
// that never confirmed
const TransactionStatusPending = "pending"
const TransactionStatusConfirmed = "confirmed"
const TransactionStatusFailed = "failed"

// Transaction is the append-only funding receipt linking a financier, a
// recipient and the on-chain transfer
type Transaction struct {
	ID        uuid.UUID `sql:"primary_key;type:uuid" json:"id"`
	CreatedAt time.Time `sql:"not null" json:"created_at"`

	ScholarshipID    uuid.UUID `sql:"not null;type:uuid" json:"scholarship_id"`
	ApplicationID    uuid.UUID `sql:"not null;type:uuid" json:"application_id"`
	FinancierAddress *string   `sql:"not null" json:"financier_address"`
	RecipientAddress *string   `sql:"not null" json:"recipient_address"`
	Amount           float64   `sql:"not null" json:"amount"`
	TransactionHash  *string   `json:"transaction_hash,omitempty"`
	Status           *string   `sql:"not null;default:'pending'" json:"status"`

	Errors []*provide.Error `sql:"-" json:"-"`
}

func (t *Transaction) insert(db *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID, _ = uuid.NewV4()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Status == nil {
		t.Status = common.StringOrNil(TransactionStatusPending)
	}

	result := db.Create(&t)
	if errs := result.GetErrors(); len(errs) > 0 {
		for _, err := range errs {
			t.Errors = append(t.Errors, &provide.Error{
				Message: common.StringOrNil(err.Error()),
			})
		}
		return errs[0]
	}
	return nil
}

func (t *Transaction) update(db *gorm.DB) error {
	result := db.Save(&t)
	if errs := result.GetErrors(); len(errs) > 0 {
		for _, err := range errs {
			t.Errors = append(t.Errors, &provide.Error{
				Message: common.StringOrNil(err.Error()),
			})
		}
		return errs[0]
	}
	return nil
}

// FindTransaction resolves a transaction by id, returning nil when no row
// exists
func FindTransaction(db *gorm.DB, transactionID uuid.UUID) *Transaction {
	t := &Transaction{}
	db.Where("transactions.id = ?", transactionID).Find(&t)
	if t == nil || t.ID == uuid.Nil {
		return nil
	}
	return t
}

// ListTransactions lists funding receipts, newest first
func ListTransactions(db *gorm.DB) []*Transaction {
	var transactions []*Transaction
	db.Order("created_at DESC").Find(&transactions)
	return transactions
}
