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
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jinzhu/gorm"
	uuid "github.com/kthomas/go.uuid"

	"github.com/edudao/scholarship/common"
	"github.com/edudao/scholarship/session"
	"github.com/edudao/scholarship/wallet"
)

// CreateScholarshipParams are the caller-supplied proposal fields; everything
// else is assigned by the workflow
type CreateScholarshipParams struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	Deadline    time.Time `json:"deadline"`
}

// Every mutating operation below applies its guards in the same order so the
// caller always receives the most specific actionable failure: connectivity,
// then authorization, then target resolution and state, then idempotency.

// CreateScholarship inserts a new pending proposal on behalf of the government
// officer
func CreateScholarship(db *gorm.DB, sess *session.Session, params *CreateScholarshipParams) (*Scholarship, error) {
	if !sess.Connected() {
		return nil, common.NewError(common.ErrCodeNotConnected, "connect a wallet to create a scholarship")
	}
	if sess.Role != session.RoleGovernment {
		return nil, common.NewError(common.ErrCodeNotAuthorized, "only government officers can create scholarships")
	}

	s := &Scholarship{
		Title:          common.StringOrNil(params.Title),
		Description:    common.StringOrNil(params.Description),
		Amount:         params.Amount,
		CreatorAddress: common.StringOrNil(sess.Address),
		Status:         common.StringOrNil(ScholarshipStatusPending),
		Deadline:       params.Deadline,
	}

	if err := s.validate(); err != nil {
		return nil, err
	}

	if err := s.insert(db); err != nil {
		return nil, common.WrapError(common.ErrCodeBackendUnavailable, "failed to create scholarship", err)
	}

	common.Log.Debugf("created scholarship %s by %s", s.ID, sess.Address)
	afterMutation(eventScholarshipCreated, s.ID)
	return s, nil
}

// CastVote records a for/against signal on a pending scholarship; voting is
// advisory and never transitions the scholarship status
func CastVote(db *gorm.DB, sess *session.Session, scholarshipID uuid.UUID, voteType bool) (*Vote, error) {
	if !sess.Connected() {
		return nil, common.NewError(common.ErrCodeNotConnected, "connect a wallet to vote")
	}

	s := FindScholarship(db, scholarshipID)
	if s == nil {
		return nil, common.NewError(common.ErrCodeNotFound, "scholarship not found")
	}
	if s.Status == nil || *s.Status != ScholarshipStatusPending {
		return nil, common.NewError(common.ErrCodeInvalidState, "voting is only open while a scholarship is pending")
	}

	if existing := voteFor(db, scholarshipID, sess.Address); existing != nil {
		return existing, common.NewError(common.ErrCodeAlreadyDone, "you have already voted on this scholarship")
	}

	v := &Vote{
		ScholarshipID: scholarshipID,
		VoterAddress:  common.StringOrNil(sess.Address),
		VoteType:      voteType,
	}

	if err := v.insert(db); err != nil {
		// the pre-check is not atomic with the insert; the store-level unique
		// index closes the race and a violation is the duplicate-vote outcome
		if isUniqueViolation(err) {
			if existing := voteFor(db, scholarshipID, sess.Address); existing != nil {
				return existing, common.NewError(common.ErrCodeAlreadyDone, "you have already voted on this scholarship")
			}
		}
		return nil, common.WrapError(common.ErrCodeBackendUnavailable, "failed to record vote", err)
	}

	common.Log.Debugf("recorded %s vote on scholarship %s by %s", voteVerb(voteType), scholarshipID, sess.Address)
	afterMutation(eventScholarshipVoted, scholarshipID)
	return v, nil
}

// ApplyForScholarship files an application on a pending scholarship; a repeat
// application by the same address is a benign no-op returning the existing row
func ApplyForScholarship(db *gorm.DB, sess *session.Session, scholarshipID uuid.UUID) (*Application, error) {
	if !sess.Connected() {
		return nil, common.NewError(common.ErrCodeNotConnected, "connect a wallet to apply")
	}
	if common.IdentityVerificationRequired && !sess.Verified {
		return nil, common.NewError(common.ErrCodeNotAuthorized, "identity verification is required to apply")
	}

	s := FindScholarship(db, scholarshipID)
	if s == nil {
		return nil, common.NewError(common.ErrCodeNotFound, "scholarship not found")
	}
	if s.Status == nil || *s.Status != ScholarshipStatusPending {
		return nil, common.NewError(common.ErrCodeInvalidState, "applications are only open while a scholarship is pending")
	}

	if existing := applicationsFor(db, scholarshipID, sess.Address); len(existing) > 0 {
		return existing[0], common.NewError(common.ErrCodeAlreadyDone, "you have already applied for this scholarship")
	}

	a := &Application{
		ScholarshipID:    scholarshipID,
		ApplicantAddress: common.StringOrNil(sess.Address),
		Status:           common.StringOrNil(ApplicationStatusPending),
	}

	if err := a.insert(db); err != nil {
		if isUniqueViolation(err) {
			if existing := applicationsFor(db, scholarshipID, sess.Address); len(existing) > 0 {
				return existing[0], common.NewError(common.ErrCodeAlreadyDone, "you have already applied for this scholarship")
			}
		}
		return nil, common.WrapError(common.ErrCodeBackendUnavailable, "failed to file application", err)
	}

	common.Log.Debugf("filed application %s for scholarship %s by %s", a.ID, scholarshipID, sess.Address)
	afterMutation(eventScholarshipApplied, scholarshipID)
	return a, nil
}

// ApproveScholarship designates the recipient of a pending scholarship: the
// recipient's application and the scholarship both transition to approved.
// Approving a scholarship that has already left the pending state is rejected.
func ApproveScholarship(db *gorm.DB, sess *session.Session, scholarshipID uuid.UUID, recipientAddress string) (*Application, error) {
	if !sess.Connected() {
		return nil, common.NewError(common.ErrCodeNotConnected, "connect a wallet to approve a scholarship")
	}
	if sess.Role != session.RoleGovernment {
		return nil, common.NewError(common.ErrCodeNotAuthorized, "only government officers can approve scholarships")
	}

	s := FindScholarship(db, scholarshipID)
	if s == nil {
		return nil, common.NewError(common.ErrCodeNotFound, "scholarship not found")
	}
	if s.Status == nil || *s.Status != ScholarshipStatusPending {
		return nil, common.NewError(
			common.ErrCodeInvalidState,
			fmt.Sprintf("scholarship is %s; only pending scholarships can be approved", statusOrUnknown(s.Status)),
		)
	}

	applications := applicationsFor(db, scholarshipID, recipientAddress)
	if len(applications) == 0 {
		return nil, common.NewError(common.ErrCodeNotFound, "application not found for the given recipient")
	}

	// prefer an already-approved row; otherwise the first match
	application := applications[0]
	for _, a := range applications {
		if a.Status != nil && *a.Status == ApplicationStatusApproved {
			application = a
			break
		}
	}

	if err := application.updateStatus(db, ApplicationStatusApproved); err != nil {
		return nil, common.WrapError(common.ErrCodeBackendUnavailable, "failed to approve application", err)
	}
	if err := s.updateStatus(db, ScholarshipStatusApproved); err != nil {
		return nil, common.WrapError(common.ErrCodeBackendUnavailable, "failed to approve scholarship", err)
	}

	common.Log.Debugf("approved scholarship %s for recipient %s", scholarshipID, recipientAddress)
	afterMutation(eventScholarshipApproved, scholarshipID)
	return application, nil
}

// FundScholarship transfers the scholarship amount to the approved recipient
// and completes the lifecycle. A pending receipt is written before the payment
// is submitted; if the confirmation bookkeeping fails after the transfer lands
// on-chain, a settlement message covers idempotent recovery.
func FundScholarship(
	ctx context.Context,
	db *gorm.DB,
	sess *session.Session,
	provider wallet.Provider,
	scholarshipID uuid.UUID,
	applicationID uuid.UUID,
) (*Transaction, error) {
	if !sess.Connected() {
		return nil, common.NewError(common.ErrCodeNotConnected, "connect a wallet to fund a scholarship")
	}
	if sess.Role != session.RoleFinancier {
		return nil, common.NewError(common.ErrCodeNotAuthorized, "only financiers can fund scholarships")
	}

	application := FindApplication(db, applicationID)
	if application == nil || application.Status == nil || *application.Status != ApplicationStatusApproved {
		return nil, common.NewError(common.ErrCodeNotFound, "approved application not found")
	}
	if application.ScholarshipID != scholarshipID {
		return nil, common.NewError(common.ErrCodeNotFound, "application does not belong to the given scholarship")
	}

	s := FindScholarship(db, scholarshipID)
	if s == nil || s.Status == nil || *s.Status != ScholarshipStatusApproved {
		return nil, common.NewError(common.ErrCodeNotFound, "approved scholarship not found")
	}

	if provider == nil {
		return nil, common.NewError(common.ErrCodeWalletUnavailable, "no wallet provider available")
	}

	t := &Transaction{
		ScholarshipID:    scholarshipID,
		ApplicationID:    applicationID,
		FinancierAddress: common.StringOrNil(sess.Address),
		RecipientAddress: application.ApplicantAddress,
		Amount:           s.Amount,
		Status:           common.StringOrNil(TransactionStatusPending),
	}
	if err := t.insert(db); err != nil {
		return nil, common.WrapError(common.ErrCodeBackendUnavailable, "failed to record funding receipt", err)
	}

	receipt, err := provider.SendPayment(ctx, *application.ApplicantAddress, s.Amount)
	if err != nil {
		t.Status = common.StringOrNil(TransactionStatusFailed)
		if updateErr := t.update(db); updateErr != nil {
			common.Log.Warningf("failed to mark funding receipt %s failed; %s", t.ID, updateErr.Error())
		}
		if common.ErrorCode(err) != "" {
			return nil, err
		}
		return nil, common.WrapError(common.ErrCodePaymentFailed, "payment submission failed", err)
	}

	if err := settleFunding(db, t, receipt.TransactionHash); err != nil {
		// the transfer landed on-chain; hand recovery to the settlement consumer
		common.Log.Warningf("payment %s confirmed but settlement bookkeeping failed; deferring; %s", receipt.TransactionHash, err.Error())
		dispatchFundingSettlement(t.ID, receipt.TransactionHash)
		t.TransactionHash = common.StringOrNil(receipt.TransactionHash)
		return t, nil
	}

	common.Log.Debugf("funded scholarship %s with %f %s to %s", scholarshipID, s.Amount, common.NativeCurrencySymbol, *application.ApplicantAddress)
	afterMutation(eventScholarshipFunded, scholarshipID)
	return t, nil
}

// settleFunding finalizes the bookkeeping for a confirmed on-chain transfer:
// the receipt is marked confirmed and the scholarship completed; idempotent
func settleFunding(db *gorm.DB, t *Transaction, transactionHash string) error {
	if t.Status == nil || *t.Status != TransactionStatusConfirmed {
		t.TransactionHash = common.StringOrNil(transactionHash)
		t.Status = common.StringOrNil(TransactionStatusConfirmed)
		if err := t.update(db); err != nil {
			return err
		}
	}

	s := FindScholarship(db, t.ScholarshipID)
	if s == nil {
		return fmt.Errorf("scholarship %s not found during funding settlement", t.ScholarshipID)
	}
	if s.Status != nil && *s.Status == ScholarshipStatusCompleted {
		return nil
	}
	return s.updateStatus(db, ScholarshipStatusCompleted)
}

func statusOrUnknown(status *string) string {
	if status == nil {
		return "unknown"
	}
	return *status
}

func voteVerb(voteType bool) string {
	if voteType {
		return "for"
	}
	return "against"
}

// isUniqueViolation matches uniqueness constraint failures across the
// supported store dialects
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

// afterMutation invalidates the cached read-model and broadcasts the
// lifecycle event
func afterMutation(event string, scholarshipID uuid.UUID) {
	InvalidateViewsCache()
	dispatchNotification(event, scholarshipID)
}
