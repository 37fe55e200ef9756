package scholarship

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	uuid "github.com/kthomas/go.uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edudao/scholarship/common"
	"github.com/edudao/scholarship/session"
	"github.com/edudao/scholarship/wallet"
)

const studentAddress = "0x388175a170a0d8fcb99ff8867c00860fcf95a7cc"
const voterAddress = "0x0000000000000000000000000000000000000002"

func testDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open("sqlite3", ":memory:")
	require.NoError(t, err)

	// a single connection keeps every statement on the same in-memory store
	db.DB().SetMaxOpenConns(1)

	require.Empty(t, db.AutoMigrate(&Scholarship{}, &Application{}, &Vote{}, &Transaction{}).GetErrors())

	// same lowered-expression uniqueness the production schema enforces
	require.Empty(t, db.Model(&Vote{}).AddUniqueIndex("idx_votes_scholarship_voter", "scholarship_id", "lower(voter_address)").GetErrors())
	require.Empty(t, db.Model(&Application{}).AddUniqueIndex("idx_applications_scholarship_applicant", "scholarship_id", "lower(applicant_address)").GetErrors())

	t.Cleanup(func() { db.Close() })
	return db
}

func governmentSession() *session.Session {
	return session.New(common.GovernmentAddress)
}

func financierSession() *session.Session {
	return session.New(common.FinancierAddress)
}

func studentSession(address string) *session.Session {
	return session.New(address)
}

func createParamsFactory() *CreateScholarshipParams {
	return &CreateScholarshipParams{
		Title:       "CS Scholarship",
		Description: "For students pursuing a degree in computer science",
		Amount:      0.5,
		Deadline:    time.Now().Add(time.Hour * 24 * 30),
	}
}

func createTestScholarship(t *testing.T, db *gorm.DB) *Scholarship {
	s, err := CreateScholarship(db, governmentSession(), createParamsFactory())
	require.NoError(t, err)
	return s
}

func approveTestScholarship(t *testing.T, db *gorm.DB, s *Scholarship, applicant string) *Application {
	_, err := ApplyForScholarship(db, studentSession(applicant), s.ID)
	require.NoError(t, err)

	a, err := ApproveScholarship(db, governmentSession(), s.ID, applicant)
	require.NoError(t, err)
	return a
}

type scriptedProvider struct {
	to     string
	amount float64
	calls  int
	hash   string
	err    error
}

func (p *scriptedProvider) ChainID(_ context.Context) (uint64, error) {
	return common.ChainID, nil
}

func (p *scriptedProvider) SendPayment(_ context.Context, toAddress string, amount float64) (*wallet.Receipt, error) {
	p.calls++
	p.to = toAddress
	p.amount = amount
	if p.err != nil {
		return nil, p.err
	}
	return &wallet.Receipt{TransactionHash: p.hash}, nil
}

func TestCreateScholarship(t *testing.T) {
	db := testDB(t)

	s, err := CreateScholarship(db, governmentSession(), createParamsFactory())
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.NotEqual(t, uuid.Nil, s.ID)
	assert.Equal(t, ScholarshipStatusPending, *s.Status)
	assert.Equal(t, common.GovernmentAddress, *s.CreatorAddress)

	view := FindView(db, s.ID)
	require.NotNil(t, view)
	assert.Equal(t, VoteTally{For: 0, Against: 0}, view.Votes)
	assert.Empty(t, view.Applicants)
	assert.Empty(t, view.Voters)
	assert.Nil(t, view.Recipient)
}

func TestCreateScholarshipValidation(t *testing.T) {
	db := testDB(t)

	params := createParamsFactory()
	params.Title = ""
	_, err := CreateScholarship(db, governmentSession(), params)
	assert.True(t, common.IsErrorCode(err, common.ErrCodeValidationFailed))

	params = createParamsFactory()
	params.Description = ""
	_, err = CreateScholarship(db, governmentSession(), params)
	assert.True(t, common.IsErrorCode(err, common.ErrCodeValidationFailed))

	params = createParamsFactory()
	params.Amount = 0
	_, err = CreateScholarship(db, governmentSession(), params)
	assert.True(t, common.IsErrorCode(err, common.ErrCodeValidationFailed))

	params = createParamsFactory()
	params.Deadline = time.Now().Add(-time.Hour)
	_, err = CreateScholarship(db, governmentSession(), params)
	assert.True(t, common.IsErrorCode(err, common.ErrCodeValidationFailed))

	var count int
	db.Model(&Scholarship{}).Count(&count)
	assert.Equal(t, 0, count)
}

func TestCreateScholarshipAuthorization(t *testing.T) {
	db := testDB(t)

	_, err := CreateScholarship(db, studentSession(studentAddress), createParamsFactory())
	assert.True(t, common.IsErrorCode(err, common.ErrCodeNotAuthorized))

	_, err = CreateScholarship(db, financierSession(), createParamsFactory())
	assert.True(t, common.IsErrorCode(err, common.ErrCodeNotAuthorized))

	// disconnected caller fails the connectivity check before authorization
	_, err = CreateScholarship(db, session.New(""), createParamsFactory())
	assert.True(t, common.IsErrorCode(err, common.ErrCodeNotConnected))

	var count int
	db.Model(&Scholarship{}).Count(&count)
	assert.Equal(t, 0, count)
}

func TestCastVote(t *testing.T) {
	db := testDB(t)
	s := createTestScholarship(t, db)

	v, err := CastVote(db, studentSession(voterAddress), s.ID, true)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.True(t, v.VoteType)

	// a second vote by the same address is a benign no-op, regardless of direction
	existing, err := CastVote(db, studentSession(voterAddress), s.ID, false)
	assert.True(t, common.IsErrorCode(err, common.ErrCodeAlreadyDone))
	require.NotNil(t, existing)
	assert.Equal(t, v.ID, existing.ID)
	assert.True(t, existing.VoteType)

	view := FindView(db, s.ID)
	require.NotNil(t, view)
	assert.Equal(t, VoteTally{For: 1, Against: 0}, view.Votes)

	var count int
	db.Model(&Vote{}).Where("scholarship_id = ?", s.ID).Count(&count)
	assert.Equal(t, 1, count)
	assert.Equal(t, count, view.Votes.For+view.Votes.Against)
}

func TestCastVoteCaseInsensitiveDuplicateCheck(t *testing.T) {
	db := testDB(t)
	s := createTestScholarship(t, db)

	_, err := CastVote(db, studentSession(studentAddress), s.ID, true)
	require.NoError(t, err)

	_, err = CastVote(db, studentSession("0x388175A170A0D8FCB99FF8867C00860FCF95A7CC"), s.ID, true)
	assert.True(t, common.IsErrorCode(err, common.ErrCodeAlreadyDone))
}

func TestCastVoteGuards(t *testing.T) {
	db := testDB(t)
	s := createTestScholarship(t, db)

	_, err := CastVote(db, session.New(""), s.ID, true)
	assert.True(t, common.IsErrorCode(err, common.ErrCodeNotConnected))

	missingID, _ := uuid.NewV4()
	_, err = CastVote(db, studentSession(voterAddress), missingID, true)
	assert.True(t, common.IsErrorCode(err, common.ErrCodeNotFound))

	approveTestScholarship(t, db, s, studentAddress)
	_, err = CastVote(db, studentSession(voterAddress), s.ID, true)
	assert.True(t, common.IsErrorCode(err, common.ErrCodeInvalidState))
}

func TestVoteUniquenessEnforcedByStore(t *testing.T) {
	db := testDB(t)
	s := createTestScholarship(t, db)

	// bypass the workflow pre-check to exercise the store-level constraint;
	// the duplicate differs only in address casing
	first := &Vote{ScholarshipID: s.ID, VoterAddress: common.StringOrNil(studentAddress), VoteType: true}
	require.NoError(t, first.insert(db))

	duplicate := &Vote{ScholarshipID: s.ID, VoterAddress: common.StringOrNil(strings.ToUpper(studentAddress)), VoteType: false}
	err := duplicate.insert(db)
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err))

	var count int
	db.Model(&Vote{}).Where("scholarship_id = ?", s.ID).Count(&count)
	assert.Equal(t, 1, count)
}

func TestApplyForScholarship(t *testing.T) {
	db := testDB(t)
	s := createTestScholarship(t, db)

	a, err := ApplyForScholarship(db, studentSession(studentAddress), s.ID)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, ApplicationStatusPending, *a.Status)

	existing, err := ApplyForScholarship(db, studentSession(studentAddress), s.ID)
	assert.True(t, common.IsErrorCode(err, common.ErrCodeAlreadyDone))
	require.NotNil(t, existing)
	assert.Equal(t, a.ID, existing.ID)

	view := FindView(db, s.ID)
	require.NotNil(t, view)
	require.Len(t, view.Applicants, 1)
	assert.Equal(t, studentAddress, view.Applicants[0])
}

func TestApplicationUniquenessEnforcedByStore(t *testing.T) {
	db := testDB(t)
	s := createTestScholarship(t, db)

	first := &Application{ScholarshipID: s.ID, ApplicantAddress: common.StringOrNil(studentAddress)}
	require.NoError(t, first.insert(db))

	duplicate := &Application{ScholarshipID: s.ID, ApplicantAddress: common.StringOrNil(strings.ToUpper(studentAddress))}
	err := duplicate.insert(db)
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err))
}

func TestApplyIdentityVerificationGate(t *testing.T) {
	db := testDB(t)
	s := createTestScholarship(t, db)

	common.IdentityVerificationRequired = true
	defer func() { common.IdentityVerificationRequired = false }()

	sess := studentSession(studentAddress)
	_, err := ApplyForScholarship(db, sess, s.ID)
	assert.True(t, common.IsErrorCode(err, common.ErrCodeNotAuthorized))

	sess.Verified = true
	a, err := ApplyForScholarship(db, sess, s.ID)
	require.NoError(t, err)
	assert.NotNil(t, a)
}

func TestApproveScholarship(t *testing.T) {
	db := testDB(t)
	s := createTestScholarship(t, db)

	_, err := ApplyForScholarship(db, studentSession(studentAddress), s.ID)
	require.NoError(t, err)

	a, err := ApproveScholarship(db, governmentSession(), s.ID, studentAddress)
	require.NoError(t, err)
	assert.Equal(t, ApplicationStatusApproved, *a.Status)

	view := FindView(db, s.ID)
	require.NotNil(t, view)
	assert.Equal(t, ScholarshipStatusApproved, view.Status)
	require.NotNil(t, view.Recipient)
	assert.Equal(t, studentAddress, *view.Recipient)
}

func TestApproveScholarshipAuthorization(t *testing.T) {
	db := testDB(t)
	s := createTestScholarship(t, db)

	_, err := ApplyForScholarship(db, studentSession(studentAddress), s.ID)
	require.NoError(t, err)

	_, err = ApproveScholarship(db, studentSession(studentAddress), s.ID, studentAddress)
	assert.True(t, common.IsErrorCode(err, common.ErrCodeNotAuthorized))

	_, err = ApproveScholarship(db, financierSession(), s.ID, studentAddress)
	assert.True(t, common.IsErrorCode(err, common.ErrCodeNotAuthorized))
}

func TestApproveScholarshipApplicationNotFound(t *testing.T) {
	db := testDB(t)
	s := createTestScholarship(t, db)

	_, err := ApproveScholarship(db, governmentSession(), s.ID, studentAddress)
	assert.True(t, common.IsErrorCode(err, common.ErrCodeNotFound))
}

func TestApproveScholarshipRequiresPending(t *testing.T) {
	db := testDB(t)
	s := createTestScholarship(t, db)
	approveTestScholarship(t, db, s, studentAddress)

	// policy: a scholarship that has left the pending state cannot be re-approved
	_, err := ApproveScholarship(db, governmentSession(), s.ID, studentAddress)
	assert.True(t, common.IsErrorCode(err, common.ErrCodeInvalidState))
}

func TestFundScholarship(t *testing.T) {
	db := testDB(t)
	s := createTestScholarship(t, db)
	a := approveTestScholarship(t, db, s, studentAddress)

	provider := &scriptedProvider{hash: "0xdeadbeef"}
	tx, err := FundScholarship(context.Background(), db, financierSession(), provider, s.ID, a.ID)
	require.NoError(t, err)
	require.NotNil(t, tx)

	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, studentAddress, provider.to)
	assert.Equal(t, 0.5, provider.amount)

	assert.Equal(t, TransactionStatusConfirmed, *tx.Status)
	require.NotNil(t, tx.TransactionHash)
	assert.Equal(t, "0xdeadbeef", *tx.TransactionHash)
	assert.Equal(t, common.FinancierAddress, *tx.FinancierAddress)
	assert.Equal(t, studentAddress, *tx.RecipientAddress)
	assert.Equal(t, 0.5, tx.Amount)

	view := FindView(db, s.ID)
	require.NotNil(t, view)
	assert.Equal(t, ScholarshipStatusCompleted, view.Status)

	var count int
	db.Model(&Transaction{}).Where("scholarship_id = ? AND application_id = ?", s.ID, a.ID).Count(&count)
	assert.Equal(t, 1, count)
}

func TestFundScholarshipAuthorization(t *testing.T) {
	db := testDB(t)
	s := createTestScholarship(t, db)
	a := approveTestScholarship(t, db, s, studentAddress)

	provider := &scriptedProvider{hash: "0xdeadbeef"}

	_, err := FundScholarship(context.Background(), db, governmentSession(), provider, s.ID, a.ID)
	assert.True(t, common.IsErrorCode(err, common.ErrCodeNotAuthorized))

	_, err = FundScholarship(context.Background(), db, studentSession(studentAddress), provider, s.ID, a.ID)
	assert.True(t, common.IsErrorCode(err, common.ErrCodeNotAuthorized))

	_, err = FundScholarship(context.Background(), db, session.New(""), provider, s.ID, a.ID)
	assert.True(t, common.IsErrorCode(err, common.ErrCodeNotConnected))

	assert.Equal(t, 0, provider.calls)
}

func TestFundScholarshipRequiresApprovedApplication(t *testing.T) {
	db := testDB(t)
	s := createTestScholarship(t, db)

	a, err := ApplyForScholarship(db, studentSession(studentAddress), s.ID)
	require.NoError(t, err)

	provider := &scriptedProvider{hash: "0xdeadbeef"}
	_, err = FundScholarship(context.Background(), db, financierSession(), provider, s.ID, a.ID)
	assert.True(t, common.IsErrorCode(err, common.ErrCodeNotFound))
	assert.Equal(t, 0, provider.calls)
}

func TestFundScholarshipRequiresApprovedScholarship(t *testing.T) {
	db := testDB(t)
	s := createTestScholarship(t, db)

	_, err := ApplyForScholarship(db, studentSession(studentAddress), s.ID)
	require.NoError(t, err)

	// approve the application row directly, leaving the scholarship pending
	applications := applicationsFor(db, s.ID, studentAddress)
	require.Len(t, applications, 1)
	require.NoError(t, applications[0].updateStatus(db, ApplicationStatusApproved))

	provider := &scriptedProvider{hash: "0xdeadbeef"}
	_, err = FundScholarship(context.Background(), db, financierSession(), provider, s.ID, applications[0].ID)
	assert.True(t, common.IsErrorCode(err, common.ErrCodeNotFound))
	assert.Equal(t, 0, provider.calls)
}

func TestFundScholarshipPaymentRejected(t *testing.T) {
	db := testDB(t)
	s := createTestScholarship(t, db)
	a := approveTestScholarship(t, db, s, studentAddress)

	provider := &scriptedProvider{err: common.NewError(common.ErrCodePaymentRejected, "payment rejected by the wallet owner")}
	_, err := FundScholarship(context.Background(), db, financierSession(), provider, s.ID, a.ID)
	assert.True(t, common.IsErrorCode(err, common.ErrCodePaymentRejected))

	// the pending receipt is marked failed and the scholarship remains fundable
	transactions := ListTransactions(db)
	require.Len(t, transactions, 1)
	assert.Equal(t, TransactionStatusFailed, *transactions[0].Status)
	assert.Nil(t, transactions[0].TransactionHash)

	view := FindView(db, s.ID)
	require.NotNil(t, view)
	assert.Equal(t, ScholarshipStatusApproved, view.Status)
}

func TestFundScholarshipWalletUnavailable(t *testing.T) {
	db := testDB(t)
	s := createTestScholarship(t, db)
	a := approveTestScholarship(t, db, s, studentAddress)

	_, err := FundScholarship(context.Background(), db, financierSession(), nil, s.ID, a.ID)
	assert.True(t, common.IsErrorCode(err, common.ErrCodeWalletUnavailable))

	var count int
	db.Model(&Transaction{}).Count(&count)
	assert.Equal(t, 0, count)
}

func TestSettleFundingIdempotent(t *testing.T) {
	db := testDB(t)
	s := createTestScholarship(t, db)
	a := approveTestScholarship(t, db, s, studentAddress)

	tx := &Transaction{
		ScholarshipID:    s.ID,
		ApplicationID:    a.ID,
		FinancierAddress: common.StringOrNil(common.FinancierAddress),
		RecipientAddress: common.StringOrNil(studentAddress),
		Amount:           s.Amount,
	}
	require.NoError(t, tx.insert(db))

	require.NoError(t, settleFunding(db, tx, "0xdeadbeef"))
	require.NoError(t, settleFunding(db, tx, "0xdeadbeef"))

	reloaded := FindTransaction(db, tx.ID)
	require.NotNil(t, reloaded)
	assert.Equal(t, TransactionStatusConfirmed, *reloaded.Status)

	view := FindView(db, s.ID)
	require.NotNil(t, view)
	assert.Equal(t, ScholarshipStatusCompleted, view.Status)
}

func TestStatusOrUnknown(t *testing.T) {
	assert.Equal(t, "unknown", statusOrUnknown(nil))
	assert.Equal(t, ScholarshipStatusApproved, statusOrUnknown(common.StringOrNil(ScholarshipStatusApproved)))
}

func TestListViewsSeedFallbackOnEmptyStore(t *testing.T) {
	db := testDB(t)

	views, err := ListViews(db)
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, "Computer Science Scholarship", views[0].Title)
}
