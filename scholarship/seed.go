package scholarship

import (
	"time"

	uuid "github.com/kthomas/go.uuid"

	"github.com/edudao/scholarship/common"
)

var seedRecipient = "0x388175a170a0d8fcb99ff8867c00860fcf95a7cc"

// SeedViews is the fixed demo scholarship set served when the backing store is
// unreachable or empty; a deliberate degraded mode, not an error path
func SeedViews() []*View {
	now := time.Now()
	day := time.Hour * 24

	return []*View{
		{
			ID:             uuid.FromStringOrNil("8e2f1b51-27b1-4f3a-9f77-111111111111"),
			Title:          "Computer Science Scholarship",
			Description:    "For students pursuing a degree in computer science",
			Amount:         0.5,
			CreatorAddress: common.GovernmentAddress,
			Status:         ScholarshipStatusPending,
			Votes:          VoteTally{For: 5, Against: 1},
			CreatedAt:      now.Add(-7 * day),
			Deadline:       now.Add(30 * day),
			Voters:         []string{},
			Applicants:     []string{},
		},
		{
			ID:             uuid.FromStringOrNil("8e2f1b51-27b1-4f3a-9f77-222222222222"),
			Title:          "Engineering Excellence",
			Description:    "Supporting future engineers in their academic journey",
			Amount:         0.75,
			CreatorAddress: common.GovernmentAddress,
			Recipient:      &seedRecipient,
			Status:         ScholarshipStatusApproved,
			Votes:          VoteTally{For: 8, Against: 2},
			CreatedAt:      now.Add(-14 * day),
			Deadline:       now.Add(15 * day),
			Voters:         []string{},
			Applicants:     []string{seedRecipient},
		},
		{
			ID:             uuid.FromStringOrNil("8e2f1b51-27b1-4f3a-9f77-333333333333"),
			Title:          "Blockchain Development",
			Description:    "For students interested in blockchain technology",
			Amount:         1.0,
			CreatorAddress: common.GovernmentAddress,
			Recipient:      &seedRecipient,
			Status:         ScholarshipStatusCompleted,
			Votes:          VoteTally{For: 10, Against: 0},
			CreatedAt:      now.Add(-60 * day),
			Deadline:       now.Add(-15 * day),
			Voters:         []string{},
			Applicants:     []string{seedRecipient},
		},
	}
}
