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

	"github.com/edudao/scholarship/common"
)

// VoteTally is the derived for/against count pair
type VoteTally struct {
	For     int `json:"for"`
	Against int `json:"against"`
}

// View is the composed scholarship read-model: the stored proposal joined with
// its derived applicant list, voter list, vote tallies and resolved recipient
type View struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Amount         float64   `json:"amount"`
	CreatorAddress string    `json:"creator_address"`
	Recipient      *string   `json:"recipient,omitempty"`
	Status         string    `json:"status"`
	Votes          VoteTally `json:"votes"`
	CreatedAt      time.Time `json:"created_at"`
	Deadline       time.Time `json:"deadline"`
	Voters         []string  `json:"voters"`
	Applicants     []string  `json:"applicants"`
}

// Active returns true for pending scholarships whose deadline has not lapsed;
// a pending scholarship past its deadline is still addressable but excluded
// from active listings
func (v *View) Active() bool {
	return v.Status == ScholarshipStatusPending && v.Deadline.After(time.Now())
}

// BuildViews composes the scholarship read-model from raw rows; all relational
// derivation happens here and nowhere else. Rows are indexed by scholarship id
// so composition is linear in the input sizes.
func BuildViews(scholarships []*Scholarship, applications []*Application, votes []*Vote) []*View {
	applicationsByScholarship := map[uuid.UUID][]*Application{}
	for _, a := range applications {
		applicationsByScholarship[a.ScholarshipID] = append(applicationsByScholarship[a.ScholarshipID], a)
	}

	votesByScholarship := map[uuid.UUID][]*Vote{}
	for _, v := range votes {
		votesByScholarship[v.ScholarshipID] = append(votesByScholarship[v.ScholarshipID], v)
	}

	views := make([]*View, 0, len(scholarships))
	for _, s := range scholarships {
		view := &View{
			ID:         s.ID,
			Amount:     s.Amount,
			CreatedAt:  s.CreatedAt,
			Deadline:   s.Deadline,
			Status:     ScholarshipStatusPending,
			Voters:     []string{},
			Applicants: []string{},
		}
		if s.Title != nil {
			view.Title = *s.Title
		}
		if s.Description != nil {
			view.Description = *s.Description
		}
		if s.CreatorAddress != nil {
			view.CreatorAddress = *s.CreatorAddress
		}
		if s.Status != nil {
			view.Status = *s.Status
		}

		for _, a := range applicationsByScholarship[s.ID] {
			if a.ApplicantAddress == nil {
				continue
			}
			view.Applicants = append(view.Applicants, *a.ApplicantAddress)

			// first approved application wins; duplicates should not occur
			// under correct approve usage but must not break composition
			if view.Recipient == nil && a.Status != nil && *a.Status == ApplicationStatusApproved {
				view.Recipient = a.ApplicantAddress
			}
		}

		for _, v := range votesByScholarship[s.ID] {
			if v.VoterAddress != nil {
				view.Voters = append(view.Voters, *v.VoterAddress)
			}
			if v.VoteType {
				view.Votes.For++
			} else {
				view.Votes.Against++
			}
		}

		views = append(views, view)
	}

	return views
}

// ListViews fetches the raw tables and composes the read-model; when the
// store is unreachable (or empty) and the seed fallback is enabled, the
// hard-coded demo set is served instead so the front-end remains demonstrable
func ListViews(db *gorm.DB) ([]*View, error) {
	// the cache key is pinned to the generation observed before composition;
	// a mutation landing mid-composition bumps the generation, leaving any
	// stale write parked under the superseded key
	var cacheKey string
	if viewsCacheEnabled {
		cacheKey = viewsCacheKey()
		if views, cached := cachedViews(cacheKey); cached {
			return views, nil
		}
	}

	var scholarships []*Scholarship
	result := db.Find(&scholarships)
	if errs := result.GetErrors(); len(errs) > 0 {
		common.Log.Warningf("failed to fetch scholarships; %s", errs[0].Error())
		if common.SeedFallbackEnabled {
			return SeedViews(), nil
		}
		return nil, common.WrapError(common.ErrCodeBackendUnavailable, "failed to fetch scholarships", errs[0])
	}

	if len(scholarships) == 0 && common.SeedFallbackEnabled {
		return SeedViews(), nil
	}

	var applications []*Application
	if errs := db.Find(&applications).GetErrors(); len(errs) > 0 {
		common.Log.Warningf("failed to fetch applications; %s", errs[0].Error())
	}

	var votes []*Vote
	if errs := db.Find(&votes).GetErrors(); len(errs) > 0 {
		common.Log.Warningf("failed to fetch votes; %s", errs[0].Error())
	}

	views := BuildViews(scholarships, applications, votes)
	if viewsCacheEnabled {
		cacheViews(cacheKey, views)
	}
	return views, nil
}

// FindView composes the read-model for a single scholarship
func FindView(db *gorm.DB, scholarshipID uuid.UUID) *View {
	views, err := ListViews(db)
	if err != nil {
		return nil
	}
	for _, view := range views {
		if view.ID == scholarshipID {
			return view
		}
	}
	return nil
}

// Stats are the financier dashboard aggregates
type Stats struct {
	AwaitingFunding   int     `json:"awaiting_funding"`
	Funded            int     `json:"funded"`
	TotalFundedAmount float64 `json:"total_funded_amount"`
	Currency          string  `json:"currency"`
}

// ComputeStats derives the dashboard aggregates from the composed views
func ComputeStats(views []*View) *Stats {
	stats := &Stats{Currency: common.NativeCurrencySymbol}
	for _, view := range views {
		switch view.Status {
		case ScholarshipStatusApproved:
			stats.AwaitingFunding++
		case ScholarshipStatusCompleted:
			stats.Funded++
			stats.TotalFundedAmount += view.Amount
		}
	}
	return stats
}
