package chain

import (
	"github.com/garyjia/travel-review/internal/domain/entity"
)

// Step is one stage of request chain assembly, in the order stages run
type Step int

const (
	StepSectionDefaults Step = iota + 1
	StepSectionHead
	StepDivisionHead
	StepBranch
	StepADM
	StepRDG
)

// BuildInput is everything chain assembly needs, already resolved from the org chart.
// Zero user IDs mean the lookup found nothing and the insertion is skipped.
type BuildInput struct {
	RequestID         int64
	RequesterID       int64
	Path              entity.OrgPath
	SectionDefaultIDs []int64
	BranchDefaultIDs  []int64
	RequiresADM       bool
	ADMContactID      int64
}

// SkipRule reports whether a step is left out for this input
type SkipRule func(in BuildInput) bool

// SkipRules maps a step to the rule that can leave it out. StepRDG is never consulted.
type SkipRules map[Step]SkipRule

// DefaultSkipRules keeps people from recommending their own request at a level
// they already sit above
func DefaultSkipRules() SkipRules {
	return SkipRules{
		StepSectionHead: func(in BuildInput) bool {
			return in.RequesterID == in.Path.SectionHeadID || in.RequesterID == in.Path.DivisionHeadID
		},
		StepDivisionHead: func(in BuildInput) bool {
			return in.RequesterID == in.Path.DivisionHeadID
		},
		StepBranch: func(in BuildInput) bool {
			return in.RequesterID == in.Path.BranchHeadID
		},
	}
}

// Builder assembles initial reviewer chains
type Builder struct {
	skips   SkipRules
	augment map[string][]int64
}

// NewBuilder creates a chain builder. augment maps a region code to extra
// PLAIN_REVIEWER user IDs appended after the branch stage.
func NewBuilder(skips SkipRules, augment map[string][]int64) *Builder {
	if skips == nil {
		skips = DefaultSkipRules()
	}
	return &Builder{
		skips:   skips,
		augment: augment,
	}
}

func (b *Builder) skipped(step Step, in BuildInput) bool {
	if step == StepRDG {
		return false
	}
	rule, ok := b.skips[step]
	return ok && rule(in)
}

// requestChain collects reviewers, ignoring duplicate (user, role) pairs
type requestChain struct {
	requestID int64
	reviewers []*entity.Reviewer
}

func (c *requestChain) add(userID int64, role entity.Role, status entity.ReviewerStatus) {
	if userID == 0 || Contains(c.reviewers, userID, role) {
		return
	}
	c.reviewers = append(c.reviewers, &entity.Reviewer{
		ReviewStep: entity.ReviewStep{
			UserID: userID,
			Role:   role,
			Status: status,
		},
		RequestID: c.requestID,
	})
}

// BuildRequestChain assembles a request chain in fixed role order. Default
// reviewers who are the requester are kept in place but marked SKIPPED.
func (b *Builder) BuildRequestChain(in BuildInput) []*entity.Reviewer {
	c := &requestChain{requestID: in.RequestID}

	defaultStatus := func(userID int64) entity.ReviewerStatus {
		if userID == in.RequesterID {
			return entity.ReviewerSkipped
		}
		return entity.ReviewerNotSubmitted
	}

	if !b.skipped(StepSectionDefaults, in) {
		for _, id := range in.SectionDefaultIDs {
			c.add(id, entity.RolePlainReviewer, defaultStatus(id))
		}
	}

	if !b.skipped(StepSectionHead, in) {
		c.add(in.Path.SectionHeadID, entity.RoleRecommender, entity.ReviewerNotSubmitted)
	}

	if !b.skipped(StepDivisionHead, in) {
		c.add(in.Path.DivisionHeadID, entity.RoleRecommender, entity.ReviewerNotSubmitted)
	}

	if !b.skipped(StepBranch, in) {
		c.add(in.Path.BranchHeadID, entity.RolePlainReviewer, entity.ReviewerNotSubmitted)
		for _, id := range in.BranchDefaultIDs {
			c.add(id, entity.RolePlainReviewer, defaultStatus(id))
		}
	}

	for _, id := range b.augment[in.Path.RegionCode] {
		c.add(id, entity.RolePlainReviewer, defaultStatus(id))
	}

	if in.RequiresADM && !b.skipped(StepADM, in) {
		c.add(in.ADMContactID, entity.RoleADM, entity.ReviewerNotSubmitted)
	}

	c.add(in.Path.RegionHeadID, entity.RoleRDG, entity.ReviewerNotSubmitted)

	Renumber(c.reviewers)
	return c.reviewers
}

// BuildTripChain assembles a trip chain: NCR coordinators, then ADM delegates,
// then the ADM personally
func BuildTripChain(tripID int64, defaults entity.TripReviewerDefaults) []*entity.TripReviewer {
	var reviewers []*entity.TripReviewer

	add := func(userID int64, role entity.Role) {
		if userID == 0 || Contains(reviewers, userID, role) {
			return
		}
		reviewers = append(reviewers, &entity.TripReviewer{
			ReviewStep: entity.ReviewStep{
				UserID: userID,
				Role:   role,
				Status: entity.ReviewerNotSubmitted,
			},
			TripID: tripID,
		})
	}

	for _, id := range defaults.NCRCoordinatorIDs {
		add(id, entity.RoleNCRCoordinator)
	}
	for _, id := range defaults.ADMDelegateIDs {
		add(id, entity.RoleADM)
	}
	add(defaults.ADMID, entity.RoleADM)

	Renumber(reviewers)
	return reviewers
}

// InsertLateReviewer puts an NCR_REVIEWER ahead of everyone on a late request.
// It reports false when that reviewer is already on the chain.
func InsertLateReviewer(chain []*entity.Reviewer, requestID, userID int64) ([]*entity.Reviewer, bool) {
	if userID == 0 || Contains(chain, userID, entity.RoleNCRReviewer) {
		return chain, false
	}

	r := &entity.Reviewer{
		ReviewStep: entity.ReviewStep{
			UserID: userID,
			Role:   entity.RoleNCRReviewer,
			Status: entity.ReviewerNotSubmitted,
		},
		RequestID: requestID,
	}

	return InsertBefore(chain, r, 0), true
}
