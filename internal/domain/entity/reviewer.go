package entity

import "time"

// Role is the organizational level a reviewer signs off at
type Role string

const (
	RolePlainReviewer  Role = "PLAIN_REVIEWER"
	RoleRecommender    Role = "RECOMMENDER"
	RoleNCRReviewer    Role = "NCR_REVIEWER"
	RoleNCRRecommender Role = "NCR_RECOMMENDER"
	RoleADM            Role = "ADM"
	RoleRDG            Role = "RDG"
	RoleNCRCoordinator Role = "NCR_COORDINATOR"
)

var requestRoles = map[Role]bool{
	RolePlainReviewer:  true,
	RoleRecommender:    true,
	RoleNCRReviewer:    true,
	RoleNCRRecommender: true,
	RoleADM:            true,
	RoleRDG:            true,
}

var tripRoles = map[Role]bool{
	RoleNCRCoordinator: true,
	RoleADM:            true,
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// IsRequestRole reports whether the role may appear on a request chain
func (r Role) IsRequestRole() bool {
	return requestRoles[r]
}

// IsTripRole reports whether the role may appear on a trip chain
func (r Role) IsTripRole() bool {
	return tripRoles[r]
}

// IsAdmin reports whether the role is one of the top sign-off tiers
func (r Role) IsAdmin() bool {
	return r == RoleADM || r == RoleRDG
}

// ReviewerStatus is the per-reviewer lifecycle state
type ReviewerStatus string

const (
	ReviewerNotSubmitted ReviewerStatus = "NOT_SUBMITTED"
	ReviewerQueued       ReviewerStatus = "QUEUED"
	ReviewerPending      ReviewerStatus = "PENDING"
	ReviewerApproved     ReviewerStatus = "APPROVED"
	ReviewerDenied       ReviewerStatus = "DENIED"
	ReviewerCancelled    ReviewerStatus = "CANCELLED"
	ReviewerSkipped      ReviewerStatus = "SKIPPED"
)

var validReviewerStatuses = map[ReviewerStatus]bool{
	ReviewerNotSubmitted: true,
	ReviewerQueued:       true,
	ReviewerPending:      true,
	ReviewerApproved:     true,
	ReviewerDenied:       true,
	ReviewerCancelled:    true,
	ReviewerSkipped:      true,
}

var terminalReviewerStatuses = map[ReviewerStatus]bool{
	ReviewerApproved:  true,
	ReviewerDenied:    true,
	ReviewerCancelled: true,
	ReviewerSkipped:   true,
}

// String returns the string representation of the status
func (s ReviewerStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a known reviewer status
func (s ReviewerStatus) IsValid() bool {
	return validReviewerStatuses[s]
}

// IsTerminal returns true once the reviewer has a final outcome
func (s ReviewerStatus) IsTerminal() bool {
	return terminalReviewerStatuses[s]
}

// IsCleared returns true when the reviewer no longer blocks later reviewers
func (s ReviewerStatus) IsCleared() bool {
	return s == ReviewerApproved || s == ReviewerSkipped
}

// ReviewStep holds the fields shared by request and trip reviewers
type ReviewStep struct {
	ID       int64          `json:"id"`
	Order    int            `json:"order"`
	UserID   int64          `json:"user_id"`
	Role     Role           `json:"role"`
	Status   ReviewerStatus `json:"status"`
	StatusAt *time.Time     `json:"status_at,omitempty"`
	Comments string         `json:"comments,omitempty"`
}

// Step exposes the shared fields so chain helpers can work on either reviewer kind
func (s *ReviewStep) Step() *ReviewStep {
	return s
}

// Reset returns the step to its pre-submission state
func (s *ReviewStep) Reset() {
	s.Status = ReviewerNotSubmitted
	s.StatusAt = nil
	s.Comments = ""
}

// Reviewer is one position in a request's chain
type Reviewer struct {
	ReviewStep
	RequestID int64 `json:"request_id"`
}

// TripReviewer is one position in a trip's chain
type TripReviewer struct {
	ReviewStep
	TripID int64 `json:"trip_id"`
}

// ReviewDecision is what a reviewer can do to their own step
type ReviewDecision string

const (
	DecisionApprove ReviewDecision = "APPROVE"
	DecisionDeny    ReviewDecision = "DENY"
)

// IsValid returns true for the decisions reviewers may submit
func (d ReviewDecision) IsValid() bool {
	return d == DecisionApprove || d == DecisionDeny
}
