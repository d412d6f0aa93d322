package entity

import "time"

// RequestStatus is the aggregate status of a trip request
type RequestStatus string

const (
	RequestDraft                 RequestStatus = "DRAFT"
	RequestSubmitted             RequestStatus = "SUBMITTED"
	RequestPendingReview         RequestStatus = "PENDING_REVIEW"
	RequestPendingRecommendation RequestStatus = "PENDING_RECOMMENDATION"
	RequestPendingNCRReview      RequestStatus = "PENDING_NCR_REVIEW"
	RequestPendingNCRRecommend   RequestStatus = "PENDING_NCR_RECOMMENDATION"
	RequestPendingADMApproval    RequestStatus = "PENDING_ADM_APPROVAL"
	RequestPendingRDGApproval    RequestStatus = "PENDING_RDG_APPROVAL"
	RequestChangesRequested      RequestStatus = "CHANGES_REQUESTED"
	RequestApproved              RequestStatus = "APPROVED"
	RequestDenied                RequestStatus = "DENIED"
	RequestCancelled             RequestStatus = "CANCELLED"
)

// awaitingStatus maps the role of the current reviewer to the status shown on the request
var awaitingStatus = map[Role]RequestStatus{
	RolePlainReviewer:  RequestPendingReview,
	RoleRecommender:    RequestPendingRecommendation,
	RoleNCRReviewer:    RequestPendingNCRReview,
	RoleNCRRecommender: RequestPendingNCRRecommend,
	RoleADM:            RequestPendingADMApproval,
	RoleRDG:            RequestPendingRDGApproval,
}

var finalRequestStatuses = map[RequestStatus]bool{
	RequestApproved:  true,
	RequestDenied:    true,
	RequestCancelled: true,
}

// AwaitingStatus returns the "awaiting X" status for a reviewer role
func AwaitingStatus(role Role) (RequestStatus, bool) {
	s, ok := awaitingStatus[role]
	return s, ok
}

// String returns the string representation of the status
func (s RequestStatus) String() string {
	return string(s)
}

// IsFinal returns true for outcomes no reviewer action can change
func (s RequestStatus) IsFinal() bool {
	return finalRequestStatuses[s]
}

// IsAwaiting returns true when the request is waiting on a reviewer
func (s RequestStatus) IsAwaiting() bool {
	for _, v := range awaitingStatus {
		if v == s {
			return true
		}
	}
	return false
}

// CountsTowardCost reports whether a request in this status is included in trip cost totals
func (s RequestStatus) CountsTowardCost() bool {
	return s != RequestDenied && s != RequestCancelled && s != RequestDraft
}

// Request is a trip request, either individual or the parent of a group
type Request struct {
	ID               int64         `json:"id"`
	FiscalYear       string        `json:"fiscal_year"`
	OwnerID          int64         `json:"owner_id"`
	SectionID        int64         `json:"section_id"`
	TripID           *int64        `json:"trip_id,omitempty"`
	IsGroup          bool          `json:"is_group"`
	ParentRequestID  *int64        `json:"parent_request_id,omitempty"`
	IsLateSubmission bool          `json:"is_late_submission"`
	SubmittedAt      *time.Time    `json:"submitted_at,omitempty"`
	Status           RequestStatus `json:"status"`
	Version          int64         `json:"version"`
	Travellers       []*Traveller  `json:"travellers,omitempty"`
	Members          []*Request    `json:"-"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// IsChild returns true when the request belongs to a group parent
func (r *Request) IsChild() bool {
	return r.ParentRequestID != nil
}

// IsSubmitted returns true once a submission timestamp exists
func (r *Request) IsSubmitted() bool {
	return r.SubmittedAt != nil
}

// StakeholderIDs returns the owner followed by every traveller, then the
// owner and travellers of each loaded group member, without duplicates
func (r *Request) StakeholderIDs() []int64 {
	seen := map[int64]bool{}
	var ids []int64
	add := func(id int64) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	for _, req := range append([]*Request{r}, r.Members...) {
		add(req.OwnerID)
		for _, t := range req.Travellers {
			add(t.UserID)
		}
	}
	return ids
}

// Traveller is a person travelling under a request
type Traveller struct {
	ID                  int64   `json:"id"`
	RequestID           int64   `json:"request_id"`
	UserID              int64   `json:"user_id"`
	IsResearchScientist bool    `json:"is_research_scientist"`
	TotalCost           float64 `json:"total_cost"`
}
