package entity

import "time"

// TripStatus is the aggregate status of a trip
type TripStatus string

const (
	TripUnverified  TripStatus = "UNVERIFIED"
	TripVerified    TripStatus = "VERIFIED"
	TripUnderReview TripStatus = "UNDER_REVIEW"
	TripReviewed    TripStatus = "REVIEWED"
	TripCancelled   TripStatus = "CANCELLED"
)

// String returns the string representation of the status
func (s TripStatus) String() string {
	return string(s)
}

// IsFinal returns true when the trip chain can no longer move
func (s TripStatus) IsFinal() bool {
	return s == TripReviewed || s == TripCancelled
}

// Trip is an event that one or more requests travel to
type Trip struct {
	ID                    int64      `json:"id"`
	Name                  string     `json:"name"`
	StartDate             time.Time  `json:"start_date"`
	ADMReviewDeadline     *time.Time `json:"adm_review_deadline,omitempty"`
	IsADMApprovalRequired bool       `json:"is_adm_approval_required"`
	Status                TripStatus `json:"status"`
	CostWarningSentAt     *time.Time `json:"cost_warning_sent_at,omitempty"`
	NonResidentTotalCost  float64    `json:"non_resident_total_cost"`
	AdminNotes            string     `json:"admin_notes,omitempty"`
	Version               int64      `json:"version"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// ReviewCutoff returns the date after which a submission counts as late.
// An explicit deadline wins over the window measured back from the start date.
func (t *Trip) ReviewCutoff(window time.Duration) time.Time {
	if t.ADMReviewDeadline != nil {
		return *t.ADMReviewDeadline
	}
	return t.StartDate.Add(-window)
}
