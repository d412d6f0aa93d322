package entity

import "time"

// ReviewHistory is the audit trail of decisions and status changes on a request or trip
type ReviewHistory struct {
	ID             int64     `json:"id"`
	RequestID      *int64    `json:"request_id,omitempty"`
	TripID         *int64    `json:"trip_id,omitempty"`
	ActorID        int64     `json:"actor_id"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	ActionType     string    `json:"action_type"`
	ActionData     string    `json:"action_data"`
	Timestamp      time.Time `json:"timestamp"`
}

// History action types
const (
	ActionCreate         = "CREATE"
	ActionSubmit         = "SUBMIT"
	ActionUnsubmit       = "UNSUBMIT"
	ActionApprove        = "APPROVE"
	ActionDeny           = "DENY"
	ActionRequestChanges = "REQUEST_CHANGES"
	ActionResetReviewers = "RESET_REVIEWERS"
	ActionBulkApprove    = "BULK_APPROVE"
	ActionCancel         = "CANCEL"
	ActionVerify         = "VERIFY"
	ActionToggleADM      = "TOGGLE_ADM"
	ActionStartReview    = "START_REVIEW"
	ActionCostUpdate     = "COST_UPDATE"
	ActionRepair         = "REPAIR"
)
