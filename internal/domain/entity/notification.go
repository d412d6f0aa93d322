package entity

import "time"

// NotificationKind identifies the message template sent to recipients
type NotificationKind string

const (
	KindReviewAwaiting        NotificationKind = "REVIEW_AWAITING"
	KindAdminApprovalAwaiting NotificationKind = "ADMIN_APPROVAL_AWAITING"
	KindChangesRequested      NotificationKind = "CHANGES_REQUESTED"
	KindStatusUpdate          NotificationKind = "STATUS_UPDATE"
	KindTripReviewAwaiting    NotificationKind = "TRIP_REVIEW_AWAITING"
	KindTripCostWarning       NotificationKind = "TRIP_COST_WARNING"
)

// String returns the string representation of the kind
func (k NotificationKind) String() string {
	return string(k)
}

// Notice is a notification the domain decided to send. Delivery happens after commit.
type Notice struct {
	Kind         NotificationKind       `json:"kind"`
	RequestID    int64                  `json:"request_id,omitempty"`
	TripID       int64                  `json:"trip_id,omitempty"`
	RecipientIDs []int64                `json:"recipient_ids,omitempty"`
	Addresses    []string               `json:"addresses,omitempty"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
}

// Address is a resolved notification recipient
type Address struct {
	UserID int64  `json:"user_id,omitempty"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email"`
}

// NotificationLog records a single delivery attempt
type NotificationLog struct {
	ID           int64            `json:"id"`
	Kind         NotificationKind `json:"kind"`
	RequestID    *int64           `json:"request_id,omitempty"`
	TripID       *int64           `json:"trip_id,omitempty"`
	Recipients   string           `json:"recipients"`
	Status       string           `json:"status"`
	ErrorMessage string           `json:"error_message,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Notification delivery status constants
const (
	NotificationStatusSent    = "SENT"
	NotificationStatusFailed  = "FAILED"
	NotificationStatusSkipped = "SKIPPED"
)
