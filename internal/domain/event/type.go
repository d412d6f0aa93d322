package event

import "github.com/garyjia/travel-review/internal/domain/entity"

// Type identifies the type of domain event
type Type string

const (
	TypeReviewAwaiting        Type = "review.awaiting"
	TypeAdminApprovalAwaiting Type = "review.admin_awaiting"
	TypeChangesRequested      Type = "request.changes_requested"
	TypeStatusUpdate          Type = "request.status_update"
	TypeTripReviewAwaiting    Type = "trip.review_awaiting"
	TypeTripCostWarning       Type = "trip.cost_warning"
	TypeRequestStatusChanged  Type = "request.status_changed"
	TypeTripStatusChanged     Type = "trip.status_changed"
)

// kindTypes maps notification kinds to the event that carries them
var kindTypes = map[entity.NotificationKind]Type{
	entity.KindReviewAwaiting:        TypeReviewAwaiting,
	entity.KindAdminApprovalAwaiting: TypeAdminApprovalAwaiting,
	entity.KindChangesRequested:      TypeChangesRequested,
	entity.KindStatusUpdate:          TypeStatusUpdate,
	entity.KindTripReviewAwaiting:    TypeTripReviewAwaiting,
	entity.KindTripCostWarning:       TypeTripCostWarning,
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeReviewAwaiting,
		TypeAdminApprovalAwaiting,
		TypeChangesRequested,
		TypeStatusUpdate,
		TypeTripReviewAwaiting,
		TypeTripCostWarning,
		TypeRequestStatusChanged,
		TypeTripStatusChanged:
		return true
	default:
		return false
	}
}

// Kind returns the notification kind carried by a notice event
func (t Type) Kind() (entity.NotificationKind, bool) {
	for k, v := range kindTypes {
		if v == t {
			return k, true
		}
	}
	return "", false
}

// TypeForKind returns the event type for a notification kind
func TypeForKind(kind entity.NotificationKind) (Type, bool) {
	t, ok := kindTypes[kind]
	return t, ok
}

// NoticeTypes lists every event type that carries a notice
func NoticeTypes() []Type {
	return []Type{
		TypeReviewAwaiting,
		TypeAdminApprovalAwaiting,
		TypeChangesRequested,
		TypeStatusUpdate,
		TypeTripReviewAwaiting,
		TypeTripCostWarning,
	}
}
