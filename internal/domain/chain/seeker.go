package chain

import (
	"fmt"
	"time"

	"github.com/garyjia/travel-review/internal/domain/entity"
)

// BulkApprovalComment is left on request ADM reviewers released by a trip approval
const BulkApprovalComment = "approved (bulk, via trip approval)"

// Outcome describes what a Seek call changed on a request
type Outcome struct {
	Previous  entity.RequestStatus
	Status    entity.RequestStatus
	Activated *entity.Reviewer
	Cancelled int
	Notices   []entity.Notice
}

// Changed reports whether the request status moved
func (o *Outcome) Changed() bool {
	return o.Previous != o.Status
}

// TripOutcome describes what a SeekTrip call changed on a trip
type TripOutcome struct {
	Previous  entity.TripStatus
	Status    entity.TripStatus
	Activated *entity.TripReviewer
	Notices   []entity.Notice
}

// Changed reports whether the trip status moved
func (o *TripOutcome) Changed() bool {
	return o.Previous != o.Status
}

// Seeker advances chains to their next reviewer
type Seeker struct {
	clock func() time.Time
}

// NewSeeker creates a seeker. A nil clock uses time.Now.
func NewSeeker(clock func() time.Time) *Seeker {
	if clock == nil {
		clock = time.Now
	}
	return &Seeker{clock: clock}
}

// Now returns the seeker's current time
func (s *Seeker) Now() time.Time {
	return s.clock()
}

// stopsSeeking lists request statuses where no reviewer should be activated
var stopsSeeking = map[entity.RequestStatus]bool{
	entity.RequestDraft:            true,
	entity.RequestDenied:           true,
	entity.RequestApproved:         true,
	entity.RequestCancelled:        true,
	entity.RequestChangesRequested: true,
}

// Seek applies any pending denial cascade, derives the request status and,
// if the request is still in review, activates the first QUEUED or PENDING
// reviewer. The request and chain are mutated in place.
func (s *Seeker) Seek(req *entity.Request, chain []*entity.Reviewer) (*Outcome, error) {
	if req.IsChild() {
		return nil, fmt.Errorf("%w: request %d is part of group %d and has no chain of its own", ErrInvariantViolation, req.ID, *req.ParentRequestID)
	}

	now := s.clock()
	out := &Outcome{Previous: req.Status}

	cancelled, err := CascadeDenial(chain, now)
	if err != nil {
		return nil, fmt.Errorf("cascade denial: %w", err)
	}
	out.Cancelled = cancelled

	if err := CheckIntegrity(chain); err != nil {
		return nil, fmt.Errorf("request %d: %w", req.ID, err)
	}

	req.Status = DeriveRequestStatus(req.Status, chain, req.SubmittedAt)
	if !stopsSeeking[req.Status] {
		if next, ok := firstActive(chain); ok {
			if err := Apply(&next.ReviewStep, TriggerActivate, now); err != nil {
				return nil, fmt.Errorf("activate reviewer: %w", err)
			}
			out.Activated = next
			out.Notices = append(out.Notices, awaitingNotice(req, next))
		}
		req.Status = DeriveRequestStatus(req.Status, chain, req.SubmittedAt)
	}

	out.Status = req.Status
	if out.Changed() && (out.Status == entity.RequestApproved || out.Status == entity.RequestDenied) {
		out.Notices = append(out.Notices, StatusUpdateNotice(req))
	}

	return out, nil
}

// SeekTrip is the trip-chain twin of Seek. A chain that has not been started
// is left alone.
func (s *Seeker) SeekTrip(trip *entity.Trip, chain []*entity.TripReviewer) (*TripOutcome, error) {
	if err := CheckIntegrity(chain); err != nil {
		return nil, fmt.Errorf("trip %d: %w", trip.ID, err)
	}

	now := s.clock()
	out := &TripOutcome{Previous: trip.Status}

	trip.Status = DeriveTripStatus(trip.Status, chain)
	if !trip.Status.IsFinal() && len(chain) > 0 && !hasStatus(chain, entity.ReviewerNotSubmitted) {
		if next, ok := firstActive(chain); ok {
			if err := Apply(&next.ReviewStep, TriggerActivate, now); err != nil {
				return nil, fmt.Errorf("activate trip reviewer: %w", err)
			}
			out.Activated = next
			out.Notices = append(out.Notices, entity.Notice{
				Kind:         entity.KindTripReviewAwaiting,
				TripID:       trip.ID,
				RecipientIDs: []int64{next.UserID},
				Payload: map[string]interface{}{
					"trip_id":     trip.ID,
					"trip_name":   trip.Name,
					"reviewer_id": next.ID,
					"role":        next.Role.String(),
				},
			})
		}
		trip.Status = DeriveTripStatus(trip.Status, chain)
	}

	out.Status = trip.Status
	return out, nil
}

func awaitingNotice(req *entity.Request, r *entity.Reviewer) entity.Notice {
	kind := entity.KindReviewAwaiting
	if r.Role.IsAdmin() {
		kind = entity.KindAdminApprovalAwaiting
	}
	return entity.Notice{
		Kind:         kind,
		RequestID:    req.ID,
		RecipientIDs: []int64{r.UserID},
		Payload: map[string]interface{}{
			"request_id":  req.ID,
			"reviewer_id": r.ID,
			"role":        r.Role.String(),
			"status":      req.Status.String(),
		},
	}
}

// StatusUpdateNotice tells the owner and travellers where the request ended up
func StatusUpdateNotice(req *entity.Request) entity.Notice {
	return entity.Notice{
		Kind:         entity.KindStatusUpdate,
		RequestID:    req.ID,
		RecipientIDs: req.StakeholderIDs(),
		Payload: map[string]interface{}{
			"request_id": req.ID,
			"status":     req.Status.String(),
		},
	}
}

// ChangesRequestedNotice tells the owner a reviewer sent the request back
func ChangesRequestedNotice(req *entity.Request, r *entity.Reviewer) entity.Notice {
	return entity.Notice{
		Kind:         entity.KindChangesRequested,
		RequestID:    req.ID,
		RecipientIDs: []int64{req.OwnerID},
		Payload: map[string]interface{}{
			"request_id":  req.ID,
			"reviewer_id": r.ID,
			"comments":    r.Comments,
		},
	}
}

// IsFinalADM reports whether r is the last ADM-role reviewer on the trip chain
func IsFinalADM(chain []*entity.TripReviewer, r *entity.TripReviewer) bool {
	if r.Role != entity.RoleADM {
		return false
	}
	for i := len(chain) - 1; i >= 0; i-- {
		if chain[i].Role == entity.RoleADM {
			return chain[i] == r
		}
	}
	return false
}

// ReleaseADM bulk-approves the request's current reviewer when it is an ADM
// waiting on the trip-level ADM decision. It reports whether anything changed;
// the caller re-runs Seek afterwards.
func ReleaseADM(req *entity.Request, chain []*entity.Reviewer, now time.Time) (bool, error) {
	if req.Status != entity.RequestPendingADMApproval {
		return false, nil
	}

	current, ok := Current(chain)
	if !ok || current.Role != entity.RoleADM {
		return false, nil
	}

	if err := Apply(&current.ReviewStep, TriggerApprove, now); err != nil {
		return false, err
	}
	current.Comments = BulkApprovalComment

	return true, nil
}
