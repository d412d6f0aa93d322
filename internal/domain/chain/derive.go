package chain

import (
	"time"

	"github.com/garyjia/travel-review/internal/domain/entity"
)

// DeriveRequestStatus maps a chain and submission state to the request's status.
// It has no side effects; calling it again on an unchanged chain returns the same value.
//
// CHANGES_REQUESTED and CANCELLED are sticky and only cleared by resubmission
// or not at all. An empty submitted chain is vacuously APPROVED.
func DeriveRequestStatus(current entity.RequestStatus, chain []*entity.Reviewer, submittedAt *time.Time) entity.RequestStatus {
	if current == entity.RequestChangesRequested || current == entity.RequestCancelled {
		return current
	}

	if submittedAt == nil {
		return entity.RequestDraft
	}

	if hasStatus(chain, entity.ReviewerDenied) {
		return entity.RequestDenied
	}

	if allCleared(chain) {
		return entity.RequestApproved
	}

	if r, ok := Current(chain); ok {
		if status, ok := entity.AwaitingStatus(r.Role); ok {
			return status
		}
	}

	return current
}

// DeriveTripStatus maps a trip chain to the trip's status. A chain that has
// not been started leaves the status unchanged.
func DeriveTripStatus(current entity.TripStatus, chain []*entity.TripReviewer) entity.TripStatus {
	if current == entity.TripCancelled {
		return current
	}

	if len(chain) == 0 || hasStatus(chain, entity.ReviewerNotSubmitted) {
		return current
	}

	if allCleared(chain) {
		return entity.TripReviewed
	}

	if hasStatus(chain, entity.ReviewerPending) {
		return entity.TripUnderReview
	}

	return current
}
