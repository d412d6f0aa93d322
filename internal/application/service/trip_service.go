package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/travel-review/internal/application/dispatcher"
	"github.com/garyjia/travel-review/internal/application/port"
	"github.com/garyjia/travel-review/internal/domain/chain"
	"github.com/garyjia/travel-review/internal/domain/entity"
)

// TripService manages trips and the national-level trip review
type TripService interface {
	CreateTrip(ctx context.Context, actorID int64, in CreateTripInput) (*entity.Trip, error)
	GetTrip(ctx context.Context, id int64) (*TripDetail, error)
	ListTrips(ctx context.Context, limit, offset int) ([]*entity.Trip, error)
	VerifyTrip(ctx context.Context, actorID, tripID int64) (*entity.Trip, error)
	SetADMApprovalRequired(ctx context.Context, actorID, tripID int64, required bool) (*entity.Trip, error)
	StartTripReview(ctx context.Context, actorID, tripID int64) (*entity.Trip, error)
	DecideAsTripReviewer(ctx context.Context, actorID, reviewerID int64, decision entity.ReviewDecision, comments string) (*entity.Trip, error)
	ResetTripReviewers(ctx context.Context, actorID, tripID int64) ([]*entity.TripReviewer, error)
	CancelTrip(ctx context.Context, actorID, tripID int64, adminNotes string) (*entity.Trip, error)
}

// CreateTripInput describes a new trip
type CreateTripInput struct {
	Name                  string     `json:"name"`
	StartDate             time.Time  `json:"start_date"`
	ADMReviewDeadline     *time.Time `json:"adm_review_deadline,omitempty"`
	IsADMApprovalRequired bool       `json:"is_adm_approval_required"`
}

// TripDetail is a trip with its chain, connected requests and audit trail
type TripDetail struct {
	Trip      *entity.Trip            `json:"trip"`
	Reviewers []*entity.TripReviewer  `json:"reviewers"`
	Requests  []*entity.Request       `json:"requests"`
	History   []*entity.ReviewHistory `json:"history"`
}

type tripServiceImpl struct {
	*core
}

// NewTripService creates a new TripService
func NewTripService(
	repos Repositories,
	org port.OrgLookup,
	txManager port.TransactionManager,
	policy Policy,
	d dispatcher.Dispatcher,
	logger Logger,
) TripService {
	return &tripServiceImpl{
		core: newCore(repos, org, txManager, policy, d, logger),
	}
}

// CreateTrip creates an UNVERIFIED trip, with its chain when ADM approval is required
func (s *tripServiceImpl) CreateTrip(ctx context.Context, actorID int64, in CreateTripInput) (*entity.Trip, error) {
	if err := s.authorizeAdmin(actorID); err != nil {
		return nil, err
	}
	if in.Name == "" {
		return nil, fmt.Errorf("%w: trip name is required", chain.ErrInvariantViolation)
	}

	now := s.now()
	trip := &entity.Trip{
		Name:                  in.Name,
		StartDate:             in.StartDate,
		ADMReviewDeadline:     in.ADMReviewDeadline,
		IsADMApprovalRequired: in.IsADMApprovalRequired,
		Status:                entity.TripUnverified,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repos.Trips.Create(txCtx, trip); err != nil {
			return fmt.Errorf("create trip: %w", err)
		}
		if trip.IsADMApprovalRequired {
			if _, err := s.rebuildTripChain(txCtx, trip); err != nil {
				return err
			}
		}
		return s.recordTrip(txCtx, actorID, trip, "", entity.ActionCreate, "")
	})

	if err != nil {
		s.logger.Error("Failed to create trip", "error", err, "name", in.Name)
		return nil, err
	}

	s.logger.Info("Trip created", "id", trip.ID, "adm_required", trip.IsADMApprovalRequired)
	return trip, nil
}

// GetTrip returns a trip with its chain, connected requests and history
func (s *tripServiceImpl) GetTrip(ctx context.Context, id int64) (*TripDetail, error) {
	trip, err := s.getTrip(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &TripDetail{Trip: trip}
	if detail.Reviewers, err = s.repos.TripReviewers.GetByTripID(ctx, id); err != nil {
		return nil, fmt.Errorf("get trip reviewers: %w", err)
	}
	if detail.Requests, err = s.repos.Requests.GetByTripID(ctx, id); err != nil {
		return nil, fmt.Errorf("get trip requests: %w", err)
	}
	if detail.History, err = s.repos.History.GetByTripID(ctx, id); err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}

	return detail, nil
}

// ListTrips returns trips newest first
func (s *tripServiceImpl) ListTrips(ctx context.Context, limit, offset int) ([]*entity.Trip, error) {
	trips, err := s.repos.Trips.List(ctx, limit, offset)
	if err != nil {
		s.logger.Error("Failed to list trips", "error", err, "limit", limit, "offset", offset)
		return nil, err
	}
	return trips, nil
}

// VerifyTrip marks an UNVERIFIED trip as VERIFIED
func (s *tripServiceImpl) VerifyTrip(ctx context.Context, actorID, tripID int64) (*entity.Trip, error) {
	return s.mutateTrip(ctx, actorID, tripID, entity.ActionVerify, func(txCtx context.Context, trip *entity.Trip, fx *effects) error {
		if trip.Status != entity.TripUnverified {
			return fmt.Errorf("%w: trip %d is %s, not UNVERIFIED", chain.ErrInvariantViolation, trip.ID, trip.Status)
		}
		trip.Status = entity.TripVerified
		return nil
	})
}

// SetADMApprovalRequired toggles ADM approval. Turning it on builds the trip
// chain, turning it off deletes it. Not allowed once the review has started.
func (s *tripServiceImpl) SetADMApprovalRequired(ctx context.Context, actorID, tripID int64, required bool) (*entity.Trip, error) {
	return s.mutateTrip(ctx, actorID, tripID, entity.ActionToggleADM, func(txCtx context.Context, trip *entity.Trip, fx *effects) error {
		if reviewLocked(trip) {
			return fmt.Errorf("%w: ADM approval of trip %d cannot change while %s", chain.ErrInvariantViolation, trip.ID, trip.Status)
		}
		if trip.IsADMApprovalRequired == required {
			return nil
		}

		trip.IsADMApprovalRequired = required
		if required {
			_, err := s.rebuildTripChain(txCtx, trip)
			return err
		}
		if err := s.repos.TripReviewers.DeleteByTripID(txCtx, trip.ID); err != nil {
			return fmt.Errorf("delete trip reviewers: %w", err)
		}
		return nil
	})
}

// StartTripReview queues the trip chain and activates its first reviewer
func (s *tripServiceImpl) StartTripReview(ctx context.Context, actorID, tripID int64) (*entity.Trip, error) {
	return s.mutateTrip(ctx, actorID, tripID, entity.ActionStartReview, func(txCtx context.Context, trip *entity.Trip, fx *effects) error {
		if !trip.IsADMApprovalRequired {
			return fmt.Errorf("%w: trip %d does not require ADM approval", chain.ErrInvariantViolation, trip.ID)
		}
		if trip.Status != entity.TripVerified {
			return fmt.Errorf("%w: trip %d must be VERIFIED to start review, is %s", chain.ErrInvariantViolation, trip.ID, trip.Status)
		}

		reviewers, err := s.repos.TripReviewers.GetByTripID(txCtx, trip.ID)
		if err != nil {
			return fmt.Errorf("get trip reviewers: %w", err)
		}
		if len(reviewers) == 0 {
			return fmt.Errorf("%w: trip %d has no reviewers", chain.ErrInvariantViolation, trip.ID)
		}

		if err := chain.SubmitAll(reviewers); err != nil {
			return fmt.Errorf("submit trip reviewers: %w", err)
		}
		return s.seekTrip(txCtx, fx, trip, reviewers)
	})
}

// DecideAsTripReviewer records the current trip reviewer's approval. When the
// final ADM approves, connected requests waiting on ADM are released.
func (s *tripServiceImpl) DecideAsTripReviewer(ctx context.Context, actorID, reviewerID int64, decision entity.ReviewDecision, comments string) (*entity.Trip, error) {
	if decision != entity.DecisionApprove {
		return nil, fmt.Errorf("%w: trip reviewers can only approve", chain.ErrInvariantViolation)
	}

	r, err := s.repos.TripReviewers.GetByID(ctx, reviewerID)
	if err != nil {
		return nil, fmt.Errorf("get trip reviewer: %w", err)
	}
	if r == nil {
		return nil, fmt.Errorf("trip reviewer %d: %w", reviewerID, chain.ErrNotFound)
	}

	return s.mutate(ctx, actorID, r.TripID, entity.ActionApprove, func(txCtx context.Context, trip *entity.Trip, fx *effects) error {
		reviewers, err := s.repos.TripReviewers.GetByTripID(txCtx, trip.ID)
		if err != nil {
			return fmt.Errorf("get trip reviewers: %w", err)
		}

		current, ok := chain.Current(reviewers)
		if !ok || current.ID != reviewerID || current.UserID != actorID {
			return fmt.Errorf("%w: user %d is not the current reviewer of trip %d", chain.ErrAuthorization, actorID, trip.ID)
		}

		if err := chain.Apply(&current.ReviewStep, chain.TriggerApprove, s.now()); err != nil {
			return fmt.Errorf("%w: %v", chain.ErrInvariantViolation, err)
		}
		current.Comments = comments

		if err := s.seekTrip(txCtx, fx, trip, reviewers); err != nil {
			return err
		}

		if chain.IsFinalADM(reviewers, current) {
			return s.releaseRequests(txCtx, fx, actorID, trip.ID)
		}
		return nil
	})
}

// releaseRequests bulk-approves the ADM reviewer of every connected request
// currently waiting on ADM and moves each one on
func (s *tripServiceImpl) releaseRequests(ctx context.Context, fx *effects, actorID, tripID int64) error {
	requests, err := s.repos.Requests.GetByTripID(ctx, tripID)
	if err != nil {
		return fmt.Errorf("get trip requests: %w", err)
	}

	released := 0
	for _, candidate := range requests {
		if candidate.IsChild() || candidate.Status != entity.RequestPendingADMApproval {
			continue
		}

		req, reviewers, err := s.loadRequestChain(ctx, candidate.ID)
		if err != nil {
			return err
		}
		ok, err := chain.ReleaseADM(req, reviewers, s.now())
		if err != nil {
			return fmt.Errorf("release request %d: %w", req.ID, err)
		}
		if !ok {
			continue
		}

		if _, err := s.applySeek(ctx, fx, actorID, entity.ActionBulkApprove, req, reviewers, req.Status); err != nil {
			return fmt.Errorf("seek request %d: %w", req.ID, err)
		}
		released++
	}

	s.logger.Info("ADM approval released to requests", "trip_id", tripID, "released", released)
	return nil
}

// ResetTripReviewers rebuilds the trip chain from the national defaults
func (s *tripServiceImpl) ResetTripReviewers(ctx context.Context, actorID, tripID int64) ([]*entity.TripReviewer, error) {
	var reviewers []*entity.TripReviewer

	_, err := s.mutateTrip(ctx, actorID, tripID, entity.ActionResetReviewers, func(txCtx context.Context, trip *entity.Trip, fx *effects) error {
		if !trip.IsADMApprovalRequired {
			return fmt.Errorf("%w: trip %d does not require ADM approval", chain.ErrInvariantViolation, trip.ID)
		}
		if reviewLocked(trip) {
			return fmt.Errorf("%w: reviewers of trip %d cannot be reset while %s", chain.ErrInvariantViolation, trip.ID, trip.Status)
		}

		var err error
		reviewers, err = s.rebuildTripChain(txCtx, trip)
		return err
	})

	if err != nil {
		return nil, err
	}
	return reviewers, nil
}

// CancelTrip cancels the trip, its chain and every connected request that has
// not reached a final outcome
func (s *tripServiceImpl) CancelTrip(ctx context.Context, actorID, tripID int64, adminNotes string) (*entity.Trip, error) {
	return s.mutate(ctx, actorID, tripID, entity.ActionCancel, func(txCtx context.Context, trip *entity.Trip, fx *effects) error {
		if err := s.authorizeAdmin(actorID); err != nil {
			return err
		}
		if trip.Status == entity.TripCancelled {
			return fmt.Errorf("%w: trip %d is already cancelled", chain.ErrInvariantViolation, trip.ID)
		}

		requests, err := s.repos.Requests.GetByTripID(txCtx, trip.ID)
		if err != nil {
			return fmt.Errorf("get trip requests: %w", err)
		}
		for _, candidate := range requests {
			if candidate.IsChild() || candidate.Status.IsFinal() {
				continue
			}
			if err := s.cancelRequest(txCtx, fx, actorID, candidate.ID); err != nil {
				return err
			}
		}

		reviewers, err := s.repos.TripReviewers.GetByTripID(txCtx, trip.ID)
		if err != nil {
			return fmt.Errorf("get trip reviewers: %w", err)
		}
		if _, err := chain.CancelRemaining(reviewers, s.now()); err != nil {
			return fmt.Errorf("cancel trip reviewers: %w", err)
		}
		if err := s.repos.TripReviewers.Save(txCtx, reviewers); err != nil {
			return fmt.Errorf("save trip reviewers: %w", err)
		}

		// request cancellation may have re-run the cost guard and bumped the row version
		fresh, err := s.getTrip(txCtx, trip.ID)
		if err != nil {
			return err
		}
		*trip = *fresh
		trip.Status = entity.TripCancelled
		trip.AdminNotes = adminNotes
		return nil
	})
}

func (s *tripServiceImpl) cancelRequest(ctx context.Context, fx *effects, actorID, requestID int64) error {
	req, reviewers, err := s.loadRequestChain(ctx, requestID)
	if err != nil {
		return err
	}

	previous := req.Status
	if _, err := chain.CancelRemaining(reviewers, s.now()); err != nil {
		return fmt.Errorf("cancel reviewers of request %d: %w", req.ID, err)
	}
	if err := s.repos.Reviewers.Save(ctx, reviewers); err != nil {
		return fmt.Errorf("save reviewers: %w", err)
	}

	req.Status = entity.RequestCancelled
	if err := s.saveRequest(ctx, fx, actorID, entity.ActionCancel, req, previous); err != nil {
		return err
	}
	if previous != entity.RequestDraft {
		fx.notify(chain.StatusUpdateNotice(req))
	}
	return nil
}

// mutateTrip runs an admin-only trip mutation
func (s *tripServiceImpl) mutateTrip(ctx context.Context, actorID, tripID int64, action string, fn func(ctx context.Context, trip *entity.Trip, fx *effects) error) (*entity.Trip, error) {
	if err := s.authorizeAdmin(actorID); err != nil {
		return nil, err
	}
	return s.mutate(ctx, actorID, tripID, action, fn)
}

// mutate loads the trip, applies fn and writes the trip and its history in
// one transaction, publishing effects after commit
func (s *tripServiceImpl) mutate(ctx context.Context, actorID, tripID int64, action string, fn func(ctx context.Context, trip *entity.Trip, fx *effects) error) (*entity.Trip, error) {
	var trip *entity.Trip
	fx := &effects{}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		if trip, err = s.getTrip(txCtx, tripID); err != nil {
			return err
		}
		previous := trip.Status

		if err := fn(txCtx, trip, fx); err != nil {
			return err
		}

		trip.UpdatedAt = s.now()
		if err := s.repos.Trips.Update(txCtx, trip); err != nil {
			return fmt.Errorf("update trip %d: %w", trip.ID, err)
		}
		if previous != trip.Status {
			fx.tripChanges = append(fx.tripChanges, statusChange{id: trip.ID, from: previous.String(), to: trip.Status.String()})
		}
		return s.recordTrip(txCtx, actorID, trip, previous, action, "")
	})

	if err != nil {
		s.logger.Error("Trip operation failed", "error", err, "trip_id", tripID, "action", action, "actor_id", actorID)
		return nil, err
	}

	s.publish(ctx, fx)
	s.logger.Info("Trip updated", "trip_id", trip.ID, "action", action, "status", trip.Status)
	return trip, nil
}

// seekTrip runs the trip seeker and saves the chain; the caller writes the trip
func (s *tripServiceImpl) seekTrip(ctx context.Context, fx *effects, trip *entity.Trip, reviewers []*entity.TripReviewer) error {
	out, err := s.policy.Seeker.SeekTrip(trip, reviewers)
	if err != nil {
		return err
	}
	fx.notify(out.Notices...)

	if err := s.repos.TripReviewers.Save(ctx, reviewers); err != nil {
		return fmt.Errorf("save trip reviewers: %w", err)
	}
	return nil
}

func (s *tripServiceImpl) rebuildTripChain(ctx context.Context, trip *entity.Trip) ([]*entity.TripReviewer, error) {
	defaults, err := s.org.TripDefaults(ctx)
	if err != nil {
		return nil, fmt.Errorf("get trip defaults: %w", err)
	}

	reviewers := chain.BuildTripChain(trip.ID, *defaults)
	if err := s.repos.TripReviewers.ReplaceChain(ctx, trip.ID, reviewers); err != nil {
		return nil, fmt.Errorf("replace trip reviewers: %w", err)
	}
	return reviewers, nil
}

func (s *tripServiceImpl) recordTrip(ctx context.Context, actorID int64, trip *entity.Trip, previous entity.TripStatus, action, data string) error {
	return s.record(ctx, &entity.ReviewHistory{
		TripID:         &trip.ID,
		ActorID:        actorID,
		PreviousStatus: previous.String(),
		NewStatus:      trip.Status.String(),
		ActionType:     action,
		ActionData:     data,
	})
}

// reviewLocked reports whether the trip chain can no longer be changed
func reviewLocked(trip *entity.Trip) bool {
	switch trip.Status {
	case entity.TripUnderReview, entity.TripReviewed, entity.TripCancelled:
		return true
	}
	return false
}
