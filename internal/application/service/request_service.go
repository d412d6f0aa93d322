package service

import (
	"context"
	"fmt"

	"github.com/garyjia/travel-review/internal/application/dispatcher"
	"github.com/garyjia/travel-review/internal/application/port"
	"github.com/garyjia/travel-review/internal/domain/chain"
	"github.com/garyjia/travel-review/internal/domain/entity"
)

// RequestService manages trip requests and their reviewer chains
type RequestService interface {
	CreateRequest(ctx context.Context, in CreateRequestInput) (*entity.Request, error)
	GetRequest(ctx context.Context, id int64) (*RequestDetail, error)
	SubmitRequest(ctx context.Context, actorID, requestID int64) (*entity.Request, error)
	UnsubmitRequest(ctx context.Context, actorID, requestID int64) (*entity.Request, error)
	DecideAsReviewer(ctx context.Context, actorID, reviewerID int64, decision entity.ReviewDecision, comments string) (*entity.Request, error)
	RequestChanges(ctx context.Context, actorID, requestID int64, comments string) (*entity.Request, error)
	ResetReviewers(ctx context.Context, actorID, requestID int64) ([]*entity.Reviewer, error)
	UpdateTravellerCost(ctx context.Context, actorID, travellerID int64, cost float64) error
}

// CreateRequestInput describes a new request
type CreateRequestInput struct {
	FiscalYear      string           `json:"fiscal_year"`
	OwnerID         int64            `json:"owner_id"`
	SectionID       int64            `json:"section_id"`
	TripID          *int64           `json:"trip_id,omitempty"`
	IsGroup         bool             `json:"is_group"`
	ParentRequestID *int64           `json:"parent_request_id,omitempty"`
	Travellers      []TravellerInput `json:"travellers"`
}

// TravellerInput describes one traveller on a new request
type TravellerInput struct {
	UserID              int64   `json:"user_id"`
	IsResearchScientist bool    `json:"is_research_scientist"`
	TotalCost           float64 `json:"total_cost"`
}

// RequestDetail is a request with its chain and audit trail
type RequestDetail struct {
	Request   *entity.Request         `json:"request"`
	Reviewers []*entity.Reviewer      `json:"reviewers"`
	History   []*entity.ReviewHistory `json:"history"`
}

type requestServiceImpl struct {
	*core
}

// NewRequestService creates a new RequestService
func NewRequestService(
	repos Repositories,
	org port.OrgLookup,
	txManager port.TransactionManager,
	policy Policy,
	d dispatcher.Dispatcher,
	logger Logger,
) RequestService {
	return &requestServiceImpl{
		core: newCore(repos, org, txManager, policy, d, logger),
	}
}

// CreateRequest creates a request and, unless it joins a group, builds its chain
func (s *requestServiceImpl) CreateRequest(ctx context.Context, in CreateRequestInput) (*entity.Request, error) {
	if in.OwnerID == 0 {
		return nil, fmt.Errorf("%w: owner is required", chain.ErrInvariantViolation)
	}

	now := s.now()
	req := &entity.Request{
		FiscalYear:      in.FiscalYear,
		OwnerID:         in.OwnerID,
		SectionID:       in.SectionID,
		TripID:          in.TripID,
		IsGroup:         in.IsGroup,
		ParentRequestID: in.ParentRequestID,
		Status:          entity.RequestDraft,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	fx := &effects{}
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.prepareNewRequest(txCtx, req); err != nil {
			return err
		}

		if err := s.repos.Requests.Create(txCtx, req); err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		for _, t := range in.Travellers {
			traveller := &entity.Traveller{
				RequestID:           req.ID,
				UserID:              t.UserID,
				IsResearchScientist: t.IsResearchScientist,
				TotalCost:           t.TotalCost,
			}
			if err := s.repos.Travellers.Create(txCtx, traveller); err != nil {
				return fmt.Errorf("create traveller: %w", err)
			}
			req.Travellers = append(req.Travellers, traveller)
		}

		if !req.IsChild() {
			reviewers, err := s.buildRequestChain(txCtx, req)
			if err != nil {
				return err
			}
			if err := s.repos.Reviewers.ReplaceChain(txCtx, req.ID, reviewers); err != nil {
				return fmt.Errorf("create reviewers: %w", err)
			}
		}

		if err := s.record(txCtx, &entity.ReviewHistory{
			RequestID:  &req.ID,
			ActorID:    req.OwnerID,
			NewStatus:  req.Status.String(),
			ActionType: entity.ActionCreate,
		}); err != nil {
			return err
		}

		if req.TripID != nil && req.Status.CountsTowardCost() {
			return s.evaluateTripCost(txCtx, fx, req.OwnerID, *req.TripID)
		}
		return nil
	})

	if err != nil {
		s.logger.Error("Failed to create request", "error", err, "owner_id", in.OwnerID)
		return nil, err
	}

	s.publish(ctx, fx)
	s.logger.Info("Request created", "id", req.ID, "owner_id", req.OwnerID, "child", req.IsChild())
	return req, nil
}

// prepareNewRequest checks group membership and trip linkage. A child takes
// its trip, section and state from the parent.
func (s *requestServiceImpl) prepareNewRequest(ctx context.Context, req *entity.Request) error {
	if req.ParentRequestID != nil {
		if req.IsGroup {
			return fmt.Errorf("%w: a group member cannot itself be a group", chain.ErrInvariantViolation)
		}
		parent, err := s.getRequest(ctx, *req.ParentRequestID)
		if err != nil {
			return err
		}
		if !parent.IsGroup || parent.IsChild() {
			return fmt.Errorf("%w: request %d cannot hold group members", chain.ErrInvariantViolation, parent.ID)
		}
		req.TripID = parent.TripID
		if req.SectionID == 0 {
			req.SectionID = parent.SectionID
		}
		req.FiscalYear = parent.FiscalYear
		req.Status = parent.Status
		req.SubmittedAt = parent.SubmittedAt
	}

	if req.TripID != nil {
		trip, err := s.getTrip(ctx, *req.TripID)
		if err != nil {
			return err
		}
		if trip.Status == entity.TripCancelled {
			return fmt.Errorf("%w: trip %d is cancelled", chain.ErrInvariantViolation, trip.ID)
		}
	}

	return nil
}

// GetRequest returns a request with its chain and history
func (s *requestServiceImpl) GetRequest(ctx context.Context, id int64) (*RequestDetail, error) {
	req, err := s.getRequest(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Travellers, err = s.repos.Travellers.GetByRequestID(ctx, id); err != nil {
		return nil, fmt.Errorf("get travellers: %w", err)
	}

	detail := &RequestDetail{Request: req, Reviewers: []*entity.Reviewer{}}
	if !req.IsChild() {
		if detail.Reviewers, err = s.repos.Reviewers.GetByRequestID(ctx, id); err != nil {
			return nil, fmt.Errorf("get reviewers: %w", err)
		}
	}
	if detail.History, err = s.repos.History.GetByRequestID(ctx, id); err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}

	return detail, nil
}

// SubmitRequest freezes the chain, inserts the late NCR reviewer when the
// trip's ADM review cutoff has passed, and activates the first reviewer
func (s *requestServiceImpl) SubmitRequest(ctx context.Context, actorID, requestID int64) (*entity.Request, error) {
	var req *entity.Request
	fx := &effects{}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var reviewers []*entity.Reviewer
		var err error
		if req, reviewers, err = s.loadRequestChain(txCtx, requestID); err != nil {
			return err
		}
		if err := s.authorizeOwner(actorID, req); err != nil {
			return err
		}
		if req.Status != entity.RequestDraft && req.Status != entity.RequestChangesRequested {
			return fmt.Errorf("%w: request %d cannot be submitted from %s", chain.ErrInvariantViolation, req.ID, req.Status)
		}
		if len(reviewers) == 0 {
			return fmt.Errorf("%w: request %d has no reviewers", chain.ErrInvariantViolation, req.ID)
		}

		if req.Status == entity.RequestDraft {
			if reviewers, err = s.insertLateReviewer(txCtx, req, reviewers); err != nil {
				return err
			}
		}

		previous := req.Status
		now := s.now()
		req.SubmittedAt = &now
		req.Status = entity.RequestSubmitted
		if err := chain.SubmitAll(reviewers); err != nil {
			return fmt.Errorf("submit reviewers: %w", err)
		}

		_, err = s.applySeek(txCtx, fx, actorID, entity.ActionSubmit, req, reviewers, previous)
		return err
	})

	if err != nil {
		s.logger.Error("Failed to submit request", "error", err, "id", requestID, "actor_id", actorID)
		return nil, err
	}

	s.publish(ctx, fx)
	s.logger.Info("Request submitted", "id", req.ID, "status", req.Status, "late", req.IsLateSubmission)
	return req, nil
}

// insertLateReviewer puts the NCR reviewer at the head of the chain when the
// request misses its trip's ADM review cutoff. No configured NCR reviewer means
// nothing is inserted.
func (s *requestServiceImpl) insertLateReviewer(ctx context.Context, req *entity.Request, reviewers []*entity.Reviewer) ([]*entity.Reviewer, error) {
	if req.TripID == nil {
		return reviewers, nil
	}

	trip, err := s.getTrip(ctx, *req.TripID)
	if err != nil {
		return nil, err
	}
	if !trip.IsADMApprovalRequired || !s.now().After(trip.ReviewCutoff(s.policy.LateWindow)) {
		return reviewers, nil
	}

	req.IsLateSubmission = true

	ids, err := s.org.DefaultReviewers(ctx, entity.ScopeNCRReviewer, 0)
	if err != nil {
		return nil, fmt.Errorf("get NCR reviewer: %w", err)
	}
	if len(ids) == 0 {
		s.logger.Info("No NCR reviewer configured, late request goes through unchanged", "id", req.ID)
		return reviewers, nil
	}

	updated, inserted := chain.InsertLateReviewer(reviewers, req.ID, ids[0])
	if !inserted {
		return reviewers, nil
	}
	if err := s.repos.Reviewers.Insert(ctx, updated[0]); err != nil {
		return nil, fmt.Errorf("insert late reviewer: %w", err)
	}
	return updated, nil
}

// UnsubmitRequest pulls a request back to DRAFT and resets every reviewer
func (s *requestServiceImpl) UnsubmitRequest(ctx context.Context, actorID, requestID int64) (*entity.Request, error) {
	var req *entity.Request
	fx := &effects{}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var reviewers []*entity.Reviewer
		var err error
		if req, reviewers, err = s.loadRequestChain(txCtx, requestID); err != nil {
			return err
		}
		if err := s.authorizeOwner(actorID, req); err != nil {
			return err
		}
		if !req.IsSubmitted() || req.Status.IsFinal() {
			return fmt.Errorf("%w: request %d cannot be unsubmitted from %s", chain.ErrInvariantViolation, req.ID, req.Status)
		}

		previous := req.Status
		if err := chain.UnsubmitAll(reviewers); err != nil {
			return fmt.Errorf("unsubmit reviewers: %w", err)
		}
		req.SubmittedAt = nil
		req.Status = entity.RequestDraft

		_, err = s.applySeek(txCtx, fx, actorID, entity.ActionUnsubmit, req, reviewers, previous)
		return err
	})

	if err != nil {
		s.logger.Error("Failed to unsubmit request", "error", err, "id", requestID, "actor_id", actorID)
		return nil, err
	}

	s.publish(ctx, fx)
	s.logger.Info("Request unsubmitted", "id", req.ID)
	return req, nil
}

// DecideAsReviewer records an approval or denial by the current reviewer
func (s *requestServiceImpl) DecideAsReviewer(ctx context.Context, actorID, reviewerID int64, decision entity.ReviewDecision, comments string) (*entity.Request, error) {
	if !decision.IsValid() {
		return nil, fmt.Errorf("%w: unknown decision %q", chain.ErrInvariantViolation, decision)
	}

	var req *entity.Request
	fx := &effects{}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		r, err := s.repos.Reviewers.GetByID(txCtx, reviewerID)
		if err != nil {
			return fmt.Errorf("get reviewer: %w", err)
		}
		if r == nil {
			return fmt.Errorf("reviewer %d: %w", reviewerID, chain.ErrNotFound)
		}

		var reviewers []*entity.Reviewer
		if req, reviewers, err = s.loadRequestChain(txCtx, r.RequestID); err != nil {
			return err
		}
		trigger, action := chain.TriggerApprove, entity.ActionApprove
		if decision == entity.DecisionDeny {
			trigger, action = chain.TriggerDeny, entity.ActionDeny
		}
		current, err := s.currentReviewer(req, reviewers, actorID, trigger)
		if err != nil {
			return err
		}
		if current.ID != reviewerID {
			return fmt.Errorf("%w: reviewer %d is not the current reviewer of request %d", chain.ErrAuthorization, reviewerID, req.ID)
		}

		if err := chain.Apply(&current.ReviewStep, trigger, s.now()); err != nil {
			return fmt.Errorf("%w: %v", chain.ErrInvariantViolation, err)
		}
		current.Comments = comments

		_, err = s.applySeek(txCtx, fx, actorID, action, req, reviewers, req.Status)
		return err
	})

	if err != nil {
		s.logger.Error("Failed to record decision", "error", err, "reviewer_id", reviewerID, "actor_id", actorID)
		return nil, err
	}

	s.publish(ctx, fx)
	s.logger.Info("Reviewer decision recorded", "reviewer_id", reviewerID, "decision", decision, "request_id", req.ID, "status", req.Status)
	return req, nil
}

// currentReviewer returns the PENDING reviewer when actorID holds that seat
// and the reviewer can take trigger
func (s *requestServiceImpl) currentReviewer(req *entity.Request, reviewers []*entity.Reviewer, actorID int64, trigger chain.Trigger) (*entity.Reviewer, error) {
	current, ok := chain.Current(reviewers)
	if !ok || current.UserID != actorID {
		return nil, fmt.Errorf("%w: user %d is not the current reviewer of request %d", chain.ErrAuthorization, actorID, req.ID)
	}
	if !req.Status.IsAwaiting() {
		return nil, fmt.Errorf("%w: request %d is not awaiting review (%s)", chain.ErrInvariantViolation, req.ID, req.Status)
	}
	if !chain.CanApply(&current.ReviewStep, trigger) {
		return nil, fmt.Errorf("%w: reviewer %d cannot %s from %s", chain.ErrInvariantViolation, current.ID, trigger, current.Status)
	}
	return current, nil
}

// RequestChanges sends the request back to its owner. The current reviewer
// stays PENDING and is re-activated on resubmission.
func (s *requestServiceImpl) RequestChanges(ctx context.Context, actorID, requestID int64, comments string) (*entity.Request, error) {
	var req *entity.Request
	fx := &effects{}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var reviewers []*entity.Reviewer
		var err error
		if req, reviewers, err = s.loadRequestChain(txCtx, requestID); err != nil {
			return err
		}
		current, err := s.currentReviewer(req, reviewers, actorID, chain.TriggerActivate)
		if err != nil {
			return err
		}

		previous := req.Status
		current.Comments = comments
		req.Status = entity.RequestChangesRequested
		fx.notify(chain.ChangesRequestedNotice(req, current))

		_, err = s.applySeek(txCtx, fx, actorID, entity.ActionRequestChanges, req, reviewers, previous)
		return err
	})

	if err != nil {
		s.logger.Error("Failed to request changes", "error", err, "id", requestID, "actor_id", actorID)
		return nil, err
	}

	s.publish(ctx, fx)
	s.logger.Info("Changes requested", "id", req.ID, "actor_id", actorID)
	return req, nil
}

// ResetReviewers rebuilds the chain of a DRAFT request from the org chart
func (s *requestServiceImpl) ResetReviewers(ctx context.Context, actorID, requestID int64) ([]*entity.Reviewer, error) {
	var reviewers []*entity.Reviewer

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		req, _, err := s.loadRequestChain(txCtx, requestID)
		if err != nil {
			return err
		}
		if err := s.authorizeOwner(actorID, req); err != nil {
			return err
		}
		if req.Status != entity.RequestDraft {
			return fmt.Errorf("%w: reviewers of request %d can only be reset in DRAFT", chain.ErrInvariantViolation, req.ID)
		}

		if reviewers, err = s.buildRequestChain(txCtx, req); err != nil {
			return err
		}
		if err := s.repos.Reviewers.ReplaceChain(txCtx, req.ID, reviewers); err != nil {
			return fmt.Errorf("replace reviewers: %w", err)
		}

		return s.record(txCtx, &entity.ReviewHistory{
			RequestID:      &req.ID,
			ActorID:        actorID,
			PreviousStatus: req.Status.String(),
			NewStatus:      req.Status.String(),
			ActionType:     entity.ActionResetReviewers,
			ActionData:     fmt.Sprintf("%d reviewers", len(reviewers)),
		})
	})

	if err != nil {
		s.logger.Error("Failed to reset reviewers", "error", err, "id", requestID, "actor_id", actorID)
		return nil, err
	}

	s.logger.Info("Reviewers reset", "id", requestID, "count", len(reviewers))
	return reviewers, nil
}

// UpdateTravellerCost changes one traveller's cost and re-runs the trip cost guard
func (s *requestServiceImpl) UpdateTravellerCost(ctx context.Context, actorID, travellerID int64, cost float64) error {
	if cost < 0 {
		return fmt.Errorf("%w: cost cannot be negative", chain.ErrInvariantViolation)
	}

	fx := &effects{}
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		traveller, err := s.repos.Travellers.GetByID(txCtx, travellerID)
		if err != nil {
			return fmt.Errorf("get traveller: %w", err)
		}
		if traveller == nil {
			return fmt.Errorf("traveller %d: %w", travellerID, chain.ErrNotFound)
		}

		req, err := s.getRequest(txCtx, traveller.RequestID)
		if err != nil {
			return err
		}
		if err := s.authorizeOwner(actorID, req); err != nil {
			return err
		}

		if err := s.repos.Travellers.UpdateCost(txCtx, travellerID, cost); err != nil {
			return fmt.Errorf("update traveller cost: %w", err)
		}

		if err := s.record(txCtx, &entity.ReviewHistory{
			RequestID:      &req.ID,
			ActorID:        actorID,
			PreviousStatus: req.Status.String(),
			NewStatus:      req.Status.String(),
			ActionType:     entity.ActionCostUpdate,
			ActionData:     fmt.Sprintf("traveller %d: %.2f -> %.2f", travellerID, traveller.TotalCost, cost),
		}); err != nil {
			return err
		}

		if req.TripID == nil {
			return nil
		}
		return s.evaluateTripCost(txCtx, fx, actorID, *req.TripID)
	})

	if err != nil {
		s.logger.Error("Failed to update traveller cost", "error", err, "traveller_id", travellerID)
		return err
	}

	s.publish(ctx, fx)
	s.logger.Info("Traveller cost updated", "traveller_id", travellerID, "cost", cost)
	return nil
}
