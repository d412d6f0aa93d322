package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/travel-review/internal/application/dispatcher"
	"github.com/garyjia/travel-review/internal/application/port"
	"github.com/garyjia/travel-review/internal/domain/chain"
	"github.com/garyjia/travel-review/internal/domain/entity"
	"github.com/garyjia/travel-review/internal/domain/event"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// DefaultLateSubmissionWindow is how long before a trip starts requests stop
// being eligible for ADM review when the trip has no explicit deadline
const DefaultLateSubmissionWindow = 21 * 24 * time.Hour

// Repositories groups the persistence ports used by the review services
type Repositories struct {
	Requests      port.RequestRepository
	Travellers    port.TravellerRepository
	Reviewers     port.ReviewerRepository
	Trips         port.TripRepository
	TripReviewers port.TripReviewerRepository
	History       port.HistoryRepository
}

// Policy holds the review rules and settings shared by the services
type Policy struct {
	Builder    *chain.Builder
	Seeker     *chain.Seeker
	CostGuard  *chain.CostGuard
	AdminIDs   []int64
	LateWindow time.Duration
}

// core is the machinery shared by the request and trip services: loading
// chains, persisting seek results and collecting post-commit effects
type core struct {
	repos      Repositories
	org        port.OrgLookup
	txManager  port.TransactionManager
	policy     Policy
	admins     map[int64]bool
	dispatcher dispatcher.Dispatcher
	logger     Logger
}

func newCore(repos Repositories, org port.OrgLookup, txManager port.TransactionManager, policy Policy, d dispatcher.Dispatcher, logger Logger) *core {
	if policy.Builder == nil {
		policy.Builder = chain.NewBuilder(nil, nil)
	}
	if policy.Seeker == nil {
		policy.Seeker = chain.NewSeeker(nil)
	}
	if policy.CostGuard == nil {
		policy.CostGuard = chain.NewCostGuard(0, nil, nil)
	}
	if policy.LateWindow <= 0 {
		policy.LateWindow = DefaultLateSubmissionWindow
	}

	admins := make(map[int64]bool, len(policy.AdminIDs))
	for _, id := range policy.AdminIDs {
		admins[id] = true
	}

	return &core{
		repos:      repos,
		org:        org,
		txManager:  txManager,
		policy:     policy,
		admins:     admins,
		dispatcher: d,
		logger:     logger,
	}
}

// effects collects what a transaction decided to announce once it commits
type effects struct {
	notices        []entity.Notice
	requestChanges []statusChange
	tripChanges    []statusChange
}

type statusChange struct {
	id       int64
	from, to string
}

func (f *effects) notify(notices ...entity.Notice) {
	f.notices = append(f.notices, notices...)
}

// publish hands committed effects to the dispatcher
func (c *core) publish(ctx context.Context, fx *effects) {
	for _, ch := range fx.requestChanges {
		dispatcher.PublishStatusChange(ctx, c.dispatcher, event.TypeRequestStatusChanged, ch.id, 0, ch.from, ch.to)
	}
	for _, ch := range fx.tripChanges {
		dispatcher.PublishStatusChange(ctx, c.dispatcher, event.TypeTripStatusChanged, 0, ch.id, ch.from, ch.to)
	}
	dispatcher.PublishNotices(ctx, c.dispatcher, c.logger, fx.notices)
}

func (c *core) now() time.Time {
	return c.policy.Seeker.Now()
}

func (c *core) isAdmin(userID int64) bool {
	return c.admins[userID]
}

// authorizeOwner allows the request owner and administrators
func (c *core) authorizeOwner(actorID int64, req *entity.Request) error {
	if actorID == req.OwnerID || c.isAdmin(actorID) {
		return nil
	}
	return fmt.Errorf("%w: user %d does not own request %d", chain.ErrAuthorization, actorID, req.ID)
}

func (c *core) authorizeAdmin(actorID int64) error {
	if c.isAdmin(actorID) {
		return nil
	}
	return fmt.Errorf("%w: user %d is not an administrator", chain.ErrAuthorization, actorID)
}

func (c *core) getRequest(ctx context.Context, id int64) (*entity.Request, error) {
	req, err := c.repos.Requests.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("request %d: %w", id, chain.ErrNotFound)
	}
	return req, nil
}

// loadRequestChain loads a request that owns a chain, with its travellers and chain
func (c *core) loadRequestChain(ctx context.Context, id int64) (*entity.Request, []*entity.Reviewer, error) {
	req, err := c.getRequest(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if req.IsChild() {
		return nil, nil, fmt.Errorf("%w: request %d belongs to group %d; act on the group", chain.ErrInvariantViolation, req.ID, *req.ParentRequestID)
	}

	if req.Travellers, err = c.repos.Travellers.GetByRequestID(ctx, id); err != nil {
		return nil, nil, fmt.Errorf("get travellers: %w", err)
	}

	if req.IsGroup {
		if req.Members, err = c.loadMembers(ctx, id); err != nil {
			return nil, nil, err
		}
	}

	reviewers, err := c.repos.Reviewers.GetByRequestID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("get reviewers: %w", err)
	}
	return req, reviewers, nil
}

// loadMembers loads the children of a group request with their travellers
func (c *core) loadMembers(ctx context.Context, parentID int64) ([]*entity.Request, error) {
	children, err := c.repos.Requests.GetChildren(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("get children: %w", err)
	}
	for _, child := range children {
		if child.Travellers, err = c.repos.Travellers.GetByRequestID(ctx, child.ID); err != nil {
			return nil, fmt.Errorf("get travellers of request %d: %w", child.ID, err)
		}
	}
	return children, nil
}

func (c *core) getTrip(ctx context.Context, id int64) (*entity.Trip, error) {
	trip, err := c.repos.Trips.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get trip: %w", err)
	}
	if trip == nil {
		return nil, fmt.Errorf("trip %d: %w", id, chain.ErrNotFound)
	}
	return trip, nil
}

// buildRequestChain resolves the org chart for the request and assembles its chain
func (c *core) buildRequestChain(ctx context.Context, req *entity.Request) ([]*entity.Reviewer, error) {
	path, err := c.org.SectionPath(ctx, req.SectionID)
	if err != nil {
		return nil, fmt.Errorf("resolve section %d: %w", req.SectionID, err)
	}

	in := chain.BuildInput{
		RequestID:   req.ID,
		RequesterID: req.OwnerID,
		Path:        *path,
	}

	if in.SectionDefaultIDs, err = c.org.DefaultReviewers(ctx, entity.ScopeSection, path.SectionID); err != nil {
		return nil, fmt.Errorf("get section defaults: %w", err)
	}
	if path.BranchID != 0 {
		if in.BranchDefaultIDs, err = c.org.DefaultReviewers(ctx, entity.ScopeBranch, path.BranchID); err != nil {
			return nil, fmt.Errorf("get branch defaults: %w", err)
		}
	}

	if req.TripID != nil {
		trip, err := c.getTrip(ctx, *req.TripID)
		if err != nil {
			return nil, err
		}
		if trip.IsADMApprovalRequired {
			in.RequiresADM = true
			contacts, err := c.org.DefaultReviewers(ctx, entity.ScopeADMContact, 0)
			if err != nil {
				return nil, fmt.Errorf("get ADM contact: %w", err)
			}
			if len(contacts) > 0 {
				in.ADMContactID = contacts[0]
			}
		}
	}

	return c.policy.Builder.BuildRequestChain(in), nil
}

// applySeek runs the seeker over a parent or standalone request, persists the
// chain, request, children and history, and re-evaluates the trip cost when
// the status moved. Must run inside a transaction.
func (c *core) applySeek(ctx context.Context, fx *effects, actorID int64, action string, req *entity.Request, reviewers []*entity.Reviewer, previous entity.RequestStatus) (*chain.Outcome, error) {
	out, err := c.policy.Seeker.Seek(req, reviewers)
	if err != nil {
		return nil, err
	}
	fx.notify(out.Notices...)

	if err := c.repos.Reviewers.Save(ctx, reviewers); err != nil {
		return nil, fmt.Errorf("save reviewers: %w", err)
	}

	if err := c.saveRequest(ctx, fx, actorID, action, req, previous); err != nil {
		return nil, err
	}

	return out, nil
}

// saveRequest writes the request, mirrors its state onto group children,
// records history and re-runs the cost guard when the status changed
func (c *core) saveRequest(ctx context.Context, fx *effects, actorID int64, action string, req *entity.Request, previous entity.RequestStatus) error {
	req.UpdatedAt = c.now()
	if err := c.repos.Requests.Update(ctx, req); err != nil {
		return fmt.Errorf("update request %d: %w", req.ID, err)
	}

	if err := c.record(ctx, &entity.ReviewHistory{
		RequestID:      &req.ID,
		ActorID:        actorID,
		PreviousStatus: previous.String(),
		NewStatus:      req.Status.String(),
		ActionType:     action,
	}); err != nil {
		return err
	}

	if req.IsGroup {
		if err := c.mirrorChildren(ctx, req); err != nil {
			return err
		}
	}

	if previous != req.Status {
		fx.requestChanges = append(fx.requestChanges, statusChange{id: req.ID, from: previous.String(), to: req.Status.String()})
		if req.TripID != nil && previous.CountsTowardCost() != req.Status.CountsTowardCost() {
			if err := c.evaluateTripCost(ctx, fx, actorID, *req.TripID); err != nil {
				return err
			}
		}
	}

	return nil
}

// mirrorChildren copies the parent's status and submission time onto its children
func (c *core) mirrorChildren(ctx context.Context, parent *entity.Request) error {
	children, err := c.repos.Requests.GetChildren(ctx, parent.ID)
	if err != nil {
		return fmt.Errorf("get children: %w", err)
	}

	for _, child := range children {
		if child.Status == parent.Status && sameTime(child.SubmittedAt, parent.SubmittedAt) {
			continue
		}
		child.Status = parent.Status
		child.SubmittedAt = parent.SubmittedAt
		child.UpdatedAt = parent.UpdatedAt
		if err := c.repos.Requests.Update(ctx, child); err != nil {
			return fmt.Errorf("update child request %d: %w", child.ID, err)
		}
	}

	return nil
}

// evaluateTripCost recomputes the non-resident total of a trip and queues the
// one-time cost warning when the threshold is crossed
func (c *core) evaluateTripCost(ctx context.Context, fx *effects, actorID, tripID int64) error {
	trip, err := c.getTrip(ctx, tripID)
	if err != nil {
		return err
	}

	requests, err := c.repos.Requests.GetByTripID(ctx, tripID)
	if err != nil {
		return fmt.Errorf("get trip requests: %w", err)
	}
	for _, req := range requests {
		if req.Travellers, err = c.repos.Travellers.GetByRequestID(ctx, req.ID); err != nil {
			return fmt.Errorf("get travellers: %w", err)
		}
	}

	before := trip.NonResidentTotalCost
	eval := c.policy.CostGuard.Evaluate(trip, requests)
	if eval.Total == before && !eval.Warned && !eval.Cleared {
		return nil
	}

	trip.UpdatedAt = c.now()
	if err := c.repos.Trips.Update(ctx, trip); err != nil {
		return fmt.Errorf("update trip %d: %w", trip.ID, err)
	}

	if eval.Warned || eval.Cleared {
		if err := c.record(ctx, &entity.ReviewHistory{
			TripID:         &trip.ID,
			ActorID:        actorID,
			PreviousStatus: trip.Status.String(),
			NewStatus:      trip.Status.String(),
			ActionType:     entity.ActionCostUpdate,
			ActionData:     fmt.Sprintf("non-resident total %.2f (warned=%t cleared=%t)", eval.Total, eval.Warned, eval.Cleared),
		}); err != nil {
			return err
		}
	}
	if eval.Notice != nil {
		fx.notify(*eval.Notice)
	}

	return nil
}

func (c *core) record(ctx context.Context, h *entity.ReviewHistory) error {
	if h.Timestamp.IsZero() {
		h.Timestamp = c.now()
	}
	if err := c.repos.History.Create(ctx, h); err != nil {
		return fmt.Errorf("create history: %w", err)
	}
	return nil
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
