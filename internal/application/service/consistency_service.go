package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/travel-review/internal/application/dispatcher"
	"github.com/garyjia/travel-review/internal/application/port"
	"github.com/garyjia/travel-review/internal/domain/chain"
	"github.com/garyjia/travel-review/internal/domain/entity"
)

// ConsistencyService finds chains whose stored state breaks the review rules
// and, on request, repairs them
type ConsistencyService interface {
	Check(ctx context.Context, repair bool) (*ConsistencyReport, error)
}

// Issue is one chain that failed the integrity check
type Issue struct {
	Subject  string `json:"subject"`
	ID       int64  `json:"id"`
	Problem  string `json:"problem"`
	Repaired bool   `json:"repaired"`
}

// ConsistencyReport summarizes a check run
type ConsistencyReport struct {
	RequestsChecked int     `json:"requests_checked"`
	TripsChecked    int     `json:"trips_checked"`
	Issues          []Issue `json:"issues"`
}

// Subjects of an Issue
const (
	SubjectRequest = "request"
	SubjectTrip    = "trip"
)

// systemActor is recorded in history for repairs
const systemActor int64 = 0

type consistencyServiceImpl struct {
	*core
}

// NewConsistencyService creates a new ConsistencyService
func NewConsistencyService(
	repos Repositories,
	txManager port.TransactionManager,
	policy Policy,
	d dispatcher.Dispatcher,
	logger Logger,
) ConsistencyService {
	return &consistencyServiceImpl{
		core: newCore(repos, nil, txManager, policy, d, logger),
	}
}

// Check scans every request and trip chain
func (s *consistencyServiceImpl) Check(ctx context.Context, repair bool) (*ConsistencyReport, error) {
	report := &ConsistencyReport{Issues: []Issue{}}

	requestIDs, err := s.repos.Requests.ListReviewableIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	for _, id := range requestIDs {
		report.RequestsChecked++
		issue, err := s.checkRequest(ctx, id, repair)
		if err != nil {
			return report, err
		}
		if issue != nil {
			report.Issues = append(report.Issues, *issue)
		}
	}

	tripIDs, err := s.repos.Trips.ListIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("list trips: %w", err)
	}
	for _, id := range tripIDs {
		report.TripsChecked++
		issue, err := s.checkTrip(ctx, id, repair)
		if err != nil {
			return report, err
		}
		if issue != nil {
			report.Issues = append(report.Issues, *issue)
		}
	}

	s.logger.Info("Consistency check finished",
		"requests", report.RequestsChecked,
		"trips", report.TripsChecked,
		"issues", len(report.Issues),
		"repair", repair,
	)
	return report, nil
}

func (s *consistencyServiceImpl) checkRequest(ctx context.Context, id int64, repair bool) (*Issue, error) {
	var issue *Issue
	fx := &effects{}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		req, reviewers, err := s.loadRequestChain(txCtx, id)
		if err != nil {
			return err
		}

		problem := chain.CheckIntegrity(reviewers)
		if problem == nil {
			return nil
		}
		issue = &Issue{Subject: SubjectRequest, ID: id, Problem: problem.Error()}
		if !repair {
			return nil
		}

		changed, err := chain.Repair(reviewers, req.IsSubmitted())
		if err != nil || !changed {
			return nil
		}
		if _, err := s.applySeek(txCtx, fx, systemActor, entity.ActionRepair, req, reviewers, req.Status); err != nil {
			return err
		}
		issue.Repaired = true
		return nil
	})

	if err != nil && !errors.Is(err, chain.ErrIntegrity) {
		return nil, fmt.Errorf("check request %d: %w", id, err)
	}
	if issue != nil && issue.Repaired {
		s.publish(ctx, fx)
		s.logger.Info("Request chain repaired", "id", id, "problem", issue.Problem)
	}
	return issue, nil
}

func (s *consistencyServiceImpl) checkTrip(ctx context.Context, id int64, repair bool) (*Issue, error) {
	var issue *Issue
	fx := &effects{}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		trip, err := s.getTrip(txCtx, id)
		if err != nil {
			return err
		}
		reviewers, err := s.repos.TripReviewers.GetByTripID(txCtx, id)
		if err != nil {
			return fmt.Errorf("get trip reviewers: %w", err)
		}

		problem := chain.CheckIntegrity(reviewers)
		if problem == nil {
			return nil
		}
		issue = &Issue{Subject: SubjectTrip, ID: id, Problem: problem.Error()}
		if !repair {
			return nil
		}

		started := trip.Status != entity.TripUnverified && trip.Status != entity.TripVerified
		changed, err := chain.Repair(reviewers, started)
		if err != nil || !changed {
			return nil
		}

		previous := trip.Status
		out, err := s.policy.Seeker.SeekTrip(trip, reviewers)
		if err != nil {
			return err
		}
		fx.notify(out.Notices...)
		if err := s.repos.TripReviewers.Save(txCtx, reviewers); err != nil {
			return fmt.Errorf("save trip reviewers: %w", err)
		}
		trip.UpdatedAt = s.now()
		if err := s.repos.Trips.Update(txCtx, trip); err != nil {
			return fmt.Errorf("update trip: %w", err)
		}
		if previous != trip.Status {
			fx.tripChanges = append(fx.tripChanges, statusChange{id: id, from: previous.String(), to: trip.Status.String()})
		}
		issue.Repaired = true
		return s.record(txCtx, &entity.ReviewHistory{
			TripID:         &trip.ID,
			ActorID:        systemActor,
			PreviousStatus: previous.String(),
			NewStatus:      trip.Status.String(),
			ActionType:     entity.ActionRepair,
			ActionData:     issue.Problem,
		})
	})

	if err != nil {
		return nil, fmt.Errorf("check trip %d: %w", id, err)
	}
	if issue != nil && issue.Repaired {
		s.publish(ctx, fx)
		s.logger.Info("Trip chain repaired", "id", id, "problem", issue.Problem)
	}
	return issue, nil
}
