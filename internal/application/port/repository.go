package port

import (
	"context"
	"errors"

	"github.com/garyjia/travel-review/internal/domain/entity"
)

// ErrStaleWrite is returned by optimistic updates when the row version moved
// under the caller. The whole transaction should be retried or reported.
var ErrStaleWrite = errors.New("stale write: row was modified concurrently")

// RequestRepository defines persistence operations for Request.
// Get methods return nil, nil when the row does not exist.
type RequestRepository interface {
	Create(ctx context.Context, req *entity.Request) error
	GetByID(ctx context.Context, id int64) (*entity.Request, error)

	// GetChildren returns the members of a group request
	GetChildren(ctx context.Context, parentID int64) ([]*entity.Request, error)

	// GetByTripID returns every request connected to a trip, children included
	GetByTripID(ctx context.Context, tripID int64) ([]*entity.Request, error)

	// ListReviewableIDs returns the IDs of all requests that own a chain
	ListReviewableIDs(ctx context.Context) ([]int64, error)

	// Update writes status, submission and late flags guarded by Version,
	// then bumps Version. Returns ErrStaleWrite when the guard fails.
	Update(ctx context.Context, req *entity.Request) error
}

// TravellerRepository defines persistence operations for Traveller
type TravellerRepository interface {
	Create(ctx context.Context, t *entity.Traveller) error
	GetByID(ctx context.Context, id int64) (*entity.Traveller, error)
	GetByRequestID(ctx context.Context, requestID int64) ([]*entity.Traveller, error)
	UpdateCost(ctx context.Context, id int64, cost float64) error
}

// ReviewerRepository defines persistence operations for request Reviewers
type ReviewerRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Reviewer, error)

	// GetByRequestID returns the chain ordered by order ascending
	GetByRequestID(ctx context.Context, requestID int64) ([]*entity.Reviewer, error)

	// ReplaceChain deletes the existing chain and inserts the given one,
	// assigning IDs. Rows are unique on (request, user, role).
	ReplaceChain(ctx context.Context, requestID int64, chain []*entity.Reviewer) error

	// Insert adds a single reviewer to an existing chain, assigning its ID
	Insert(ctx context.Context, r *entity.Reviewer) error

	// Save updates order, status, status time and comments of each reviewer
	Save(ctx context.Context, chain []*entity.Reviewer) error
}

// TripRepository defines persistence operations for Trip
type TripRepository interface {
	Create(ctx context.Context, trip *entity.Trip) error
	GetByID(ctx context.Context, id int64) (*entity.Trip, error)
	List(ctx context.Context, limit, offset int) ([]*entity.Trip, error)
	ListIDs(ctx context.Context) ([]int64, error)

	// Update is guarded by Version the same way as RequestRepository.Update
	Update(ctx context.Context, trip *entity.Trip) error
}

// TripReviewerRepository defines persistence operations for TripReviewers
type TripReviewerRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.TripReviewer, error)
	GetByTripID(ctx context.Context, tripID int64) ([]*entity.TripReviewer, error)
	ReplaceChain(ctx context.Context, tripID int64, chain []*entity.TripReviewer) error
	DeleteByTripID(ctx context.Context, tripID int64) error
	Save(ctx context.Context, chain []*entity.TripReviewer) error
}

// HistoryRepository defines persistence operations for ReviewHistory
type HistoryRepository interface {
	Create(ctx context.Context, history *entity.ReviewHistory) error
	GetByRequestID(ctx context.Context, requestID int64) ([]*entity.ReviewHistory, error)
	GetByTripID(ctx context.Context, tripID int64) ([]*entity.ReviewHistory, error)
}

// NotificationLogRepository defines persistence operations for NotificationLog
type NotificationLogRepository interface {
	Create(ctx context.Context, log *entity.NotificationLog) error
	GetByRequestID(ctx context.Context, requestID int64) ([]*entity.NotificationLog, error)
	GetByTripID(ctx context.Context, tripID int64) ([]*entity.NotificationLog, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
