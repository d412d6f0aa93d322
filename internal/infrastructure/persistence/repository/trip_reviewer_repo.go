package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/travel-review/internal/application/port"
	"github.com/garyjia/travel-review/internal/domain/entity"
	"github.com/garyjia/travel-review/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// TripReviewerRepository implements port.TripReviewerRepository
type TripReviewerRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTripReviewerRepository creates a new trip reviewer repository
func NewTripReviewerRepository(db *sql.DB, logger *zap.Logger) port.TripReviewerRepository {
	return &TripReviewerRepository{
		db:     db,
		logger: logger,
	}
}

const tripReviewerColumns = `id, trip_id, user_id, role, review_order, status, status_at, comments`

// GetByID retrieves a trip reviewer by ID
func (r *TripReviewerRepository) GetByID(ctx context.Context, id int64) (*entity.TripReviewer, error) {
	query := `SELECT ` + tripReviewerColumns + ` FROM trip_reviewers WHERE id = ?`

	rv, err := scanTripReviewer(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get trip reviewer", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get trip reviewer: %w", err)
	}
	return rv, nil
}

// GetByTripID returns a trip's chain in review order
func (r *TripReviewerRepository) GetByTripID(ctx context.Context, tripID int64) ([]*entity.TripReviewer, error) {
	query := `SELECT ` + tripReviewerColumns + ` FROM trip_reviewers WHERE trip_id = ? ORDER BY review_order ASC, id ASC`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, tripID)
	if err != nil {
		r.logger.Error("Failed to get trip reviewers", zap.Int64("trip_id", tripID), zap.Error(err))
		return nil, fmt.Errorf("failed to get trip reviewers: %w", err)
	}
	defer rows.Close()

	var reviewers []*entity.TripReviewer
	for rows.Next() {
		rv, err := scanTripReviewer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trip reviewer: %w", err)
		}
		reviewers = append(reviewers, rv)
	}

	return reviewers, rows.Err()
}

// ReplaceChain deletes the trip's chain and inserts the given one
func (r *TripReviewerRepository) ReplaceChain(ctx context.Context, tripID int64, chain []*entity.TripReviewer) error {
	if err := r.DeleteByTripID(ctx, tripID); err != nil {
		return err
	}

	query := `
		INSERT INTO trip_reviewers (trip_id, user_id, role, review_order, status, status_at, comments)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	for _, rv := range chain {
		rv.TripID = tripID
		result, err := r.getExecutor(ctx).ExecContext(ctx, query,
			rv.TripID,
			rv.UserID,
			rv.Role,
			rv.Order,
			rv.Status,
			nullTime(rv.StatusAt),
			rv.Comments,
		)
		if err != nil {
			r.logger.Error("Failed to insert trip reviewer", zap.Int64("trip_id", tripID), zap.Int64("user_id", rv.UserID), zap.Error(err))
			return fmt.Errorf("failed to insert trip reviewer: %w", err)
		}
		if rv.ID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
	}
	return nil
}

// DeleteByTripID removes a trip's whole chain
func (r *TripReviewerRepository) DeleteByTripID(ctx context.Context, tripID int64) error {
	if _, err := r.getExecutor(ctx).ExecContext(ctx, `DELETE FROM trip_reviewers WHERE trip_id = ?`, tripID); err != nil {
		r.logger.Error("Failed to delete trip reviewers", zap.Int64("trip_id", tripID), zap.Error(err))
		return fmt.Errorf("failed to delete trip reviewers: %w", err)
	}
	return nil
}

// Save writes order, status, status time and comments of each trip reviewer
func (r *TripReviewerRepository) Save(ctx context.Context, chain []*entity.TripReviewer) error {
	query := `
		UPDATE trip_reviewers
		SET review_order = ?, status = ?, status_at = ?, comments = ?
		WHERE id = ?
	`

	for _, rv := range chain {
		_, err := r.getExecutor(ctx).ExecContext(ctx, query,
			rv.Order,
			rv.Status,
			nullTime(rv.StatusAt),
			rv.Comments,
			rv.ID,
		)
		if err != nil {
			r.logger.Error("Failed to save trip reviewer", zap.Int64("id", rv.ID), zap.Error(err))
			return fmt.Errorf("failed to save trip reviewer %d: %w", rv.ID, err)
		}
	}
	return nil
}

func scanTripReviewer(row rowScanner) (*entity.TripReviewer, error) {
	var rv entity.TripReviewer
	var statusAt sql.NullTime

	err := row.Scan(
		&rv.ID,
		&rv.TripID,
		&rv.UserID,
		&rv.Role,
		&rv.Order,
		&rv.Status,
		&statusAt,
		&rv.Comments,
	)
	if err != nil {
		return nil, err
	}

	rv.StatusAt = timePtr(statusAt)
	return &rv, nil
}

// getExecutor returns appropriate executor based on context
func (r *TripReviewerRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

// Verify interface compliance
var _ port.TripReviewerRepository = (*TripReviewerRepository)(nil)
