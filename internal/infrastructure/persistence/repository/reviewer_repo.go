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

// ReviewerRepository implements port.ReviewerRepository
type ReviewerRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReviewerRepository creates a new reviewer repository
func NewReviewerRepository(db *sql.DB, logger *zap.Logger) port.ReviewerRepository {
	return &ReviewerRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a reviewer by ID
func (r *ReviewerRepository) GetByID(ctx context.Context, id int64) (*entity.Reviewer, error) {
	query := `
		SELECT id, request_id, user_id, role, review_order, status, status_at, comments
		FROM reviewers
		WHERE id = ?
	`

	var rv entity.Reviewer
	var statusAt sql.NullTime
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, id).Scan(
		&rv.ID,
		&rv.RequestID,
		&rv.UserID,
		&rv.Role,
		&rv.Order,
		&rv.Status,
		&statusAt,
		&rv.Comments,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get reviewer", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get reviewer: %w", err)
	}

	rv.StatusAt = timePtr(statusAt)
	return &rv, nil
}

// GetByRequestID returns a request's chain in review order
func (r *ReviewerRepository) GetByRequestID(ctx context.Context, requestID int64) ([]*entity.Reviewer, error) {
	query := `
		SELECT id, request_id, user_id, role, review_order, status, status_at, comments
		FROM reviewers
		WHERE request_id = ?
		ORDER BY review_order ASC, id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to get reviewers", zap.Int64("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to get reviewers: %w", err)
	}
	defer rows.Close()

	var reviewers []*entity.Reviewer
	for rows.Next() {
		var rv entity.Reviewer
		var statusAt sql.NullTime
		err := rows.Scan(
			&rv.ID,
			&rv.RequestID,
			&rv.UserID,
			&rv.Role,
			&rv.Order,
			&rv.Status,
			&statusAt,
			&rv.Comments,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reviewer: %w", err)
		}
		rv.StatusAt = timePtr(statusAt)
		reviewers = append(reviewers, &rv)
	}

	return reviewers, rows.Err()
}

// ReplaceChain deletes the request's chain and inserts the given one
func (r *ReviewerRepository) ReplaceChain(ctx context.Context, requestID int64, chain []*entity.Reviewer) error {
	if _, err := r.getExecutor(ctx).ExecContext(ctx, `DELETE FROM reviewers WHERE request_id = ?`, requestID); err != nil {
		r.logger.Error("Failed to delete reviewers", zap.Int64("request_id", requestID), zap.Error(err))
		return fmt.Errorf("failed to delete reviewers: %w", err)
	}

	for _, rv := range chain {
		rv.RequestID = requestID
		if err := r.Insert(ctx, rv); err != nil {
			return err
		}
	}
	return nil
}

// Insert adds one reviewer
func (r *ReviewerRepository) Insert(ctx context.Context, rv *entity.Reviewer) error {
	query := `
		INSERT INTO reviewers (request_id, user_id, role, review_order, status, status_at, comments)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		rv.RequestID,
		rv.UserID,
		rv.Role,
		rv.Order,
		rv.Status,
		nullTime(rv.StatusAt),
		rv.Comments,
	)
	if err != nil {
		r.logger.Error("Failed to insert reviewer",
			zap.Int64("request_id", rv.RequestID),
			zap.Int64("user_id", rv.UserID),
			zap.String("role", rv.Role.String()),
			zap.Error(err))
		return fmt.Errorf("failed to insert reviewer: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	rv.ID = id
	return nil
}

// Save writes order, status, status time and comments of each reviewer
func (r *ReviewerRepository) Save(ctx context.Context, chain []*entity.Reviewer) error {
	query := `
		UPDATE reviewers
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
			r.logger.Error("Failed to save reviewer", zap.Int64("id", rv.ID), zap.Error(err))
			return fmt.Errorf("failed to save reviewer %d: %w", rv.ID, err)
		}
	}
	return nil
}

// getExecutor returns appropriate executor based on context
func (r *ReviewerRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

// Verify interface compliance
var _ port.ReviewerRepository = (*ReviewerRepository)(nil)
