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

// RequestRepository implements port.RequestRepository
type RequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *sql.DB, logger *zap.Logger) port.RequestRepository {
	return &RequestRepository{
		db:     db,
		logger: logger,
	}
}

const requestColumns = `
	id, fiscal_year, owner_id, section_id, trip_id, is_group, parent_request_id,
	is_late_submission, submitted_at, status, version, created_at, updated_at
`

// Create inserts a request. Travellers are stored separately.
func (r *RequestRepository) Create(ctx context.Context, req *entity.Request) error {
	query := `
		INSERT INTO requests (
			fiscal_year, owner_id, section_id, trip_id, is_group, parent_request_id,
			is_late_submission, submitted_at, status, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		req.FiscalYear,
		req.OwnerID,
		req.SectionID,
		nullInt64(req.TripID),
		req.IsGroup,
		nullInt64(req.ParentRequestID),
		req.IsLateSubmission,
		nullTime(req.SubmittedAt),
		req.Status,
		req.Version,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create request", zap.Int64("owner_id", req.OwnerID), zap.Error(err))
		return fmt.Errorf("failed to create request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	req.ID = id
	return nil
}

// GetByID retrieves a request by ID
func (r *RequestRepository) GetByID(ctx context.Context, id int64) (*entity.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = ?`

	req, err := scanRequest(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get request by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get request: %w", err)
	}

	return req, nil
}

// GetChildren returns the members of a group request
func (r *RequestRepository) GetChildren(ctx context.Context, parentID int64) ([]*entity.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE parent_request_id = ? ORDER BY id ASC`
	return r.list(ctx, query, parentID)
}

// GetByTripID returns every request connected to a trip
func (r *RequestRepository) GetByTripID(ctx context.Context, tripID int64) ([]*entity.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE trip_id = ? ORDER BY id ASC`
	return r.list(ctx, query, tripID)
}

// ListReviewableIDs returns the IDs of requests that own a chain
func (r *RequestRepository) ListReviewableIDs(ctx context.Context) ([]int64, error) {
	query := `SELECT id FROM requests WHERE parent_request_id IS NULL ORDER BY id ASC`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list request IDs", zap.Error(err))
		return nil, fmt.Errorf("failed to list request ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan request id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Update writes the mutable request fields guarded by the row version
func (r *RequestRepository) Update(ctx context.Context, req *entity.Request) error {
	query := `
		UPDATE requests
		SET status = ?, submitted_at = ?, is_late_submission = ?, is_group = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		req.Status,
		nullTime(req.SubmittedAt),
		req.IsLateSubmission,
		req.IsGroup,
		req.UpdatedAt,
		req.ID,
		req.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update request", zap.Int64("id", req.ID), zap.Error(err))
		return fmt.Errorf("failed to update request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("request %d version %d: %w", req.ID, req.Version, port.ErrStaleWrite)
	}

	req.Version++
	return nil
}

func (r *RequestRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Request, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list requests", zap.Error(err))
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var requests []*entity.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, req)
	}

	return requests, rows.Err()
}

func scanRequest(row rowScanner) (*entity.Request, error) {
	var req entity.Request
	var tripID, parentID sql.NullInt64
	var submittedAt sql.NullTime

	err := row.Scan(
		&req.ID,
		&req.FiscalYear,
		&req.OwnerID,
		&req.SectionID,
		&tripID,
		&req.IsGroup,
		&parentID,
		&req.IsLateSubmission,
		&submittedAt,
		&req.Status,
		&req.Version,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.TripID = int64Ptr(tripID)
	req.ParentRequestID = int64Ptr(parentID)
	req.SubmittedAt = timePtr(submittedAt)
	return &req, nil
}

// getExecutor returns appropriate executor based on context
func (r *RequestRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

// Verify interface compliance
var _ port.RequestRepository = (*RequestRepository)(nil)
