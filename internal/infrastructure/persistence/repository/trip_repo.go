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

// TripRepository implements port.TripRepository
type TripRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTripRepository creates a new trip repository
func NewTripRepository(db *sql.DB, logger *zap.Logger) port.TripRepository {
	return &TripRepository{
		db:     db,
		logger: logger,
	}
}

const tripColumns = `
	id, name, start_date, adm_review_deadline, is_adm_approval_required, status,
	cost_warning_sent_at, non_resident_total_cost, admin_notes, version, created_at, updated_at
`

// Create inserts a trip
func (r *TripRepository) Create(ctx context.Context, trip *entity.Trip) error {
	query := `
		INSERT INTO trips (
			name, start_date, adm_review_deadline, is_adm_approval_required, status,
			cost_warning_sent_at, non_resident_total_cost, admin_notes, version,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		trip.Name,
		trip.StartDate,
		nullTime(trip.ADMReviewDeadline),
		trip.IsADMApprovalRequired,
		trip.Status,
		nullTime(trip.CostWarningSentAt),
		trip.NonResidentTotalCost,
		trip.AdminNotes,
		trip.Version,
		trip.CreatedAt,
		trip.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create trip", zap.String("name", trip.Name), zap.Error(err))
		return fmt.Errorf("failed to create trip: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	trip.ID = id
	return nil
}

// GetByID retrieves a trip by ID
func (r *TripRepository) GetByID(ctx context.Context, id int64) (*entity.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = ?`

	trip, err := scanTrip(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get trip by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}

	return trip, nil
}

// List retrieves trips with pagination, soonest start date first
func (r *TripRepository) List(ctx context.Context, limit, offset int) ([]*entity.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips ORDER BY start_date ASC, id ASC LIMIT ? OFFSET ?`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list trips", zap.Error(err))
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	defer rows.Close()

	var trips []*entity.Trip
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trip: %w", err)
		}
		trips = append(trips, trip)
	}

	return trips, rows.Err()
}

// ListIDs returns every trip ID
func (r *TripRepository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, `SELECT id FROM trips ORDER BY id ASC`)
	if err != nil {
		r.logger.Error("Failed to list trip IDs", zap.Error(err))
		return nil, fmt.Errorf("failed to list trip ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan trip id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Update writes the mutable trip fields guarded by the row version
func (r *TripRepository) Update(ctx context.Context, trip *entity.Trip) error {
	query := `
		UPDATE trips
		SET name = ?, start_date = ?, adm_review_deadline = ?, is_adm_approval_required = ?,
			status = ?, cost_warning_sent_at = ?, non_resident_total_cost = ?, admin_notes = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		trip.Name,
		trip.StartDate,
		nullTime(trip.ADMReviewDeadline),
		trip.IsADMApprovalRequired,
		trip.Status,
		nullTime(trip.CostWarningSentAt),
		trip.NonResidentTotalCost,
		trip.AdminNotes,
		trip.UpdatedAt,
		trip.ID,
		trip.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update trip", zap.Int64("id", trip.ID), zap.Error(err))
		return fmt.Errorf("failed to update trip: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("trip %d version %d: %w", trip.ID, trip.Version, port.ErrStaleWrite)
	}

	trip.Version++
	return nil
}

func scanTrip(row rowScanner) (*entity.Trip, error) {
	var trip entity.Trip
	var deadline, warnedAt sql.NullTime

	err := row.Scan(
		&trip.ID,
		&trip.Name,
		&trip.StartDate,
		&deadline,
		&trip.IsADMApprovalRequired,
		&trip.Status,
		&warnedAt,
		&trip.NonResidentTotalCost,
		&trip.AdminNotes,
		&trip.Version,
		&trip.CreatedAt,
		&trip.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	trip.ADMReviewDeadline = timePtr(deadline)
	trip.CostWarningSentAt = timePtr(warnedAt)
	return &trip, nil
}

// getExecutor returns appropriate executor based on context
func (r *TripRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

// Verify interface compliance
var _ port.TripRepository = (*TripRepository)(nil)
