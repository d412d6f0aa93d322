package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/travel-review/internal/application/port"
	"github.com/garyjia/travel-review/internal/domain/entity"
	"github.com/garyjia/travel-review/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a history record
func (r *HistoryRepository) Create(ctx context.Context, history *entity.ReviewHistory) error {
	query := `
		INSERT INTO review_history (
			request_id, trip_id, actor_id, previous_status, new_status,
			action_type, action_data, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	if history.Timestamp.IsZero() {
		history.Timestamp = time.Now()
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		nullInt64(history.RequestID),
		nullInt64(history.TripID),
		history.ActorID,
		history.PreviousStatus,
		history.NewStatus,
		history.ActionType,
		history.ActionData,
		history.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to create history record", zap.String("action", history.ActionType), zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	history.ID = id
	return nil
}

// GetByRequestID retrieves the history of a request, oldest first
func (r *HistoryRepository) GetByRequestID(ctx context.Context, requestID int64) ([]*entity.ReviewHistory, error) {
	return r.list(ctx, `request_id = ?`, requestID)
}

// GetByTripID retrieves the history of a trip, oldest first
func (r *HistoryRepository) GetByTripID(ctx context.Context, tripID int64) ([]*entity.ReviewHistory, error) {
	return r.list(ctx, `trip_id = ?`, tripID)
}

func (r *HistoryRepository) list(ctx context.Context, where string, id int64) ([]*entity.ReviewHistory, error) {
	query := `
		SELECT id, request_id, trip_id, actor_id, previous_status, new_status,
			action_type, action_data, timestamp
		FROM review_history
		WHERE ` + where + `
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to get history", zap.String("filter", where), zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var records []*entity.ReviewHistory
	for rows.Next() {
		var record entity.ReviewHistory
		var requestID, tripID sql.NullInt64
		err := rows.Scan(
			&record.ID,
			&requestID,
			&tripID,
			&record.ActorID,
			&record.PreviousStatus,
			&record.NewStatus,
			&record.ActionType,
			&record.ActionData,
			&record.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		record.RequestID = int64Ptr(requestID)
		record.TripID = int64Ptr(tripID)
		records = append(records, &record)
	}

	return records, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *HistoryRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
