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

// NotificationLogRepository implements port.NotificationLogRepository
type NotificationLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationLogRepository creates a new notification log repository
func NewNotificationLogRepository(db *sql.DB, logger *zap.Logger) port.NotificationLogRepository {
	return &NotificationLogRepository{
		db:     db,
		logger: logger,
	}
}

// Create records one delivery attempt
func (r *NotificationLogRepository) Create(ctx context.Context, entry *entity.NotificationLog) error {
	query := `
		INSERT INTO notification_log (
			kind, request_id, trip_id, recipients, status, error_message, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		entry.Kind,
		nullInt64(entry.RequestID),
		nullInt64(entry.TripID),
		entry.Recipients,
		entry.Status,
		entry.ErrorMessage,
		entry.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create notification log",
			zap.String("kind", entry.Kind.String()),
			zap.String("status", entry.Status),
			zap.Error(err))
		return fmt.Errorf("failed to create notification log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	entry.ID = id
	return nil
}

// GetByRequestID returns delivery attempts for a request, newest first
func (r *NotificationLogRepository) GetByRequestID(ctx context.Context, requestID int64) ([]*entity.NotificationLog, error) {
	return r.list(ctx, `request_id = ?`, requestID)
}

// GetByTripID returns delivery attempts for a trip, newest first
func (r *NotificationLogRepository) GetByTripID(ctx context.Context, tripID int64) ([]*entity.NotificationLog, error) {
	return r.list(ctx, `trip_id = ?`, tripID)
}

func (r *NotificationLogRepository) list(ctx context.Context, where string, id int64) ([]*entity.NotificationLog, error) {
	query := `
		SELECT id, kind, request_id, trip_id, recipients, status, error_message, created_at
		FROM notification_log
		WHERE ` + where + `
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to get notification log", zap.String("filter", where), zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get notification log: %w", err)
	}
	defer rows.Close()

	var entries []*entity.NotificationLog
	for rows.Next() {
		var entry entity.NotificationLog
		var requestID, tripID sql.NullInt64
		err := rows.Scan(
			&entry.ID,
			&entry.Kind,
			&requestID,
			&tripID,
			&entry.Recipients,
			&entry.Status,
			&entry.ErrorMessage,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification log: %w", err)
		}
		entry.RequestID = int64Ptr(requestID)
		entry.TripID = int64Ptr(tripID)
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *NotificationLogRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

// Verify interface compliance
var _ port.NotificationLogRepository = (*NotificationLogRepository)(nil)
