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

// TravellerRepository implements port.TravellerRepository
type TravellerRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTravellerRepository creates a new traveller repository
func NewTravellerRepository(db *sql.DB, logger *zap.Logger) port.TravellerRepository {
	return &TravellerRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a traveller
func (r *TravellerRepository) Create(ctx context.Context, t *entity.Traveller) error {
	query := `
		INSERT INTO travellers (request_id, user_id, is_research_scientist, total_cost)
		VALUES (?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		t.RequestID,
		t.UserID,
		t.IsResearchScientist,
		t.TotalCost,
	)
	if err != nil {
		r.logger.Error("Failed to create traveller", zap.Int64("request_id", t.RequestID), zap.Error(err))
		return fmt.Errorf("failed to create traveller: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	t.ID = id
	return nil
}

// GetByID retrieves a traveller by ID
func (r *TravellerRepository) GetByID(ctx context.Context, id int64) (*entity.Traveller, error) {
	query := `
		SELECT id, request_id, user_id, is_research_scientist, total_cost
		FROM travellers
		WHERE id = ?
	`

	var t entity.Traveller
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, id).Scan(
		&t.ID,
		&t.RequestID,
		&t.UserID,
		&t.IsResearchScientist,
		&t.TotalCost,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get traveller", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get traveller: %w", err)
	}

	return &t, nil
}

// GetByRequestID returns the travellers of a request
func (r *TravellerRepository) GetByRequestID(ctx context.Context, requestID int64) ([]*entity.Traveller, error) {
	query := `
		SELECT id, request_id, user_id, is_research_scientist, total_cost
		FROM travellers
		WHERE request_id = ?
		ORDER BY id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to get travellers", zap.Int64("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to get travellers: %w", err)
	}
	defer rows.Close()

	var travellers []*entity.Traveller
	for rows.Next() {
		var t entity.Traveller
		if err := rows.Scan(&t.ID, &t.RequestID, &t.UserID, &t.IsResearchScientist, &t.TotalCost); err != nil {
			return nil, fmt.Errorf("failed to scan traveller: %w", err)
		}
		travellers = append(travellers, &t)
	}

	return travellers, rows.Err()
}

// UpdateCost sets a traveller's total cost
func (r *TravellerRepository) UpdateCost(ctx context.Context, id int64, cost float64) error {
	query := `UPDATE travellers SET total_cost = ? WHERE id = ?`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query, cost, id)
	if err != nil {
		r.logger.Error("Failed to update traveller cost", zap.Int64("id", id), zap.Float64("cost", cost), zap.Error(err))
		return fmt.Errorf("failed to update traveller cost: %w", err)
	}

	return nil
}

// getExecutor returns appropriate executor based on context
func (r *TravellerRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

// Verify interface compliance
var _ port.TravellerRepository = (*TravellerRepository)(nil)
