package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/garyjia/travel-review/internal/application/port"
	"github.com/garyjia/travel-review/internal/domain/chain"
	"github.com/garyjia/travel-review/internal/domain/entity"
	"github.com/garyjia/travel-review/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// OrgRepository implements port.OrgLookup and port.OrgImporter on the
// org chart tables
type OrgRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewOrgRepository creates a new org chart repository
func NewOrgRepository(db *sqlite.DB, logger *zap.Logger) *OrgRepository {
	return &OrgRepository{
		db:     db,
		logger: logger,
	}
}

// SectionPath resolves a section up through its division, branch and region
func (r *OrgRepository) SectionPath(ctx context.Context, sectionID int64) (*entity.OrgPath, error) {
	query := `
		SELECT s.id, s.head_id, d.id, d.head_id, b.id, b.head_id, g.id, g.code, g.head_id
		FROM sections s
		JOIN divisions d ON d.id = s.division_id
		JOIN branches b ON b.id = d.branch_id
		JOIN regions g ON g.id = b.region_id
		WHERE s.id = ?
	`

	var p entity.OrgPath
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, sectionID).Scan(
		&p.SectionID,
		&p.SectionHeadID,
		&p.DivisionID,
		&p.DivisionHeadID,
		&p.BranchID,
		&p.BranchHeadID,
		&p.RegionID,
		&p.RegionCode,
		&p.RegionHeadID,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("section %d: %w", sectionID, chain.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to resolve section path", zap.Int64("section_id", sectionID), zap.Error(err))
		return nil, fmt.Errorf("failed to resolve section path: %w", err)
	}

	return &p, nil
}

// DefaultReviewers returns the default reviewer user IDs of a scope in position order
func (r *OrgRepository) DefaultReviewers(ctx context.Context, scope entity.DefaultScope, scopeID int64) ([]int64, error) {
	query := `
		SELECT user_id FROM default_reviewers
		WHERE scope = ? AND scope_id = ?
		ORDER BY position ASC, id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, scope, scopeID)
	if err != nil {
		r.logger.Error("Failed to get default reviewers", zap.String("scope", string(scope)), zap.Int64("scope_id", scopeID), zap.Error(err))
		return nil, fmt.Errorf("failed to get default reviewers: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan default reviewer: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// TripDefaults returns the national trip reviewer defaults
func (r *OrgRepository) TripDefaults(ctx context.Context) (*entity.TripReviewerDefaults, error) {
	var d entity.TripReviewerDefaults
	var err error

	if d.NCRCoordinatorIDs, err = r.DefaultReviewers(ctx, entity.ScopeNCRCoordinator, 0); err != nil {
		return nil, err
	}
	if d.ADMDelegateIDs, err = r.DefaultReviewers(ctx, entity.ScopeADMDelegate, 0); err != nil {
		return nil, err
	}

	adm, err := r.DefaultReviewers(ctx, entity.ScopeADM, 0)
	if err != nil {
		return nil, err
	}
	if len(adm) > 0 {
		d.ADMID = adm[0]
	}

	return &d, nil
}

// Users resolves user IDs in the order given, omitting unknown ones
func (r *OrgRepository) Users(ctx context.Context, ids []int64) ([]*entity.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := `SELECT id, name, email FROM users WHERE id IN (` + strings.Join(placeholders, ", ") + `)`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to get users", zap.Int("count", len(ids)), zap.Error(err))
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*entity.User, len(ids))
	for rows.Next() {
		var u entity.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		byID[u.ID] = &u
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	users := make([]*entity.User, 0, len(byID))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			users = append(users, u)
			delete(byID, id)
		}
	}
	return users, nil
}

// ImportOrg replaces the whole org chart in one transaction
func (r *OrgRepository) ImportOrg(ctx context.Context, chart *port.OrgChart) error {
	return r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		exec := r.getExecutor(txCtx)

		for _, table := range []string{"default_reviewers", "sections", "divisions", "branches", "regions", "users"} {
			if _, err := exec.ExecContext(txCtx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}

		for _, u := range chart.Users {
			if _, err := exec.ExecContext(txCtx, `INSERT INTO users (id, name, email) VALUES (?, ?, ?)`, u.ID, u.Name, u.Email); err != nil {
				return fmt.Errorf("failed to insert user %d: %w", u.ID, err)
			}
		}
		for _, g := range chart.Regions {
			if _, err := exec.ExecContext(txCtx, `INSERT INTO regions (id, name, code, head_id) VALUES (?, ?, ?, ?)`, g.ID, g.Name, g.Code, g.HeadID); err != nil {
				return fmt.Errorf("failed to insert region %d: %w", g.ID, err)
			}
		}

		units := []struct {
			table  string
			parent string
			rows   []port.OrgUnit
		}{
			{"branches", "region_id", chart.Branches},
			{"divisions", "branch_id", chart.Divisions},
			{"sections", "division_id", chart.Sections},
		}
		for _, u := range units {
			query := fmt.Sprintf(`INSERT INTO %s (id, name, head_id, %s) VALUES (?, ?, ?, ?)`, u.table, u.parent)
			for _, row := range u.rows {
				if _, err := exec.ExecContext(txCtx, query, row.ID, row.Name, row.HeadID, row.ParentID); err != nil {
					return fmt.Errorf("failed to insert %s %d: %w", u.table, row.ID, err)
				}
			}
		}

		for _, d := range chart.Defaults {
			for pos, userID := range d.UserIDs {
				_, err := exec.ExecContext(txCtx,
					`INSERT INTO default_reviewers (scope, scope_id, user_id, position) VALUES (?, ?, ?, ?)`,
					d.Scope, d.ScopeID, userID, pos+1)
				if err != nil {
					return fmt.Errorf("failed to insert %s default reviewer %d: %w", d.Scope, userID, err)
				}
			}
		}

		r.logger.Info("Org chart imported",
			zap.Int("users", len(chart.Users)),
			zap.Int("sections", len(chart.Sections)),
			zap.Int("defaults", len(chart.Defaults)))
		return nil
	})
}

// getExecutor returns appropriate executor based on context
func (r *OrgRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db.DB)
}

// Verify interface compliance
var (
	_ port.OrgLookup   = (*OrgRepository)(nil)
	_ port.OrgImporter = (*OrgRepository)(nil)
)
