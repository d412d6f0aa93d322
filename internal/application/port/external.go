package port

import (
	"context"

	"github.com/garyjia/travel-review/internal/domain/entity"
)

// OrgLookup answers questions about the organization chart. Missing sections
// and users are reported as chain.ErrNotFound.
type OrgLookup interface {
	// SectionPath resolves a section up through division, branch and region
	SectionPath(ctx context.Context, sectionID int64) (*entity.OrgPath, error)

	// DefaultReviewers returns the configured default reviewer user IDs for a
	// scope. Scope ID is 0 for national scopes.
	DefaultReviewers(ctx context.Context, scope entity.DefaultScope, scopeID int64) ([]int64, error)

	// TripDefaults returns the national trip reviewer defaults
	TripDefaults(ctx context.Context) (*entity.TripReviewerDefaults, error)

	// Users resolves user IDs, silently omitting unknown ones
	Users(ctx context.Context, ids []int64) ([]*entity.User, error)
}

// OrgImporter replaces the organization chart in one transaction
type OrgImporter interface {
	ImportOrg(ctx context.Context, chart *OrgChart) error
}

// Notifier delivers one notification to resolved recipients
type Notifier interface {
	Send(ctx context.Context, kind entity.NotificationKind, recipients []entity.Address, payload map[string]interface{}) error
}

// NoticeQueue defers notice delivery to an out-of-process relay
type NoticeQueue interface {
	Enqueue(ctx context.Context, notice entity.Notice) error
}
