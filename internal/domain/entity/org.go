package entity

// User is a person who can own, travel on, or review a request
type User struct {
	ID    int64  `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
}

// OrgPath is a section resolved up through its division, branch and region.
// A zero head ID means the position is vacant.
type OrgPath struct {
	SectionID      int64  `json:"section_id"`
	SectionHeadID  int64  `json:"section_head_id"`
	DivisionID     int64  `json:"division_id"`
	DivisionHeadID int64  `json:"division_head_id"`
	BranchID       int64  `json:"branch_id"`
	BranchHeadID   int64  `json:"branch_head_id"`
	RegionID       int64  `json:"region_id"`
	RegionCode     string `json:"region_code"`
	RegionHeadID   int64  `json:"region_head_id"`
}

// DefaultScope identifies which configured default-reviewer list a row belongs to
type DefaultScope string

const (
	ScopeSection        DefaultScope = "SECTION"
	ScopeBranch         DefaultScope = "BRANCH"
	ScopeNCRCoordinator DefaultScope = "NCR_COORDINATOR"
	ScopeADMDelegate    DefaultScope = "ADM_DELEGATE"
	ScopeADM            DefaultScope = "ADM"
	ScopeADMContact     DefaultScope = "ADM_CONTACT"
	ScopeNCRReviewer    DefaultScope = "NCR_REVIEWER"
)

// TripReviewerDefaults are the national-level defaults used to build a trip chain
type TripReviewerDefaults struct {
	NCRCoordinatorIDs []int64 `json:"ncr_coordinator_ids"`
	ADMDelegateIDs    []int64 `json:"adm_delegate_ids"`
	ADMID             int64   `json:"adm_id"`
}
