package port

import "github.com/garyjia/travel-review/internal/domain/entity"

// OrgChart is the full organization chart as loaded from a seed file
type OrgChart struct {
	Users     []entity.User `yaml:"users"`
	Regions   []OrgUnit     `yaml:"regions"`
	Branches  []OrgUnit     `yaml:"branches"`
	Divisions []OrgUnit     `yaml:"divisions"`
	Sections  []OrgUnit     `yaml:"sections"`
	Defaults  []OrgDefault  `yaml:"defaults"`
}

// OrgUnit is one node of the chart. ParentID links a section to its
// division, a division to its branch and a branch to its region.
type OrgUnit struct {
	ID       int64  `yaml:"id"`
	Name     string `yaml:"name"`
	Code     string `yaml:"code,omitempty"`
	HeadID   int64  `yaml:"head_id,omitempty"`
	ParentID int64  `yaml:"parent_id,omitempty"`
}

// OrgDefault is one default reviewer entry
type OrgDefault struct {
	Scope   entity.DefaultScope `yaml:"scope"`
	ScopeID int64               `yaml:"scope_id,omitempty"`
	UserIDs []int64             `yaml:"user_ids"`
}
