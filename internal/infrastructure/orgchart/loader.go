package orgchart

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/garyjia/travel-review/internal/application/port"
	"github.com/garyjia/travel-review/internal/domain/entity"
	"github.com/garyjia/travel-review/pkg/utils"
)

var knownScopes = map[entity.DefaultScope]bool{
	entity.ScopeSection:        true,
	entity.ScopeBranch:         true,
	entity.ScopeNCRCoordinator: true,
	entity.ScopeADMDelegate:    true,
	entity.ScopeADM:            true,
	entity.ScopeADMContact:     true,
	entity.ScopeNCRReviewer:    true,
}

// LoadFile reads and validates an org chart YAML file
func LoadFile(path string) (*port.OrgChart, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read org chart: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes an org chart and validates its references. Unknown keys are rejected.
func Parse(r io.Reader) (*port.OrgChart, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var chart port.OrgChart
	if err := dec.Decode(&chart); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("org chart is empty")
		}
		return nil, fmt.Errorf("decode org chart: %w", err)
	}

	if err := Validate(&chart); err != nil {
		return nil, err
	}
	return &chart, nil
}

// Validate checks that IDs are unique and every reference resolves.
// All problems are reported together.
func Validate(chart *port.OrgChart) error {
	var errs []error

	users := map[int64]bool{}
	for _, u := range chart.Users {
		if u.ID <= 0 {
			errs = append(errs, fmt.Errorf("user %q has invalid id %d", u.Name, u.ID))
			continue
		}
		if users[u.ID] {
			errs = append(errs, fmt.Errorf("duplicate user id %d", u.ID))
		}
		users[u.ID] = true

		// Users without an address simply receive no notices
		if u.Email != "" {
			if err := utils.ValidateEmail(u.Email); err != nil {
				errs = append(errs, fmt.Errorf("user %d: %w", u.ID, err))
			}
		}
	}

	checkUnits := func(kind string, units []port.OrgUnit, parents map[int64]bool, parentKind string) map[int64]bool {
		ids := map[int64]bool{}
		for _, u := range units {
			if u.ID <= 0 {
				errs = append(errs, fmt.Errorf("%s %q has invalid id %d", kind, u.Name, u.ID))
				continue
			}
			if ids[u.ID] {
				errs = append(errs, fmt.Errorf("duplicate %s id %d", kind, u.ID))
			}
			ids[u.ID] = true

			if u.HeadID != 0 && !users[u.HeadID] {
				errs = append(errs, fmt.Errorf("%s %d head %d is not a known user", kind, u.ID, u.HeadID))
			}
			if parents != nil && !parents[u.ParentID] {
				errs = append(errs, fmt.Errorf("%s %d parent %s %d does not exist", kind, u.ID, parentKind, u.ParentID))
			}
		}
		return ids
	}

	regions := checkUnits("region", chart.Regions, nil, "")
	branches := checkUnits("branch", chart.Branches, regions, "region")
	divisions := checkUnits("division", chart.Divisions, branches, "branch")
	sections := checkUnits("section", chart.Sections, divisions, "division")

	for _, r := range chart.Regions {
		if r.Code == "" {
			errs = append(errs, fmt.Errorf("region %d has no code", r.ID))
		}
	}

	for _, d := range chart.Defaults {
		if !knownScopes[d.Scope] {
			errs = append(errs, fmt.Errorf("unknown default reviewer scope %q", d.Scope))
			continue
		}
		switch d.Scope {
		case entity.ScopeSection:
			if !sections[d.ScopeID] {
				errs = append(errs, fmt.Errorf("%s defaults reference unknown section %d", d.Scope, d.ScopeID))
			}
		case entity.ScopeBranch:
			if !branches[d.ScopeID] {
				errs = append(errs, fmt.Errorf("%s defaults reference unknown branch %d", d.Scope, d.ScopeID))
			}
		default:
			if d.ScopeID != 0 {
				errs = append(errs, fmt.Errorf("%s defaults are national and take no scope_id", d.Scope))
			}
		}

		seen := map[int64]bool{}
		for _, id := range d.UserIDs {
			if !users[id] {
				errs = append(errs, fmt.Errorf("%s default reviewer %d is not a known user", d.Scope, id))
			}
			if seen[id] {
				errs = append(errs, fmt.Errorf("%s default reviewer %d listed twice", d.Scope, id))
			}
			seen[id] = true
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid org chart: %w", errors.Join(errs...))
	}
	return nil
}
