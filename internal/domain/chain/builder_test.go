package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/travel-review/internal/domain/entity"
)

type built struct {
	userID int64
	role   entity.Role
	status entity.ReviewerStatus
}

func summarize(chain []*entity.Reviewer) []built {
	out := make([]built, len(chain))
	for i, r := range chain {
		out[i] = built{r.UserID, r.Role, r.Status}
	}
	return out
}

func basePath() entity.OrgPath {
	return entity.OrgPath{
		SectionID:      1,
		SectionHeadID:  11,
		DivisionID:     2,
		DivisionHeadID: 12,
		BranchID:       3,
		BranchHeadID:   13,
		RegionID:       4,
		RegionCode:     "MAR",
		RegionHeadID:   14,
	}
}

func TestBuildRequestChain(t *testing.T) {
	tests := []struct {
		name    string
		augment map[string][]int64
		input   BuildInput
		want    []built
	}{
		{
			name: "ordinary requester gets every level",
			input: BuildInput{
				RequesterID:       100,
				Path:              basePath(),
				SectionDefaultIDs: []int64{21, 22},
				BranchDefaultIDs:  []int64{23},
				RequiresADM:       true,
				ADMContactID:      30,
			},
			want: []built{
				{21, entity.RolePlainReviewer, entity.ReviewerNotSubmitted},
				{22, entity.RolePlainReviewer, entity.ReviewerNotSubmitted},
				{11, entity.RoleRecommender, entity.ReviewerNotSubmitted},
				{12, entity.RoleRecommender, entity.ReviewerNotSubmitted},
				{13, entity.RolePlainReviewer, entity.ReviewerNotSubmitted},
				{23, entity.RolePlainReviewer, entity.ReviewerNotSubmitted},
				{30, entity.RoleADM, entity.ReviewerNotSubmitted},
				{14, entity.RoleRDG, entity.ReviewerNotSubmitted},
			},
		},
		{
			name: "section head skips own recommendation",
			input: BuildInput{
				RequesterID: 11,
				Path:        basePath(),
			},
			want: []built{
				{12, entity.RoleRecommender, entity.ReviewerNotSubmitted},
				{13, entity.RolePlainReviewer, entity.ReviewerNotSubmitted},
				{14, entity.RoleRDG, entity.ReviewerNotSubmitted},
			},
		},
		{
			name: "division head skips section and division",
			input: BuildInput{
				RequesterID: 12,
				Path:        basePath(),
			},
			want: []built{
				{13, entity.RolePlainReviewer, entity.ReviewerNotSubmitted},
				{14, entity.RoleRDG, entity.ReviewerNotSubmitted},
			},
		},
		{
			name: "branch head skips branch stage",
			input: BuildInput{
				RequesterID:      13,
				Path:             basePath(),
				BranchDefaultIDs: []int64{23},
			},
			want: []built{
				{11, entity.RoleRecommender, entity.ReviewerNotSubmitted},
				{12, entity.RoleRecommender, entity.ReviewerNotSubmitted},
				{14, entity.RoleRDG, entity.ReviewerNotSubmitted},
			},
		},
		{
			name: "region head still gets RDG",
			input: BuildInput{
				RequesterID: 14,
				Path:        basePath(),
			},
			want: []built{
				{11, entity.RoleRecommender, entity.ReviewerNotSubmitted},
				{12, entity.RoleRecommender, entity.ReviewerNotSubmitted},
				{13, entity.RolePlainReviewer, entity.ReviewerNotSubmitted},
				{14, entity.RoleRDG, entity.ReviewerNotSubmitted},
			},
		},
		{
			name: "duplicates and vacancies are ignored",
			input: BuildInput{
				RequesterID:       100,
				Path:              entity.OrgPath{SectionHeadID: 11, DivisionHeadID: 11, RegionHeadID: 14},
				SectionDefaultIDs: []int64{21, 21},
				BranchDefaultIDs:  []int64{21},
				ADMContactID:      30,
			},
			want: []built{
				{21, entity.RolePlainReviewer, entity.ReviewerNotSubmitted},
				{11, entity.RoleRecommender, entity.ReviewerNotSubmitted},
				{14, entity.RoleRDG, entity.ReviewerNotSubmitted},
			},
		},
		{
			name: "requester on default list is skipped in place",
			input: BuildInput{
				RequesterID:       21,
				Path:              basePath(),
				SectionDefaultIDs: []int64{21},
			},
			want: []built{
				{21, entity.RolePlainReviewer, entity.ReviewerSkipped},
				{11, entity.RoleRecommender, entity.ReviewerNotSubmitted},
				{12, entity.RoleRecommender, entity.ReviewerNotSubmitted},
				{13, entity.RolePlainReviewer, entity.ReviewerNotSubmitted},
				{14, entity.RoleRDG, entity.ReviewerNotSubmitted},
			},
		},
		{
			name:    "region augmentation",
			augment: map[string][]int64{"MAR": {40}, "GLF": {41}},
			input: BuildInput{
				RequesterID: 100,
				Path:        basePath(),
			},
			want: []built{
				{11, entity.RoleRecommender, entity.ReviewerNotSubmitted},
				{12, entity.RoleRecommender, entity.ReviewerNotSubmitted},
				{13, entity.RolePlainReviewer, entity.ReviewerNotSubmitted},
				{40, entity.RolePlainReviewer, entity.ReviewerNotSubmitted},
				{14, entity.RoleRDG, entity.ReviewerNotSubmitted},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(nil, tt.augment)
			chain := b.BuildRequestChain(tt.input)

			assert.Equal(t, tt.want, summarize(chain))
			for i, r := range chain {
				assert.Equal(t, i+1, r.Order)
			}
		})
	}
}

func TestBuildRequestChain_RDGIgnoresSkipRules(t *testing.T) {
	rules := DefaultSkipRules()
	rules[StepRDG] = func(in BuildInput) bool { return true }

	chain := NewBuilder(rules, nil).BuildRequestChain(BuildInput{
		RequesterID: 14,
		Path:        entity.OrgPath{RegionHeadID: 14},
	})

	require.Len(t, chain, 1)
	assert.Equal(t, entity.RoleRDG, chain[0].Role)
}

func TestBuildTripChain(t *testing.T) {
	chain := BuildTripChain(7, entity.TripReviewerDefaults{
		NCRCoordinatorIDs: []int64{51, 52},
		ADMDelegateIDs:    []int64{61, 62},
		ADMID:             70,
	})

	require.Len(t, chain, 5)
	wantRoles := []entity.Role{
		entity.RoleNCRCoordinator,
		entity.RoleNCRCoordinator,
		entity.RoleADM,
		entity.RoleADM,
		entity.RoleADM,
	}
	for i, r := range chain {
		assert.Equal(t, wantRoles[i], r.Role)
		assert.Equal(t, i+1, r.Order)
		assert.Equal(t, int64(7), r.TripID)
		assert.Equal(t, entity.ReviewerNotSubmitted, r.Status)
	}
	assert.Equal(t, int64(70), chain[4].UserID)
	assert.True(t, IsFinalADM(chain, chain[4]))
	assert.False(t, IsFinalADM(chain, chain[3]))
}

func TestInsertLateReviewer(t *testing.T) {
	chain := []*entity.Reviewer{
		reviewer(1, 1, entity.RoleRecommender, entity.ReviewerNotSubmitted),
		reviewer(2, 2, entity.RoleRDG, entity.ReviewerNotSubmitted),
	}

	out, ok := InsertLateReviewer(chain, 1, 50)
	require.True(t, ok)
	require.Len(t, out, 3)
	assert.Equal(t, entity.RoleNCRReviewer, out[0].Role)
	assert.Equal(t, 1, out[0].Order)
	assert.Equal(t, 3, out[2].Order)

	again, ok := InsertLateReviewer(out, 1, 50)
	assert.False(t, ok)
	assert.Len(t, again, 3)

	_, ok = InsertLateReviewer(chain, 1, 0)
	assert.False(t, ok, "no coordinator configured means no insertion")
}
