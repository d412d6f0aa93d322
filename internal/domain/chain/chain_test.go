package chain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/travel-review/internal/domain/entity"
)

func TestRenumber(t *testing.T) {
	chain := []*entity.Reviewer{
		reviewer(10, 1, entity.RoleRecommender, entity.ReviewerQueued),
		reviewer(3, 2, entity.RoleADM, entity.ReviewerQueued),
		reviewer(7, 3, entity.RoleRDG, entity.ReviewerQueued),
	}

	Renumber(chain)

	for i, r := range chain {
		assert.Equal(t, i+1, r.Order)
	}
}

func TestSortByOrder_StableOnTies(t *testing.T) {
	a := reviewer(1, 1, entity.RolePlainReviewer, entity.ReviewerQueued)
	b := reviewer(2, 2, entity.RolePlainReviewer, entity.ReviewerQueued)
	c := reviewer(3, 3, entity.RoleRDG, entity.ReviewerQueued)
	a.Order, b.Order, c.Order = 5, 5, 1

	chain := []*entity.Reviewer{a, b, c}
	SortByOrder(chain)

	assert.Equal(t, []*entity.Reviewer{c, a, b}, chain)
}

func TestInsertBefore(t *testing.T) {
	tests := []struct {
		name    string
		pos     int
		wantIDs []int64
	}{
		{"front", 0, []int64{99, 1, 2}},
		{"middle", 1, []int64{1, 99, 2}},
		{"end", 2, []int64{1, 2, 99}},
		{"negative clamps to front", -5, []int64{99, 1, 2}},
		{"past end clamps to end", 10, []int64{1, 2, 99}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := []*entity.Reviewer{
				reviewer(1, 1, entity.RoleRecommender, entity.ReviewerNotSubmitted),
				reviewer(2, 2, entity.RoleRDG, entity.ReviewerNotSubmitted),
			}
			late := reviewer(99, 9, entity.RoleNCRReviewer, entity.ReviewerNotSubmitted)

			out := InsertBefore(chain, late, tt.pos)

			require.Len(t, out, 3)
			for i, r := range out {
				assert.Equal(t, tt.wantIDs[i], r.ID)
				assert.Equal(t, i+1, r.Order)
			}
		})
	}
}

func TestCurrent(t *testing.T) {
	chain := []*entity.Reviewer{
		reviewer(1, 1, entity.RoleRecommender, entity.ReviewerApproved),
		reviewer(2, 2, entity.RoleADM, entity.ReviewerPending),
		reviewer(3, 3, entity.RoleRDG, entity.ReviewerQueued),
	}

	r, ok := Current(chain)
	require.True(t, ok)
	assert.Equal(t, int64(2), r.ID)

	_, ok = Current(chain[2:])
	assert.False(t, ok)
}

func TestCheckIntegrity(t *testing.T) {
	tests := []struct {
		name    string
		chain   []*entity.Reviewer
		wantErr bool
	}{
		{
			name:  "empty chain",
			chain: nil,
		},
		{
			name: "all not submitted",
			chain: []*entity.Reviewer{
				reviewer(1, 1, entity.RoleRecommender, entity.ReviewerNotSubmitted),
				reviewer(2, 2, entity.RoleRDG, entity.ReviewerNotSubmitted),
			},
		},
		{
			name: "skipped alongside not submitted",
			chain: []*entity.Reviewer{
				reviewer(1, 1, entity.RolePlainReviewer, entity.ReviewerSkipped),
				reviewer(2, 2, entity.RoleRDG, entity.ReviewerNotSubmitted),
			},
		},
		{
			name: "one pending after approvals",
			chain: []*entity.Reviewer{
				reviewer(1, 1, entity.RolePlainReviewer, entity.ReviewerSkipped),
				reviewer(2, 2, entity.RoleRecommender, entity.ReviewerApproved),
				reviewer(3, 3, entity.RoleRDG, entity.ReviewerPending),
			},
		},
		{
			name: "two pending",
			chain: []*entity.Reviewer{
				reviewer(1, 1, entity.RoleRecommender, entity.ReviewerPending),
				reviewer(2, 2, entity.RoleRDG, entity.ReviewerPending),
			},
			wantErr: true,
		},
		{
			name: "pending behind queued",
			chain: []*entity.Reviewer{
				reviewer(1, 1, entity.RoleRecommender, entity.ReviewerQueued),
				reviewer(2, 2, entity.RoleRDG, entity.ReviewerPending),
			},
			wantErr: true,
		},
		{
			name: "not submitted mixed with approved",
			chain: []*entity.Reviewer{
				reviewer(1, 1, entity.RoleRecommender, entity.ReviewerApproved),
				reviewer(2, 2, entity.RoleRDG, entity.ReviewerNotSubmitted),
			},
			wantErr: true,
		},
		{
			name: "unknown status",
			chain: []*entity.Reviewer{
				reviewer(1, 1, entity.RoleRecommender, entity.ReviewerStatus("LOST")),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckIntegrity(tt.chain)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrIntegrity), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRepair(t *testing.T) {
	tests := []struct {
		name        string
		submitted   bool
		in          []entity.ReviewerStatus
		want        []entity.ReviewerStatus
		wantChanged bool
	}{
		{
			name:      "healthy chain untouched",
			submitted: true,
			in:        []entity.ReviewerStatus{entity.ReviewerApproved, entity.ReviewerPending, entity.ReviewerQueued},
			want:      []entity.ReviewerStatus{entity.ReviewerApproved, entity.ReviewerPending, entity.ReviewerQueued},
		},
		{
			name:        "two pending demoted",
			submitted:   true,
			in:          []entity.ReviewerStatus{entity.ReviewerPending, entity.ReviewerPending, entity.ReviewerQueued},
			want:        []entity.ReviewerStatus{entity.ReviewerQueued, entity.ReviewerQueued, entity.ReviewerQueued},
			wantChanged: true,
		},
		{
			name:        "mixed chain on submitted request queued",
			submitted:   true,
			in:          []entity.ReviewerStatus{entity.ReviewerApproved, entity.ReviewerNotSubmitted, entity.ReviewerSkipped},
			want:        []entity.ReviewerStatus{entity.ReviewerApproved, entity.ReviewerQueued, entity.ReviewerSkipped},
			wantChanged: true,
		},
		{
			name:        "mixed chain on draft request reset",
			submitted:   false,
			in:          []entity.ReviewerStatus{entity.ReviewerPending, entity.ReviewerNotSubmitted, entity.ReviewerSkipped},
			want:        []entity.ReviewerStatus{entity.ReviewerNotSubmitted, entity.ReviewerNotSubmitted, entity.ReviewerSkipped},
			wantChanged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := make([]*entity.Reviewer, len(tt.in))
			for i, st := range tt.in {
				chain[i] = reviewer(int64(i+1), int64(i+1), entity.RolePlainReviewer, st)
			}

			changed, err := Repair(chain, tt.submitted)
			require.NoError(t, err)
			assert.Equal(t, tt.wantChanged, changed)
			assert.Equal(t, tt.want, statuses(chain))
			assert.NoError(t, CheckIntegrity(chain))
		})
	}
}

func TestRepair_UnknownStatus(t *testing.T) {
	chain := []*entity.Reviewer{reviewer(1, 1, entity.RoleRDG, entity.ReviewerStatus("LOST"))}

	_, err := Repair(chain, true)
	assert.ErrorIs(t, err, ErrIntegrity)
}
