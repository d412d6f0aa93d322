package chain

import (
	"time"

	"github.com/garyjia/travel-review/internal/domain/entity"
)

// DefaultCostWarningThreshold is the non-resident trip cost that triggers a warning
const DefaultCostWarningThreshold = 10000.0

// CostGuard watches a trip's non-resident total and warns travel
// administration once per crossing of the threshold
type CostGuard struct {
	threshold  float64
	recipients []string
	clock      func() time.Time
}

// CostEvaluation is the result of one Evaluate call
type CostEvaluation struct {
	Total   float64
	Warned  bool
	Cleared bool
	Notice  *entity.Notice
}

// NewCostGuard creates a guard. A non-positive threshold uses the default.
func NewCostGuard(threshold float64, recipients []string, clock func() time.Time) *CostGuard {
	if threshold <= 0 {
		threshold = DefaultCostWarningThreshold
	}
	if clock == nil {
		clock = time.Now
	}
	return &CostGuard{
		threshold:  threshold,
		recipients: recipients,
		clock:      clock,
	}
}

// Threshold returns the configured warning threshold
func (g *CostGuard) Threshold() float64 {
	return g.threshold
}

// NonResidentTotal sums traveller costs over requests that count toward the
// trip, leaving out research scientists
func NonResidentTotal(requests []*entity.Request) float64 {
	var total float64
	for _, req := range requests {
		if !req.Status.CountsTowardCost() {
			continue
		}
		for _, t := range req.Travellers {
			if t.IsResearchScientist {
				continue
			}
			total += t.TotalCost
		}
	}
	return total
}

// Evaluate recomputes the trip total and stamps or clears the warning marker.
// The trip is mutated in place.
func (g *CostGuard) Evaluate(trip *entity.Trip, requests []*entity.Request) *CostEvaluation {
	total := NonResidentTotal(requests)
	trip.NonResidentTotalCost = total

	eval := &CostEvaluation{Total: total}

	switch {
	case total >= g.threshold && trip.CostWarningSentAt == nil:
		now := g.clock()
		trip.CostWarningSentAt = &now
		eval.Warned = true
		eval.Notice = &entity.Notice{
			Kind:      entity.KindTripCostWarning,
			TripID:    trip.ID,
			Addresses: append([]string(nil), g.recipients...),
			Payload: map[string]interface{}{
				"trip_id":    trip.ID,
				"trip_name":  trip.Name,
				"total_cost": total,
				"threshold":  g.threshold,
			},
		}
	case total < g.threshold && trip.CostWarningSentAt != nil:
		trip.CostWarningSentAt = nil
		eval.Cleared = true
	}

	return eval
}
