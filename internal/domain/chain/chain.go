// Package chain holds the reviewer-chain rules: ordering, lifecycle, status
// derivation, chain assembly, activation and the trip cost guard.
package chain

import (
	"fmt"
	"sort"
	"time"

	"github.com/garyjia/travel-review/internal/domain/entity"
)

// Stepper is implemented by *entity.Reviewer and *entity.TripReviewer
type Stepper interface {
	Step() *entity.ReviewStep
}

// SortByOrder sorts the chain in place by order, keeping insertion order for ties
func SortByOrder[R Stepper](chain []R) {
	sort.SliceStable(chain, func(i, j int) bool {
		return chain[i].Step().Order < chain[j].Step().Order
	})
}

// Renumber assigns order 1..N following the current slice order
func Renumber[R Stepper](chain []R) {
	for i, r := range chain {
		r.Step().Order = i + 1
	}
}

// InsertBefore places r at position pos (0-based) and renumbers the chain.
// Positions outside the chain are clamped to its ends.
func InsertBefore[R Stepper](chain []R, r R, pos int) []R {
	if pos < 0 {
		pos = 0
	}
	if pos > len(chain) {
		pos = len(chain)
	}

	out := make([]R, 0, len(chain)+1)
	out = append(out, chain[:pos]...)
	out = append(out, r)
	out = append(out, chain[pos:]...)

	Renumber(out)
	return out
}

// Current returns the PENDING reviewer, if any
func Current[R Stepper](chain []R) (R, bool) {
	for _, r := range chain {
		if r.Step().Status == entity.ReviewerPending {
			return r, true
		}
	}
	var zero R
	return zero, false
}

// Contains reports whether the chain already has userID in role
func Contains[R Stepper](chain []R, userID int64, role entity.Role) bool {
	for _, r := range chain {
		if s := r.Step(); s.UserID == userID && s.Role == role {
			return true
		}
	}
	return false
}

// firstActive returns the first reviewer that is QUEUED or still PENDING
func firstActive[R Stepper](chain []R) (R, bool) {
	for _, r := range chain {
		switch r.Step().Status {
		case entity.ReviewerQueued, entity.ReviewerPending:
			return r, true
		}
	}
	var zero R
	return zero, false
}

func allCleared[R Stepper](chain []R) bool {
	for _, r := range chain {
		if !r.Step().Status.IsCleared() {
			return false
		}
	}
	return true
}

func hasStatus[R Stepper](chain []R, status entity.ReviewerStatus) bool {
	for _, r := range chain {
		if r.Step().Status == status {
			return true
		}
	}
	return false
}

// CheckIntegrity reports stored chain states that the rules never produce:
// more than one PENDING reviewer, a PENDING reviewer behind an uncleared one,
// or NOT_SUBMITTED reviewers mixed with submitted ones. SKIPPED reviewers are
// neutral since they keep their status across un-submission.
func CheckIntegrity[R Stepper](chain []R) error {
	pending, notSubmitted, submitted := 0, 0, 0
	blocked := false

	for _, r := range chain {
		s := r.Step()
		if !s.Status.IsValid() {
			return fmt.Errorf("%w: reviewer %d has unknown status %q", ErrIntegrity, s.ID, s.Status)
		}

		switch s.Status {
		case entity.ReviewerPending:
			pending++
			submitted++
			if blocked {
				return fmt.Errorf("%w: reviewer %d is pending behind an uncleared reviewer", ErrIntegrity, s.ID)
			}
		case entity.ReviewerNotSubmitted:
			notSubmitted++
		case entity.ReviewerSkipped:
		default:
			submitted++
		}

		if !s.Status.IsCleared() {
			blocked = true
		}
	}

	if pending > 1 {
		return fmt.Errorf("%w: %d reviewers pending at once", ErrIntegrity, pending)
	}
	if notSubmitted > 0 && submitted > 0 {
		return fmt.Errorf("%w: chain mixes NOT_SUBMITTED with submitted reviewers", ErrIntegrity)
	}

	return nil
}

// Repair rewrites a chain that fails CheckIntegrity into one the seeker can
// continue from. Every PENDING reviewer is demoted to QUEUED so the next Seek
// activates the right one, and NOT_SUBMITTED reviewers are brought in line
// with the owner's submission state. Unknown statuses cannot be repaired.
// Healthy chains are left untouched; the result reports whether anything changed.
func Repair[R Stepper](chain []R, submitted bool) (bool, error) {
	err := CheckIntegrity(chain)
	if err == nil {
		return false, nil
	}
	for _, r := range chain {
		if s := r.Step(); !s.Status.IsValid() {
			return false, err
		}
	}

	if !submitted {
		if err := UnsubmitAll(chain); err != nil {
			return false, err
		}
		return true, nil
	}

	for _, r := range chain {
		s := r.Step()
		switch s.Status {
		case entity.ReviewerPending:
			if err := Apply(s, TriggerDemote, time.Time{}); err != nil {
				return false, err
			}
		case entity.ReviewerNotSubmitted:
			if err := Apply(s, TriggerSubmit, time.Time{}); err != nil {
				return false, err
			}
		}
	}
	return true, nil
}
