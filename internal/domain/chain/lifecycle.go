package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/travel-review/internal/domain/entity"
	"github.com/garyjia/travel-review/internal/domain/workflow"
)

// Trigger is an action applied to a single reviewer
type Trigger string

const (
	TriggerSubmit   Trigger = "SUBMIT"
	TriggerActivate Trigger = "ACTIVATE"
	TriggerApprove  Trigger = "APPROVE"
	TriggerDeny     Trigger = "DENY"
	TriggerCancel   Trigger = "CANCEL"
	TriggerUnsubmit Trigger = "UNSUBMIT"
	TriggerDemote   Trigger = "DEMOTE"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

var lifecycle = newLifecycle()

// newLifecycle configures the legal reviewer transitions. SKIPPED has no exits.
func newLifecycle() workflow.StateMachineBuilder[entity.ReviewerStatus, Trigger] {
	b := workflow.NewBuilder[entity.ReviewerStatus, Trigger]()

	b.Configure(entity.ReviewerNotSubmitted).
		Permit(TriggerSubmit, entity.ReviewerQueued).
		Permit(TriggerCancel, entity.ReviewerCancelled)

	b.Configure(entity.ReviewerQueued).
		Permit(TriggerActivate, entity.ReviewerPending).
		Permit(TriggerCancel, entity.ReviewerCancelled).
		Permit(TriggerUnsubmit, entity.ReviewerNotSubmitted)

	b.Configure(entity.ReviewerPending).
		Permit(TriggerActivate, entity.ReviewerPending).
		Permit(TriggerApprove, entity.ReviewerApproved).
		Permit(TriggerDeny, entity.ReviewerDenied).
		Permit(TriggerCancel, entity.ReviewerCancelled).
		Permit(TriggerUnsubmit, entity.ReviewerNotSubmitted).
		Permit(TriggerDemote, entity.ReviewerQueued)

	b.Configure(entity.ReviewerApproved).
		Permit(TriggerUnsubmit, entity.ReviewerNotSubmitted)

	b.Configure(entity.ReviewerDenied).
		Permit(TriggerUnsubmit, entity.ReviewerNotSubmitted)

	b.Configure(entity.ReviewerCancelled).
		Permit(TriggerUnsubmit, entity.ReviewerNotSubmitted)

	return b
}

// CanApply reports whether trigger is legal from the step's current status
func CanApply(step *entity.ReviewStep, trigger Trigger) bool {
	if !step.Status.IsValid() {
		return false
	}
	return lifecycle.Build(step.Status).CanFire(trigger)
}

// Apply moves the step through trigger. Decisions and activation stamp
// statusAt; un-submission clears statusAt and comments. A stored status
// outside the known set is an integrity error.
func Apply(step *entity.ReviewStep, trigger Trigger, now time.Time) error {
	if !step.Status.IsValid() {
		return fmt.Errorf("%w: reviewer %d has unknown status %q", ErrIntegrity, step.ID, step.Status)
	}

	m := lifecycle.Build(step.Status)
	if err := m.Fire(context.Background(), trigger); err != nil {
		return fmt.Errorf("reviewer %d: %w", step.ID, err)
	}

	step.Status = m.State()
	switch trigger {
	case TriggerUnsubmit:
		step.Reset()
	case TriggerSubmit, TriggerDemote:
	default:
		stamp := now
		step.StatusAt = &stamp
	}

	return nil
}

// SubmitAll queues every NOT_SUBMITTED reviewer
func SubmitAll[R Stepper](chain []R) error {
	for _, r := range chain {
		if s := r.Step(); s.Status == entity.ReviewerNotSubmitted {
			if err := Apply(s, TriggerSubmit, time.Time{}); err != nil {
				return err
			}
		}
	}
	return nil
}

// UnsubmitAll resets every reviewer except SKIPPED ones back to NOT_SUBMITTED
func UnsubmitAll[R Stepper](chain []R) error {
	for _, r := range chain {
		s := r.Step()
		if s.Status == entity.ReviewerSkipped || s.Status == entity.ReviewerNotSubmitted {
			continue
		}
		if err := Apply(s, TriggerUnsubmit, time.Time{}); err != nil {
			return err
		}
	}
	return nil
}

// CancelRemaining cancels every reviewer that has no final outcome yet and
// returns how many were cancelled
func CancelRemaining[R Stepper](chain []R, now time.Time) (int, error) {
	n := 0
	for _, r := range chain {
		s := r.Step()
		if s.Status.IsTerminal() {
			continue
		}
		if err := Apply(s, TriggerCancel, now); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// CascadeDenial cancels every non-terminal reviewer positioned after the first
// DENIED one and returns how many were cancelled
func CascadeDenial[R Stepper](chain []R, now time.Time) (int, error) {
	for i, r := range chain {
		if r.Step().Status == entity.ReviewerDenied {
			return CancelRemaining(chain[i+1:], now)
		}
	}
	return 0, nil
}
