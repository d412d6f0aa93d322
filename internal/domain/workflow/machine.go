package workflow

import "context"

// StateMachine tracks a current state and validates transitions out of it
type StateMachine[S State, T Trigger] interface {
	// State returns the current state
	State() S

	// CanFire returns true if the trigger is permitted in the current state
	CanFire(trigger T) bool

	// Fire attempts to execute the trigger, transitioning to the new state if allowed
	Fire(ctx context.Context, trigger T) error
}
