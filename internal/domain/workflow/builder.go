package workflow

import (
	"context"
	"fmt"
)

// State is any string-backed state type that can validate itself
type State interface {
	~string
	IsValid() bool
}

// Trigger is any string-backed trigger type
type Trigger interface {
	~string
}

// StateMachineBuilder builds a configured state machine
type StateMachineBuilder[S State, T Trigger] interface {
	// Configure returns a state configuration for the given state
	Configure(state S) StateConfiguration[S, T]

	// Build creates a new state machine instance with the given initial state
	Build(initialState S) StateMachine[S, T]
}

// StateConfiguration configures transitions for a specific state
type StateConfiguration[S State, T Trigger] interface {
	// Permit allows a trigger to transition to the target state. A later
	// Permit for the same trigger replaces the earlier target.
	Permit(trigger T, toState S) StateConfiguration[S, T]
}

type stateConfig[S State, T Trigger] struct {
	fromState   S
	transitions map[T]S
}

type stateMachineBuilder[S State, T Trigger] struct {
	configurations map[S]*stateConfig[S, T]
}

type stateMachine[S State, T Trigger] struct {
	currentState   S
	configurations map[S]*stateConfig[S, T]
}

// NewBuilder creates a new state machine builder
func NewBuilder[S State, T Trigger]() StateMachineBuilder[S, T] {
	return &stateMachineBuilder[S, T]{
		configurations: make(map[S]*stateConfig[S, T]),
	}
}

// Configure returns a state configuration for the given state
func (b *stateMachineBuilder[S, T]) Configure(state S) StateConfiguration[S, T] {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}

	config, exists := b.configurations[state]
	if !exists {
		config = &stateConfig[S, T]{
			fromState:   state,
			transitions: make(map[T]S),
		}
		b.configurations[state] = config
	}

	return config
}

// Build creates a new state machine instance with the given initial state.
// Configurations are copied so later Configure calls do not leak into built machines.
func (b *stateMachineBuilder[S, T]) Build(initialState S) StateMachine[S, T] {
	if !initialState.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initialState))
	}

	configsCopy := make(map[S]*stateConfig[S, T], len(b.configurations))
	for state, config := range b.configurations {
		transitionsCopy := make(map[T]S, len(config.transitions))
		for trigger, toState := range config.transitions {
			transitionsCopy[trigger] = toState
		}
		configsCopy[state] = &stateConfig[S, T]{
			fromState:   state,
			transitions: transitionsCopy,
		}
	}

	return &stateMachine[S, T]{
		currentState:   initialState,
		configurations: configsCopy,
	}
}

// Permit allows a trigger to transition to the target state
func (c *stateConfig[S, T]) Permit(trigger T, toState S) StateConfiguration[S, T] {
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", toState))
	}

	c.transitions[trigger] = toState
	return c
}

// State returns the current state
func (m *stateMachine[S, T]) State() S {
	return m.currentState
}

// CanFire returns true if the trigger is configured for the current state
func (m *stateMachine[S, T]) CanFire(trigger T) bool {
	config, exists := m.configurations[m.currentState]
	if !exists {
		return false
	}

	_, ok := config.transitions[trigger]
	return ok
}

// Fire attempts to execute the trigger, transitioning to the new state if allowed
func (m *stateMachine[S, T]) Fire(ctx context.Context, trigger T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	config, exists := m.configurations[m.currentState]
	if !exists {
		return fmt.Errorf("%w: cannot fire trigger %s from state %s (no configuration)", ErrInvalidTransition, trigger, m.currentState)
	}

	toState, exists := config.transitions[trigger]
	if !exists {
		return fmt.Errorf("%w: cannot fire trigger %s from state %s", ErrInvalidTransition, trigger, m.currentState)
	}

	m.currentState = toState
	return nil
}
