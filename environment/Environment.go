// Package environment outlines the interfaces and structs needed to
// implement concrete environments with a finite set of discrete actions
package environment

import (
	"io"

	"github.com/samuelfneumann/sweeper/timestep"
)

// Outcome describes how a single environment step resolved
type Outcome int

const (
	// Continue indicates that the episode goes on after the step
	Continue Outcome = iota

	// Win indicates that the step ended the episode successfully
	Win

	// Lose indicates that the step ended the episode in failure
	Lose

	// Invalid indicates that the action could not be applied, either
	// because it was out of range, already taken, or the episode had
	// already ended. The environment state is left unchanged.
	Invalid
)

func (o Outcome) String() string {
	switch o {
	case Win:
		return "win"
	case Lose:
		return "lose"
	case Invalid:
		return "invalid"
	default:
		return "continue"
	}
}

// Terminal returns whether the outcome ends an episode
func (o Outcome) Terminal() bool {
	return o == Win || o == Lose
}

// Renderer writes a human-readable view of the agent-visible state of
// an environment. Rendering never feeds back into the environment.
type Renderer interface {
	Render(w io.Writer) error
}

// Environment implements a simulated environment with discrete actions
// enumerated from 0.
type Environment interface {
	Renderer

	// Reset starts a new episode and returns its first TimeStep
	Reset() timestep.TimeStep

	// Step takes an action in the environment and returns the resulting
	// TimeStep together with the Outcome of the action
	Step(action int) (timestep.TimeStep, Outcome)

	// Legal returns, for each action, whether the action may currently
	// be taken
	Legal() []bool

	// LastTimeStep returns the most recent TimeStep produced
	LastTimeStep() timestep.TimeStep

	DiscountSpec() Spec
	ObservationSpec() Spec
	ActionSpec() Spec
}
