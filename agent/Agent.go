// Package agent defines an agent interface
package agent

import (
	"io"

	"github.com/samuelfneumann/sweeper/environment"
	"github.com/samuelfneumann/sweeper/timestep"
)

// Agent determines the implementation details of an agent or algorithm
//
// An Agent is composed of a Learner, which learns weights, and a Policy
// which chooses actions in each state. The Policy chooses which actions
// are taken, and the Learner uses these actions to update the Policy.
type Agent interface {
	Learner
	Policy
}

// A Closer is an agent that must be closed after it is done learning
type Closer interface {
	Agent
	Close() error
}

// Learner implements a learning algorithm that defines how weights are
// updated.
type Learner interface {
	// Step performs a single update to the learner. Step is a no-op
	// when the learner does not yet have enough data to update.
	Step() error

	// Observe records a transition the learner can learn from
	Observe(t timestep.Transition) error
}

// Policy represents a policy that an agent can have.
//
// Policies determine how agents select actions. For a given agent, the
// Policy and Learner should share the same weights so that any changes
// the learner makes to the weights are reflected in the actions the
// Policy chooses.
type Policy interface {
	// SelectAction selects an action in a state given as a feature
	// vector. Only actions a for which legal[a] is true are selected.
	SelectAction(state []float64, legal []bool) (int, error)

	Eval()        // Set policy to evaluation mode
	Train()       // Set policy to training mode
	IsEval() bool // Indicates if in evaluation mode
}

// EGreedyPolicy is a Policy whose exploration rate can be set and
// retrieved
type EGreedyPolicy interface {
	Policy
	SetEpsilon(float64)
	Epsilon() float64
}

// Checkpointer is an Agent whose learned state can be saved and
// restored. Restoring a saved Agent must allow learning to continue as
// if it was never interrupted.
type Checkpointer interface {
	Agent
	Save(w io.Writer) error
	Load(r io.Reader) error
}

// Config describes how to construct an Agent for an environment.
// Agents created from the same Config, environment spec and seed start
// with identical weights.
type Config interface {
	CreateAgent(env environment.Environment, seed uint64) (Agent, error)

	// ValidAgent returns whether a could have been created by the Config
	ValidAgent(a Agent) bool

	Validate() error
}
