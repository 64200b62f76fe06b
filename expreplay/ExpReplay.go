// Package expreplay implements experience replay buffers which store
// past transitions and sample batches of them for learning
package expreplay

import (
	"fmt"

	"github.com/samuelfneumann/sweeper/timestep"
)

// Config implements a specific configuration of an ExperienceReplayer
type Config struct {
	// Capacity is the maximum number of transitions stored. Once full,
	// the oldest transition is evicted on each Add.
	Capacity int `yaml:"capacity" json:"capacity"`

	// MinCapacity is the number of transitions required in the buffer
	// before sampling is allowed. Sampling always requires at least
	// BatchSize transitions, regardless of MinCapacity.
	MinCapacity int `yaml:"min_capacity" json:"min_capacity"`

	// BatchSize is the number of distinct transitions returned by
	// Sample
	BatchSize int `yaml:"batch_size" json:"batch_size"`
}

// Validate checks a Config for errors
func (c Config) Validate() error {
	if c.Capacity < 1 {
		return fmt.Errorf("validate: capacity must be >= 1 \n\thave(%v)",
			c.Capacity)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("validate: batch size must be >= 1 \n\thave(%v)",
			c.BatchSize)
	}
	if c.BatchSize > c.Capacity {
		return fmt.Errorf("validate: cannot have batch size (%v) > max "+
			"buffer capacity (%v)", c.BatchSize, c.Capacity)
	}
	if c.MinCapacity < 0 || c.MinCapacity > c.Capacity {
		return fmt.Errorf("validate: min capacity must be in [0, %v] "+
			"\n\thave(%v)", c.Capacity, c.MinCapacity)
	}
	return nil
}

// Create creates and returns the ExperienceReplayer with the specified
// Config
func (c Config) Create(featureSize int, seed uint64) (ExperienceReplayer,
	error) {
	return New(c, featureSize, seed)
}

// Batch is a batch of transitions sampled from a replay buffer. States
// and NextStates are stored row-major with one row of features per
// transition. Terminals holds 1.0 for transitions which ended an
// episode and 0.0 otherwise.
type Batch struct {
	States     []float64
	Actions    []int
	Rewards    []float64
	NextStates []float64
	Terminals  []float64
}

// Size returns the number of transitions in the batch
func (b Batch) Size() int {
	return len(b.Actions)
}

// ExperienceReplayer implements an experience replay buffer
type ExperienceReplayer interface {
	// Add adds a transition to the buffer, evicting the oldest
	// transition if the buffer is full
	Add(t timestep.Transition) error

	// Sample samples a batch of distinct transitions from the buffer
	Sample() (Batch, error)

	// Len returns the current number of transitions in the buffer
	Len() int

	// MaxCapacity returns the maximum allowable samples in the buffer
	MaxCapacity() int

	// MinCapacity returns the number of samples required to be in
	// the buffer before the buffer can be sampled
	MinCapacity() int

	// BatchSize returns the number of samples returned by Sample()
	BatchSize() int

	// Contents returns copies of all transitions in the buffer, ordered
	// from oldest to newest
	Contents() []timestep.Transition
}

// New creates and returns a new ExperienceReplayer which stores
// transitions with states of featureSize features and samples uniformly
// randomly without replacement.
//
// Pixel observations should be flattened before adding to the buffer.
func New(c Config, featureSize int, seed uint64) (ExperienceReplayer,
	error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	if featureSize < 1 {
		return nil, fmt.Errorf("new: feature size must be >= 1 \n\thave(%v)",
			featureSize)
	}

	// A buffer of capacity 1 only stores the most recent online
	// transition, in which case onlineCache skips the sampler entirely
	if c.Capacity == 1 {
		return newOnline(featureSize), nil
	}

	sampler := NewUniformSelector(c.BatchSize, seed)
	return newDefaultCache(sampler, c.MinCapacity, c.Capacity, featureSize),
		nil
}

// checkTransition ensures a transition has the expected feature size
func checkTransition(t timestep.Transition, featureSize int) error {
	if t.State == nil || t.NextState == nil {
		return fmt.Errorf("add: transition is missing a state")
	}
	if t.State.Len() != featureSize || t.NextState.Len() != featureSize {
		return fmt.Errorf("add: invalid feature size \n\twant(%v)\n\thave(%v)",
			featureSize, t.State.Len())
	}
	return nil
}

// terminal converts a terminal flag into the float stored in a Batch
func terminal(done bool) float64 {
	if done {
		return 1.0
	}
	return 0.0
}
