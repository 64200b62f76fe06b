package expreplay

import (
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/sweeper/timestep"
)

// onlineCache implements an experience replay buffer for sampling
// completely online.
//
// When creating a new experience replay buffer, the user could
// choose to use a buffer with a maximum capacity of 1. In this case,
// experience replay reduces to online sampling, and each call to
// Sample returns the most recently added transition.
type onlineCache struct {
	featureSize int
	full        bool

	state     []float64
	action    int
	reward    float64
	nextState []float64
	terminal  bool
}

// newOnline returns a new online replay buffer
func newOnline(featureSize int) ExperienceReplayer {
	return &onlineCache{
		featureSize: featureSize,
		state:       make([]float64, featureSize),
		nextState:   make([]float64, featureSize),
	}
}

// Add replaces the stored transition with t
func (o *onlineCache) Add(t timestep.Transition) error {
	if err := checkTransition(t, o.featureSize); err != nil {
		return err
	}

	copyVecInto(o.state, t.State)
	copyVecInto(o.nextState, t.NextState)
	o.action = t.Action
	o.reward = t.Reward
	o.terminal = t.Terminal
	o.full = true

	return nil
}

// Sample returns a batch holding the most recently added transition
func (o *onlineCache) Sample() (Batch, error) {
	if !o.full {
		return Batch{}, &ExpReplayError{Op: "sample", Err: errEmptyCache}
	}

	states := make([]float64, o.featureSize)
	nextStates := make([]float64, o.featureSize)
	copy(states, o.state)
	copy(nextStates, o.nextState)

	return Batch{
		States:     states,
		Actions:    []int{o.action},
		Rewards:    []float64{o.reward},
		NextStates: nextStates,
		Terminals:  []float64{terminal(o.terminal)},
	}, nil
}

// Len returns the current number of elements in the cache that
// are available for sampling
func (o *onlineCache) Len() int {
	if o.full {
		return 1
	}
	return 0
}

// MaxCapacity returns the maximum number of elements that are allowed
// in the cache
func (o *onlineCache) MaxCapacity() int {
	return 1
}

// MinCapacity returns the minimum number of elements required in the
// cache before sampling is allowed
func (o *onlineCache) MinCapacity() int {
	return 1
}

// BatchSize returns the number of samples sampled using Sample() -
// a.k.a the batch size
func (o *onlineCache) BatchSize() int {
	return 1
}

// Contents returns a copy of the stored transition, if any
func (o *onlineCache) Contents() []timestep.Transition {
	if !o.full {
		return nil
	}

	batch, _ := o.Sample()
	return []timestep.Transition{{
		State:     mat.NewVecDense(o.featureSize, batch.States),
		Action:    o.action,
		Reward:    o.reward,
		NextState: mat.NewVecDense(o.featureSize, batch.NextStates),
		Terminal:  o.terminal,
	}}
}
