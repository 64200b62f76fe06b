package tracker

import (
	"github.com/samuelfneumann/sweeper/environment"
	ts "github.com/samuelfneumann/sweeper/timestep"
)

// Return tracks and saves the episodic return in an experiment. When
// an environment returns a TimeStep, this Tracker will extract the
// reward and accumulate the return for each episode in the experiment.
//
// Note: An episode must end for this Tracker to save its data. If the
// last episode in an experiment does not end, that episode's return
// will not be saved.
type Return struct {
	currentReturn  float64
	episodeReturns []float64
	filename       string
}

// NewReturn creates and returns a new *Return Tracker which saves its
// data at filename
func NewReturn(filename string) *Return {
	return &Return{filename: filename}
}

// Track tracks the rewards seen on a timestep. The reward of the first
// timestep of an episode is not part of the return.
func (r *Return) Track(step ts.TimeStep) {
	if step.First() {
		r.currentReturn = 0.0
		return
	}
	r.currentReturn += step.Reward
}

// EndEpisode caches the return of the current episode and starts
// accumulating the return of a new episode
func (r *Return) EndEpisode(environment.Outcome) {
	r.episodeReturns = append(r.episodeReturns, r.currentReturn)
	r.currentReturn = 0.0
}

// Data returns the returns of each episode tracked so far
func (r *Return) Data() []float64 {
	return append([]float64(nil), r.episodeReturns...)
}

// Save saves the data tracked by the Return Tracker to disk.
func (r *Return) Save() error {
	return save(r.filename, r.episodeReturns)
}
