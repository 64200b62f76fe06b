package tracker

import (
	"github.com/samuelfneumann/sweeper/environment"
	"github.com/samuelfneumann/sweeper/timestep"
)

// Outcome tracks and saves how each episode of an experiment ended.
// Each episode is saved as its environment.Outcome.
type Outcome struct {
	outcomes []environment.Outcome
	filename string
}

// NewOutcome returns a new Outcome Tracker which will save its data at
// filename
func NewOutcome(filename string) *Outcome {
	return &Outcome{filename: filename}
}

// Track does nothing, outcomes are only known at the end of an episode
func (o *Outcome) Track(timestep.TimeStep) {}

// EndEpisode caches the outcome of the episode
func (o *Outcome) EndEpisode(outcome environment.Outcome) {
	o.outcomes = append(o.outcomes, outcome)
}

// Data returns the outcome of each episode tracked so far
func (o *Outcome) Data() []environment.Outcome {
	return append([]environment.Outcome(nil), o.outcomes...)
}

// Wins returns, for each episode tracked so far, 1.0 if the episode was
// won and 0.0 otherwise
func (o *Outcome) Wins() []float64 {
	wins := make([]float64, len(o.outcomes))
	for i, outcome := range o.outcomes {
		if outcome == environment.Win {
			wins[i] = 1.0
		}
	}
	return wins
}

// Save saves the data tracked by the Outcome Tracker to disk.
func (o *Outcome) Save() error {
	return save(o.filename, o.outcomes)
}
