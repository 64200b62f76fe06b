// Package experiment implements functionality for running an experiment
package experiment

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/samuelfneumann/sweeper/environment"
	"github.com/samuelfneumann/sweeper/experiment/tracker"
)

// Experiment outlines structs that can run experiments. Experiments
// send each environment TimeStep to Trackers, which cache the data in
// RAM to be later saved to disk by Save. Run runs episodes until the
// episode limit is reached or the context is cancelled, and RunEpisode
// runs a single episode.
type Experiment interface {
	Run(ctx context.Context) error
	RunEpisode() (Episode, error)

	// Adds a new tracker.Tracker to the (possibly already running)
	// experiment. Useful if you want to track data only after a
	// specified event.
	Register(t tracker.Tracker)

	// Save all tracked data to disk
	Save() error
}

// Episode summarizes a single completed episode
type Episode struct {
	Number    int // Episodes are numbered from 1
	Steps     int // Actions taken, including invalid actions
	Invalid   int // Invalid actions taken
	Return    float64
	Outcome   environment.Outcome
	Epsilon   float64
	Truncated bool // Whether the step limit ended the episode
}

// Fields returns the structured logging fields of an Episode
func (e Episode) Fields() logrus.Fields {
	fields := logrus.Fields{
		"episode": e.Number,
		"steps":   e.Steps,
		"return":  e.Return,
		"epsilon": e.Epsilon,
		"outcome": e.Outcome.String(),
	}
	if e.Invalid > 0 {
		fields["invalid"] = e.Invalid
	}
	if e.Truncated {
		fields["truncated"] = true
	}
	return fields
}
