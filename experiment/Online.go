package experiment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/sweeper/agent"
	env "github.com/samuelfneumann/sweeper/environment"
	"github.com/samuelfneumann/sweeper/environment/minesweeper"
	"github.com/samuelfneumann/sweeper/experiment/checkpointer"
	"github.com/samuelfneumann/sweeper/experiment/tracker"
	ts "github.com/samuelfneumann/sweeper/timestep"
)

// Online is an Experiment that trains an agent online, one episode at
// a time. Every transition is given to the agent to learn from, and
// the agent takes a learning step after every environment step.
//
// Periodically, the agent is checkpointed and a single episode is
// played on a separate playback environment and rendered to a sink,
// without any learning.
type Online struct {
	environment env.Environment
	agent       agent.Agent
	config      RunConfig
	trackers    []tracker.Tracker
	logger      *logrus.Logger

	// features transforms observations into the states seen by the
	// agent
	features func(mat.Vector) *mat.VecDense

	checkpointer checkpointer.Checkpointer // nil if not checkpointing

	// Episodes are rendered to sink from a separate environment so that
	// playback does not interfere with training
	playback env.Environment
	sink     io.Writer

	episode int // Number of completed episodes
}

// NewOnline creates and returns a new online experiment on a given
// environment with a given agent. Observations are normalized by
// minesweeper.Normalize before being given to the agent. The t
// parameter is a slice of tracker.Tracker which determine what data is
// saved.
func NewOnline(e env.Environment, a agent.Agent, c RunConfig,
	logger *logrus.Logger, t ...tracker.Tracker) (*Online, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newOnline: %v", err)
	}

	// Each valid action opens at least one cell, so an episode never
	// needs more steps than there are actions
	if c.MaxEpisodeSteps == 0 {
		numActions, err := e.ActionSpec().NumActions()
		if err != nil {
			return nil, fmt.Errorf("newOnline: %v", err)
		}
		c.MaxEpisodeSteps = numActions
	}

	if logger == nil {
		logger = discard()
	}

	return &Online{
		environment: e,
		agent:       a,
		config:      c,
		trackers:    t,
		logger:      logger,
		features:    minesweeper.Normalize,
	}, nil
}

// SetFeatures sets the function used to transform observations into
// the states seen by the agent
func (o *Online) SetFeatures(f func(mat.Vector) *mat.VecDense) {
	o.features = f
}

// SetCheckpointer sets the Checkpointer which saves the agent. The
// Checkpointer is called after every episode and once more when the
// experiment ends.
func (o *Online) SetCheckpointer(c checkpointer.Checkpointer) {
	o.checkpointer = c
}

// SetPlayback sets the environment on which periodic playback episodes
// are run and the sink they are rendered to
func (o *Online) SetPlayback(e env.Environment, sink io.Writer) {
	o.playback = e
	o.sink = sink
}

// Register registers a tracker.Tracker with an Experiment so that data
// generated during the experiment can be tracked and saved
func (o *Online) Register(t tracker.Tracker) {
	o.trackers = append(o.trackers, t)
}

// Episodes returns the number of completed episodes
func (o *Online) Episodes() int {
	return o.episode
}

// RunEpisode runs a single episode of the experiment
func (o *Online) RunEpisode() (Episode, error) {
	ep := Episode{Number: o.episode + 1, Outcome: env.Continue}

	step := o.environment.Reset()
	o.track(step)
	state := o.features(step.Observation)

	for !step.Last() {
		if ep.Steps >= o.config.MaxEpisodeSteps {
			ep.Truncated = true
			break
		}

		// Select action, step in environment
		action, err := o.agent.SelectAction(state.RawVector().Data,
			o.environment.Legal())
		if err != nil {
			return ep, fmt.Errorf("runEpisode: could not select action: %w",
				err)
		}
		nextStep, outcome := o.environment.Step(action)
		ep.Steps++
		ep.Return += nextStep.Reward
		ep.Outcome = outcome
		if outcome == env.Invalid {
			ep.Invalid++
		}
		o.track(nextStep)

		// Observe the transition and step the agent
		transition := ts.NewTransition(step, action, nextStep, o.features)
		if err := o.agent.Observe(transition); err != nil {
			return ep, fmt.Errorf("runEpisode: %w", err)
		}
		if err := o.agent.Step(); err != nil {
			return ep, fmt.Errorf("runEpisode: %w", err)
		}

		step = nextStep
		state = o.features(step.Observation)
	}

	for _, t := range o.trackers {
		t.EndEpisode(ep.Outcome)
	}
	o.episode++
	ep.Epsilon = epsilon(o.agent)

	entry := o.logger.WithFields(ep.Fields())
	if l, ok := o.agent.(interface{ Loss() float64 }); ok {
		entry = entry.WithField("loss", l.Loss())
	}
	if ep.Truncated {
		entry.Warn("episode truncated")
	} else {
		entry.Info("episode finished")
	}
	return ep, nil
}

// Run runs episodes until the configured number of episodes have been
// completed or ctx is cancelled. Cancellation is only observed between
// episodes. When Run returns without a training error, the agent is
// checkpointed and all tracked data is saved.
func (o *Online) Run(ctx context.Context) error {
	start := time.Now()
	o.logger.WithFields(logrus.Fields{
		"episodes": o.config.Episodes,
		"from":     o.episode + 1,
	}).Info("starting training")

loop:
	for o.episode < o.config.Episodes {
		select {
		case <-ctx.Done():
			o.logger.WithField("episode", o.episode).Warn(
				"training interrupted")
			break loop
		default:
		}

		ep, err := o.RunEpisode()
		if err != nil {
			return fmt.Errorf("run: episode %d: %w", ep.Number, err)
		}

		if o.checkpointer != nil {
			if err := o.checkpointer.Checkpoint(ep.Number); err != nil {
				o.logger.WithError(err).Error("could not save checkpoint")
			} else if o.config.CheckpointEvery > 0 &&
				ep.Number%o.config.CheckpointEvery == 0 {
				o.logger.WithField("episode", ep.Number).Info(
					"saved checkpoint")
			}
		}

		if o.playback != nil && o.config.PlaybackEvery > 0 &&
			ep.Number%o.config.PlaybackEvery == 0 {
			o.logger.WithField("episode", ep.Number).Info("playing episode")
			outcome, steps, err := play(o.playback, o.agent, o.features,
				o.sink, o.config.PlaybackDelay, o.config.MaxEpisodeSteps)
			if err != nil {
				return fmt.Errorf("run: playback: %w", err)
			}
			o.logger.WithFields(logrus.Fields{
				"episode": ep.Number,
				"steps":   steps,
				"outcome": outcome.String(),
			}).Info("playback finished")
		}
	}

	var errs []error
	if o.checkpointer != nil {
		if err := o.checkpointer.Save(); err != nil {
			errs = append(errs, fmt.Errorf("could not save final "+
				"checkpoint: %w", err))
		}
	}
	if err := o.Save(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("run: %w", errors.Join(errs...))
	}

	o.logger.WithFields(logrus.Fields{
		"episodes": o.episode,
		"elapsed":  time.Since(start).Round(time.Millisecond).String(),
	}).Info("training finished")
	return nil
}

// Save saves all the data cached by the Trackers to disk
func (o *Online) Save() error {
	var errs []error
	for _, t := range o.trackers {
		if err := t.Save(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("save: %w", errors.Join(errs...))
	}
	return nil
}

// track tracks the current timestep by caching its data in each Tracker
func (o *Online) track(t ts.TimeStep) {
	for _, tr := range o.trackers {
		tr.Track(t)
	}
}

// epsilon returns the exploration rate of an agent, or 0 if the agent
// does not explore ε-greedily
func epsilon(a agent.Agent) float64 {
	if e, ok := a.(agent.EGreedyPolicy); ok {
		return e.Epsilon()
	}
	return 0
}

// discard returns a logger which discards all entries
func discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
