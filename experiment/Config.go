package experiment

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
	"gopkg.in/yaml.v2"

	"github.com/samuelfneumann/sweeper/agent/deepq"
	"github.com/samuelfneumann/sweeper/environment/minesweeper"
	"github.com/samuelfneumann/sweeper/experiment/checkpointer"
	"github.com/samuelfneumann/sweeper/experiment/tracker"
)

// Default experiment parameters
const (
	DefaultEpisodes        = 10000
	DefaultCheckpointEvery = 500
	DefaultPlaybackEvery   = 500
	DefaultPlaybackDelay   = 100 * time.Millisecond
	DefaultCheckpointPath  = "checkpoints/dqn_minesweeper.gob"
	DefaultPlotWindow      = 100
)

// RunConfig configures how an Online experiment is run
type RunConfig struct {
	Episodes int    `yaml:"episodes"`
	Seed     uint64 `yaml:"seed"`

	// MaxEpisodeSteps caps the number of actions in an episode. If 0,
	// episodes are capped at the number of actions in the environment.
	MaxEpisodeSteps int `yaml:"max_episode_steps"`

	// Checkpoints are saved every CheckpointEvery episodes and at the
	// end of the experiment. If CheckpointPath is empty, no
	// checkpoints are saved. If EnumerateCheckpoints is set, each
	// checkpoint is saved to a new file with a counter suffix.
	// Otherwise each checkpoint replaces the last.
	CheckpointPath       string `yaml:"checkpoint_path"`
	CheckpointEvery      int    `yaml:"checkpoint_every"`
	EnumerateCheckpoints bool   `yaml:"enumerate_checkpoints"`

	// Resume determines whether the agent is restored from
	// CheckpointPath before training
	Resume bool `yaml:"resume"`

	// Every PlaybackEvery episodes a single episode is rendered, with
	// PlaybackDelay between frames. If 0, no episodes are rendered.
	PlaybackEvery int           `yaml:"playback_every"`
	PlaybackDelay time.Duration `yaml:"playback_delay"`

	// Episode statistics are saved to StatsDir, with learning curves
	// averaged over PlotWindow episodes. If empty, no statistics are
	// saved.
	StatsDir   string `yaml:"stats_dir"`
	PlotWindow int    `yaml:"plot_window"`
}

// DefaultRunConfig returns the default RunConfig
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Episodes:        DefaultEpisodes,
		Seed:            1,
		CheckpointPath:  DefaultCheckpointPath,
		CheckpointEvery: DefaultCheckpointEvery,
		Resume:          true,
		PlaybackEvery:   DefaultPlaybackEvery,
		PlaybackDelay:   DefaultPlaybackDelay,
		PlotWindow:      DefaultPlotWindow,
	}
}

// Validate checks a RunConfig for errors
func (r RunConfig) Validate() error {
	if r.Episodes < 0 {
		return fmt.Errorf("validate: episodes must be non-negative "+
			"\n\thave(%v)", r.Episodes)
	}
	if r.MaxEpisodeSteps < 0 {
		return fmt.Errorf("validate: max episode steps must be "+
			"non-negative \n\thave(%v)", r.MaxEpisodeSteps)
	}
	if r.CheckpointEvery < 0 || r.PlaybackEvery < 0 {
		return fmt.Errorf("validate: checkpoint (%v) and playback (%v) "+
			"intervals must be non-negative", r.CheckpointEvery,
			r.PlaybackEvery)
	}
	if r.PlaybackDelay < 0 {
		return fmt.Errorf("validate: playback delay must be non-negative "+
			"\n\thave(%v)", r.PlaybackDelay)
	}
	if r.StatsDir != "" && r.PlotWindow < 1 {
		return fmt.Errorf("validate: plot window must be positive "+
			"\n\thave(%v)", r.PlotWindow)
	}
	return nil
}

// Config represents a configuration of an experiment: the environment,
// the agent, and how the agent is trained in the environment.
type Config struct {
	Environment minesweeper.Config `yaml:"environment"`
	Agent       deepq.Config       `yaml:"agent"`
	Experiment  RunConfig          `yaml:"experiment"`
}

// DefaultConfig returns the default experiment Config
func DefaultConfig() Config {
	return Config{
		Environment: minesweeper.NewConfig(),
		Agent:       deepq.DefaultConfig(),
		Experiment:  DefaultRunConfig(),
	}
}

// LoadConfig loads a YAML Config from path. Fields missing from the
// file take their default values. Unknown fields are an error.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("loadConfig: %v", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses a YAML Config. Fields missing from data take their
// default values. Unknown fields are an error.
func ParseConfig(data []byte) (Config, error) {
	c := DefaultConfig()
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return Config{}, fmt.Errorf("parseConfig: %v", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("parseConfig: %v", err)
	}
	return c, nil
}

// WriteConfig writes c to w as YAML
func WriteConfig(w io.Writer, c Config) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("writeConfig: %v", err)
	}
	_, err = w.Write(data)
	return err
}

// Validate checks a Config for errors
func (c Config) Validate() error {
	if err := c.Environment.Validate(); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	if err := c.Experiment.Validate(); err != nil {
		return fmt.Errorf("experiment: %w", err)
	}
	return nil
}

// CreateAgent creates the environment and agent described by the
// Config. If resuming is configured, the agent is restored from its
// checkpoint. A missing or invalid checkpoint is logged as a warning
// and training starts from fresh weights.
func (c Config) CreateAgent(logger *logrus.Logger) (*minesweeper.Minesweeper,
	*deepq.DeepQ, error) {
	if logger == nil {
		logger = discard()
	}

	seeds := c.Experiment.seeds()
	env, _, err := minesweeper.New(c.Environment, seeds.environment)
	if err != nil {
		return nil, nil, fmt.Errorf("createAgent: could not create "+
			"environment: %v", err)
	}

	agent, err := deepq.New(env, c.Agent, seeds.agent)
	if err != nil {
		return nil, nil, fmt.Errorf("createAgent: could not create agent: %v",
			err)
	}

	path := c.Experiment.CheckpointPath
	if !c.Experiment.Resume || path == "" {
		return env, agent, nil
	}
	entry := logger.WithField("path", path)
	switch err := agent.LoadFile(path); {
	case errors.Is(err, os.ErrNotExist):
		entry.Warn("no checkpoint found, starting from fresh weights")
	case err != nil:
		entry.WithError(err).Warn("could not load checkpoint, starting " +
			"from fresh weights")
	default:
		entry.WithFields(logrus.Fields{
			"steps":   agent.Steps(),
			"epsilon": agent.Epsilon(),
		}).Info("resumed from checkpoint")
	}
	return env, agent, nil
}

// CreateExp creates the Online experiment described by the Config.
// Playback episodes are rendered to sink, and are disabled if sink is
// nil.
func (c Config) CreateExp(logger *logrus.Logger, sink io.Writer) (*Online,
	error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("createExp: %v", err)
	}
	if logger == nil {
		logger = discard()
	}

	env, agent, err := c.CreateAgent(logger)
	if err != nil {
		return nil, fmt.Errorf("createExp: %v", err)
	}

	run := c.Experiment
	trackers, err := run.trackers()
	if err != nil {
		return nil, fmt.Errorf("createExp: %v", err)
	}
	exp, err := NewOnline(env, agent, run, logger, trackers...)
	if err != nil {
		return nil, fmt.Errorf("createExp: %v", err)
	}

	if run.CheckpointPath != "" {
		filename := checkpointer.Fixed(run.CheckpointPath)
		if run.EnumerateCheckpoints {
			filename = checkpointer.FilenameEnumerator(0, run.CheckpointPath)
		}
		exp.SetCheckpointer(checkpointer.NewNEpisode(run.CheckpointEvery,
			agent, filename))
	}

	if sink != nil && run.PlaybackEvery > 0 {
		playback, _, err := minesweeper.New(c.Environment,
			run.seeds().playback)
		if err != nil {
			return nil, fmt.Errorf("createExp: could not create playback "+
				"environment: %v", err)
		}
		exp.SetPlayback(playback, sink)
	}

	return exp, nil
}

// seedSet holds the seeds of each random component of an experiment
type seedSet struct {
	environment, agent, playback uint64
}

// seeds derives an independent seed for each random component from the
// experiment seed
func (r RunConfig) seeds() seedSet {
	rng := rand.New(rand.NewSource(r.Seed))
	return seedSet{
		environment: rng.Uint64(),
		agent:       rng.Uint64(),
		playback:    rng.Uint64(),
	}
}

// trackers returns the Trackers which save episode statistics to
// StatsDir
func (r RunConfig) trackers() ([]tracker.Tracker, error) {
	if r.StatsDir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(r.StatsDir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create stats directory: %v", err)
	}

	returns := tracker.NewReturn(filepath.Join(r.StatsDir, "returns.bin"))
	lengths := tracker.NewEpisodeLength(filepath.Join(r.StatsDir,
		"lengths.bin"))
	outcomes := tracker.NewOutcome(filepath.Join(r.StatsDir, "outcomes.bin"))
	curve := tracker.NewCurve(filepath.Join(r.StatsDir, "curve"),
		r.PlotWindow, returns, outcomes)

	return []tracker.Tracker{returns, lengths, outcomes, curve}, nil
}
