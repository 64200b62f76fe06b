package experiment

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/samuelfneumann/sweeper/agent/deepq"
	env "github.com/samuelfneumann/sweeper/environment"
	"github.com/samuelfneumann/sweeper/environment/minesweeper"
	"github.com/samuelfneumann/sweeper/expreplay"
	"github.com/samuelfneumann/sweeper/solver"
)

// testConfig returns a Config for a small board and network which saves
// all experiment data to dir
func testConfig(t *testing.T, dir string) Config {
	t.Helper()

	adam, err := solver.NewDefaultAdam(1e-2)
	if err != nil {
		t.Fatal(err)
	}

	c := DefaultConfig()
	c.Environment = minesweeper.Config{Rows: 5, Cols: 5, Mines: 3}

	c.Agent.HiddenSizes = []int{16}
	c.Agent.Solver = adam
	c.Agent.EpsilonDecay = 50
	c.Agent.TargetUpdateInterval = 10
	c.Agent.ExpReplay = expreplay.Config{Capacity: 64, BatchSize: 4}

	c.Experiment.Episodes = 5
	c.Experiment.CheckpointPath = filepath.Join(dir, "ckpt", "agent.gob")
	c.Experiment.CheckpointEvery = 2
	c.Experiment.PlaybackEvery = 2
	c.Experiment.PlaybackDelay = 0
	c.Experiment.StatsDir = filepath.Join(dir, "stats")
	c.Experiment.PlotWindow = 2
	return c
}

func TestRunEpisode(t *testing.T) {
	c := testConfig(t, t.TempDir())
	c.Experiment.CheckpointPath = ""
	c.Experiment.StatsDir = ""

	exp, err := c.CreateExp(nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	for i := 1; i <= 5; i++ {
		ep, err := exp.RunEpisode()
		if err != nil {
			t.Fatal(err)
		}
		if ep.Number != i {
			t.Errorf("runEpisode: number \n\twant(%v) \n\thave(%v)", i,
				ep.Number)
		}

		// Exploration is restricted to legal actions, so every action
		// opens a cell and the episode ends before the step limit
		if !ep.Outcome.Terminal() || ep.Truncated {
			t.Errorf("runEpisode: outcome \n\twant(win or lose) \n\thave(%v)",
				ep.Outcome)
		}
		if ep.Invalid != 0 {
			t.Errorf("runEpisode: invalid actions \n\twant(0) \n\thave(%v)",
				ep.Invalid)
		}
		if ep.Steps < 1 || ep.Steps > 25 {
			t.Errorf("runEpisode: steps \n\twant([1, 25]) \n\thave(%v)",
				ep.Steps)
		}
		if ep.Epsilon > c.Agent.EpsilonStart || ep.Epsilon <
			c.Agent.EpsilonFinal {
			t.Errorf("runEpisode: epsilon out of range \n\thave(%v)",
				ep.Epsilon)
		}
	}
	if exp.Episodes() != 5 {
		t.Errorf("episodes: \n\twant(5) \n\thave(%v)", exp.Episodes())
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	c := testConfig(t, dir)

	var sink bytes.Buffer
	exp, err := c.CreateExp(nil, &sink)
	if err != nil {
		t.Fatal(err)
	}
	if err := exp.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if exp.Episodes() != c.Experiment.Episodes {
		t.Errorf("run: episodes \n\twant(%v) \n\thave(%v)",
			c.Experiment.Episodes, exp.Episodes())
	}

	files := []string{
		c.Experiment.CheckpointPath,
		filepath.Join(dir, "stats", "returns.bin"),
		filepath.Join(dir, "stats", "lengths.bin"),
		filepath.Join(dir, "stats", "outcomes.bin"),
		filepath.Join(dir, "stats", "curve_return.png"),
		filepath.Join(dir, "stats", "curve_winrate.png"),
	}
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			t.Errorf("run: %v", err)
		}
	}

	// Episodes 2 and 4 are played back
	if n := strings.Count(sink.String(), "step 0 "); n != 2 {
		t.Errorf("run: playback episodes \n\twant(2) \n\thave(%v)", n)
	}

	// A new agent resumes from the final checkpoint
	_, resumed, err := c.CreateAgent(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resumed.Close()
	if resumed.Steps() == 0 {
		t.Error("createAgent: agent was not resumed from checkpoint")
	}
}

func TestRunCancelled(t *testing.T) {
	c := testConfig(t, t.TempDir())
	c.Experiment.StatsDir = ""

	exp, err := c.CreateExp(nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := exp.Run(ctx); err != nil {
		t.Fatal(err)
	}

	if exp.Episodes() != 0 {
		t.Errorf("run: episodes \n\twant(0) \n\thave(%v)", exp.Episodes())
	}
	if _, err := os.Stat(c.Experiment.CheckpointPath); err != nil {
		t.Errorf("run: final checkpoint not saved: %v", err)
	}
}

func TestCreateAgentFresh(t *testing.T) {
	dir := t.TempDir()
	c := testConfig(t, dir)

	// A missing checkpoint is not an error, but is warned about
	logger, hook := test.NewNullLogger()
	_, agent, err := c.CreateAgent(logger)
	if err != nil {
		t.Fatal(err)
	}
	defer agent.Close()
	if entry := hook.LastEntry(); entry == nil ||
		entry.Level != logrus.WarnLevel {
		t.Errorf("createAgent: missing checkpoint not logged as a warning")
	}
	if agent.Steps() != 0 || agent.Epsilon() != c.Agent.EpsilonStart {
		t.Errorf("createAgent: \n\twant(0, %v) \n\thave(%v, %v)",
			c.Agent.EpsilonStart, agent.Steps(), agent.Epsilon())
	}

	// Neither is a corrupt checkpoint
	path := c.Experiment.CheckpointPath
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("not a checkpoint"), 0o644); err != nil {
		t.Fatal(err)
	}
	hook.Reset()
	_, agent2, err := c.CreateAgent(logger)
	if err != nil {
		t.Fatal(err)
	}
	defer agent2.Close()
	if entry := hook.LastEntry(); entry == nil ||
		entry.Level != logrus.WarnLevel {
		t.Errorf("createAgent: corrupt checkpoint not logged as a warning")
	}
	if agent2.Steps() != 0 {
		t.Errorf("createAgent: steps \n\twant(0) \n\thave(%v)", agent2.Steps())
	}
}

func TestPlay(t *testing.T) {
	c := testConfig(t, t.TempDir())
	e, _, err := minesweeper.New(c.Environment, 3)
	if err != nil {
		t.Fatal(err)
	}
	agent, err := deepq.New(e, c.Agent, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer agent.Close()

	var sink bytes.Buffer
	outcome, steps, err := Play(e, agent, &sink, 0)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != env.Win && outcome != env.Lose {
		t.Errorf("play: outcome \n\twant(win or lose) \n\thave(%v)", outcome)
	}
	if steps < 1 {
		t.Errorf("play: steps \n\twant(>0) \n\thave(%v)", steps)
	}
	if agent.IsEval() {
		t.Error("play: agent left in evaluation mode")
	}
	if agent.ReplayLen() != 0 || agent.Steps() != 0 {
		t.Error("play: agent learned during playback")
	}

	frames := strings.Count(sink.String(), "step ")
	if frames != steps+1 {
		t.Errorf("play: frames \n\twant(%v) \n\thave(%v)", steps+1, frames)
	}
}
