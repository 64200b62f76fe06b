package experiment

import (
	"fmt"
	"io"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/sweeper/agent"
	env "github.com/samuelfneumann/sweeper/environment"
	"github.com/samuelfneumann/sweeper/environment/minesweeper"
)

// Play plays a single greedy episode of the agent on e, rendering each
// frame to sink and sleeping for delay between frames. The agent does
// not learn from the episode. Play returns the outcome of the final
// action and the number of actions taken.
func Play(e env.Environment, a agent.Agent, sink io.Writer,
	delay time.Duration) (env.Outcome, int, error) {
	numActions, err := e.ActionSpec().NumActions()
	if err != nil {
		return env.Continue, 0, fmt.Errorf("play: %v", err)
	}

	if !a.IsEval() {
		a.Eval()
		defer a.Train()
	}
	return play(e, a, minesweeper.Normalize, sink, delay, numActions)
}

// play plays a single episode of at most maxSteps actions, selecting
// actions with the agent's current policy
func play(e env.Environment, a agent.Agent,
	features func(mat.Vector) *mat.VecDense, sink io.Writer,
	delay time.Duration, maxSteps int) (env.Outcome, int, error) {
	step := e.Reset()
	outcome := env.Continue
	steps := 0

	if err := frame(e, sink, steps, outcome, delay); err != nil {
		return outcome, steps, err
	}
	for !step.Last() && steps < maxSteps {
		state := features(step.Observation).RawVector().Data
		action, err := a.SelectAction(state, e.Legal())
		if err != nil {
			return outcome, steps, fmt.Errorf("play: could not select "+
				"action: %w", err)
		}

		step, outcome = e.Step(action)
		steps++
		if err := frame(e, sink, steps, outcome, delay); err != nil {
			return outcome, steps, err
		}
	}
	return outcome, steps, nil
}

// frame renders a single frame of an episode to sink
func frame(e env.Environment, sink io.Writer, step int,
	outcome env.Outcome, delay time.Duration) error {
	if sink == nil {
		return nil
	}

	if _, err := fmt.Fprintf(sink, "step %d (%v)\n", step, outcome); err != nil {
		return fmt.Errorf("play: could not render: %v", err)
	}
	if err := e.Render(sink); err != nil {
		return fmt.Errorf("play: could not render: %v", err)
	}
	if _, err := io.WriteString(sink, "\n"); err != nil {
		return fmt.Errorf("play: could not render: %v", err)
	}

	if delay > 0 {
		time.Sleep(delay)
	}
	return nil
}
