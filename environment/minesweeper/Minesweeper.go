// Package minesweeper implements a Minesweeper board as a reinforcement
// learning environment.
//
// Each action opens a single cell, enumerated in row-major order. Mines
// are placed lazily on the first action of an episode so that the
// opened cell and its neighbours never contain a mine. Opening a cell
// with no adjacent mines opens all connected cells with no adjacent
// mines together with their numbered boundary.
//
// Rewards are:
//
//	-10			a mine is opened (episode ends)
//	+10			all safe cells are opened (episode ends)
//	0.1 * k		k cells were opened by the action
//	-penalty	the action was invalid (no change to the board)
package minesweeper

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/sampleuv"

	env "github.com/samuelfneumann/sweeper/environment"
	ts "github.com/samuelfneumann/sweeper/timestep"
)

// Observation values for cells which do not show their mine count
const (
	Hidden = -3.0 // Cell has not been opened
	Mine   = -1.0 // Cell is an opened mine, only seen after a loss
)

// MaxCount is the largest number of mines adjacent to a cell
const MaxCount = 8

// Rewards
const (
	WinReward  = 10.0
	LoseReward = -10.0
	OpenReward = 0.1 // Reward per opened cell
)

// mine marks a mine in the board's ground truth
const mine = -1

// Minesweeper implements a Minesweeper board environment. A Minesweeper
// owns the ground truth of a single episode at a time; calling Reset
// discards the current board.
type Minesweeper struct {
	rows, cols int
	mines      int
	penalty    float64

	counts  []int  // Mine counts, or mine, for each cell
	visible []bool // Whether each cell has been opened

	opened    int // Number of opened non-mine cells
	firstMove bool
	done      bool

	rng         *rand.Rand
	currentStep ts.TimeStep
}

// New creates a new Minesweeper environment, returning the environment
// and the first TimeStep of the first episode.
func New(c Config, seed uint64) (*Minesweeper, ts.TimeStep, error) {
	if err := c.Validate(); err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("new: %w", err)
	}

	m := &Minesweeper{
		rows:    c.Rows,
		cols:    c.Cols,
		mines:   c.Mines,
		penalty: c.RevealPenalty,
		counts:  make([]int, c.Cells()),
		visible: make([]bool, c.Cells()),
		rng:     rand.New(rand.NewSource(seed)),
	}

	return m, m.Reset(), nil
}

// Reset resets the environment and returns the first TimeStep of a new
// episode. All cells are hidden and no mines are placed until the next
// call to Step.
func (m *Minesweeper) Reset() ts.TimeStep {
	for i := range m.counts {
		m.counts[i] = 0
		m.visible[i] = false
	}
	m.opened = 0
	m.firstMove = true
	m.done = false

	m.currentStep = ts.New(ts.First, 0.0, 1.0, m.observation(), 0)
	return m.currentStep
}

// Step opens the cell at index action, where cells are indexed in
// row-major order.
func (m *Minesweeper) Step(action int) (ts.TimeStep, env.Outcome) {
	if m.done || action < 0 || action >= len(m.counts) || m.visible[action] {
		return m.invalid(), env.Invalid
	}

	if m.firstMove {
		m.placeMines(action)
		m.firstMove = false
	}

	number := m.currentStep.Number + 1

	if m.counts[action] == mine {
		m.visible[action] = true
		m.done = true
		m.currentStep = ts.New(ts.Last, LoseReward, 0.0, m.observation(),
			number)
		return m.currentStep, env.Lose
	}

	k := m.open(action)
	m.opened += k

	if m.opened == len(m.counts)-m.mines {
		m.done = true
		m.currentStep = ts.New(ts.Last, WinReward, 0.0, m.observation(),
			number)
		return m.currentStep, env.Win
	}

	m.currentStep = ts.New(ts.Mid, OpenReward*float64(k), 1.0,
		m.observation(), number)
	return m.currentStep, env.Continue
}

// invalid returns the TimeStep for an action which does not change the
// board
func (m *Minesweeper) invalid() ts.TimeStep {
	stepType, discount := ts.Mid, 1.0
	if m.done {
		stepType, discount = ts.Last, 0.0
	}

	m.currentStep = ts.New(stepType, -m.penalty, discount, m.observation(),
		m.currentStep.Number+1)
	return m.currentStep
}

// placeMines places mines uniformly randomly on the board, excluding
// the cell at index safe and its neighbours.
func (m *Minesweeper) placeMines(safe int) {
	if m.mines == 0 {
		m.countMines()
		return
	}

	excluded := make(map[int]struct{}, 9)
	excluded[safe] = struct{}{}
	for _, n := range m.neighbours(safe) {
		excluded[n] = struct{}{}
	}

	candidates := make([]int, 0, len(m.counts)-len(excluded))
	for i := range m.counts {
		if _, ok := excluded[i]; !ok {
			candidates = append(candidates, i)
		}
	}

	chosen := make([]int, m.mines)
	sampleuv.WithoutReplacement(chosen, len(candidates), m.rng)
	for _, c := range chosen {
		m.counts[candidates[c]] = mine
	}
	m.countMines()
}

// countMines computes the number of adjacent mines of each non-mine
// cell
func (m *Minesweeper) countMines() {
	for i := range m.counts {
		if m.counts[i] == mine {
			continue
		}
		count := 0
		for _, n := range m.neighbours(i) {
			if m.counts[n] == mine {
				count++
			}
		}
		m.counts[i] = count
	}
}

// open opens the non-mine cell at index i. If the cell has no adjacent
// mines, all connected cells with no adjacent mines are opened, as well
// as their boundary. The number of newly opened cells is returned.
func (m *Minesweeper) open(i int) int {
	opened := 0
	stack := []int{i}

	for len(stack) > 0 {
		cell := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if m.visible[cell] {
			continue
		}
		m.visible[cell] = true
		opened++

		if m.counts[cell] != 0 {
			continue
		}
		for _, n := range m.neighbours(cell) {
			if !m.visible[n] {
				stack = append(stack, n)
			}
		}
	}
	return opened
}

// neighbours returns the indices of the up to 8 cells adjacent to the
// cell at index i
func (m *Minesweeper) neighbours(i int) []int {
	r, c := i/m.cols, i%m.cols
	n := make([]int, 0, 8)

	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			nr, nc := r+dr, c+dc
			if nr >= 0 && nr < m.rows && nc >= 0 && nc < m.cols {
				n = append(n, nr*m.cols+nc)
			}
		}
	}
	return n
}

// observation returns the agent-visible board
func (m *Minesweeper) observation() *mat.VecDense {
	obs := make([]float64, len(m.counts))
	for i := range obs {
		switch {
		case !m.visible[i]:
			obs[i] = Hidden
		case m.counts[i] == mine:
			obs[i] = Mine
		default:
			obs[i] = float64(m.counts[i])
		}
	}
	return mat.NewVecDense(len(obs), obs)
}

// Legal returns whether each cell may be opened by the next action
func (m *Minesweeper) Legal() []bool {
	legal := make([]bool, len(m.visible))
	if m.done {
		return legal
	}
	for i, v := range m.visible {
		legal[i] = !v
	}
	return legal
}

// LastTimeStep returns the last TimeStep that occurred in the
// environment
func (m *Minesweeper) LastTimeStep() ts.TimeStep {
	return m.currentStep
}

// Dims returns the number of rows and columns of the board
func (m *Minesweeper) Dims() (r, c int) {
	return m.rows, m.cols
}

// Mines returns the number of mines on the board
func (m *Minesweeper) Mines() int {
	return m.mines
}

// MineCells returns the indices of all cells containing a mine. Before
// the first action of an episode no mines are placed and the returned
// slice is empty.
func (m *Minesweeper) MineCells() []int {
	var cells []int
	for i, count := range m.counts {
		if count == mine {
			cells = append(cells, i)
		}
	}
	return cells
}

// Index returns the action index of the cell at row r and column c
func (m *Minesweeper) Index(r, c int) int {
	return r*m.cols + c
}

// Opened returns the number of opened non-mine cells
func (m *Minesweeper) Opened() int {
	return m.opened
}

// Revealed returns whether the cell at index i has been opened
func (m *Minesweeper) Revealed(i int) bool {
	return m.visible[i]
}

// Done returns whether the current episode has ended
func (m *Minesweeper) Done() bool {
	return m.done
}

// ObservationSpec returns the observation specification of the
// environment
func (m *Minesweeper) ObservationSpec() env.Spec {
	n := len(m.counts)
	shape := mat.NewVecDense(n, nil)

	lower := make([]float64, n)
	upper := make([]float64, n)
	for i := range lower {
		lower[i] = Hidden
		upper[i] = MaxCount
	}

	return env.NewSpec(shape, env.Observation, mat.NewVecDense(n, lower),
		mat.NewVecDense(n, upper), env.Discrete)
}

// ActionSpec returns the action specification of the environment
func (m *Minesweeper) ActionSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	lower := mat.NewVecDense(1, []float64{0})
	upper := mat.NewVecDense(1, []float64{float64(len(m.counts) - 1)})

	return env.NewSpec(shape, env.Action, lower, upper, env.Discrete)
}

// DiscountSpec returns the discount specification of the environment
func (m *Minesweeper) DiscountSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	lower := mat.NewVecDense(1, []float64{0})
	upper := mat.NewVecDense(1, []float64{1})

	return env.NewSpec(shape, env.Discount, lower, upper, env.Continuous)
}

// Render writes the agent-visible board to w, one row per line. Hidden
// cells are drawn as #, opened mines as *, and other opened cells as
// their mine count.
func (m *Minesweeper) Render(w io.Writer) error {
	var b strings.Builder
	for r := 0; r < m.rows; r++ {
		for c := 0; c < m.cols; c++ {
			i := m.Index(r, c)
			switch {
			case !m.visible[i]:
				b.WriteByte('#')
			case m.counts[i] == mine:
				b.WriteByte('*')
			default:
				b.WriteByte(byte('0' + m.counts[i]))
			}
			if c < m.cols-1 {
				b.WriteByte(' ')
			}
		}
		b.WriteByte('\n')
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// String implements the fmt.Stringer interface
func (m *Minesweeper) String() string {
	var b strings.Builder
	m.Render(&b)
	return b.String()
}

// Normalize scales an observation by MaxCount, so that mine counts lie
// in [0, 1]
func Normalize(obs mat.Vector) *mat.VecDense {
	out := mat.NewVecDense(obs.Len(), nil)
	out.ScaleVec(1.0/MaxCount, obs)
	return out
}
