package deepq

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/samuelfneumann/sweeper/agent/policy"
	"github.com/samuelfneumann/sweeper/network"
	"github.com/samuelfneumann/sweeper/solver"
	"github.com/samuelfneumann/sweeper/utils/floatutils"
)

// checkpoint is the learned state of a DeepQ agent. The replay buffer
// is not saved.
type checkpoint struct {
	Layout  []int // Number of weights in each learnable node
	Online  [][]float64
	Target  [][]float64
	Solver  solver.State
	Epsilon float64
	Steps   int
	Policy  []byte // State of the exploration RNG
}

// Save writes a gob-encoded checkpoint of the agent to w
func (d *DeepQ) Save(w io.Writer) error {
	rngState, err := d.policy.MarshalBinary()
	if err != nil {
		return fmt.Errorf("save: %v", err)
	}

	c := checkpoint{
		Layout:  network.Layout(d.online),
		Online:  d.online.Weights(),
		Target:  d.target.Weights(),
		Solver:  d.solver.State(),
		Epsilon: d.policy.Epsilon(),
		Steps:   d.steps,
		Policy:  rngState,
	}
	if err := gob.NewEncoder(w).Encode(c); err != nil {
		return fmt.Errorf("save: could not encode checkpoint: %v", err)
	}
	return nil
}

// Load restores the agent from a checkpoint written by Save. If the
// checkpoint cannot be decoded or does not fit the agent, an error is
// returned and the agent is left unchanged.
func (d *DeepQ) Load(r io.Reader) error {
	var c checkpoint
	if err := gob.NewDecoder(r).Decode(&c); err != nil {
		return fmt.Errorf("load: could not decode checkpoint: %v", err)
	}

	if err := d.validate(c); err != nil {
		return fmt.Errorf("load: %v", err)
	}

	// Restore into fresh copies first so that no state is changed if
	// any part of the checkpoint is rejected
	s := d.solver.Reset()
	if err := s.SetState(c.Solver); err != nil {
		return fmt.Errorf("load: %v", err)
	}
	p, err := policy.NewEGreedy(c.Epsilon, 0)
	if err != nil {
		return fmt.Errorf("load: %v", err)
	}
	if err := p.UnmarshalBinary(c.Policy); err != nil {
		return fmt.Errorf("load: %v", err)
	}

	if err := d.online.SetWeights(c.Online); err != nil {
		return fmt.Errorf("load: %v", err)
	}
	if err := d.target.SetWeights(c.Target); err != nil {
		return fmt.Errorf("load: %v", err)
	}
	if err := d.predictor.Set(d.online); err != nil {
		return fmt.Errorf("load: %v", err)
	}
	d.solver = s
	d.policy = p
	d.steps = c.Steps
	return nil
}

// validate checks that a checkpoint fits the networks of the agent
func (d *DeepQ) validate(c checkpoint) error {
	layout := network.Layout(d.online)
	if len(c.Layout) != len(layout) {
		return fmt.Errorf("invalid number of learnables \n\twant(%v) "+
			"\n\thave(%v)", len(layout), len(c.Layout))
	}
	for i := range layout {
		if c.Layout[i] != layout[i] {
			return fmt.Errorf("invalid network layout \n\twant(%v) "+
				"\n\thave(%v)", layout, c.Layout)
		}
	}

	for name, weights := range map[string][][]float64{
		"online": c.Online,
		"target": c.Target,
	} {
		if err := fits(weights, layout); err != nil {
			return fmt.Errorf("%v weights: %v", name, err)
		}
	}
	if len(c.Solver.M) > 0 {
		if err := fits(c.Solver.M, layout); err != nil {
			return fmt.Errorf("solver state: %v", err)
		}
		if err := fits(c.Solver.V, layout); err != nil {
			return fmt.Errorf("solver state: %v", err)
		}
	}

	if c.Epsilon < 0 || c.Epsilon > 1 {
		return fmt.Errorf("epsilon must be in [0, 1] \n\thave(%v)", c.Epsilon)
	}
	if c.Steps < 0 {
		return fmt.Errorf("negative step count %v", c.Steps)
	}
	return nil
}

// fits returns an error if weights do not have the given layout
func fits(weights [][]float64, layout []int) error {
	if len(weights) != len(layout) {
		return fmt.Errorf("invalid number of learnables \n\twant(%v) "+
			"\n\thave(%v)", len(layout), len(weights))
	}
	for i := range layout {
		if len(weights[i]) != layout[i] {
			return fmt.Errorf("invalid size of learnable %v \n\twant(%v) "+
				"\n\thave(%v)", i, layout[i], len(weights[i]))
		}
		if !floatutils.Finite(weights[i]) {
			return fmt.Errorf("learnable %v has non-finite values", i)
		}
	}
	return nil
}

// SaveFile atomically saves a checkpoint of the agent to path. The
// checkpoint is written to a temporary file in the same directory,
// which then replaces path.
func (d *DeepQ) SaveFile(path string) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("saveFile: %v", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("saveFile: %v", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	if err := d.Save(w); err != nil {
		return fmt.Errorf("saveFile: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("saveFile: %v", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("saveFile: %v", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("saveFile: %v", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("saveFile: %v", err)
	}
	return nil
}

// LoadFile restores the agent from a checkpoint file written by
// SaveFile. The agent is left unchanged on error.
func (d *DeepQ) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("loadFile: %w", err)
	}
	defer f.Close()

	if err := d.Load(bufio.NewReader(f)); err != nil {
		return fmt.Errorf("loadFile: %w", err)
	}
	return nil
}
