// Package solver implements gradient-based optimizers for Gorgonia
// models. Solvers can be serialized into configuration files, and
// stateful solvers expose their internal state so that training can be
// checkpointed and resumed.
package solver

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// Type describes different types of solvers that are available
type Type string

// Available solver types
const (
	Adam    Type = "Adam"
	Vanilla Type = "Vanilla"
)

// State is the internal state of a solver. Each element of a moment
// corresponds to one learnable node of the model, in the order the
// model is passed to Step.
type State struct {
	Steps int
	M     [][]float64 // First moment estimates
	V     [][]float64 // Second moment estimates
}

// Clone returns a deep copy of the State
func (s State) Clone() State {
	return State{Steps: s.Steps, M: clone2D(s.M), V: clone2D(s.V)}
}

// Stateful is a G.Solver whose internal state can be saved and
// restored
type Stateful interface {
	G.Solver
	State() State
	SetState(State) error
}

// Solver wraps G.Solvers so that they can be YAML marshalled and
// unmarshalled.
type Solver struct {
	G.Solver `yaml:"-"`
	Type
	Config
}

// newSolver returns a new solver with the given type and configuration.
func newSolver(t Type, c Config) (*Solver, error) {
	if !c.ValidType(t) {
		return nil, fmt.Errorf("newSolver: invalid solver type %v for "+
			"configuration %T", t, c)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newSolver: %v", err)
	}
	solver := Solver{Type: t, Config: c}
	solver.Solver = solver.Config.Create()

	return &solver, nil
}

// State returns the state of the wrapped solver. Stateless solvers
// return the zero State.
func (s *Solver) State() State {
	if stateful, ok := s.Solver.(Stateful); ok {
		return stateful.State()
	}
	return State{}
}

// SetState sets the state of the wrapped solver
func (s *Solver) SetState(state State) error {
	if stateful, ok := s.Solver.(Stateful); ok {
		return stateful.SetState(state)
	}
	if state.Steps != 0 || len(state.M) != 0 || len(state.V) != 0 {
		return fmt.Errorf("setState: %v solver has no state", s.Type)
	}
	return nil
}

// Reset returns a new Solver with the same configuration and a fresh
// state
func (s *Solver) Reset() *Solver {
	return &Solver{Solver: s.Config.Create(), Type: s.Type, Config: s.Config}
}

// MarshalYAML implements the yaml.Marshaler interface
func (s *Solver) MarshalYAML() (interface{}, error) {
	return struct {
		Type   Type   `yaml:"type"`
		Config Config `yaml:"config"`
	}{s.Type, s.Config}, nil
}

// UnmarshalYAML implements the yaml.Unmarshaler interface. Fields
// missing from the config take their default values, for example:
//
//	type: Adam
//	config:
//	  step_size: 0.001
func (s *Solver) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var typed struct {
		Type   Type        `yaml:"type"`
		Config interface{} `yaml:"config"`
	}
	if err := unmarshal(&typed); err != nil {
		return err
	}

	var config Config
	var err error
	switch typed.Type {
	case Adam:
		c := struct {
			Type   Type       `yaml:"type"`
			Config AdamConfig `yaml:"config"`
		}{typed.Type, DefaultAdamConfig()}
		err = unmarshal(&c)
		config = c.Config

	case Vanilla:
		c := struct {
			Type   Type          `yaml:"type"`
			Config VanillaConfig `yaml:"config"`
		}{typed.Type, VanillaConfig{StepSize: DefaultStepSize}}
		err = unmarshal(&c)
		config = c.Config

	default:
		return fmt.Errorf("unmarshalYAML: unknown solver type %q", typed.Type)
	}
	if err != nil {
		return fmt.Errorf("unmarshalYAML: could not unmarshal %v config: %v",
			typed.Type, err)
	}

	solver, err := newSolver(typed.Type, config)
	if err != nil {
		return fmt.Errorf("unmarshalYAML: %v", err)
	}
	*s = *solver
	return nil
}

// Config implements a solver configuration and can be used to create
// the solvers they describe.
type Config interface {
	Create() G.Solver

	// ValidType returns whether a specific Solver type can be created
	// with the Config
	ValidType(Type) bool

	Validate() error
}

// modelData returns the weights and gradients of a learnable node as
// float64 slices
func modelData(vg G.ValueGrad) ([]float64, []float64, error) {
	weights, ok := vg.Value().Data().([]float64)
	if !ok {
		return nil, nil, fmt.Errorf("only float64 weights are supported, "+
			"have %T", vg.Value().Data())
	}

	grad, err := vg.Grad()
	if err != nil {
		return nil, nil, fmt.Errorf("could not get gradient: %v", err)
	}
	grads, ok := grad.Data().([]float64)
	if !ok {
		return nil, nil, fmt.Errorf("only float64 gradients are supported, "+
			"have %T", grad.Data())
	}

	if len(weights) != len(grads) {
		return nil, nil, fmt.Errorf("gradient size mismatch \n\twant(%v) "+
			"\n\thave(%v)", len(weights), len(grads))
	}
	return weights, grads, nil
}

// clip clips x to [-c, c] if c > 0
func clip(x, c float64) float64 {
	if c <= 0 {
		return x
	}
	if x > c {
		return c
	}
	if x < -c {
		return -c
	}
	return x
}

func zero(x []float64) {
	for i := range x {
		x[i] = 0
	}
}

func clone2D(x [][]float64) [][]float64 {
	if x == nil {
		return nil
	}
	out := make([][]float64, len(x))
	for i := range x {
		out[i] = append([]float64(nil), x[i]...)
	}
	return out
}
