package solver

import (
	"fmt"
	"math"

	G "gorgonia.org/gorgonia"
)

// AdamConfig describes a configuration of the Adam solver
type AdamConfig struct {
	StepSize float64 `yaml:"step_size"`
	Epsilon  float64 `yaml:"epsilon"` // Smoothing factor
	Beta1    float64 `yaml:"beta1"`
	Beta2    float64 `yaml:"beta2"`
	Clip     float64 `yaml:"clip"` // <= 0 if no clipping
}

// DefaultAdamConfig returns the AdamConfig with default
// hyperparameters
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{
		StepSize: DefaultStepSize,
		Epsilon:  1e-8,
		Beta1:    0.9,
		Beta2:    0.999,
	}
}

// NewDefaultAdam returns a new Adam Solver with default hyperparameters
func NewDefaultAdam(stepSize float64) (*Solver, error) {
	return NewAdam(stepSize, 1e-8, 0.9, 0.999)
}

// NewAdam returns a new Adam Solver
func NewAdam(stepSize, epsilon, beta1, beta2 float64) (*Solver, error) {
	adam := AdamConfig{
		StepSize: stepSize,
		Epsilon:  epsilon,
		Beta1:    beta1,
		Beta2:    beta2,
	}

	return newSolver(Adam, adam)
}

// Create returns a new Adam solver as described by the AdamConfig
func (a AdamConfig) Create() G.Solver {
	return &adamSolver{config: a}
}

// ValidType returns if the given Solver type is a valid type to be
// created with this config.
func (a AdamConfig) ValidType(t Type) bool {
	return t == Adam
}

// Validate checks the AdamConfig for errors
func (a AdamConfig) Validate() error {
	if a.StepSize <= 0 {
		return fmt.Errorf("validate: step size must be positive \n\thave(%v)",
			a.StepSize)
	}
	if a.Epsilon <= 0 {
		return fmt.Errorf("validate: epsilon must be positive \n\thave(%v)",
			a.Epsilon)
	}
	if a.Beta1 < 0 || a.Beta1 >= 1 || a.Beta2 < 0 || a.Beta2 >= 1 {
		return fmt.Errorf("validate: betas must be in [0, 1) "+
			"\n\thave(%v, %v)", a.Beta1, a.Beta2)
	}
	return nil
}

// adamSolver implements the Adam optimizer of Kingma and Ba (2015).
// Unlike the Gorgonia Adam solver, its moment estimates can be read and
// restored through the Stateful interface.
type adamSolver struct {
	config AdamConfig
	state  State
}

// Step performs a single update of the model's weights and zeroes the
// gradients
func (a *adamSolver) Step(model []G.ValueGrad) error {
	if a.state.M == nil {
		a.state.M = make([][]float64, len(model))
		a.state.V = make([][]float64, len(model))
	}
	if len(a.state.M) != len(model) {
		return fmt.Errorf("step: model size changed \n\twant(%v) \n\thave(%v)",
			len(a.state.M), len(model))
	}

	a.state.Steps++
	t := float64(a.state.Steps)
	c1 := 1 - math.Pow(a.config.Beta1, t)
	c2 := 1 - math.Pow(a.config.Beta2, t)
	b1, b2 := a.config.Beta1, a.config.Beta2

	for i, vg := range model {
		weights, grads, err := modelData(vg)
		if err != nil {
			return fmt.Errorf("step: node %d: %v", i, err)
		}

		if a.state.M[i] == nil {
			a.state.M[i] = make([]float64, len(weights))
			a.state.V[i] = make([]float64, len(weights))
		}
		m, v := a.state.M[i], a.state.V[i]
		if len(m) != len(weights) {
			return fmt.Errorf("step: node %d changed size \n\twant(%v) "+
				"\n\thave(%v)", i, len(m), len(weights))
		}

		for j := range weights {
			g := clip(grads[j], a.config.Clip)
			m[j] = b1*m[j] + (1-b1)*g
			v[j] = b2*v[j] + (1-b2)*g*g

			mHat := m[j] / c1
			vHat := v[j] / c2
			weights[j] -= a.config.StepSize * mHat /
				(math.Sqrt(vHat) + a.config.Epsilon)
		}
		zero(grads)
	}
	return nil
}

// State returns a copy of the solver's moment estimates and step count
func (a *adamSolver) State() State {
	return a.state.Clone()
}

// SetState sets the solver's moment estimates and step count
func (a *adamSolver) SetState(s State) error {
	if len(s.M) != len(s.V) {
		return fmt.Errorf("setState: mismatched moments \n\tfirst(%v) "+
			"\n\tsecond(%v)", len(s.M), len(s.V))
	}
	for i := range s.M {
		if len(s.M[i]) != len(s.V[i]) {
			return fmt.Errorf("setState: mismatched moments for node %d", i)
		}
	}
	if s.Steps < 0 {
		return fmt.Errorf("setState: negative step count %v", s.Steps)
	}

	a.state = s.Clone()
	return nil
}
