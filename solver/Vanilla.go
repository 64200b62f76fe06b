package solver

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// DefaultStepSize is the default learning rate of all solvers
const DefaultStepSize = 1e-3

// VanillaConfig describes a configuration of the vanilla gradient
// descent solver.
type VanillaConfig struct {
	StepSize float64 `yaml:"step_size"`
	Clip     float64 `yaml:"clip"` // <= 0 if no clipping
}

// NewVanilla returns a new Vanilla Solver
func NewVanilla(stepSize, clip float64) (*Solver, error) {
	vanilla := VanillaConfig{
		StepSize: stepSize,
		Clip:     clip,
	}

	return newSolver(Vanilla, vanilla)
}

// Create returns a vanilla gradient descent solver as described by the
// VanillaConfig
func (v VanillaConfig) Create() G.Solver {
	return &vanillaSolver{config: v}
}

// ValidType returns if the given Solver type is a valid type to be
// created with this config.
func (v VanillaConfig) ValidType(t Type) bool {
	return t == Vanilla
}

// Validate checks the VanillaConfig for errors
func (v VanillaConfig) Validate() error {
	if v.StepSize <= 0 {
		return fmt.Errorf("validate: step size must be positive \n\thave(%v)",
			v.StepSize)
	}
	return nil
}

// vanillaSolver performs stochastic gradient descent:
//
//	θ ← θ - α * clip(∇θ)
type vanillaSolver struct {
	config VanillaConfig
}

// Step performs a single update of the model's weights and zeroes the
// gradients
func (v *vanillaSolver) Step(model []G.ValueGrad) error {
	for i, vg := range model {
		weights, grads, err := modelData(vg)
		if err != nil {
			return fmt.Errorf("step: node %d: %v", i, err)
		}

		for j := range weights {
			weights[j] -= v.config.StepSize * clip(grads[j], v.config.Clip)
		}
		zero(grads)
	}
	return nil
}
