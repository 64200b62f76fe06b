package timestep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Transition is a single (s, a, r, s', terminal) record used for
// learning. A Transition is created once per environment step and
// should be treated as immutable after creation: consumers such as
// replay buffers copy its data rather than retaining the vectors.
type Transition struct {
	State     mat.Vector
	Action    int
	Reward    float64
	NextState mat.Vector
	Terminal  bool
}

// NewTransition creates a Transition from two consecutive TimeSteps and
// the action taken between them. Both observations are transformed by
// the feature function f before being stored, which allows callers to
// store normalized observations. If f is nil, the observations are
// cloned as is.
func NewTransition(step TimeStep, action int, nextStep TimeStep,
	f func(mat.Vector) *mat.VecDense) Transition {
	if f == nil {
		f = clone
	}

	return Transition{
		State:     f(step.Observation),
		Action:    action,
		Reward:    nextStep.Reward,
		NextState: f(nextStep.Observation),
		Terminal:  nextStep.Last(),
	}
}

// clone returns a deep copy of a vector
func clone(v mat.Vector) *mat.VecDense {
	out := mat.NewVecDense(v.Len(), nil)
	out.CloneFromVec(v)
	return out
}

func (t Transition) String() string {
	return fmt.Sprintf("Transition | Action: %d  |  Reward: %.2f  |  "+
		"Terminal: %v", t.Action, t.Reward, t.Terminal)
}
