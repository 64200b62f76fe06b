// Package policy implements action selection policies over estimated
// action values
package policy

import (
	"errors"
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/samuelfneumann/sweeper/utils/floatutils"
)

// ErrNoLegalActions is returned when an action is requested in a state
// where no action may be taken
var ErrNoLegalActions = errors.New("no legal actions")

// EGreedy implements an ε-greedy policy over action values. With
// probability ε an action is selected uniformly randomly from the legal
// actions. Otherwise the legal action of highest value is selected,
// breaking ties by selecting the lowest action index.
type EGreedy struct {
	epsilon float64
	source  *rand.PCGSource
	rng     *rand.Rand
}

// NewEGreedy constructs a new EGreedy policy, where e=epsilon is the
// probability with which a random action is selected
func NewEGreedy(e float64, seed uint64) (*EGreedy, error) {
	if e < 0 || e > 1 {
		return nil, fmt.Errorf("newEGreedy: epsilon must be in [0, 1] "+
			"\n\thave(%v)", e)
	}

	source := &rand.PCGSource{}
	source.Seed(seed)
	return &EGreedy{
		epsilon: e,
		source:  source,
		rng:     rand.New(source),
	}, nil
}

// SelectAction selects an action given the action values of each
// action. Only actions a where legal[a] is true may be selected.
func (p *EGreedy) SelectAction(values []float64, legal []bool) (int,
	error) {
	if len(values) != len(legal) {
		return 0, fmt.Errorf("selectAction: invalid number of legal flags "+
			"\n\twant(%v) \n\thave(%v)", len(values), len(legal))
	}

	if p.epsilon > 0 && p.rng.Float64() < p.epsilon {
		legalActions := make([]int, 0, len(legal))
		for a, l := range legal {
			if l {
				legalActions = append(legalActions, a)
			}
		}
		if len(legalActions) == 0 {
			return 0, fmt.Errorf("selectAction: %w", ErrNoLegalActions)
		}
		return legalActions[p.rng.Intn(len(legalActions))], nil
	}

	return Greedy(values, legal)
}

// Greedy returns the legal action of highest value, breaking ties by
// selecting the lowest action index
func Greedy(values []float64, legal []bool) (int, error) {
	action, ok := floatutils.ArgMax(values, legal)
	if !ok {
		return 0, fmt.Errorf("greedy: %w", ErrNoLegalActions)
	}
	return action, nil
}

// Epsilon returns the probability of selecting a random action
func (p *EGreedy) Epsilon() float64 {
	return p.epsilon
}

// SetEpsilon sets the probability of selecting a random action
func (p *EGreedy) SetEpsilon(e float64) {
	p.epsilon = e
}

// MarshalBinary returns the state of the policy's random number
// generator
func (p *EGreedy) MarshalBinary() ([]byte, error) {
	return p.source.MarshalBinary()
}

// UnmarshalBinary restores the state of the policy's random number
// generator
func (p *EGreedy) UnmarshalBinary(data []byte) error {
	if err := p.source.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("unmarshalBinary: %v", err)
	}
	return nil
}
