package deepq

import (
	"fmt"

	"github.com/samuelfneumann/sweeper/agent"
	env "github.com/samuelfneumann/sweeper/environment"
	"github.com/samuelfneumann/sweeper/expreplay"
	"github.com/samuelfneumann/sweeper/initwfn"
	"github.com/samuelfneumann/sweeper/network"
	"github.com/samuelfneumann/sweeper/solver"
)

// Default hyperparameters
const (
	DefaultGamma                = 0.99
	DefaultEpsilonStart         = 1.0
	DefaultEpsilonFinal         = 0.1
	DefaultEpsilonDecay         = 10000
	DefaultTargetUpdateInterval = 1000
	DefaultCapacity             = 50000
	DefaultBatchSize            = 64
	DefaultLearningRate         = 1e-3
)

// Config implements a configuration for a DeepQ agent
type Config struct {
	HiddenSizes []int `yaml:"hidden_sizes"` // Layer sizes in neural net

	// Whether each hidden layer has a bias unit. If empty, all hidden
	// layers have a bias unit.
	Biases []bool `yaml:"biases,omitempty"`

	// Activation of each hidden layer. If empty, all hidden layers use
	// ReLU activations.
	Activations []*network.Activation `yaml:"activations,omitempty"`

	InitWFn *initwfn.InitWFn `yaml:"init_wfn"` // Weight initialization
	Solver  *solver.Solver   `yaml:"solver"`   // Learns online weights

	Gamma float64 `yaml:"gamma"` // Discount factor

	// Exploration schedule. Epsilon starts at EpsilonStart and decreases
	// by (1 - EpsilonFinal) / EpsilonDecay after each training step until
	// it reaches EpsilonFinal.
	EpsilonStart float64 `yaml:"epsilon_start"`
	EpsilonFinal float64 `yaml:"epsilon_final"`
	EpsilonDecay int     `yaml:"epsilon_decay"`

	// Number of training steps between hard target network updates
	TargetUpdateInterval int `yaml:"target_update_interval"`

	ExpReplay expreplay.Config `yaml:"replay"`
}

// DefaultConfig returns the default DeepQ configuration
func DefaultConfig() Config {
	init, err := initwfn.NewHeU(1.0)
	if err != nil {
		panic(fmt.Sprintf("defaultConfig: %v", err))
	}
	adam, err := solver.NewDefaultAdam(DefaultLearningRate)
	if err != nil {
		panic(fmt.Sprintf("defaultConfig: %v", err))
	}

	return Config{
		HiddenSizes:          []int{256, 256},
		InitWFn:              init,
		Solver:               adam,
		Gamma:                DefaultGamma,
		EpsilonStart:         DefaultEpsilonStart,
		EpsilonFinal:         DefaultEpsilonFinal,
		EpsilonDecay:         DefaultEpsilonDecay,
		TargetUpdateInterval: DefaultTargetUpdateInterval,
		ExpReplay: expreplay.Config{
			Capacity:  DefaultCapacity,
			BatchSize: DefaultBatchSize,
		},
	}
}

// BatchSize returns the batch size of the agent constructed using this
// Config
func (c Config) BatchSize() int {
	return c.ExpReplay.BatchSize
}

// layers returns the bias flags and activations of each hidden layer,
// filling in defaults when they are not specified
func (c Config) layers() ([]bool, []*network.Activation) {
	biases := c.Biases
	if len(biases) == 0 {
		biases = make([]bool, len(c.HiddenSizes))
		for i := range biases {
			biases[i] = true
		}
	}

	activations := c.Activations
	if len(activations) == 0 {
		activations = make([]*network.Activation, len(c.HiddenSizes))
		for i := range activations {
			activations[i] = network.ReLU()
		}
	}
	return biases, activations
}

// Validate checks a Config to ensure it is a valid configuration of a
// DeepQ agent.
func (c Config) Validate() error {
	biases, activations := c.layers()
	if len(c.HiddenSizes) != len(biases) {
		return fmt.Errorf("validate: invalid number of biases \n\twant(%v) "+
			"\n\thave(%v)", len(c.HiddenSizes), len(biases))
	}
	if len(c.HiddenSizes) != len(activations) {
		return fmt.Errorf("validate: invalid number of activations "+
			"\n\twant(%v) \n\thave(%v)", len(c.HiddenSizes), len(activations))
	}
	for i, size := range c.HiddenSizes {
		if size < 1 {
			return fmt.Errorf("validate: hidden layer %d must have a "+
				"positive number of units \n\thave(%d)", i, size)
		}
	}
	for i, act := range activations {
		if act == nil {
			return fmt.Errorf("validate: hidden layer %d has no activation", i)
		}
	}

	if c.InitWFn == nil {
		return fmt.Errorf("validate: no weight initializer")
	}
	if err := c.InitWFn.Validate(); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	if c.Solver == nil {
		return fmt.Errorf("validate: no solver")
	}

	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("validate: gamma must be in [0, 1] \n\thave(%v)",
			c.Gamma)
	}
	if c.EpsilonStart < 0 || c.EpsilonStart > 1 {
		return fmt.Errorf("validate: epsilon start must be in [0, 1] "+
			"\n\thave(%v)", c.EpsilonStart)
	}
	if c.EpsilonFinal < 0 || c.EpsilonFinal > c.EpsilonStart {
		return fmt.Errorf("validate: epsilon final must be in [0, %v] "+
			"\n\thave(%v)", c.EpsilonStart, c.EpsilonFinal)
	}
	if c.EpsilonDecay < 1 {
		return fmt.Errorf("validate: epsilon must decay over a positive "+
			"number of steps \n\twant(>0) \n\thave(%v)", c.EpsilonDecay)
	}

	if c.TargetUpdateInterval < 1 {
		return fmt.Errorf("validate: target networks must be updated at "+
			"positive timestep intervals \n\twant(>0) \n\thave(%v)",
			c.TargetUpdateInterval)
	}

	if err := c.ExpReplay.Validate(); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	return nil
}

// ValidAgent returns whether the agent is valid for the configuration.
// That is, whether Agent a can be constructed with Config c.
func (c Config) ValidAgent(a agent.Agent) bool {
	_, ok := a.(*DeepQ)
	return ok
}

// CreateAgent creates a new DeepQ agent based on the configuration
func (c Config) CreateAgent(e env.Environment, seed uint64) (agent.Agent,
	error) {
	return New(e, c, seed)
}
