// Package deepq implements the deep Q-learning algorithm with a
// uniform experience replay buffer and a hard-updated target network.
package deepq

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/sweeper/agent/policy"
	"github.com/samuelfneumann/sweeper/environment"
	"github.com/samuelfneumann/sweeper/expreplay"
	"github.com/samuelfneumann/sweeper/network"
	"github.com/samuelfneumann/sweeper/solver"
	ts "github.com/samuelfneumann/sweeper/timestep"
)

// ErrNonFiniteLoss is returned when a training step produces a loss
// which is NaN or infinite. The weights are not updated in this case.
var ErrNonFiniteLoss = errors.New("non-finite loss")

// DeepQ implements the deep Q-learning algorithm. This algorithm is
// DQN with the MSE loss.
//
// Three networks share a single set of learned weights. The online
// network takes batches of states and is trained. The predictor is a
// batch-1 copy of the online network used to select actions, and is
// refreshed after each training step. The target network provides the
// update target and only changes when the online weights are copied
// into it every TargetUpdateInterval training steps.
type DeepQ struct {
	// Network whose weights are adapted
	online   network.NeuralNet
	onlineVM G.VM
	solver   *solver.Solver

	// Network that provides the update target
	target   network.NeuralNet
	targetVM G.VM

	// Batch-1 copy of online for action selection
	predictor   network.NeuralNet
	predictorVM G.VM

	// nextStateActionValues is the input node in the graph of online
	// that is given the action values of the next state, computed by
	// target. For update:
	//
	// Q(s, a) <- Q(s, a) + α * (r + γ * max[Q(s', a')] - Q(s, a)) ∇Q(s, a)
	nextStateActionValues *G.Node
	rewards               *G.Node
	discounts             *G.Node
	selectedActions       *G.Node // One-hot actions taken in each state
	loss                  G.Value

	policy *policy.EGreedy
	replay expreplay.ExperienceReplayer

	gamma                float64
	epsilonFinal         float64
	epsilonDecay         int
	targetUpdateInterval int
	steps                int // Number of training steps taken
	lastLoss             float64

	numActions int
	features   int
	batchSize  int
	eval       bool // Whether or not in evaluation mode
}

// New creates and returns a new DeepQ agent for an environment with
// discrete actions
func New(env environment.Environment, c Config, seed uint64) (*DeepQ,
	error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	numActions, err := env.ActionSpec().NumActions()
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	features := env.ObservationSpec().Shape.Len()
	batchSize := c.BatchSize()
	biases, activations := c.layers()
	rng := rand.New(rand.NewSource(seed))

	// Online network which learns the weights
	g := G.NewGraph()
	online, err := network.NewMLP(features, batchSize, numActions, g,
		c.HiddenSizes, biases, c.InitWFn.InitWFn(rng.Uint64()), activations)
	if err != nil {
		return nil, fmt.Errorf("new: could not create online network: %v",
			err)
	}

	// Clones must be made before gradients are bound to the online
	// weights so that each network owns a copy of the initial weights
	target, err := online.Clone()
	if err != nil {
		return nil, fmt.Errorf("new: could not create target network: %v",
			err)
	}
	predictor, err := online.CloneWithBatch(1)
	if err != nil {
		return nil, fmt.Errorf("new: could not create predictor: %v", err)
	}

	// Create nodes to compute the update target: r + γ * max[Q(s', a')]
	nextStateActionValues := G.NewMatrix(g, tensor.Float64,
		G.WithShape(batchSize, numActions), G.WithName("targetActionVals"),
		G.WithInit(G.Zeroes()))
	rewards := G.NewVector(g, tensor.Float64, G.WithShape(batchSize),
		G.WithName("reward"), G.WithInit(G.Zeroes()))
	discounts := G.NewVector(g, tensor.Float64, G.WithShape(batchSize),
		G.WithName("discount"), G.WithInit(G.Zeroes()))

	updateTarget := G.Must(G.Max(nextStateActionValues, 1))
	updateTarget = G.Must(G.HadamardProd(updateTarget, discounts))
	updateTarget = G.Must(G.Add(updateTarget, rewards))

	// Action selected in the previous state. This is needed to compute
	// the loss using the correct action value since the network outputs
	// one value per environmental action
	selectedActions := G.NewMatrix(g, tensor.Float64,
		G.WithShape(batchSize, numActions), G.WithName("actionSelected"),
		G.WithInit(G.Zeroes()))
	selectedActionsValue := G.Must(G.HadamardProd(online.Prediction(),
		selectedActions))
	selectedActionsValue = G.Must(G.Sum(selectedActionsValue, 1))

	// Mean squared TD error
	losses := G.Must(G.Sub(updateTarget, selectedActionsValue))
	losses = G.Must(G.Square(losses))
	cost := G.Must(G.Mean(losses))

	if _, err := G.Grad(cost, online.Learnables()...); err != nil {
		return nil, fmt.Errorf("new: could not compute gradient: %v", err)
	}

	d := &DeepQ{
		online:                online,
		solver:                c.Solver.Reset(),
		target:                target,
		targetVM:              G.NewTapeMachine(target.Graph()),
		predictor:             predictor,
		predictorVM:           G.NewTapeMachine(predictor.Graph()),
		nextStateActionValues: nextStateActionValues,
		rewards:               rewards,
		discounts:             discounts,
		selectedActions:       selectedActions,
		gamma:                 c.Gamma,
		epsilonFinal:          c.EpsilonFinal,
		epsilonDecay:          c.EpsilonDecay,
		targetUpdateInterval:  c.TargetUpdateInterval,
		numActions:            numActions,
		features:              features,
		batchSize:             batchSize,
	}
	G.Read(cost, &d.loss)
	d.onlineVM = G.NewTapeMachine(g, G.BindDualValues(online.Learnables()...))

	// Independent streams for exploration and replay sampling
	d.policy, err = policy.NewEGreedy(c.EpsilonStart, rng.Uint64())
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	d.replay, err = c.ExpReplay.Create(features, rng.Uint64())
	if err != nil {
		msg := "new: could not create experience replay buffer: %v"
		return nil, fmt.Errorf(msg, err)
	}

	return d, nil
}

// Predict returns the action values of each action in state, as
// estimated by the online network
func (d *DeepQ) Predict(state []float64) ([]float64, error) {
	if len(state) != d.features {
		return nil, fmt.Errorf("predict: invalid state size \n\twant(%v) "+
			"\n\thave(%v)", d.features, len(state))
	}

	// The input tensor uses the slice as its backing, so copy it
	input := append([]float64(nil), state...)
	if err := d.predictor.SetInput(input); err != nil {
		return nil, fmt.Errorf("predict: %v", err)
	}
	defer d.predictorVM.Reset()
	if err := d.predictorVM.RunAll(); err != nil {
		return nil, fmt.Errorf("predict: could not run predictor: %v", err)
	}

	values := d.predictor.Output().Data().([]float64)
	return append([]float64(nil), values...), nil
}

// TrainStep performs a single gradient step on the online network
// using a batch of transitions, returning the loss of the batch before
// the update. Every TargetUpdateInterval training steps the online
// weights are copied into the target network. Epsilon is decayed after
// each successful step.
func (d *DeepQ) TrainStep(batch expreplay.Batch) (float64, error) {
	if err := d.checkBatch(batch); err != nil {
		return 0, fmt.Errorf("trainStep: %v", err)
	}

	// Compute the next state-action values
	if err := d.target.SetInput(copyOf(batch.NextStates)); err != nil {
		return 0, fmt.Errorf("trainStep: could not set target net input: %v",
			err)
	}
	err := d.targetVM.RunAll()
	if err != nil {
		d.targetVM.Reset()
		return 0, fmt.Errorf("trainStep: could not run target net: %v", err)
	}
	nextValues := copyOf(d.target.Output().Data().([]float64))
	d.targetVM.Reset()

	// One-hot vectors of the actions taken
	actions := make([]float64, d.batchSize*d.numActions)
	discounts := make([]float64, d.batchSize)
	for i, a := range batch.Actions {
		actions[i*d.numActions+a] = 1.0
		discounts[i] = d.gamma * (1.0 - batch.Terminals[i])
	}

	lets := []struct {
		node  *G.Node
		value tensor.Tensor
	}{
		{d.nextStateActionValues, tensor.New(tensor.WithBacking(nextValues),
			tensor.WithShape(d.batchSize, d.numActions))},
		{d.selectedActions, tensor.New(tensor.WithBacking(actions),
			tensor.WithShape(d.batchSize, d.numActions))},
		{d.rewards, tensor.New(tensor.WithBacking(copyOf(batch.Rewards)),
			tensor.WithShape(d.batchSize))},
		{d.discounts, tensor.New(tensor.WithBacking(discounts),
			tensor.WithShape(d.batchSize))},
	}
	for _, let := range lets {
		if err := G.Let(let.node, let.value); err != nil {
			return 0, fmt.Errorf("trainStep: could not set %v: %v",
				let.node.Name(), err)
		}
	}
	if err := d.online.SetInput(copyOf(batch.States)); err != nil {
		return 0, fmt.Errorf("trainStep: could not set online net input: %v",
			err)
	}

	// Run the learning step
	defer d.onlineVM.Reset()
	if err := d.onlineVM.RunAll(); err != nil {
		return 0, fmt.Errorf("trainStep: could not run online net: %v", err)
	}

	loss, err := scalar(d.loss)
	if err != nil {
		return 0, fmt.Errorf("trainStep: %v", err)
	}
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		zeroGrads(d.online.Model())
		return loss, fmt.Errorf("trainStep: %w (%v) at step %d",
			ErrNonFiniteLoss, loss, d.steps)
	}

	if err := d.solver.Step(d.online.Model()); err != nil {
		return loss, fmt.Errorf("trainStep: could not update weights: %v",
			err)
	}
	d.steps++
	d.lastLoss = loss

	// Update the target network by setting its weights to the newly
	// learned weights
	if d.steps%d.targetUpdateInterval == 0 {
		if err := d.target.Set(d.online); err != nil {
			return loss, fmt.Errorf("trainStep: could not update target "+
				"net: %v", err)
		}
	}
	if err := d.predictor.Set(d.online); err != nil {
		return loss, fmt.Errorf("trainStep: could not update predictor: %v",
			err)
	}

	d.decayEpsilon()
	return loss, nil
}

// checkBatch ensures a batch fits the networks of the agent
func (d *DeepQ) checkBatch(b expreplay.Batch) error {
	if b.Size() != d.batchSize || len(b.Rewards) != d.batchSize ||
		len(b.Terminals) != d.batchSize {
		return fmt.Errorf("invalid batch size \n\twant(%v) \n\thave(%v)",
			d.batchSize, b.Size())
	}
	if len(b.States) != d.batchSize*d.features ||
		len(b.NextStates) != d.batchSize*d.features {
		return fmt.Errorf("invalid number of state features \n\twant(%v) "+
			"\n\thave(%v, %v)", d.batchSize*d.features, len(b.States),
			len(b.NextStates))
	}
	for _, a := range b.Actions {
		if a < 0 || a >= d.numActions {
			return fmt.Errorf("action %d out of range [0, %d)", a,
				d.numActions)
		}
	}
	return nil
}

// decayEpsilon linearly decays epsilon towards its final value. The
// step size is (1 - final) / decay regardless of the starting epsilon.
func (d *DeepQ) decayEpsilon() {
	decay := (1 - d.epsilonFinal) / float64(d.epsilonDecay)
	d.policy.SetEpsilon(math.Max(d.epsilonFinal, d.policy.Epsilon()-decay))
}

// Step samples a batch from the replay buffer and performs a single
// training step. If the replay buffer does not yet hold enough
// transitions, Step does nothing.
func (d *DeepQ) Step() error {
	batch, err := d.replay.Sample()
	if expreplay.IsInsufficientSamples(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("step: could not sample: %v", err)
	}

	if _, err := d.TrainStep(batch); err != nil {
		return fmt.Errorf("step: %w", err)
	}
	return nil
}

// Observe adds a transition to the replay buffer
func (d *DeepQ) Observe(t ts.Transition) error {
	if t.Action < 0 || t.Action >= d.numActions {
		return fmt.Errorf("observe: action %d out of range [0, %d)",
			t.Action, d.numActions)
	}
	if err := d.replay.Add(t); err != nil {
		return fmt.Errorf("observe: %v", err)
	}
	return nil
}

// SelectAction selects a legal action in state. In training mode the
// action is selected ε-greedily. In evaluation mode the action is
// selected greedily.
func (d *DeepQ) SelectAction(state []float64, legal []bool) (int, error) {
	values, err := d.Predict(state)
	if err != nil {
		return 0, fmt.Errorf("selectAction: %v", err)
	}

	if d.eval {
		return policy.Greedy(values, legal)
	}
	return d.policy.SelectAction(values, legal)
}

// Eval sets the agent into evaluation mode
func (d *DeepQ) Eval() {
	d.eval = true
}

// Train sets the agent into training mode
func (d *DeepQ) Train() {
	d.eval = false
}

// IsEval returns whether the agent is in evaluation mode
func (d *DeepQ) IsEval() bool {
	return d.eval
}

// Epsilon returns the current probability of taking a random action in
// training mode
func (d *DeepQ) Epsilon() float64 {
	return d.policy.Epsilon()
}

// SetEpsilon sets the probability of taking a random action in
// training mode
func (d *DeepQ) SetEpsilon(e float64) {
	d.policy.SetEpsilon(e)
}

// Steps returns the number of training steps taken
func (d *DeepQ) Steps() int {
	return d.steps
}

// Loss returns the loss of the most recent training step
func (d *DeepQ) Loss() float64 {
	return d.lastLoss
}

// ReplayLen returns the number of transitions in the replay buffer
func (d *DeepQ) ReplayLen() int {
	return d.replay.Len()
}

// OnlineWeights returns a copy of the weights of the online network
func (d *DeepQ) OnlineWeights() [][]float64 {
	return d.online.Weights()
}

// TargetWeights returns a copy of the weights of the target network
func (d *DeepQ) TargetWeights() [][]float64 {
	return d.target.Weights()
}

// Close closes the VMs of the agent
func (d *DeepQ) Close() error {
	var errs []error
	for _, vm := range []G.VM{d.onlineVM, d.targetVM, d.predictorVM} {
		if err := vm.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close: %v", errors.Join(errs...))
	}
	return nil
}

// zeroGrads zeroes the gradients of a model after a step is abandoned
func zeroGrads(model []G.ValueGrad) {
	for _, vg := range model {
		grad, err := vg.Grad()
		if err != nil {
			continue
		}
		if data, ok := grad.Data().([]float64); ok {
			for i := range data {
				data[i] = 0
			}
		}
	}
}

// scalar returns the single float64 held by a Value
func scalar(v G.Value) (float64, error) {
	if v == nil {
		return 0, fmt.Errorf("no value computed")
	}
	switch data := v.Data().(type) {
	case float64:
		return data, nil
	case []float64:
		if len(data) == 1 {
			return data[0], nil
		}
	}
	return 0, fmt.Errorf("value %v is not a float64 scalar", v)
}

func copyOf(x []float64) []float64 {
	return append([]float64(nil), x...)
}
