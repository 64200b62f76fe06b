package deepq

import (
	"bytes"
	"encoding/gob"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/sweeper/agent"
	"github.com/samuelfneumann/sweeper/agent/policy"
	"github.com/samuelfneumann/sweeper/environment/minesweeper"
	"github.com/samuelfneumann/sweeper/expreplay"
	"github.com/samuelfneumann/sweeper/network"
	"github.com/samuelfneumann/sweeper/solver"
	"github.com/samuelfneumann/sweeper/timestep"
)

const (
	features   = 16 // 4x4 board
	numActions = 16
	batchSize  = 4
)

func testConfig(t *testing.T) Config {
	t.Helper()

	adam, err := solver.NewDefaultAdam(1e-2)
	if err != nil {
		t.Fatal(err)
	}

	c := DefaultConfig()
	c.HiddenSizes = []int{8}
	c.Solver = adam
	c.EpsilonFinal = 0.5
	c.EpsilonDecay = 4
	c.TargetUpdateInterval = 3
	c.ExpReplay = expreplay.Config{Capacity: 16, BatchSize: batchSize}
	return c
}

func newAgent(t *testing.T, c Config, seed uint64) *DeepQ {
	t.Helper()

	env, _, err := minesweeper.New(minesweeper.Config{Rows: 4, Cols: 4,
		Mines: 2}, seed)
	if err != nil {
		t.Fatal(err)
	}
	d, err := New(env, c, seed)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func randomBatch(rng *rand.Rand) expreplay.Batch {
	b := expreplay.Batch{
		States:     make([]float64, batchSize*features),
		NextStates: make([]float64, batchSize*features),
		Actions:    make([]int, batchSize),
		Rewards:    make([]float64, batchSize),
		Terminals:  make([]float64, batchSize),
	}
	for i := range b.States {
		b.States[i] = rng.Float64()
		b.NextStates[i] = rng.Float64()
	}
	for i := 0; i < batchSize; i++ {
		b.Actions[i] = rng.Intn(numActions)
		b.Rewards[i] = rng.NormFloat64() + 1
		if i%2 == 0 {
			b.Terminals[i] = 1.0
		}
	}
	return b
}

func equal2D(a, b [][]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("validate: default config invalid: %v", err)
	}

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"gamma", func(c *Config) { c.Gamma = 1.5 }},
		{"epsilonStart", func(c *Config) { c.EpsilonStart = -0.1 }},
		{"epsilonFinal", func(c *Config) { c.EpsilonFinal = 1.1 }},
		{"epsilonDecay", func(c *Config) { c.EpsilonDecay = 0 }},
		{"targetUpdate", func(c *Config) { c.TargetUpdateInterval = 0 }},
		{"biases", func(c *Config) { c.Biases = []bool{true} }},
		{"hiddenSize", func(c *Config) { c.HiddenSizes = []int{4, 0} }},
		{"solver", func(c *Config) { c.Solver = nil }},
		{"replay", func(c *Config) { c.ExpReplay.BatchSize = 0 }},
	}

	for _, test := range tests {
		c := DefaultConfig()
		test.modify(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("validate: expected error for invalid %v", test.name)
		}
	}
}

func TestCreateAgent(t *testing.T) {
	env, _, err := minesweeper.New(minesweeper.Config{Rows: 4, Cols: 4,
		Mines: 2}, 1)
	if err != nil {
		t.Fatal(err)
	}

	var c agent.Config = testConfig(t)
	a, err := c.CreateAgent(env, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer a.(*DeepQ).Close()

	if !c.ValidAgent(a) {
		t.Errorf("validAgent: \n\twant(true) \n\thave(false)")
	}
}

func TestPredict(t *testing.T) {
	d := newAgent(t, testConfig(t), 1)

	state := make([]float64, features)
	values, err := d.Predict(state)
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != numActions {
		t.Fatalf("predict: invalid number of values \n\twant(%v) \n\thave(%v)",
			numActions, len(values))
	}

	again, _ := d.Predict(state)
	for i := range values {
		if values[i] != again[i] {
			t.Fatal("predict: prediction changed without training")
		}
	}

	if _, err := d.Predict(make([]float64, features-1)); err == nil {
		t.Error("predict: expected error on invalid state size")
	}
}

func TestTargetSync(t *testing.T) {
	d := newAgent(t, testConfig(t), 1)
	rng := rand.New(rand.NewSource(3))

	initial := d.TargetWeights()
	if !equal2D(initial, d.OnlineWeights()) {
		t.Fatal("new: target should start equal to online")
	}

	for step := 1; step <= 7; step++ {
		if _, err := d.TrainStep(randomBatch(rng)); err != nil {
			t.Fatal(err)
		}

		online, target := d.OnlineWeights(), d.TargetWeights()
		switch {
		case step%3 == 0:
			if !equal2D(online, target) {
				t.Errorf("trainStep %d: target not synced", step)
			}
			initial = target

		default:
			if !equal2D(initial, target) {
				t.Errorf("trainStep %d: target changed between syncs", step)
			}
			if equal2D(online, target) {
				t.Errorf("trainStep %d: online weights not updated", step)
			}
		}
	}

	if d.Steps() != 7 {
		t.Errorf("steps: \n\twant(7) \n\thave(%v)", d.Steps())
	}
}

func TestEpsilonSchedule(t *testing.T) {
	d := newAgent(t, testConfig(t), 1)
	rng := rand.New(rand.NewSource(5))

	want := []float64{0.875, 0.75, 0.625, 0.5, 0.5, 0.5}
	prev := d.Epsilon()
	if prev != 1.0 {
		t.Fatalf("epsilon: \n\twant(1) \n\thave(%v)", prev)
	}
	for i, w := range want {
		if _, err := d.TrainStep(randomBatch(rng)); err != nil {
			t.Fatal(err)
		}
		eps := d.Epsilon()
		if eps > prev {
			t.Errorf("epsilon increased: %v -> %v", prev, eps)
		}
		if eps < 0.5 {
			t.Errorf("epsilon below floor: %v", eps)
		}
		if math.Abs(eps-w) > 1e-12 {
			t.Errorf("epsilon after step %d: \n\twant(%v) \n\thave(%v)", i+1,
				w, eps)
		}
		prev = eps
	}
}

func TestEpsilonScheduleLowStart(t *testing.T) {
	c := testConfig(t)
	c.EpsilonStart = 0.8
	c.EpsilonFinal = 0.2
	c.EpsilonDecay = 4
	d := newAgent(t, c, 1)
	rng := rand.New(rand.NewSource(5))

	// Each step decays by (1 - 0.2) / 4 = 0.2, independent of the start
	want := []float64{0.6, 0.4, 0.2, 0.2}
	for i, w := range want {
		if _, err := d.TrainStep(randomBatch(rng)); err != nil {
			t.Fatal(err)
		}
		if eps := d.Epsilon(); math.Abs(eps-w) > 1e-12 {
			t.Errorf("epsilon after step %d: \n\twant(%v) \n\thave(%v)", i+1,
				w, eps)
		}
	}
}

func TestTrainStepReducesLoss(t *testing.T) {
	c := testConfig(t)
	c.Gamma = 0
	d := newAgent(t, c, 1)
	batch := randomBatch(rand.New(rand.NewSource(11)))

	first, err := d.TrainStep(batch)
	if err != nil {
		t.Fatal(err)
	}
	var last float64
	for i := 0; i < 300; i++ {
		if last, err = d.TrainStep(batch); err != nil {
			t.Fatal(err)
		}
	}
	if last >= first/2 {
		t.Errorf("trainStep: loss did not decrease \n\tfirst(%v) \n\tlast(%v)",
			first, last)
	}
	if d.Loss() != last {
		t.Errorf("loss: \n\twant(%v) \n\thave(%v)", last, d.Loss())
	}
}

func TestTrainStepInvalidBatch(t *testing.T) {
	d := newAgent(t, testConfig(t), 1)
	batch := randomBatch(rand.New(rand.NewSource(1)))
	batch.Actions[0] = numActions

	before := d.OnlineWeights()
	if _, err := d.TrainStep(batch); err == nil {
		t.Error("trainStep: expected error on out of range action")
	}
	if _, err := d.TrainStep(expreplay.Batch{}); err == nil {
		t.Error("trainStep: expected error on empty batch")
	}
	if !equal2D(before, d.OnlineWeights()) || d.Steps() != 0 {
		t.Error("trainStep: invalid batch changed the agent")
	}
}

func TestNonFiniteLoss(t *testing.T) {
	d := newAgent(t, testConfig(t), 1)
	batch := randomBatch(rand.New(rand.NewSource(1)))
	batch.Rewards[1] = math.NaN()

	before := d.OnlineWeights()
	_, err := d.TrainStep(batch)
	if !errors.Is(err, ErrNonFiniteLoss) {
		t.Fatalf("trainStep: expected non-finite loss error, have %v", err)
	}
	if !equal2D(before, d.OnlineWeights()) {
		t.Error("trainStep: weights updated on non-finite loss")
	}
	if d.Steps() != 0 || d.Epsilon() != 1.0 {
		t.Error("trainStep: step counted on non-finite loss")
	}
}

func TestStepUndersizedBuffer(t *testing.T) {
	d := newAgent(t, testConfig(t), 1)
	before := d.OnlineWeights()

	observe := func(action int) {
		state := mat.NewVecDense(features, nil)
		next := mat.NewVecDense(features, nil)
		next.SetVec(action, 1)
		err := d.Observe(timestep.Transition{State: state, Action: action,
			Reward: 0.1, NextState: next})
		if err != nil {
			t.Fatal(err)
		}
	}

	for a := 0; a < batchSize-1; a++ {
		observe(a)
		if err := d.Step(); err != nil {
			t.Fatalf("step: unexpected error: %v", err)
		}
	}
	if d.Steps() != 0 || !equal2D(before, d.OnlineWeights()) {
		t.Fatal("step: trained with an undersized buffer")
	}
	if d.ReplayLen() != batchSize-1 {
		t.Errorf("replayLen: \n\twant(%v) \n\thave(%v)", batchSize-1,
			d.ReplayLen())
	}

	observe(batchSize - 1)
	if err := d.Step(); err != nil {
		t.Fatal(err)
	}
	if d.Steps() != 1 {
		t.Errorf("step: expected a training step once the buffer holds a " +
			"batch")
	}

	err := d.Observe(timestep.Transition{Action: numActions})
	if err == nil {
		t.Error("observe: expected error on out of range action")
	}
}

func TestSelectAction(t *testing.T) {
	d := newAgent(t, testConfig(t), 1)
	state := make([]float64, features)

	legal := make([]bool, numActions)
	legal[5], legal[9] = true, true
	for i := 0; i < 100; i++ {
		a, err := d.SelectAction(state, legal)
		if err != nil {
			t.Fatal(err)
		}
		if !legal[a] {
			t.Fatalf("selectAction: selected illegal action %d", a)
		}
	}

	d.Eval()
	if !d.IsEval() {
		t.Fatal("eval: agent not in evaluation mode")
	}
	values, _ := d.Predict(state)
	want, _ := policy.Greedy(values, legal)
	for i := 0; i < 10; i++ {
		if a, _ := d.SelectAction(state, legal); a != want {
			t.Fatalf("selectAction: eval mode should be greedy \n\twant(%v) "+
				"\n\thave(%v)", want, a)
		}
	}
	d.Train()

	_, err := d.SelectAction(state, make([]bool, numActions))
	if !errors.Is(err, policy.ErrNoLegalActions) {
		t.Errorf("selectAction: expected no legal actions error, have %v",
			err)
	}
}

// trained returns an agent which has taken a few training steps
func trained(t *testing.T, seed uint64) *DeepQ {
	t.Helper()

	d := newAgent(t, testConfig(t), seed)
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < 5; i++ {
		if _, err := d.TrainStep(randomBatch(rng)); err != nil {
			t.Fatal(err)
		}
	}
	return d
}

func TestCheckpointRoundTrip(t *testing.T) {
	source := trained(t, 1)

	var buf bytes.Buffer
	if err := source.Save(&buf); err != nil {
		t.Fatal(err)
	}

	dest := newAgent(t, testConfig(t), 2)
	if err := dest.Load(&buf); err != nil {
		t.Fatal(err)
	}

	if !equal2D(source.OnlineWeights(), dest.OnlineWeights()) {
		t.Error("load: online weights not restored")
	}
	if !equal2D(source.TargetWeights(), dest.TargetWeights()) {
		t.Error("load: target weights not restored")
	}
	if source.Epsilon() != dest.Epsilon() || source.Steps() != dest.Steps() {
		t.Errorf("load: \n\twant(ε=%v, steps=%v) \n\thave(ε=%v, steps=%v)",
			source.Epsilon(), source.Steps(), dest.Epsilon(), dest.Steps())
	}

	state := make([]float64, features)
	state[3] = 1
	p1, _ := source.Predict(state)
	p2, _ := dest.Predict(state)
	if !equal2D([][]float64{p1}, [][]float64{p2}) {
		t.Error("load: predictions differ")
	}

	// Training must continue identically, which requires the solver
	// state to have been restored
	batch := randomBatch(rand.New(rand.NewSource(9)))
	l1, err := source.TrainStep(batch)
	if err != nil {
		t.Fatal(err)
	}
	l2, err := dest.TrainStep(batch)
	if err != nil {
		t.Fatal(err)
	}
	if l1 != l2 || !equal2D(source.OnlineWeights(), dest.OnlineWeights()) {
		t.Error("load: training diverged after restoring checkpoint")
	}

	// Exploration continues from the same random state
	legal := make([]bool, numActions)
	for i := range legal {
		legal[i] = true
	}
	for i := 0; i < 20; i++ {
		a1, _ := source.SelectAction(state, legal)
		a2, _ := dest.SelectAction(state, legal)
		if a1 != a2 {
			t.Fatal("load: exploration state not restored")
		}
	}
}

func TestLoadCorrupt(t *testing.T) {
	d := trained(t, 1)
	online, target := d.OnlineWeights(), d.TargetWeights()
	eps, steps := d.Epsilon(), d.Steps()

	unchanged := func(name string) {
		t.Helper()
		if !equal2D(online, d.OnlineWeights()) ||
			!equal2D(target, d.TargetWeights()) ||
			eps != d.Epsilon() || steps != d.Steps() {
			t.Errorf("load %v: agent changed after failed load", name)
		}
	}

	if err := d.Load(bytes.NewReader([]byte("not a checkpoint"))); err == nil {
		t.Error("load: expected error on corrupt checkpoint")
	}
	unchanged("corrupt")

	// A checkpoint of a differently shaped network
	c := testConfig(t)
	c.HiddenSizes = []int{5}
	other := newAgent(t, c, 3)
	var buf bytes.Buffer
	if err := other.Save(&buf); err != nil {
		t.Fatal(err)
	}
	if err := d.Load(&buf); err == nil {
		t.Error("load: expected error on mismatched layout")
	}
	unchanged("layout")

	// A truncated checkpoint
	buf.Reset()
	if err := trained(t, 4).Save(&buf); err != nil {
		t.Fatal(err)
	}
	truncated := buf.Bytes()[:buf.Len()/2]
	if err := d.Load(bytes.NewReader(truncated)); err == nil {
		t.Error("load: expected error on truncated checkpoint")
	}
	unchanged("truncated")

	// A checkpoint with diverged weights
	rngState, err := d.policy.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	diverged := d.OnlineWeights()
	diverged[0][0] = math.NaN()
	buf.Reset()
	if err := gob.NewEncoder(&buf).Encode(checkpoint{
		Layout:  network.Layout(d.online),
		Online:  diverged,
		Target:  d.TargetWeights(),
		Solver:  d.solver.State(),
		Epsilon: d.Epsilon(),
		Steps:   d.Steps(),
		Policy:  rngState,
	}); err != nil {
		t.Fatal(err)
	}
	if err := d.Load(&buf); err == nil {
		t.Error("load: expected error on non-finite weights")
	}
	unchanged("diverged")
}

func TestSaveFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkpoints", "agent.gob")

	source := trained(t, 1)
	if err := source.SaveFile(path); err != nil {
		t.Fatal(err)
	}

	// Only the checkpoint remains, with no temporary files
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "agent.gob" {
		t.Errorf("saveFile: unexpected directory contents %v", entries)
	}

	dest := newAgent(t, testConfig(t), 2)
	if err := dest.LoadFile(path); err != nil {
		t.Fatal(err)
	}
	if !equal2D(source.OnlineWeights(), dest.OnlineWeights()) {
		t.Error("loadFile: weights not restored")
	}

	err = dest.LoadFile(filepath.Join(dir, "missing.gob"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("loadFile: expected not exist error, have %v", err)
	}
}
