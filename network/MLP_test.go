package network

import (
	"math"
	"testing"

	"gopkg.in/yaml.v2"
	G "gorgonia.org/gorgonia"
)

// run runs the graph of net on input and returns a copy of its output
func run(t *testing.T, net NeuralNet, input []float64) []float64 {
	t.Helper()

	if err := net.SetInput(input); err != nil {
		t.Fatal(err)
	}
	vm := G.NewTapeMachine(net.Graph())
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatal(err)
	}
	return append([]float64(nil), net.Output().Data().([]float64)...)
}

func equal(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-12 {
			return false
		}
	}
	return true
}

func TestNewMLPInvalid(t *testing.T) {
	g := G.NewGraph()
	_, err := NewMLP(2, 1, 2, g, []int{3}, []bool{true, true}, G.Zeroes(),
		[]*Activation{ReLU()})
	if err == nil {
		t.Error("newMLP: expected error on mismatched biases")
	}

	_, err = NewMLP(2, 1, 2, G.NewGraph(), []int{3}, []bool{true},
		G.Zeroes(), []*Activation{})
	if err == nil {
		t.Error("newMLP: expected error on mismatched activations")
	}

	_, err = NewMLP(0, 1, 2, G.NewGraph(), nil, nil, G.Zeroes(), nil)
	if err == nil {
		t.Error("newMLP: expected error on zero features")
	}
}

func TestLinearForward(t *testing.T) {
	net, err := NewMLP(2, 1, 2, G.NewGraph(), nil, nil, G.Zeroes(), nil)
	if err != nil {
		t.Fatal(err)
	}

	if layout := Layout(net); len(layout) != 2 || layout[0] != 4 ||
		layout[1] != 2 {
		t.Fatalf("layout: \n\twant([4 2]) \n\thave(%v)", layout)
	}

	err = net.SetWeights([][]float64{{1, 2, 3, 4}, {0.5, -1}})
	if err != nil {
		t.Fatal(err)
	}

	out := run(t, net, []float64{1, 2})
	if want := []float64{7.5, 9}; !equal(out, want) {
		t.Errorf("fwd: \n\twant(%v) \n\thave(%v)", want, out)
	}
}

func TestReLUForward(t *testing.T) {
	net, err := NewMLP(2, 1, 1, G.NewGraph(), []int{2}, []bool{false},
		G.Zeroes(), []*Activation{ReLU()})
	if err != nil {
		t.Fatal(err)
	}

	err = net.SetWeights([][]float64{{1, 0, 0, -1}, {1, 1}, {0.5}})
	if err != nil {
		t.Fatal(err)
	}

	out := run(t, net, []float64{2, 3})
	if want := []float64{2.5}; !equal(out, want) {
		t.Errorf("fwd: \n\twant(%v) \n\thave(%v)", want, out)
	}
}

func TestCloneWithBatch(t *testing.T) {
	net, err := NewMLP(3, 4, 2, G.NewGraph(), []int{5}, []bool{true},
		G.GlorotU(1.0), []*Activation{TanH()})
	if err != nil {
		t.Fatal(err)
	}

	clone, err := net.CloneWithBatch(1)
	if err != nil {
		t.Fatal(err)
	}
	if clone.BatchSize() != 1 || clone.Features() != 3 ||
		clone.Outputs() != 2 {
		t.Fatalf("cloneWithBatch: invalid clone dimensions")
	}

	batch := []float64{
		0.1, 0.2, 0.3,
		-1, 0, 1,
		2, 2, 2,
		0.5, -0.5, 0,
	}
	out := run(t, net, batch)

	for i := 0; i < 4; i++ {
		row := run(t, clone, append([]float64(nil), batch[i*3:i*3+3]...))
		if !equal(row, out[i*2:i*2+2]) {
			t.Errorf("cloneWithBatch: row %d \n\twant(%v) \n\thave(%v)", i,
				out[i*2:i*2+2], row)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	net, err := NewMLP(2, 1, 2, G.NewGraph(), []int{3}, []bool{true},
		G.GlorotN(1.0), []*Activation{ReLU()})
	if err != nil {
		t.Fatal(err)
	}

	clone, err := net.Clone()
	if err != nil {
		t.Fatal(err)
	}

	before := net.Weights()
	weights := clone.Weights()
	for i := range weights {
		for j := range weights[i] {
			weights[i][j] += 1
		}
	}
	if err := clone.SetWeights(weights); err != nil {
		t.Fatal(err)
	}

	after := net.Weights()
	for i := range before {
		if !equal(before[i], after[i]) {
			t.Fatal("clone: changing clone weights changed original")
		}
	}
}

func TestSet(t *testing.T) {
	source, err := NewMLP(2, 1, 3, G.NewGraph(), []int{4}, []bool{true},
		G.GlorotU(1.0), []*Activation{ReLU()})
	if err != nil {
		t.Fatal(err)
	}
	dest, err := NewMLP(2, 8, 3, G.NewGraph(), []int{4}, []bool{true},
		G.Zeroes(), []*Activation{ReLU()})
	if err != nil {
		t.Fatal(err)
	}

	if err := dest.Set(source); err != nil {
		t.Fatal(err)
	}
	sw, dw := source.Weights(), dest.Weights()
	for i := range sw {
		if !equal(sw[i], dw[i]) {
			t.Errorf("set: learnable %d not copied", i)
		}
	}

	other, err := NewMLP(2, 1, 3, G.NewGraph(), []int{5}, []bool{true},
		G.Zeroes(), []*Activation{ReLU()})
	if err != nil {
		t.Fatal(err)
	}
	if err := dest.Set(other); err == nil {
		t.Error("set: expected error on mismatched layout")
	}

	// A failed Set must not change any weights
	after := dest.Weights()
	for i := range sw {
		if !equal(sw[i], after[i]) {
			t.Fatal("set: failed set changed weights")
		}
	}
}

func TestActivationYAML(t *testing.T) {
	var acts []*Activation
	in := "[relu, tanh, identity, sigmoid]"
	if err := yaml.Unmarshal([]byte(in), &acts); err != nil {
		t.Fatal(err)
	}

	want := []string{"relu", "tanh", "identity", "sigmoid"}
	for i, act := range acts {
		if act.String() != want[i] {
			t.Errorf("unmarshalYAML: \n\twant(%v) \n\thave(%v)", want[i],
				act.String())
		}
	}

	if err := yaml.Unmarshal([]byte("[softmax]"), &acts); err == nil {
		t.Error("unmarshalYAML: expected error on unknown activation")
	}
}
