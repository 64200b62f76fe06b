// Package network implements feed forward neural networks as Gorgonia
// computational graphs
package network

import (
	G "gorgonia.org/gorgonia"
)

// NeuralNet implements a neural network whose forward pass is part of a
// Gorgonia computational graph. The graph must be run by a G.VM before
// Output holds the prediction for the current input.
type NeuralNet interface {
	Graph() *G.ExprGraph
	Clone() (NeuralNet, error)
	CloneWithBatch(int) (NeuralNet, error)
	BatchSize() int
	Features() int
	Outputs() int
	SetInput([]float64) error

	// Set copies the weights of another NeuralNet with the same layout
	// into this NeuralNet
	Set(NeuralNet) error

	Learnables() G.Nodes
	Model() []G.ValueGrad
	Output() G.Value
	Prediction() *G.Node

	// Weights returns a copy of the weights of each learnable node
	Weights() [][]float64

	// SetWeights sets the weights of each learnable node
	SetWeights([][]float64) error
}

// Layout returns the number of weights in each learnable node of net
func Layout(net NeuralNet) []int {
	learnables := net.Learnables()
	layout := make([]int, len(learnables))
	for i, node := range learnables {
		layout[i] = node.Shape().TotalSize()
	}
	return layout
}
