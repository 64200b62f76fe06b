package expreplay

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// Selector implements functionality for choosing how data should be
// sampled from an experience replay buffer
type Selector interface {
	// choose selects the positions, in [0, n), at which data should be
	// sampled from a buffer holding n elements
	choose(n int) []int

	// BatchSize returns the number of elements that will be selected
	BatchSize() int
}

// uniformSelector is a Selector which selects data from an experience
// replay buffer uniformly randomly without replacement
type uniformSelector struct {
	samples int
	rng     *rand.Rand
}

// NewUniformSelector returns a new Selector which selects data uniformly
// randomly without replacement from an experience replay buffer
func NewUniformSelector(samples int, seed uint64) Selector {
	source := rand.NewSource(seed)
	rng := rand.New(source)

	return &uniformSelector{samples: samples, rng: rng}
}

// BatchSize gets the number of samples in a batch drawn from the buffer
func (u *uniformSelector) BatchSize() int {
	return u.samples
}

// choose selects BatchSize distinct indices at which to draw data from
// the buffer. If n < BatchSize, only n indices are chosen.
func (u *uniformSelector) choose(n int) []int {
	size := u.BatchSize()
	if n < size {
		size = n
	}

	selected := make([]int, size)
	sampleuv.WithoutReplacement(selected, n, u.rng)
	return selected
}
