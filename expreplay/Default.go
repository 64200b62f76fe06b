package expreplay

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/sweeper/timestep"
)

// defaultCache implements a concrete ExperienceReplayer where
// elements are removed from the buffer in a FiFo manner and only a
// single element is removed from the cache at a time. The cache is a
// ring buffer: once full, each Add overwrites the oldest transition.
type defaultCache struct {
	stateCache     []float64
	actionCache    []int
	rewardCache    []float64
	nextStateCache []float64
	terminalCache  []bool

	currentInUsePos int // Position of the next insert
	isFull          bool

	// Outlines how data is sampled
	sampler Selector

	minCapacity int
	maxCapacity int
	featureSize int
}

// newDefaultCache returns a new defaultCache. The sampler
// parameter is a Selector which determines how data is sampled
// from the replay buffer. The featureSize parameter defines the size of
// the state vectors.
// The minCapacity parameter determines the minimum number of samples
// that should be in the buffer before sampling is allowed.
// The maxCapacity parameter determines the maximum number of samples
// allowed in the buffer at any given time.
func newDefaultCache(sampler Selector, minCapacity, maxCapacity,
	featureSize int) *defaultCache {
	return &defaultCache{
		stateCache:     make([]float64, maxCapacity*featureSize),
		actionCache:    make([]int, maxCapacity),
		rewardCache:    make([]float64, maxCapacity),
		nextStateCache: make([]float64, maxCapacity*featureSize),
		terminalCache:  make([]bool, maxCapacity),

		sampler: sampler,

		minCapacity: minCapacity,
		maxCapacity: maxCapacity,
		featureSize: featureSize,
	}
}

// String returns the string representation of the defaultCache
func (d *defaultCache) String() string {
	baseStr := "Length: %v \nNext Position: %v \nStates: %v \nActions: %v" +
		" \nRewards: %v \nNext States: %v \nTerminals: %v"
	return fmt.Sprintf(baseStr, d.Len(), d.currentInUsePos, d.stateCache,
		d.actionCache, d.rewardCache, d.nextStateCache, d.terminalCache)
}

// BatchSize returns the number of samples sampled using Sample() -
// a.k.a the batch size
func (d *defaultCache) BatchSize() int {
	return d.sampler.BatchSize()
}

// insertOrder returns the buffer positions of all stored transitions in
// the order they were inserted
func (d *defaultCache) insertOrder() []int {
	if !d.isFull {
		order := make([]int, d.currentInUsePos)
		for i := range order {
			order[i] = i
		}
		return order
	}

	order := make([]int, d.maxCapacity)
	for i := range order {
		order[i] = (d.currentInUsePos + i) % d.maxCapacity
	}
	return order
}

// Sample samples and returns a batch of distinct transitions from the
// replay buffer
func (d *defaultCache) Sample() (Batch, error) {
	if d.Len() == 0 {
		return Batch{}, &ExpReplayError{Op: "sample", Err: errEmptyCache}
	}
	if d.Len() < d.MinCapacity() {
		return Batch{}, &ExpReplayError{
			Op:  "sample",
			Err: errInsufficientSamples,
		}
	}

	indices := d.sampler.choose(d.Len())

	batch := Batch{
		States:     make([]float64, len(indices)*d.featureSize),
		Actions:    make([]int, len(indices)),
		Rewards:    make([]float64, len(indices)),
		NextStates: make([]float64, len(indices)*d.featureSize),
		Terminals:  make([]float64, len(indices)),
	}

	for i, index := range indices {
		batchStartInd := i * d.featureSize
		expStartInd := index * d.featureSize

		copyInto(batch.States, batchStartInd, batchStartInd+d.featureSize,
			d.stateCache[expStartInd:expStartInd+d.featureSize])
		copyInto(batch.NextStates, batchStartInd,
			batchStartInd+d.featureSize,
			d.nextStateCache[expStartInd:expStartInd+d.featureSize])

		batch.Actions[i] = d.actionCache[index]
		batch.Rewards[i] = d.rewardCache[index]
		batch.Terminals[i] = terminal(d.terminalCache[index])
	}

	return batch, nil
}

// Len returns the current number of elements in the defaultCache that
// are available for sampling
func (d *defaultCache) Len() int {
	if d.isFull {
		return d.maxCapacity
	}
	return d.currentInUsePos
}

// MaxCapacity returns the maximum number of elements that are allowed
// in the defaultCache
func (d *defaultCache) MaxCapacity() int {
	return d.maxCapacity
}

// MinCapacity returns the minimum number of elements required in the
// defaultCache before sampling is allowed. This is never less than the
// batch size.
func (d *defaultCache) MinCapacity() int {
	if d.minCapacity < d.BatchSize() {
		return d.BatchSize()
	}
	return d.minCapacity
}

// Add adds a transition to the defaultCache
func (d *defaultCache) Add(t timestep.Transition) error {
	if err := checkTransition(t, d.featureSize); err != nil {
		return err
	}

	index := d.currentInUsePos
	stateInd := index * d.featureSize
	copyVecInto(d.stateCache[stateInd:stateInd+d.featureSize], t.State)
	copyVecInto(d.nextStateCache[stateInd:stateInd+d.featureSize],
		t.NextState)

	d.actionCache[index] = t.Action
	d.rewardCache[index] = t.Reward
	d.terminalCache[index] = t.Terminal

	if index+1 == d.maxCapacity {
		d.isFull = true
	}
	d.currentInUsePos = (d.currentInUsePos + 1) % d.maxCapacity
	return nil
}

// Contents returns copies of the stored transitions from oldest to
// newest
func (d *defaultCache) Contents() []timestep.Transition {
	order := d.insertOrder()
	contents := make([]timestep.Transition, len(order))

	for i, index := range order {
		start := index * d.featureSize
		state := make([]float64, d.featureSize)
		nextState := make([]float64, d.featureSize)
		copy(state, d.stateCache[start:start+d.featureSize])
		copy(nextState, d.nextStateCache[start:start+d.featureSize])

		contents[i] = timestep.Transition{
			State:     mat.NewVecDense(d.featureSize, state),
			Action:    d.actionCache[index],
			Reward:    d.rewardCache[index],
			NextState: mat.NewVecDense(d.featureSize, nextState),
			Terminal:  d.terminalCache[index],
		}
	}
	return contents
}

// copyInto copies the data in values into dest[start:end]
func copyInto(dest []float64, start, end int, values []float64) {
	n := copy(dest[start:end], values)
	if n != end-start {
		panic(fmt.Sprintf("copyInto: copied %v values, expected %v", n,
			end-start))
	}
}

// copyVecInto copies the elements of v into dest
func copyVecInto(dest []float64, v mat.Vector) {
	if vec, ok := v.(mat.RawVectorer); ok && vec.RawVector().Inc == 1 {
		copy(dest, vec.RawVector().Data[:v.Len()])
		return
	}
	for i := range dest {
		dest[i] = v.AtVec(i)
	}
}
