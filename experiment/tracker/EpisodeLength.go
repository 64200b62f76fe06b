package tracker

import (
	"github.com/samuelfneumann/sweeper/environment"
	"github.com/samuelfneumann/sweeper/timestep"
)

// EpisodeLength tracks and saves the lengths of episodes in an
// experiment. The length of an episode is the number of actions taken,
// including invalid actions.
type EpisodeLength struct {
	current        int
	episodeLengths []int
	filename       string
}

// NewEpisodeLength returns a new EpisodeLength Tracker which will save
// its data at the specified location filename
func NewEpisodeLength(filename string) *EpisodeLength {
	return &EpisodeLength{filename: filename}
}

// Track counts the steps taken in the current episode
func (e *EpisodeLength) Track(t timestep.TimeStep) {
	if t.First() {
		e.current = 0
		return
	}
	e.current++
}

// EndEpisode caches the length of the current episode
func (e *EpisodeLength) EndEpisode(environment.Outcome) {
	e.episodeLengths = append(e.episodeLengths, e.current)
	e.current = 0
}

// Data returns the lengths of each episode tracked so far
func (e *EpisodeLength) Data() []int {
	return append([]int(nil), e.episodeLengths...)
}

// Save saves the data tracked by the EpisodeLength Tracker to disk.
func (e *EpisodeLength) Save() error {
	return save(e.filename, e.episodeLengths)
}
