// Package tracker implements Trackers, which track and save data in an
// experiment
package tracker

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/samuelfneumann/sweeper/environment"
	ts "github.com/samuelfneumann/sweeper/timestep"
)

// Tracker keeps track of experiment data and saves the data after the
// experiment has finished.
//
// Track is called with every TimeStep of an episode, including the
// first. EndEpisode is called once an episode is over, either because
// the environment reached a terminal state or because the episode was
// cut short, with the Outcome of the final action.
type Tracker interface {
	Track(t ts.TimeStep)
	EndEpisode(o environment.Outcome)
	Save() error
}

// LoadData loads the data saved by a Tracker into data, which should
// be a pointer to a slice of the Tracker's element type
func LoadData(filename string, data interface{}) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("loadData: could not open data file: %v", err)
	}
	defer file.Close()

	if err := gob.NewDecoder(file).Decode(data); err != nil {
		return fmt.Errorf("loadData: could not decode data: %v", err)
	}
	return nil
}

// save gob-encodes data to filename
func save(filename string, data interface{}) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("save: could not open save file: %v", err)
	}

	if err := gob.NewEncoder(file).Encode(data); err != nil {
		file.Close()
		return fmt.Errorf("save: could not encode data: %v", err)
	}
	return file.Close()
}
