package minesweeper

import (
	"errors"
	"fmt"
)

// ErrTooManyMines is returned when a board cannot hold the requested
// number of mines while keeping the 3x3 area around the first move
// free of mines.
var ErrTooManyMines = errors.New("too many mines for board")

// Default board parameters
const (
	DefaultRows  = 16
	DefaultCols  = 16
	DefaultMines = 40
)

// Config implements a configuration of a Minesweeper board
type Config struct {
	Rows  int `yaml:"rows" json:"rows"`
	Cols  int `yaml:"cols" json:"cols"`
	Mines int `yaml:"mines" json:"mines"`

	// RevealPenalty is the (non-negative) penalty given when an invalid
	// action is taken, e.g. opening an already opened cell. The reward
	// for such actions is -RevealPenalty.
	RevealPenalty float64 `yaml:"reveal_penalty" json:"reveal_penalty"`
}

// NewConfig returns the default configuration: a 16x16 board with 40
// mines and free invalid actions
func NewConfig() Config {
	return Config{
		Rows:  DefaultRows,
		Cols:  DefaultCols,
		Mines: DefaultMines,
	}
}

// Cells returns the number of cells on the board
func (c Config) Cells() int {
	return c.Rows * c.Cols
}

// Validate checks a Config to ensure it describes a playable board
func (c Config) Validate() error {
	if c.Rows < 1 || c.Cols < 1 {
		return fmt.Errorf("validate: board must have positive dimensions "+
			"\n\twant(>0, >0) \n\thave(%d, %d)", c.Rows, c.Cols)
	}
	if c.Mines < 0 {
		return fmt.Errorf("validate: number of mines must be non-negative "+
			"\n\thave(%d)", c.Mines)
	}

	// The first move clears up to 9 cells, all of which must be safe
	if c.Mines >= c.Cells()-9 {
		return fmt.Errorf("validate: %w: %d mines on a %dx%d board "+
			"\n\twant(< %d)", ErrTooManyMines, c.Mines, c.Rows, c.Cols,
			c.Cells()-9)
	}

	if c.RevealPenalty < 0 {
		return fmt.Errorf("validate: reveal penalty must be non-negative "+
			"\n\thave(%v)", c.RevealPenalty)
	}
	return nil
}
