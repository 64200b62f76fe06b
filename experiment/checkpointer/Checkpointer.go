// Package checkpointer implements periodic checkpointing of objects
// during an experiment
package checkpointer

// Saver is an object that can save itself to a file
type Saver interface {
	SaveFile(path string) error
}

// Checkpointer checkpoints/saves Savers based on the number of
// completed episodes
type Checkpointer interface {
	// Checkpoint saves the tracked object if a checkpoint is due after
	// the given number of completed episodes
	Checkpoint(episode int) error

	// Save saves the tracked object regardless of the episode
	Save() error
}
