package checkpointer

import "fmt"

// nEpisode implements checkpointing every N episodes
type nEpisode struct {
	interval int
	object   Saver // Object to save

	// filename returns the filename of the file to save the object in.
	//
	// If each checkpoint should replace the previous one, use Fixed.
	// If each checkpoint should be saved in a separate file with an
	// incremented number as a suffix (e.g. agent-1.gob, agent-2.gob,
	// ..., agent-K.gob), use FilenameEnumerator.
	filename func() string
}

// NewNEpisode returns a checkpointer that checkpoints every n
// episodes. If n < 1, only explicit calls to Save save the object.
func NewNEpisode(n int, object Saver, filename func() string) Checkpointer {
	return &nEpisode{
		interval: n,
		object:   object,
		filename: filename,
	}
}

// Checkpoint saves the tracked object if episode is a positive multiple
// of the checkpointing interval
func (n *nEpisode) Checkpoint(episode int) error {
	if n.interval < 1 || episode < 1 || episode%n.interval != 0 {
		return nil
	}
	if err := n.Save(); err != nil {
		return fmt.Errorf("checkpoint: episode %d: %w", episode, err)
	}
	return nil
}

// Save saves the tracked object
func (n *nEpisode) Save() error {
	return n.object.SaveFile(n.filename())
}
