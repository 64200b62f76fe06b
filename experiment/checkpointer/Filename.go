package checkpointer

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Fixed returns a function which always returns path, so that each
// checkpoint replaces the previous one
func Fixed(path string) func() string {
	return func() string {
		return path
	}
}

// fileEnumerator enumerates filenames
type fileEnumerator struct {
	i         int
	name      string
	extension string
}

// filename returns the name of the next consecutive enumerated file
func (f *fileEnumerator) filename() string {
	f.i++
	return fmt.Sprintf("%v-%v%v", f.name, f.i, f.extension)
}

// FilenameEnumerator returns a function which will return filenames
// with a counter integer suffix inserted before the extension of path.
// Each time the returned function is called, the counter will be one
// higher than on the previous call, starting at start+1. For example,
// "agent.gob" is enumerated as "agent-1.gob", "agent-2.gob", ...
func FilenameEnumerator(start int, path string) func() string {
	extension := filepath.Ext(path)
	enum := fileEnumerator{
		i:         start,
		name:      strings.TrimSuffix(path, extension),
		extension: extension,
	}

	return enum.filename
}
