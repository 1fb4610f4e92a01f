package fetch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Artifact is a handle to a locally stored audio file plus its duration.
// Ownership transfers down the pipeline; whoever observes a terminal outcome
// on the artifact must call Remove exactly once (repeat calls are harmless).
type Artifact struct {
	Path            string
	DurationSeconds float64
}

// Remove deletes the underlying file. Already-deleted state is tolerated.
func (a *Artifact) Remove() error {
	if a == nil || a.Path == "" {
		return nil
	}

	err := os.Remove(a.Path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove artifact %s: %w", a.Path, err)
	}
	return nil
}
