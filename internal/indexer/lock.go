package indexer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrRunInProgress indicates another indexing run holds the project lock.
var ErrRunInProgress = errors.New("another indexing run is in progress for this project")

// RunLock is an advisory file lock keyed on the project root. It prevents
// two concurrent runs against the same index, including from separate
// processes.
type RunLock struct {
	fl *flock.Flock
}

// AcquireRunLock takes the lock without blocking. Callers must Release.
func AcquireRunLock(root string) (*RunLock, error) {
	dir := filepath.Join(root, ".coderag")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	fl := flock.New(filepath.Join(dir, "index.lock"))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !ok {
		return nil, ErrRunInProgress
	}
	return &RunLock{fl: fl}, nil
}

// Release releases the lock.
func (l *RunLock) Release() error {
	return l.fl.Unlock()
}
