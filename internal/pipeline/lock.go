package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock serializes conversions on this machine. The backend already enforces
// one active job per user; the lock keeps two local quill processes from
// fighting over the same session.
type Lock struct {
	path string
	lock *flock.Flock
}

// NewLock builds a lock rooted in the given directory.
func NewLock(dir string) *Lock {
	path := filepath.Join(dir, "quill.lock")
	return &Lock{path: path, lock: flock.New(path)}
}

// Acquire takes the lock without blocking, failing when another conversion
// holds it.
func (l *Lock) Acquire() error {
	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire conversion lock: %w", err)
	}
	if !ok {
		return errors.New("another quill conversion is already running")
	}
	return nil
}

// Release drops the lock. Safe to call when not held.
func (l *Lock) Release() error {
	return l.lock.Unlock()
}

// Path returns the lock file location for diagnostics.
func (l *Lock) Path() string {
	return l.path
}
