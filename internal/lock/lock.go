// Package lock guards a build directory against concurrent pagedex runs.
package lock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	dexerrors "github.com/Aman-CERP/pagedex/internal/errors"
)

// FileName is the lock file created inside the build directory.
const FileName = ".pagedex.lock"

// Workspace is an exclusive advisory lock on <dir>/.pagedex.lock.
type Workspace struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// New returns an unlocked Workspace lock for dir.
func New(dir string) *Workspace {
	path := filepath.Join(dir, FileName)
	return &Workspace{path: path, flock: flock.New(path)}
}

// Acquire takes the lock without blocking. A lock held by another process
// yields ERR_104.
func (w *Workspace) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	acquired, err := w.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return dexerrors.New(dexerrors.ErrCodeWorkspaceLocked,
			"another pagedex run holds the build directory", nil).
			WithDetail("lock", w.path).
			WithSuggestion("Wait for the other run to finish, or remove the lock file if no run is active")
	}
	w.locked = true
	return nil
}

// Release drops the lock. Calling it on an unlocked Workspace is a no-op.
func (w *Workspace) Release() error {
	if !w.locked {
		return nil
	}
	w.locked = false
	if err := w.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (w *Workspace) Path() string {
	return w.path
}
