package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	termerrors "github.com/Aman-CERP/termsearch/internal/errors"
)

// lockFileName is created inside the data directory.
const lockFileName = ".termsearch.lock"

// DirLock is a cross-process lock on an index data directory.
// A writer (serve, notify) holds it for as long as the index is open.
type DirLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewDirLock creates a lock for dataDir. Nothing is acquired yet.
func NewDirLock(dataDir string) *DirLock {
	lockPath := filepath.Join(dataDir, lockFileName)
	return &DirLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// TryLock acquires the lock without blocking. If another process holds it,
// a TermError with ErrCodeIndexLocked is returned.
func (l *DirLock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return termerrors.New(termerrors.ErrCodeIndexLocked, "index is in use by another process", nil).
			WithDetail("lock", l.path).
			WithSuggestion("Stop the other termsearch process or use a different data_dir")
	}

	l.locked = true
	return nil
}

// Unlock releases the lock. Safe to call when not held.
func (l *DirLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *DirLock) Path() string {
	return l.path
}

// IsLocked reports whether this DirLock holds the lock.
func (l *DirLock) IsLocked() bool {
	return l.locked
}
