// Package runlock keeps two stackdeploy processes on one host from applying
// stacks at the same time.
package runlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	maxLockRetries = 5
	lockRetryDelay = 20 * time.Millisecond
)

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("another stackdeploy run holds the lock")

// Lock is a held exclusive file lock.
type Lock struct {
	fl *flock.Flock
}

// DefaultPath is the lock file used when none is configured.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), "stackdeploy.lock")
}

// Acquire takes the exclusive lock at path, retrying briefly before giving up
// with ErrLocked.
func Acquire(path string) (*Lock, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create lock dir: %w", err)
		}
	}
	fl := flock.New(path)
	for i := 0; i < maxLockRetries; i++ {
		locked, err := fl.TryLock()
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", path, err)
		}
		if locked {
			return &Lock{fl: fl}, nil
		}
		time.Sleep(lockRetryDelay)
	}
	return nil, fmt.Errorf("%w: %s", ErrLocked, path)
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.fl.Path()
}

// Release drops the lock. Releasing a nil lock is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
