package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

var ErrHeld = errors.New("index lock held by another instance")

const pollInterval = 200 * time.Millisecond

// Acquire takes the exclusive file lock at path, polling until timeout.
// The returned func releases it.
func Acquire(path string, timeout time.Duration) (func() error, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating lock directory: %w", err)
		}
	}

	l := flock.New(path)
	deadline := time.Now().Add(timeout)
	for {
		locked, err := l.TryLock()
		if err != nil {
			return nil, fmt.Errorf("cannot acquire index lock: %w", err)
		}
		if locked {
			return l.Unlock, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w (lock: %s)", ErrHeld, path)
		}
		time.Sleep(pollInterval)
	}
}
