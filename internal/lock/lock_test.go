package lock_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expertdir/apps/recommender/internal/lock"
)

func TestAcquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "recommender.lock")

	release, err := lock.Acquire(path, time.Second)
	require.NoError(t, err)

	start := time.Now()
	_, err = lock.Acquire(path, 300*time.Millisecond)
	assert.ErrorIs(t, err, lock.ErrHeld)
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)

	require.NoError(t, release())

	release, err = lock.Acquire(path, time.Second)
	require.NoError(t, err)
	require.NoError(t, release())
}
