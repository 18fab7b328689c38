package recommend

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryLogger_ThreadSafety(t *testing.T) {
	var buf bytes.Buffer
	logger := NewQueryLogger(&buf)

	concurrency := 20
	iterations := 50
	var wg sync.WaitGroup

	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				logger.Log(QueryLogEntry{
					Question: "test",
					Duration: time.Millisecond,
				})
			}
		}()
	}
	wg.Wait()

	decoder := json.NewDecoder(&buf)
	count := 0
	for decoder.More() {
		var entry QueryLogEntry
		require.NoError(t, decoder.Decode(&entry), "entry %d", count)
		assert.Equal(t, int64(1), entry.LatencyMs)
		count++
	}
	assert.Equal(t, concurrency*iterations, count)
}

func TestFileQueryLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "queries.jsonl")
	logger, err := NewFileQueryLogger(path)
	require.NoError(t, err)

	logger.Log(QueryLogEntry{Question: "q1"})
	logger.Log(QueryLogEntry{Question: "q2"})
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, bytes.Count(data, []byte("\n")))
}

func TestQueryLogger_Nil(t *testing.T) {
	var logger *QueryLogger
	logger.Log(QueryLogEntry{Question: "ignored"})
	assert.NoError(t, logger.Close())
}
