package text_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expertdir/apps/recommender/internal/text"
)

func TestSplitLines_PacksLines(t *testing.T) {
	in := "aaaa\nbbbb\ncccc"

	got := text.SplitLines(in, 9)
	assert.Equal(t, []string{"aaaa\nbbbb", "cccc"}, got)
}

func TestSplitLines_FlushesFinalChunk(t *testing.T) {
	got := text.SplitLines("one\ntwo", 100)
	assert.Equal(t, []string{"one\ntwo"}, got)
}

func TestSplitLines_RespectsLimitAndOrder(t *testing.T) {
	var lines []string
	for i := 0; i < 200; i++ {
		lines = append(lines, strings.Repeat("é", 10+i%37))
	}
	in := strings.Join(lines, "\n")

	chunks := text.SplitLines(in, 300)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, text.RuneLen(c), 300)
	}
	assert.Equal(t, in, strings.Join(chunks, "\n"))
}

func TestSplitLines_LongLine(t *testing.T) {
	line := strings.Repeat("word ", 50)
	chunks := text.SplitLines(line, 32)
	for _, c := range chunks {
		assert.LessOrEqual(t, text.RuneLen(c), 32)
	}
	assert.Equal(t, strings.Fields(line), strings.Fields(strings.Join(chunks, " ")))
}

func TestSplitLines_HugeWord(t *testing.T) {
	chunks := text.SplitLines(strings.Repeat("x", 25), 10)
	assert.Equal(t, []string{"xxxxxxxxxx", "xxxxxxxxxx", "xxxxx"}, chunks)
}
