package llm_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expertdir/apps/recommender/internal/llm"
)

func TestParseList(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr bool
	}{
		{"Plain", "apprentissage automatique, santé numérique", []string{"apprentissage automatique", "santé numérique"}, false},
		{"Final answer label", "Let me think.\nSo the final answer is: data scientist, epidemiologist", []string{"data scientist", "epidemiologist"}, false},
		{"Label then newline", "Answer:\n\n  robotique , vision  \n", []string{"robotique", "vision"}, false},
		{"Last line wins", "first, line\nsecond, line", []string{"second", "line"}, false},
		{"Trailing period", "ethics, law.", []string{"ethics", "law"}, false},
		{"Empty", "   \n ", nil, true},
		{"Only commas", ", ,", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := llm.ParseList(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, llm.ErrParse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseProfiles_JSON(t *testing.T) {
	got, err := llm.ParseProfiles("Here you go:\n{\"profiles\": [\"Data scientist\", \" Lawyer \"]}")
	require.NoError(t, err)
	assert.Equal(t, []string{"Data scientist", "Lawyer"}, got)
}

func TestParseProfiles_FallsBackToList(t *testing.T) {
	got, err := llm.ParseProfiles("So the final answer is: Data scientist, Lawyer")
	require.NoError(t, err)
	assert.Equal(t, []string{"Data scientist", "Lawyer"}, got)
}

func TestParseProfiles_TooLong(t *testing.T) {
	_, err := llm.ParseProfiles("Answer: " + strings.Repeat("a", 151))
	assert.ErrorIs(t, err, llm.ErrParse)

	got, err := llm.ParseProfiles("Answer: " + strings.Repeat("a", 150))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestParseProfiles_EmptyJSON(t *testing.T) {
	_, err := llm.ParseProfiles(`{"profiles": []}`)
	assert.ErrorIs(t, err, llm.ErrParse)
}
