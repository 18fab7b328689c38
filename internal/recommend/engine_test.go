package recommend_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"expertdir/apps/recommender/internal/index"
	"expertdir/apps/recommender/internal/llm"
	"expertdir/apps/recommender/internal/middleware"
	"expertdir/apps/recommender/internal/prompt"
	"expertdir/apps/recommender/internal/recommend"
)

type MockIndex struct {
	mock.Mock
}

func (m *MockIndex) Query(ctx context.Context, roles []string, k int) ([][]index.Neighbor, error) {
	args := m.Called(ctx, roles, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]index.Neighbor), args.Error(1)
}

// tagTranslator prefixes the target language, except for the working
// language where text is returned as is.
type tagTranslator struct {
	calls int
	table map[string]string
}

func (t *tagTranslator) Translate(ctx context.Context, text, target string) (string, error) {
	t.calls++
	if v, ok := t.table[text]; ok {
		return v, nil
	}
	if target == "en" {
		return text, nil
	}
	return target + ":" + text, nil
}

func newEngine(t *testing.T, tr recommend.Translator, gen llm.Generator, idx recommend.Index, log *recommend.QueryLogger) *recommend.Engine {
	t.Helper()
	lib, err := prompt.Default()
	require.NoError(t, err)
	client := llm.NewClient(gen, llm.WithRetryDelay(time.Millisecond))
	return recommend.NewEngine(tr, client, lib, idx, log, recommend.Config{WorkingLanguage: "en", DisplayLanguage: "fr"})
}

func staticGen(out string) llm.Generator {
	return llm.GeneratorFunc(func(context.Context, string) (string, error) { return out, nil })
}

func hit(owner string, d float64) index.Neighbor {
	return index.Neighbor{Owner: owner, Distance: d}
}

func TestRecommend_SelectsWithinThresholdAndCap(t *testing.T) {
	idx := new(MockIndex)
	var many []index.Neighbor
	for i := 0; i < 8; i++ {
		many = append(many, hit(fmt.Sprintf("e%d@x.org", i), 0.1+float64(i)*0.01))
	}
	idx.On("Query", mock.Anything, []string{"Data scientist", "Lawyer"}, 20).Return([][]index.Neighbor{
		many,
		{hit("a@x.org", 0.2), hit("a@x.org", 0.25), hit("b@x.org", 0.5), hit("c@x.org", 0.51)},
	}, nil)

	e := newEngine(t, &tagTranslator{}, staticGen("So the final answer is: Data scientist, Lawyer"), idx, nil)
	rec, err := e.Recommend(context.Background(), "Who can help?")
	require.NoError(t, err)

	require.Len(t, rec, 2)
	ds := rec["fr:Data scientist"]
	assert.Equal(t, []string{"e0@x.org", "e1@x.org", "e2@x.org", "e3@x.org", "e4@x.org"}, ds.ExpertEmails)
	assert.Len(t, ds.Scores, 5)

	law := rec["fr:Lawyer"]
	assert.Equal(t, []string{"a@x.org", "b@x.org"}, law.ExpertEmails)
	assert.Equal(t, []float64{0.2, 0.5}, law.Scores)

	for _, experts := range rec {
		assert.LessOrEqual(t, len(experts.ExpertEmails), 5)
		for _, s := range experts.Scores {
			assert.LessOrEqual(t, s, 0.5)
		}
	}
}

func TestRecommend_RoleWithNoExperts(t *testing.T) {
	idx := new(MockIndex)
	idx.On("Query", mock.Anything, []string{"Astronaut"}, 20).Return([][]index.Neighbor{{hit("a@x.org", 0.9)}}, nil)

	rec, err := newEngine(t, &tagTranslator{}, staticGen("Answer: Astronaut"), idx, nil).Recommend(context.Background(), "Space?")
	require.NoError(t, err)
	assert.Equal(t, recommend.Recommendation{"fr:Astronaut": {ExpertEmails: []string{}, Scores: []float64{}}}, rec)
}

func TestRecommend_TranslatedKeyCollisionKeepsFirst(t *testing.T) {
	tr := &tagTranslator{table: map[string]string{"Physician": "Médecin", "Doctor": "Médecin"}}
	idx := new(MockIndex)
	idx.On("Query", mock.Anything, []string{"Physician", "Doctor"}, 20).Return([][]index.Neighbor{
		{hit("first@x.org", 0.1)},
		{hit("second@x.org", 0.1)},
	}, nil)

	rec, err := newEngine(t, tr, staticGen("Answer: Physician, Doctor"), idx, nil).Recommend(context.Background(), "Heart?")
	require.NoError(t, err)
	assert.Equal(t, []string{"first@x.org"}, rec["Médecin"].ExpertEmails)
}

func TestRecommend_BlankQuestion(t *testing.T) {
	tr := &tagTranslator{}
	idx := new(MockIndex)

	rec, err := newEngine(t, tr, staticGen("x"), idx, nil).Recommend(context.Background(), "  ")
	require.NoError(t, err)
	assert.Empty(t, rec)
	assert.Zero(t, tr.calls)
	idx.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything)
}

func TestRecommend_ExhaustedProfiles(t *testing.T) {
	idx := new(MockIndex)
	_, err := newEngine(t, &tagTranslator{}, staticGen(strings.Repeat("a", 200)), idx, nil).Recommend(context.Background(), "Q?")
	require.Error(t, err)
	assert.Equal(t, "error occurred when parsing LLM output for generic profiles", err.Error())
}

func TestRecommend_IndexError(t *testing.T) {
	boom := errors.New("weaviate down")
	idx := new(MockIndex)
	idx.On("Query", mock.Anything, mock.Anything, 20).Return(nil, boom)

	_, err := newEngine(t, &tagTranslator{}, staticGen("Answer: Lawyer"), idx, nil).Recommend(context.Background(), "Q?")
	assert.ErrorIs(t, err, boom)
}

func TestRecommend_WritesQueryLog(t *testing.T) {
	var buf bytes.Buffer
	idx := new(MockIndex)
	idx.On("Query", mock.Anything, []string{"Lawyer"}, 20).Return([][]index.Neighbor{{hit("a@x.org", 0.1)}}, nil)

	ctx := middleware.WithCorrelationID(context.Background(), "corr-1")
	_, err := newEngine(t, &tagTranslator{}, staticGen("Answer: Lawyer"), idx, recommend.NewQueryLogger(&buf)).Recommend(ctx, "Contracts?")
	require.NoError(t, err)

	var entry recommend.QueryLogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Contracts?", entry.Question)
	assert.Equal(t, []string{"Lawyer"}, entry.Roles)
	assert.Equal(t, 1, entry.NumExperts)
	assert.Equal(t, "corr-1", entry.CorrelationID)
	assert.Empty(t, entry.Error)
}

func TestRecommend_SetLimits(t *testing.T) {
	idx := new(MockIndex)
	idx.On("Query", mock.Anything, []string{"Lawyer"}, 7).Return([][]index.Neighbor{
		{hit("a@x.org", 0.1), hit("b@x.org", 0.3), hit("c@x.org", 0.6)},
	}, nil)

	e := newEngine(t, &tagTranslator{}, staticGen("So the final answer is: Lawyer"), idx, nil)
	e.SetLimits(7, 0.35, 1)
	assert.Equal(t, 7, e.Limits().Neighbors)

	rec, err := e.Recommend(context.Background(), "Contracts?")
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.org"}, rec["fr:Lawyer"].ExpertEmails)

	e.SetLimits(0, 0, 0)
	assert.Equal(t, recommend.DefaultNeighbors, e.Limits().Neighbors)
	assert.Equal(t, recommend.DefaultMaxDistance, e.Limits().MaxDistance)
	assert.Equal(t, recommend.DefaultMaxExperts, e.Limits().MaxExperts)
	assert.Equal(t, "fr", e.Limits().DisplayLanguage)
}
