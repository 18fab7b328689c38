package rpc_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"expertdir/apps/recommender/internal/recommend"
	"expertdir/apps/recommender/internal/rpc"
)

type MockExtractor struct{ mock.Mock }

func (m *MockExtractor) Extract(ctx context.Context, text string) ([]string, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockRecommender struct{ mock.Mock }

func (m *MockRecommender) Recommend(ctx context.Context, question string) (recommend.Recommendation, error) {
	args := m.Called(ctx, question)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(recommend.Recommendation), args.Error(1)
}

type MockIndex struct{ mock.Mock }

func (m *MockIndex) Add(ctx context.Context, skills, email string) error {
	return m.Called(ctx, skills, email).Error(0)
}

func (m *MockIndex) Update(ctx context.Context, skills, email string) error {
	return m.Called(ctx, skills, email).Error(0)
}

func (m *MockIndex) Delete(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func newStack(t *testing.T) (*MockExtractor, *MockRecommender, *MockIndex, *rpc.Client) {
	t.Helper()
	kw, rec, idx := new(MockExtractor), new(MockRecommender), new(MockIndex)
	d := startDispatcher(t, rpc.NewTable(kw, rec, idx))
	srv := newRPCServer(t, d)
	return kw, rec, idx, rpc.NewClient(rpc.NewHTTPCaller(srv.URL, time.Second))
}

func TestClient_OverHTTP(t *testing.T) {
	kw, rec, idx, client := newStack(t)
	ctx := context.Background()

	kw.On("Extract", mock.Anything, "Apprentissage machine").Return([]string{"APPRENTISSAGE MACHINE"}, nil)
	got, err := client.ExtractKeywords(ctx, "Apprentissage machine")
	require.NoError(t, err)
	assert.Equal(t, []string{"APPRENTISSAGE MACHINE"}, got)

	want := recommend.Recommendation{
		"Data scientist": {ExpertEmails: []string{"a@x.org"}, Scores: []float64{0.12}},
	}
	rec.On("Recommend", mock.Anything, "Who can build a model?").Return(want, nil)
	gotRec, err := client.Recommend(ctx, "Who can build a model?")
	require.NoError(t, err)
	assert.Equal(t, want, gotRec)

	idx.On("Add", mock.Anything, "GPU", "a@x.org").Return(nil)
	idx.On("Update", mock.Anything, "CUDA", "a@x.org").Return(nil)
	idx.On("Delete", mock.Anything, "a@x.org").Return(nil)
	require.NoError(t, client.Add(ctx, "GPU", "a@x.org"))
	require.NoError(t, client.Update(ctx, "CUDA", "a@x.org"))
	require.NoError(t, client.Delete(ctx, "a@x.org"))

	kw.AssertExpectations(t)
	rec.AssertExpectations(t)
	idx.AssertExpectations(t)
}

func TestClient_RemoteError(t *testing.T) {
	_, _, idx, client := newStack(t)
	idx.On("Delete", mock.Anything, "a@x.org").Return(errors.New("store unavailable"))

	err := client.Delete(context.Background(), "a@x.org")
	var remote *rpc.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "store unavailable", remote.Message)
}

func TestClient_EmptyRecommendation(t *testing.T) {
	_, rec, _, client := newStack(t)
	rec.On("Recommend", mock.Anything, "").Return(recommend.Recommendation{}, nil)

	got, err := client.Recommend(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestHTTPCaller_NotAvailable(t *testing.T) {
	d := rpc.NewDispatcher(rpc.Table{}, 1)
	srv := newRPCServer(t, d)

	_, err := rpc.NewHTTPCaller(srv.URL, time.Second).Call(context.Background(), rpc.NewRequest(rpc.MethodDelete, "a"))
	assert.ErrorIs(t, err, rpc.ErrNotAvailable)
}

func TestParseMethod(t *testing.T) {
	for _, m := range rpc.Methods {
		got, err := rpc.ParseMethod(string(m))
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}

	_, err := rpc.ParseMethod("")
	assert.ErrorIs(t, err, rpc.ErrNoMethod)

	_, err = rpc.ParseMethod("Recommend")
	var unknown *rpc.UnknownMethodError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "Recommend", unknown.Name)

	assert.Equal(t, 2, rpc.MethodAdd.Arity())
	assert.Equal(t, 1, rpc.MethodRecommend.Arity())
}
