package settings_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"expertdir/apps/recommender/internal/settings"
)

var defaults = settings.Settings{Neighbors: 20, MaxDistance: 0.5, MaxExperts: 5}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name  string
		set   settings.Settings
		valid bool
	}{
		{"Defaults", defaults, true},
		{"NoNeighbors", settings.Settings{Neighbors: 0, MaxDistance: 0.5, MaxExperts: 5}, false},
		{"NoExperts", settings.Settings{Neighbors: 20, MaxDistance: 0.5, MaxExperts: 0}, false},
		{"ZeroDistance", settings.Settings{Neighbors: 20, MaxDistance: 0, MaxExperts: 5}, false},
		{"DistanceOverBound", settings.Settings{Neighbors: 20, MaxDistance: 2.5, MaxExperts: 5}, false},
		{"MaxBound", settings.Settings{Neighbors: 1, MaxDistance: 2, MaxExperts: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.set.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, settings.ErrInvalid)
			}
		})
	}
}

func TestService_Update(t *testing.T) {
	t.Run("SavesThenApplies", func(t *testing.T) {
		repo, applier := new(MockRepository), new(MockApplier)
		set := &settings.Settings{Neighbors: 10, MaxDistance: 0.4, MaxExperts: 3}
		repo.On("Update", mock.Anything, set).Return(nil).Once()
		applier.On("Apply", mock.Anything, *set).Return(nil).Once()

		require.NoError(t, settings.NewService(repo, applier).Update(context.Background(), set))
		repo.AssertExpectations(t)
		applier.AssertExpectations(t)
	})

	t.Run("InvalidIsNotSaved", func(t *testing.T) {
		repo, applier := new(MockRepository), new(MockApplier)
		err := settings.NewService(repo, applier).Update(context.Background(), &settings.Settings{})
		assert.ErrorIs(t, err, settings.ErrInvalid)
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		applier.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything)
	})

	t.Run("SaveError", func(t *testing.T) {
		repo, applier := new(MockRepository), new(MockApplier)
		repo.On("Update", mock.Anything, mock.Anything).Return(errors.New("db down"))

		err := settings.NewService(repo, applier).Update(context.Background(), &settings.Settings{Neighbors: 1, MaxDistance: 1, MaxExperts: 1})
		assert.ErrorContains(t, err, "saving settings: db down")
		applier.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything)
	})
}

func TestService_Load(t *testing.T) {
	t.Run("Stored", func(t *testing.T) {
		repo, applier := new(MockRepository), new(MockApplier)
		stored := &settings.Settings{Neighbors: 30, MaxDistance: 0.3, MaxExperts: 2}
		repo.On("Get", mock.Anything).Return(stored, nil)
		applier.On("Apply", mock.Anything, *stored).Return(nil)

		got, err := settings.NewService(repo, applier).Load(context.Background(), defaults)
		require.NoError(t, err)
		assert.Equal(t, *stored, got)
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("SeedsFallback", func(t *testing.T) {
		repo, applier := new(MockRepository), new(MockApplier)
		repo.On("Get", mock.Anything).Return(nil, sql.ErrNoRows)
		repo.On("Update", mock.Anything, &defaults).Return(nil)
		applier.On("Apply", mock.Anything, defaults).Return(nil)

		got, err := settings.NewService(repo, applier).Load(context.Background(), defaults)
		require.NoError(t, err)
		assert.Equal(t, defaults, got)
		repo.AssertExpectations(t)
	})

	t.Run("GetError", func(t *testing.T) {
		repo, applier := new(MockRepository), new(MockApplier)
		repo.On("Get", mock.Anything).Return(nil, errors.New("db down"))

		_, err := settings.NewService(repo, applier).Load(context.Background(), defaults)
		assert.ErrorContains(t, err, "loading settings")
	})
}
