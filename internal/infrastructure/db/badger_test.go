package db

import (
	"context"
	"testing"
	"time"

	"github.com/damon-houk/catalog-service/internal/domain/apperrors"
	"github.com/damon-houk/catalog-service/internal/domain/entity"
	"github.com/damon-houk/catalog-service/internal/infrastructure/logger"
	"github.com/dgraph-io/badger/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := Open("", true, logger.NopLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenOnDisk(t *testing.T) {
	dir := t.TempDir() + "/nested/data"

	db, err := Open(dir, false, logger.NopLogger{})
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestBadgerProductRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewBadgerProductRepository(openTestDB(t))

	lamp := entity.NewProduct("Lamp", 19.99, "EUR")
	require.NoError(t, repo.Save(ctx, lamp))
	assert.NotEmpty(t, lamp.ID)
	assert.Equal(t, int64(1), lamp.Version)

	chair := entity.NewProduct("Chair", 45, "USD")
	chair.ID = "chair"
	require.NoError(t, repo.Save(ctx, chair))

	t.Run("FindByID", func(t *testing.T) {
		got, err := repo.FindByID(ctx, lamp.ID)
		require.NoError(t, err)
		assert.Equal(t, lamp, got)

		_, err = repo.FindByID(ctx, "missing")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("FindByIDs skips missing ids", func(t *testing.T) {
		got, err := repo.FindByIDs(ctx, []string{"chair", "missing", lamp.ID})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "Chair", got[0].Name)
		assert.Equal(t, "Lamp", got[1].Name)
	})

	t.Run("FindByName and FindAll", func(t *testing.T) {
		got, err := repo.FindByName(ctx, "Chair")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "chair", got[0].ID)

		got, err = repo.FindByName(ctx, "Sofa")
		require.NoError(t, err)
		assert.Empty(t, got)

		all, err := repo.FindAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("Stale version is rejected", func(t *testing.T) {
		first, err := repo.FindByID(ctx, "chair")
		require.NoError(t, err)
		second, err := repo.FindByID(ctx, "chair")
		require.NoError(t, err)

		first.Value = 50
		require.NoError(t, repo.Save(ctx, first))

		second.Value = 60
		err = repo.Save(ctx, second)
		assert.ErrorIs(t, err, apperrors.ErrVersionConflict)
		assert.Equal(t, first.Version-1, second.Version)

		stored, err := repo.FindByID(ctx, "chair")
		require.NoError(t, err)
		assert.Equal(t, 50.0, stored.Value)
	})

	t.Run("Exists and Delete", func(t *testing.T) {
		ok, err := repo.Exists(ctx, lamp.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, repo.Delete(ctx, lamp.ID))

		ok, err = repo.Exists(ctx, lamp.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		assert.ErrorIs(t, repo.Delete(ctx, lamp.ID), apperrors.ErrNotFound)
	})
}

func TestBadgerCategoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewBadgerCategoryRepository(openTestDB(t))

	home := entity.NewCategory("home")
	lighting := entity.NewCategory("home_lighting")
	lighting.AddProducts("p1")
	lamps := entity.NewCategory("home_lighting_lamps")
	lamps.AddProducts("p1", "p2")
	homeware := entity.NewCategory("homeware")
	require.NoError(t, repo.SaveAll(ctx, []*entity.Category{home, lighting, lamps, homeware}))

	t.Run("FindByPath", func(t *testing.T) {
		got, err := repo.FindByPath(ctx, "home_lighting")
		require.NoError(t, err)
		assert.Equal(t, lighting.ID, got.ID)

		_, err = repo.FindByPath(ctx, "garden")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("FindByPathPrefix respects segments", func(t *testing.T) {
		got, err := repo.FindByPathPrefix(ctx, "home")
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "home", got[0].CategoryPath)
		assert.Equal(t, "home_lighting", got[1].CategoryPath)
		assert.Equal(t, "home_lighting_lamps", got[2].CategoryPath)
	})

	t.Run("FindByProduct", func(t *testing.T) {
		got, err := repo.FindByProduct(ctx, "p1")
		require.NoError(t, err)
		assert.Len(t, got, 2)

		got, err = repo.FindByProduct(ctx, "p2")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, lamps.ID, got[0].ID)
	})

	t.Run("Duplicate path is rejected", func(t *testing.T) {
		err := repo.Save(ctx, entity.NewCategory("home"))
		assert.ErrorIs(t, err, apperrors.ErrDuplicate)

		all, err := repo.FindAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 4)
	})

	t.Run("Rebased subtree moves the path index", func(t *testing.T) {
		tree, err := repo.FindByPathPrefix(ctx, "home_lighting")
		require.NoError(t, err)
		for _, c := range tree {
			c.Rebase("home_lighting", "home_lights")
		}
		require.NoError(t, repo.SaveAll(ctx, tree))

		_, err = repo.FindByPath(ctx, "home_lighting")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)

		got, err := repo.FindByPath(ctx, "home_lights_lamps")
		require.NoError(t, err)
		assert.Equal(t, lamps.ID, got.ID)
		assert.Equal(t, "lamps", got.Name)

		// the old path can be reused
		require.NoError(t, repo.Save(ctx, entity.NewCategory("home_lighting")))
	})

	t.Run("DeleteAll", func(t *testing.T) {
		require.NoError(t, repo.DeleteAll(ctx, []string{home.ID, homeware.ID}))

		_, err := repo.FindByPath(ctx, "home")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)

		err = repo.DeleteAll(ctx, []string{lighting.ID, "missing"})
		assert.ErrorIs(t, err, apperrors.ErrNotFound)

		_, err = repo.FindByID(ctx, lighting.ID)
		assert.NoError(t, err, "a failed batch must not delete anything")
	})
}

func TestBadgerExchangeRateRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewBadgerExchangeRateRepository(openTestDB(t))

	_, err := repo.FindAll(ctx)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	fetchedAt := time.Date(2017, 8, 4, 16, 0, 0, 0, time.UTC)
	require.NoError(t, repo.ReplaceAll(ctx, &entity.RateSnapshot{
		Base:      "EUR",
		Date:      "2017-08-04",
		FetchedAt: fetchedAt,
		Rates: []entity.ExchangeRate{
			{Currency: "AUD", Rate: 1.5033},
			{Currency: "USD", Rate: 1.1834},
		},
	}))

	got, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "EUR", got.Base)
	assert.Equal(t, "2017-08-04", got.Date)
	assert.True(t, fetchedAt.Equal(got.FetchedAt))
	assert.Equal(t, []entity.ExchangeRate{{Currency: "AUD", Rate: 1.5033}, {Currency: "USD", Rate: 1.1834}}, got.Rates)

	require.NoError(t, repo.ReplaceAll(ctx, &entity.RateSnapshot{
		Base:  "EUR",
		Rates: []entity.ExchangeRate{{Currency: "GBP", Rate: 0.9}},
	}))

	got, err = repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []entity.ExchangeRate{{Currency: "GBP", Rate: 0.9}}, got.Rates)
	assert.Empty(t, got.Date)
}
