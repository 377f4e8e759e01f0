package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/damon-houk/catalog-service/internal/domain/apperrors"
	"github.com/damon-houk/catalog-service/internal/domain/entity"
	"github.com/damon-houk/catalog-service/internal/infrastructure/logger"
	"github.com/damon-houk/catalog-service/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func scenarioTable() *entity.RateTable {
	return &entity.RateTable{
		Base: "EUR",
		Date: "2017-08-04",
		Rates: map[string]float64{
			"AUD": 1.5033,
			"BGN": 1.90,
			"USD": 1.1834,
			"PHP": 60.345,
		},
	}
}

func TestRateStoreRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("Successful refresh replaces the snapshot", func(t *testing.T) {
		provider := new(mocks.MockRateProvider)
		store := NewRateStore("EUR", provider, nil, logger.NopLogger{})

		assert.True(t, store.IsEmpty())

		provider.On("FetchRates", mock.Anything).Return(scenarioTable(), nil).Once()
		assert.True(t, store.Refresh(ctx))

		assert.False(t, store.IsEmpty())
		rate, ok := store.Lookup("USD")
		assert.True(t, ok)
		assert.Equal(t, 1.1834, rate)
		assert.Equal(t, "2017-08-04", store.Snapshot().Date())
		assert.Equal(t, 4, store.Snapshot().Len())

		// a second table replaces the first entirely
		provider.On("FetchRates", mock.Anything).Return(&entity.RateTable{
			Base:  "EUR",
			Rates: map[string]float64{"GBP": 0.9},
		}, nil).Once()
		assert.True(t, store.Refresh(ctx))

		_, ok = store.Lookup("USD")
		assert.False(t, ok)
		rate, ok = store.Lookup("GBP")
		assert.True(t, ok)
		assert.Equal(t, 0.9, rate)

		status := store.Status()
		assert.False(t, status.LastSuccess.IsZero())
		assert.Empty(t, status.LastError)

		provider.AssertExpectations(t)
	})

	t.Run("Provider failure keeps the previous snapshot", func(t *testing.T) {
		provider := new(mocks.MockRateProvider)
		store := NewRateStore("EUR", provider, nil, logger.NopLogger{})

		provider.On("FetchRates", mock.Anything).Return(scenarioTable(), nil).Once()
		require.True(t, store.Refresh(ctx))
		before := store.Snapshot().Rates()

		provider.On("FetchRates", mock.Anything).
			Return(nil, fmt.Errorf("%w: connection refused", apperrors.ErrProviderUnavailable)).Once()
		assert.False(t, store.Refresh(ctx))

		assert.Equal(t, before, store.Snapshot().Rates())
		for code, want := range before {
			got, ok := store.Lookup(code)
			assert.True(t, ok)
			assert.Equal(t, want, got)
		}
		assert.Contains(t, store.Status().LastError, "connection refused")

		provider.AssertExpectations(t)
	})

	t.Run("Malformed tables are rejected", func(t *testing.T) {
		cases := map[string]*entity.RateTable{
			"missing rates":   {Base: "EUR"},
			"base mismatch":   {Base: "USD", Rates: map[string]float64{"EUR": 0.9}},
			"zero rate":       {Base: "EUR", Rates: map[string]float64{"USD": 0}},
			"negative rate":   {Base: "EUR", Rates: map[string]float64{"USD": -1.2}},
			"blank code":      {Base: "EUR", Rates: map[string]float64{" ": 1.2}},
			"nil table value": nil,
		}

		for name, table := range cases {
			t.Run(name, func(t *testing.T) {
				provider := new(mocks.MockRateProvider)
				store := NewRateStore("EUR", provider, nil, logger.NopLogger{})

				if table == nil {
					provider.On("FetchRates", mock.Anything).Return(nil, nil).Once()
				} else {
					provider.On("FetchRates", mock.Anything).Return(table, nil).Once()
				}

				assert.False(t, store.Refresh(ctx))
				assert.True(t, store.IsEmpty())
				assert.Contains(t, store.Status().LastError, "malformed")
			})
		}
	})

	t.Run("Empty table is a successful refresh", func(t *testing.T) {
		provider := new(mocks.MockRateProvider)
		store := NewRateStore("EUR", provider, nil, logger.NopLogger{})

		provider.On("FetchRates", mock.Anything).Return(scenarioTable(), nil).Once()
		require.True(t, store.Refresh(ctx))

		provider.On("FetchRates", mock.Anything).Return(&entity.RateTable{Rates: map[string]float64{}}, nil).Once()
		assert.True(t, store.Refresh(ctx))
		assert.True(t, store.IsEmpty())

		_, ok := store.Lookup("USD")
		assert.False(t, ok)
	})

	t.Run("Codes are normalized and the base currency is not stored", func(t *testing.T) {
		provider := new(mocks.MockRateProvider)
		store := NewRateStore("eur", provider, nil, logger.NopLogger{})

		provider.On("FetchRates", mock.Anything).Return(&entity.RateTable{
			Base:  "EUR",
			Rates: map[string]float64{"usd": 1.1834, "EUR": 1.5},
		}, nil).Once()
		require.True(t, store.Refresh(ctx))

		assert.Equal(t, "EUR", store.BaseCurrency())
		assert.Equal(t, 1, store.Snapshot().Len())

		rate, ok := store.Lookup("Usd")
		assert.True(t, ok)
		assert.Equal(t, 1.1834, rate)

		rate, ok = store.Lookup("eur")
		assert.True(t, ok)
		assert.Equal(t, 1.0, rate)
	})
}

func TestRateStorePersistence(t *testing.T) {
	ctx := context.Background()

	t.Run("Refresh persists the snapshot", func(t *testing.T) {
		provider := new(mocks.MockRateProvider)
		repo := new(mocks.MockExchangeRateRepository)
		store := NewRateStore("EUR", provider, repo, logger.NopLogger{})

		provider.On("FetchRates", mock.Anything).Return(scenarioTable(), nil).Once()
		repo.On("ReplaceAll", mock.Anything, mock.MatchedBy(func(s *entity.RateSnapshot) bool {
			return s.Base == "EUR" && len(s.Rates) == 4 && s.Rates[0].Currency == "AUD"
		})).Return(nil).Once()

		assert.True(t, store.Refresh(ctx))
		repo.AssertExpectations(t)
	})

	t.Run("Persistence failure does not fail the refresh", func(t *testing.T) {
		provider := new(mocks.MockRateProvider)
		repo := new(mocks.MockExchangeRateRepository)
		store := NewRateStore("EUR", provider, repo, logger.NopLogger{})

		provider.On("FetchRates", mock.Anything).Return(scenarioTable(), nil).Once()
		repo.On("ReplaceAll", mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()

		assert.True(t, store.Refresh(ctx))
		_, ok := store.Lookup("PHP")
		assert.True(t, ok)
	})

	t.Run("Load warms the store", func(t *testing.T) {
		repo := new(mocks.MockExchangeRateRepository)
		store := NewRateStore("EUR", new(mocks.MockRateProvider), repo, logger.NopLogger{})

		fetchedAt := time.Date(2017, 8, 4, 16, 0, 0, 0, time.UTC)
		repo.On("FindAll", mock.Anything).Return(&entity.RateSnapshot{
			Base:      "EUR",
			FetchedAt: fetchedAt,
			Rates:     []entity.ExchangeRate{{Currency: "USD", Rate: 1.1834}},
		}, nil).Once()

		require.NoError(t, store.Load(ctx))
		rate, ok := store.Lookup("USD")
		assert.True(t, ok)
		assert.Equal(t, 1.1834, rate)
		assert.Equal(t, fetchedAt, store.Snapshot().FetchedAt())
	})

	t.Run("Load without a stored snapshot", func(t *testing.T) {
		repo := new(mocks.MockExchangeRateRepository)
		store := NewRateStore("EUR", new(mocks.MockRateProvider), repo, logger.NopLogger{})

		repo.On("FindAll", mock.Anything).Return(nil, apperrors.ErrNotFound).Once()

		assert.NoError(t, store.Load(ctx))
		assert.True(t, store.IsEmpty())
	})

	t.Run("Load ignores a snapshot for another base", func(t *testing.T) {
		repo := new(mocks.MockExchangeRateRepository)
		store := NewRateStore("EUR", new(mocks.MockRateProvider), repo, logger.NopLogger{})

		repo.On("FindAll", mock.Anything).Return(&entity.RateSnapshot{
			Base:  "USD",
			Rates: []entity.ExchangeRate{{Currency: "EUR", Rate: 0.85}},
		}, nil).Once()

		assert.NoError(t, store.Load(ctx))
		assert.True(t, store.IsEmpty())
	})

	t.Run("Load surfaces repository errors", func(t *testing.T) {
		repo := new(mocks.MockExchangeRateRepository)
		store := NewRateStore("EUR", new(mocks.MockRateProvider), repo, logger.NopLogger{})

		repo.On("FindAll", mock.Anything).Return(nil, errors.New("corrupt value")).Once()

		err := store.Load(ctx)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load exchange rate snapshot")
	})
}

// blockingProvider counts calls and waits for release before answering
type blockingProvider struct {
	calls   int32
	release chan struct{}
}

func (p *blockingProvider) FetchRates(ctx context.Context) (*entity.RateTable, error) {
	atomic.AddInt32(&p.calls, 1)
	<-p.release
	return scenarioTable(), nil
}

func TestRateStoreConcurrentRefresh(t *testing.T) {
	provider := &blockingProvider{release: make(chan struct{})}
	store := NewRateStore("EUR", provider, nil, logger.NopLogger{})

	const callers = 8
	results := make(chan bool, callers)
	for i := 0; i < callers; i++ {
		go func() { results <- store.Refresh(context.Background()) }()
	}

	// readers never see a partial table while the refresh is in flight
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if n := store.Snapshot().Len(); n != 0 && n != 4 {
					t.Errorf("observed partial snapshot with %d rates", n)
					return
				}
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(provider.release)

	for i := 0; i < callers; i++ {
		assert.True(t, <-results)
	}
	wg.Wait()

	// every caller joined the in-flight refresh
	assert.Equal(t, int32(1), atomic.LoadInt32(&provider.calls))
	assert.Equal(t, 4, store.Snapshot().Len())
}

func TestRateStoreRun(t *testing.T) {
	provider := new(mocks.MockRateProvider)
	store := NewRateStore("EUR", provider, nil, logger.NopLogger{})

	provider.On("FetchRates", mock.Anything).Return(scenarioTable(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.Run(ctx, 5*time.Millisecond, time.Second)
		close(done)
	}()

	assert.Eventually(t, func() bool { return !store.IsEmpty() }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresh loop did not stop")
	}
}
