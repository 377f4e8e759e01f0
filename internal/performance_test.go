package internal

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/damon-houk/catalog-service/internal/application/service"
	"github.com/damon-houk/catalog-service/internal/domain/entity"
	"github.com/damon-houk/catalog-service/internal/infrastructure/cache"
	"github.com/damon-houk/catalog-service/internal/infrastructure/db"
	"github.com/damon-houk/catalog-service/internal/infrastructure/logger"
)

// rotatingProvider alternates between two rate tables that differ only by a factor
type rotatingProvider struct {
	calls int32
}

func (p *rotatingProvider) FetchRates(ctx context.Context) (*entity.RateTable, error) {
	factor := 1.0
	if atomic.AddInt32(&p.calls, 1)%2 == 0 {
		factor = 2.0
	}
	return &entity.RateTable{
		Base: "EUR",
		Rates: map[string]float64{
			"USD": 1.1834 * factor,
			"BGN": 1.90 * factor,
			"PHP": 60.345 * factor,
			"AUD": 1.5033 * factor,
		},
	}, nil
}

func TestPerformance(t *testing.T) {
	// Skip in short mode or CI
	if testing.Short() {
		t.Skip("Skipping performance test in short mode")
	}

	log := logger.NopLogger{}
	badgerDB, err := db.Open("", true, log)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer badgerDB.Close()

	products := db.NewBadgerProductRepository(badgerDB)
	categories := db.NewBadgerCategoryRepository(badgerDB)
	store := cache.NewRateStore("EUR", &rotatingProvider{}, db.NewBadgerExchangeRateRepository(badgerDB), log)
	if !store.Refresh(context.Background()) {
		t.Fatal("Initial refresh failed")
	}

	conversion := service.NewConversionService(store, log)
	productService := service.NewProductService(products, categories, conversion, log)

	numProducts := 100
	concurrency := 10

	t.Log("Preloading test data...")
	ids := preloadTestData(t, productService, numProducts)

	t.Run("Product Creation", func(t *testing.T) {
		startTime := time.Now()

		wg := sync.WaitGroup{}
		wg.Add(concurrency)

		perWorker := numProducts / concurrency

		for i := 0; i < concurrency; i++ {
			go func(workerID int) {
				defer wg.Done()

				ctx := context.Background()
				for j := 0; j < perWorker; j++ {
					_, err := productService.CreateProduct(ctx, service.CreateProductInput{
						Name:        fmt.Sprintf("Product %d-%d", workerID, j),
						Value:       1.0 + float64(rand.Intn(10000))/100.0,
						CurrencyISO: "EUR",
					})
					if err != nil {
						t.Errorf("Error creating product: %v", err)
					}
				}
			}(i)
		}

		wg.Wait()
		duration := time.Since(startTime)

		throughput := float64(numProducts) / duration.Seconds()
		t.Logf("Product creation: %d products in %v (%.2f ops/sec)",
			numProducts, duration, throughput)
	})

	// Readers convert while a writer keeps swapping snapshots. Every conversion must
	// come from one whole snapshot: USD and BGN are scaled by the same factor, so
	// their ratio is fixed no matter which snapshot a reader saw.
	t.Run("Conversion Under Refresh", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var refreshes int32
		go func() {
			for ctx.Err() == nil {
				store.Refresh(ctx)
				atomic.AddInt32(&refreshes, 1)
			}
		}()

		startTime := time.Now()
		wg := sync.WaitGroup{}
		wg.Add(concurrency)

		perWorker := numProducts / concurrency
		want := 1.90 / 1.1834

		for i := 0; i < concurrency; i++ {
			go func(workerID int) {
				defer wg.Done()

				for j := 0; j < perWorker; j++ {
					idx := (workerID*perWorker + j) % len(ids)
					product, err := productService.GetProduct(context.Background(), ids[idx], "USD")
					if err != nil {
						t.Errorf("Error retrieving product: %v", err)
						continue
					}
					if product.CurrencyISO != "USD" {
						t.Errorf("Product %s not converted", ids[idx])
					}

					got, err := conversion.Convert(1, "USD", "BGN")
					if err != nil {
						t.Errorf("Error converting: %v", err)
						continue
					}
					if diff := got - want; diff > 1e-9 || diff < -1e-9 {
						t.Errorf("Mixed snapshot observed: USD->BGN = %v, want %v", got, want)
					}
				}
			}(i)
		}

		wg.Wait()
		cancel()
		duration := time.Since(startTime)

		throughput := float64(numProducts) / duration.Seconds()
		t.Logf("Conversion under refresh: %d reads in %v (%.2f ops/sec), %d refreshes",
			numProducts, duration, throughput, atomic.LoadInt32(&refreshes))
	})
}

// preloadTestData creates test products in mixed currencies and returns their IDs
func preloadTestData(t *testing.T, productService *service.ProductService, count int) []string {
	ids := make([]string, count)
	ctx := context.Background()
	currencies := []string{"EUR", "USD", "BGN", "PHP", "AUD"}

	for i := 0; i < count; i++ {
		product, err := productService.CreateProduct(ctx, service.CreateProductInput{
			Name:        fmt.Sprintf("Preloaded product %d", i),
			Value:       1.0 + float64(i),
			CurrencyISO: currencies[i%len(currencies)],
		})
		if err != nil {
			t.Fatalf("Failed to preload test data: %v", err)
		}

		ids[i] = product.ID
	}

	return ids
}
