package service

import (
	"context"

	"github.com/damon-houk/catalog-service/internal/domain/entity"
)

// RateProvider defines the interface for the external exchange rate API
type RateProvider interface {
	// FetchRates retrieves the current table of rates against the base currency
	FetchRates(ctx context.Context) (*entity.RateTable, error)
}
