// Package repository internal/domain/repository/exchange_rate_repository.go
package repository

import (
	"context"

	"github.com/damon-houk/catalog-service/internal/domain/entity"
)

// ExchangeRateRepository persists the last rate snapshot
type ExchangeRateRepository interface {
	// ReplaceAll clears the stored snapshot and stores the given one in a single transaction
	ReplaceAll(ctx context.Context, snapshot *entity.RateSnapshot) error

	// FindAll returns the stored snapshot, or apperrors.ErrNotFound when none was stored
	FindAll(ctx context.Context) (*entity.RateSnapshot, error)
}
