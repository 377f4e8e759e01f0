package repository

import (
	"context"

	"github.com/damon-houk/catalog-service/internal/domain/entity"
)

// ProductRepository defines the interface for product storage
type ProductRepository interface {
	// Save stores a product, assigning an ID to new ones
	Save(ctx context.Context, product *entity.Product) error

	// FindByID retrieves a product by its unique identifier
	FindByID(ctx context.Context, id string) (*entity.Product, error)

	// FindByIDs retrieves the products that exist among ids
	FindByIDs(ctx context.Context, ids []string) ([]*entity.Product, error)

	// FindByName retrieves every product with the exact name
	FindByName(ctx context.Context, name string) ([]*entity.Product, error)

	// FindAll retrieves every product
	FindAll(ctx context.Context) ([]*entity.Product, error)

	// Exists reports whether a product with the id is stored
	Exists(ctx context.Context, id string) (bool, error)

	// Delete removes a product
	Delete(ctx context.Context, id string) error
}
