package repository

import (
	"context"

	"github.com/damon-houk/catalog-service/internal/domain/entity"
)

// CategoryRepository defines the interface for category storage
type CategoryRepository interface {
	Save(ctx context.Context, category *entity.Category) error

	// SaveAll stores all categories in one transaction
	SaveAll(ctx context.Context, categories []*entity.Category) error

	FindByID(ctx context.Context, id string) (*entity.Category, error)

	// FindByPath retrieves the category with the exact path
	FindByPath(ctx context.Context, path string) (*entity.Category, error)

	// FindByPathPrefix retrieves the category at path and all of its descendants
	FindByPathPrefix(ctx context.Context, path string) ([]*entity.Category, error)

	// FindByProduct retrieves the categories referencing a product
	FindByProduct(ctx context.Context, productID string) ([]*entity.Category, error)

	FindAll(ctx context.Context) ([]*entity.Category, error)

	Delete(ctx context.Context, id string) error

	// DeleteAll removes all ids in one transaction
	DeleteAll(ctx context.Context, ids []string) error
}
