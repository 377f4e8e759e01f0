package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/damon-houk/catalog-service/internal/domain/apperrors"
	"github.com/damon-houk/catalog-service/internal/domain/entity"
	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
)

const productPrefix = "product:"

// BadgerProductRepository implements the product repository interface using BadgerDB
type BadgerProductRepository struct {
	db *badger.DB
}

// NewBadgerProductRepository creates a new BadgerDB product repository
func NewBadgerProductRepository(db *badger.DB) *BadgerProductRepository {
	return &BadgerProductRepository{db: db}
}

func productKey(id string) []byte {
	return []byte(productPrefix + id)
}

// Save stores a product
func (r *BadgerProductRepository) Save(ctx context.Context, product *entity.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}

	err := update(r.db, []versioned{product}, func(txn *badger.Txn) error {
		return putVersioned(txn, productKey(product.ID), product)
	})
	if err != nil {
		return fmt.Errorf("failed to store product: %w", err)
	}
	return nil
}

// FindByID retrieves a product by its unique identifier
func (r *BadgerProductRepository) FindByID(ctx context.Context, id string) (*entity.Product, error) {
	var product entity.Product

	err := r.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, productKey(id), &product)
	})
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("%w: product %s", apperrors.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve product: %w", err)
	}

	return &product, nil
}

// FindByIDs retrieves the products that exist among ids, in the order of ids
func (r *BadgerProductRepository) FindByIDs(ctx context.Context, ids []string) ([]*entity.Product, error) {
	products := make([]*entity.Product, 0, len(ids))

	err := r.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			var product entity.Product
			err := getJSON(txn, productKey(id), &product)
			if errors.Is(err, apperrors.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			products = append(products, &product)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve products: %w", err)
	}

	return products, nil
}

// FindByName retrieves every product with the exact name
func (r *BadgerProductRepository) FindByName(ctx context.Context, name string) ([]*entity.Product, error) {
	return r.filter(func(p *entity.Product) bool { return p.Name == name })
}

// FindAll retrieves every product
func (r *BadgerProductRepository) FindAll(ctx context.Context) ([]*entity.Product, error) {
	return r.filter(func(*entity.Product) bool { return true })
}

func (r *BadgerProductRepository) filter(keep func(*entity.Product) bool) ([]*entity.Product, error) {
	products := []*entity.Product{}

	err := r.db.View(func(txn *badger.Txn) error {
		return scan(txn, []byte(productPrefix), func(decode func(interface{}) error) error {
			var product entity.Product
			if err := decode(&product); err != nil {
				return err
			}
			if keep(&product) {
				products = append(products, &product)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve products: %w", err)
	}

	return products, nil
}

// Exists reports whether a product with the id is stored
func (r *BadgerProductRepository) Exists(ctx context.Context, id string) (bool, error) {
	err := r.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(productKey(id))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check product: %w", err)
	}
	return true, nil
}

// Delete removes a product
func (r *BadgerProductRepository) Delete(ctx context.Context, id string) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(productKey(id)); err != nil {
			return err
		}
		return txn.Delete(productKey(id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: product %s", apperrors.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}
