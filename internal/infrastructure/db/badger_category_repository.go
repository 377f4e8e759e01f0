package db

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/damon-houk/catalog-service/internal/domain/apperrors"
	"github.com/damon-houk/catalog-service/internal/domain/entity"
	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
)

const (
	categoryPrefix     = "category:"
	categoryPathPrefix = "category-path:"
)

// BadgerCategoryRepository implements the category repository interface using BadgerDB.
// Besides the documents it keeps a path -> id index so a path is held by one category only.
type BadgerCategoryRepository struct {
	db *badger.DB
}

// NewBadgerCategoryRepository creates a new BadgerDB category repository
func NewBadgerCategoryRepository(db *badger.DB) *BadgerCategoryRepository {
	return &BadgerCategoryRepository{db: db}
}

func categoryKey(id string) []byte {
	return []byte(categoryPrefix + id)
}

func categoryPathKey(path string) []byte {
	return []byte(categoryPathPrefix + path)
}

// Save stores a category
func (r *BadgerCategoryRepository) Save(ctx context.Context, category *entity.Category) error {
	return r.SaveAll(ctx, []*entity.Category{category})
}

// SaveAll stores all categories in one transaction
func (r *BadgerCategoryRepository) SaveAll(ctx context.Context, categories []*entity.Category) error {
	docs := make([]versioned, 0, len(categories))
	for _, c := range categories {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		docs = append(docs, c)
	}

	err := update(r.db, docs, func(txn *badger.Txn) error {
		// release every old path first so a batch may swap paths between its members
		for _, c := range categories {
			var stored entity.Category
			err := getJSON(txn, categoryKey(c.ID), &stored)
			if errors.Is(err, apperrors.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if stored.CategoryPath != c.CategoryPath {
				if err := txn.Delete(categoryPathKey(stored.CategoryPath)); err != nil {
					return err
				}
			}
		}

		for _, c := range categories {
			if err := claimPath(txn, c); err != nil {
				return err
			}
			if err := putVersioned(txn, categoryKey(c.ID), c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store categories: %w", err)
	}
	return nil
}

// claimPath points the path index at c, failing if another category holds the path
func claimPath(txn *badger.Txn, c *entity.Category) error {
	item, err := txn.Get(categoryPathKey(c.CategoryPath))
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
	case err != nil:
		return err
	default:
		owner, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if string(owner) != c.ID {
			return fmt.Errorf("%w: category %s", apperrors.ErrDuplicate, c.CategoryPath)
		}
	}
	return txn.Set(categoryPathKey(c.CategoryPath), []byte(c.ID))
}

// FindByID retrieves a category by its unique identifier
func (r *BadgerCategoryRepository) FindByID(ctx context.Context, id string) (*entity.Category, error) {
	var category entity.Category

	err := r.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, categoryKey(id), &category)
	})
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("%w: category %s", apperrors.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve category: %w", err)
	}

	return &category, nil
}

// FindByPath retrieves the category with the exact path
func (r *BadgerCategoryRepository) FindByPath(ctx context.Context, path string) (*entity.Category, error) {
	var category entity.Category

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(categoryPathKey(path))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return apperrors.ErrNotFound
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return getJSON(txn, categoryKey(string(id)), &category)
	})
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("%w: category %s", apperrors.ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve category: %w", err)
	}

	return &category, nil
}

// FindByPathPrefix retrieves the category at path and all of its descendants
func (r *BadgerCategoryRepository) FindByPathPrefix(ctx context.Context, path string) ([]*entity.Category, error) {
	return r.filter(func(c *entity.Category) bool { return c.IsWithin(path) })
}

// FindByProduct retrieves the categories referencing a product
func (r *BadgerCategoryRepository) FindByProduct(ctx context.Context, productID string) ([]*entity.Category, error) {
	return r.filter(func(c *entity.Category) bool { return c.HasProduct(productID) })
}

// FindAll retrieves every category, ordered by path
func (r *BadgerCategoryRepository) FindAll(ctx context.Context) ([]*entity.Category, error) {
	return r.filter(func(*entity.Category) bool { return true })
}

func (r *BadgerCategoryRepository) filter(keep func(*entity.Category) bool) ([]*entity.Category, error) {
	categories := []*entity.Category{}

	err := r.db.View(func(txn *badger.Txn) error {
		return scan(txn, []byte(categoryPrefix), func(decode func(interface{}) error) error {
			var category entity.Category
			if err := decode(&category); err != nil {
				return err
			}
			if keep(&category) {
				categories = append(categories, &category)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve categories: %w", err)
	}

	sort.Slice(categories, func(i, j int) bool {
		return categories[i].CategoryPath < categories[j].CategoryPath
	})
	return categories, nil
}

// Delete removes a category
func (r *BadgerCategoryRepository) Delete(ctx context.Context, id string) error {
	return r.DeleteAll(ctx, []string{id})
}

// DeleteAll removes all ids in one transaction; any missing id aborts the whole delete
func (r *BadgerCategoryRepository) DeleteAll(ctx context.Context, ids []string) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		for _, id := range ids {
			var stored entity.Category
			if err := getJSON(txn, categoryKey(id), &stored); err != nil {
				if errors.Is(err, apperrors.ErrNotFound) {
					return fmt.Errorf("%w: category %s", apperrors.ErrNotFound, id)
				}
				return err
			}
			if err := txn.Delete(categoryPathKey(stored.CategoryPath)); err != nil {
				return err
			}
			if err := txn.Delete(categoryKey(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete categories: %w", err)
	}
	return nil
}
