package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/damon-houk/catalog-service/internal/domain/apperrors"
	"github.com/damon-houk/catalog-service/internal/domain/entity"
	"github.com/damon-houk/catalog-service/internal/domain/repository"
	"github.com/damon-houk/catalog-service/internal/infrastructure/logger"
	"github.com/damon-houk/catalog-service/internal/infrastructure/middleware"
	"github.com/google/uuid"
)

// ProductAction is the change applied to a category's product set
type ProductAction string

const (
	ActionAdd    ProductAction = "add"
	ActionRemove ProductAction = "remove"
)

// CategoryService handles the category hierarchy
type CategoryService struct {
	categories repository.CategoryRepository
	products   repository.ProductRepository
	conversion *ConversionService
	logger     logger.Logger
}

// NewCategoryService creates a new category service
func NewCategoryService(categories repository.CategoryRepository, products repository.ProductRepository, conversion *ConversionService, log logger.Logger) *CategoryService {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &CategoryService{
		categories: categories,
		products:   products,
		conversion: conversion,
		logger:     log,
	}
}

// ValidatePath checks that path is made of non-empty segments
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: category path must not be empty", apperrors.ErrValidation)
	}
	for _, segment := range strings.Split(path, entity.PathSeparator) {
		if strings.TrimSpace(segment) == "" {
			return fmt.Errorf("%w: category path %q has an empty segment", apperrors.ErrValidation, path)
		}
	}
	return nil
}

// CreateCategory stores a category at path; an existing path is ErrDuplicate
func (s *CategoryService) CreateCategory(ctx context.Context, path string, products []string) (*entity.Category, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}

	existing, err := s.findByPath(ctx, path)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, fmt.Errorf("%w: category %s", apperrors.ErrDuplicate, path)
	}

	category := entity.NewCategory(path)
	category.ID = uuid.New().String()
	category.AddProducts(products...)

	if err := s.categories.Save(ctx, category); err != nil {
		return nil, fmt.Errorf("failed to store category: %w", err)
	}

	s.logger.Info("Category created", map[string]interface{}{
		"request_id": middleware.GetRequestID(ctx),
		"id":         category.ID,
		"path":       category.CategoryPath,
		"products":   len(category.Products),
	})
	return category, nil
}

// findByPath returns nil without error when no category has the path
func (s *CategoryService) findByPath(ctx context.Context, path string) (*entity.Category, error) {
	category, err := s.categories.FindByPath(ctx, path)
	if err == nil {
		return category, nil
	}
	if isNotFound(err) {
		return nil, nil
	}
	return nil, err
}

// ListCategories returns every category
func (s *CategoryService) ListCategories(ctx context.Context) ([]*entity.Category, error) {
	return s.categories.FindAll(ctx)
}

// GetCategoryTree returns the category at path and its descendants
func (s *CategoryService) GetCategoryTree(ctx context.Context, path string) ([]*entity.Category, error) {
	tree, err := s.categories.FindByPathPrefix(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(tree) == 0 {
		return nil, fmt.Errorf("%w: category %s", apperrors.ErrNotFound, path)
	}
	return tree, nil
}

// GetCategoryProducts returns the products of the category at path, in currency when given
func (s *CategoryService) GetCategoryProducts(ctx context.Context, path, currency string) ([]*entity.Product, error) {
	category, err := s.categories.FindByPath(ctx, path)
	if err != nil {
		return nil, err
	}

	products, err := s.products.FindByIDs(ctx, category.Products)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("%w: category %s has no products", apperrors.ErrNotFound, path)
	}

	if currency != "" {
		if err := s.conversion.ApplyCurrencyAll(ctx, currency, products); err != nil {
			return nil, err
		}
	}
	return products, nil
}

// RenameCategory renames the category at path and rewrites the paths of its descendants
func (s *CategoryService) RenameCategory(ctx context.Context, path, name string) (*entity.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(name, entity.PathSeparator) {
		return nil, fmt.Errorf("%w: invalid category name %q", apperrors.ErrValidation, name)
	}

	category, err := s.categories.FindByPath(ctx, path)
	if err != nil {
		return nil, err
	}

	newPath := name
	if i := strings.LastIndex(path, entity.PathSeparator); i >= 0 {
		newPath = path[:i+1] + name
	}
	if newPath == path {
		return category, nil
	}

	clash, err := s.findByPath(ctx, newPath)
	if err != nil {
		return nil, err
	}
	if clash != nil {
		return nil, fmt.Errorf("%w: category %s", apperrors.ErrDuplicate, newPath)
	}

	tree, err := s.categories.FindByPathPrefix(ctx, path)
	if err != nil {
		return nil, err
	}

	var renamed *entity.Category
	for _, c := range tree {
		c.Rebase(path, newPath)
		if c.ID == category.ID {
			renamed = c
		}
	}

	if err := s.categories.SaveAll(ctx, tree); err != nil {
		return nil, fmt.Errorf("failed to store renamed categories: %w", err)
	}

	s.logger.Info("Category renamed", map[string]interface{}{
		"request_id": middleware.GetRequestID(ctx),
		"from":       path,
		"to":         newPath,
		"rewritten":  len(tree),
	})

	if renamed == nil {
		// the prefix query raced with a delete
		return nil, fmt.Errorf("%w: category %s", apperrors.ErrNotFound, path)
	}
	return renamed, nil
}

// UpdateCategoryProducts adds or removes product ids
func (s *CategoryService) UpdateCategoryProducts(ctx context.Context, path string, action ProductAction, ids []string) (*entity.Category, error) {
	if action != ActionAdd && action != ActionRemove {
		return nil, fmt.Errorf("%w: unknown action %q", apperrors.ErrValidation, action)
	}

	category, err := s.categories.FindByPath(ctx, path)
	if err != nil {
		return nil, err
	}

	if action == ActionAdd {
		category.AddProducts(ids...)
	} else {
		category.RemoveProducts(ids...)
	}

	if err := s.categories.Save(ctx, category); err != nil {
		return nil, fmt.Errorf("failed to store category: %w", err)
	}
	return category, nil
}

// DeleteCategory removes the category at path together with its descendants
func (s *CategoryService) DeleteCategory(ctx context.Context, path string) (*entity.Category, error) {
	category, err := s.categories.FindByPath(ctx, path)
	if err != nil {
		return nil, err
	}

	tree, err := s.categories.FindByPathPrefix(ctx, path)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(tree))
	for _, c := range tree {
		ids = append(ids, c.ID)
	}

	if err := s.categories.DeleteAll(ctx, ids); err != nil {
		return nil, fmt.Errorf("failed to delete categories: %w", err)
	}

	s.logger.Info("Category deleted", map[string]interface{}{
		"request_id": middleware.GetRequestID(ctx),
		"path":       path,
		"deleted":    len(ids),
	})
	return category, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, apperrors.ErrNotFound)
}
