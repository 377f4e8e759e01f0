package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/damon-houk/catalog-service/internal/domain/apperrors"
	"github.com/damon-houk/catalog-service/internal/domain/entity"
	"github.com/damon-houk/catalog-service/internal/domain/repository"
	"github.com/damon-houk/catalog-service/internal/infrastructure/logger"
	"github.com/damon-houk/catalog-service/internal/infrastructure/middleware"
	"github.com/google/uuid"
)

// CreateProductInput carries the fields of a new product
type CreateProductInput struct {
	Name        string
	Value       float64
	CurrencyISO string
	CategoryID  string
}

// ProductUpdate holds the optional fields of a product update; nil means unchanged
type ProductUpdate struct {
	Name        *string
	Value       *float64
	CurrencyISO *string
}

// ProductService handles business logic for products
type ProductService struct {
	products   repository.ProductRepository
	categories repository.CategoryRepository
	conversion *ConversionService
	logger     logger.Logger
}

// NewProductService creates a new product service
func NewProductService(products repository.ProductRepository, categories repository.CategoryRepository, conversion *ConversionService, log logger.Logger) *ProductService {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &ProductService{
		products:   products,
		categories: categories,
		conversion: conversion,
		logger:     log,
	}
}

// CreateProduct validates and stores a new product, optionally attaching it to a category
func (s *ProductService) CreateProduct(ctx context.Context, in CreateProductInput) (*entity.Product, error) {
	currency := strings.ToUpper(strings.TrimSpace(in.CurrencyISO))
	if currency == "" {
		currency = s.conversion.BaseCurrency()
	}

	if !s.conversion.IsKnown(currency) {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownCurrency, currency)
	}

	product := entity.NewProduct(in.Name, in.Value, currency)
	product.ID = uuid.New().String()

	if err := product.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrValidation, err.Error())
	}

	if err := s.products.Save(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to store product: %w", err)
	}

	if in.CategoryID != "" {
		// the product is already stored
		if err := s.attach(ctx, product.ID, in.CategoryID); err != nil {
			s.logger.Warn("Could not attach new product to category", map[string]interface{}{
				"request_id":  middleware.GetRequestID(ctx),
				"product_id":  product.ID,
				"category_id": in.CategoryID,
				"error":       err.Error(),
			})
		}
	}

	s.logger.Info("Product created", map[string]interface{}{
		"request_id": middleware.GetRequestID(ctx),
		"id":         product.ID,
		"currency":   product.CurrencyISO,
	})

	return product, nil
}

// attach adds the product to a category; an unknown category is ignored
func (s *ProductService) attach(ctx context.Context, productID, categoryID string) error {
	category, err := s.categories.FindByID(ctx, categoryID)
	if errors.Is(err, apperrors.ErrNotFound) {
		s.logger.Warn("Category for new product does not exist", map[string]interface{}{
			"request_id":  middleware.GetRequestID(ctx),
			"product_id":  productID,
			"category_id": categoryID,
		})
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to retrieve category: %w", err)
	}

	category.AddProducts(productID)
	if err := s.categories.Save(ctx, category); err != nil {
		return fmt.Errorf("failed to store category: %w", err)
	}
	return nil
}

// GetProduct retrieves a product, expressed in currency when one is given
func (s *ProductService) GetProduct(ctx context.Context, id, currency string) (*entity.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if currency != "" {
		if err := s.conversion.ApplyCurrency(ctx, currency, product); err != nil {
			return nil, err
		}
	}
	return product, nil
}

// FindProductsByName retrieves products with the exact name; none found is ErrNotFound
func (s *ProductService) FindProductsByName(ctx context.Context, name, currency string) ([]*entity.Product, error) {
	products, err := s.products.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("%w: no product named %q", apperrors.ErrNotFound, name)
	}
	return s.adapt(ctx, currency, products)
}

// ListProducts retrieves every product
func (s *ProductService) ListProducts(ctx context.Context, currency string) ([]*entity.Product, error) {
	products, err := s.products.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return s.adapt(ctx, currency, products)
}

func (s *ProductService) adapt(ctx context.Context, currency string, products []*entity.Product) ([]*entity.Product, error) {
	if currency == "" {
		return products, nil
	}
	if err := s.conversion.ApplyCurrencyAll(ctx, currency, products); err != nil {
		return nil, err
	}
	return products, nil
}

// UpdateProduct applies the set fields of upd. A new currency alone converts the stored
// value strictly; a new currency together with a value takes the value as given.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, upd ProductUpdate) (*entity.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		if strings.TrimSpace(*upd.Name) == "" {
			return nil, fmt.Errorf("%w: could not update field name", apperrors.ErrValidation)
		}
		product.Name = *upd.Name
	}

	if upd.Value != nil {
		if *upd.Value <= 0 {
			return nil, fmt.Errorf("%w: could not update field value", apperrors.ErrValidation)
		}
		product.Value = *upd.Value
	}

	if upd.CurrencyISO != nil {
		target := strings.ToUpper(strings.TrimSpace(*upd.CurrencyISO))
		switch {
		case upd.Value != nil:
			if !s.conversion.IsKnown(target) {
				return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownCurrency, target)
			}
			product.SetPrice(product.Value, target)
		default:
			converted, err := s.conversion.Convert(product.Value, product.CurrencyISO, target)
			if err != nil {
				return nil, fmt.Errorf("could not update field currencyIso: %w", err)
			}
			if math.IsNaN(converted) || math.IsInf(converted, 0) {
				return nil, fmt.Errorf("could not update field currencyIso: %w", ErrNonFiniteAmount)
			}
			product.SetPrice(converted, target)
		}
	}

	if err := s.products.Save(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to store product: %w", err)
	}

	return product, nil
}

// DeleteProduct removes a product and detaches it from every category
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	exists, err := s.products.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: product %s", apperrors.ErrNotFound, id)
	}

	if err := s.products.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	categories, err := s.categories.FindByProduct(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to retrieve categories of product: %w", err)
	}
	if len(categories) == 0 {
		return nil
	}

	for _, c := range categories {
		c.RemoveProducts(id)
	}
	if err := s.categories.SaveAll(ctx, categories); err != nil {
		return fmt.Errorf("failed to detach product from categories: %w", err)
	}
	return nil
}
