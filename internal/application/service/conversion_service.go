// Package service internal/application/service/conversion_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/damon-houk/catalog-service/internal/domain/apperrors"
	"github.com/damon-houk/catalog-service/internal/domain/entity"
	"github.com/damon-houk/catalog-service/internal/infrastructure/logger"
	"github.com/damon-houk/catalog-service/internal/infrastructure/middleware"
)

// RateSource is the read side of the rate store
type RateSource interface {
	BaseCurrency() string
	Lookup(code string) (float64, bool)
}

// ConversionService converts amounts between currencies through the base currency.
// It holds no state of its own; every call reads the current snapshot of its RateSource.
type ConversionService struct {
	rates  RateSource
	logger logger.Logger
}

// NewConversionService creates a new conversion service
func NewConversionService(rates RateSource, log logger.Logger) *ConversionService {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &ConversionService{
		rates:  rates,
		logger: log,
	}
}

// BaseCurrency returns the currency all rates are expressed against
func (s *ConversionService) BaseCurrency() string {
	return s.rates.BaseCurrency()
}

// IsKnown reports whether code is the base currency or has a rate
func (s *ConversionService) IsKnown(code string) bool {
	code = normalizeCode(code)
	if strings.EqualFold(code, s.rates.BaseCurrency()) {
		return true
	}
	_, ok := s.rates.Lookup(code)
	return ok
}

// ToBase converts amount expressed in from into the base currency
func (s *ConversionService) ToBase(amount float64, from string) (float64, error) {
	from = normalizeCode(from)
	if strings.EqualFold(from, s.rates.BaseCurrency()) {
		return amount, nil
	}

	rate, ok := s.rates.Lookup(from)
	if !ok {
		return 0, apperrors.NewRateNotFound(from)
	}
	return amount / rate, nil
}

// FromBase converts amount expressed in the base currency into to
func (s *ConversionService) FromBase(amount float64, to string) (float64, error) {
	to = normalizeCode(to)
	if strings.EqualFold(to, s.rates.BaseCurrency()) {
		return amount, nil
	}

	rate, ok := s.rates.Lookup(to)
	if !ok {
		return 0, apperrors.NewRateNotFound(to)
	}
	return amount * rate, nil
}

// Convert converts amount from one currency into another. Equal codes (ignoring case)
// return the amount untouched without any lookup; everything else goes through the base currency.
func (s *ConversionService) Convert(amount float64, from, to string) (float64, error) {
	from, to = normalizeCode(from), normalizeCode(to)
	if from == to {
		return amount, nil
	}

	inBase, err := s.ToBase(amount, from)
	if err != nil {
		return 0, err
	}
	return s.FromBase(inBase, to)
}

// ErrNonFiniteAmount is returned when a conversion overflows
var ErrNonFiniteAmount = errors.New("conversion produced a non-finite amount")

// ApplyCurrency re-expresses e in target, mutating amount and currency together.
// Missing rates and overflowing results are logged and absorbed, leaving e untouched,
// so callers adapting a list for display can carry on. Only a nil entity is an error.
func (s *ConversionService) ApplyCurrency(ctx context.Context, target string, e entity.MonetaryEntity) error {
	if e == nil {
		return fmt.Errorf("apply currency %s: nil entity", target)
	}

	from, target := normalizeCode(e.CurrencyCode()), normalizeCode(target)
	if from == target {
		return nil
	}

	converted, err := s.Convert(e.Amount(), from, target)
	if errors.Is(err, apperrors.ErrRateNotFound) {
		s.logger.Warn("Could not convert currency, keeping original", map[string]interface{}{
			"request_id": middleware.GetRequestID(ctx),
			"from":       from,
			"to":         target,
			"error":      err.Error(),
		})
		return nil
	}
	if err != nil {
		return fmt.Errorf("apply currency %s: %w", target, err)
	}

	if math.IsNaN(converted) || math.IsInf(converted, 0) {
		s.logger.Error("Currency conversion overflowed", map[string]interface{}{
			"request_id": middleware.GetRequestID(ctx),
			"from":       from,
			"to":         target,
			"amount":     e.Amount(),
		})
		return nil
	}

	e.SetPrice(converted, target)
	return nil
}

// ApplyCurrencyAll applies target to every product. A product that cannot be
// converted keeps its stored price and does not stop the others.
func (s *ConversionService) ApplyCurrencyAll(ctx context.Context, target string, products []*entity.Product) error {
	for _, p := range products {
		if err := s.ApplyCurrency(ctx, target, p); err != nil {
			return err
		}
	}
	return nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
