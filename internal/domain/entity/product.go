package entity

import (
	"errors"
)

// Product is a catalog item with a price in a single currency
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Value       float64 `json:"value"`
	CurrencyISO string  `json:"currencyIso"`
	Version     int64   `json:"version"`
}

// NewProduct builds an unsaved product
func NewProduct(name string, value float64, currencyISO string) *Product {
	return &Product{
		Name:        name,
		Value:       value,
		CurrencyISO: currencyISO,
	}
}

// Validate ensures the product meets all requirements
func (p *Product) Validate() error {
	if p.Name == "" {
		return errors.New("name must not be empty")
	}

	if p.Value <= 0 {
		return errors.New("value must be a positive value")
	}

	if p.CurrencyISO == "" {
		return errors.New("currency must not be empty")
	}

	return nil
}

func (p *Product) Amount() float64 { return p.Value }

func (p *Product) CurrencyCode() string { return p.CurrencyISO }

func (p *Product) SetPrice(amount float64, currencyCode string) {
	p.Value = amount
	p.CurrencyISO = currencyCode
}

func (p *Product) GetVersion() int64 { return p.Version }

func (p *Product) SetVersion(v int64) { p.Version = v }

func (p *Product) GetID() string { return p.ID }
