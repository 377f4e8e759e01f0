package entity

import (
	"time"
)

// ExchangeRate is the rate of one currency against the base currency:
// 1 base unit = Rate units of Currency.
type ExchangeRate struct {
	Currency string  `json:"currency"`
	Rate     float64 `json:"rate"`
}

// RateTable is one provider response.
type RateTable struct {
	Base  string             `json:"base"`
	Date  string             `json:"date,omitempty"`
	Rates map[string]float64 `json:"rates"`
}

// RateSnapshot is the persisted form of a rate table.
type RateSnapshot struct {
	Base      string         `json:"base"`
	Date      string         `json:"date,omitempty"`
	FetchedAt time.Time      `json:"fetched_at"`
	Rates     []ExchangeRate `json:"rates"`
}
