package entity

// MonetaryEntity is any catalog object carrying an amount in a currency.
// Amount and currency are only ever changed together through SetPrice.
type MonetaryEntity interface {
	Amount() float64
	CurrencyCode() string
	SetPrice(amount float64, currencyCode string)
}
