package domain

import "github.com/shopspring/decimal"

// CurrencyRate describes a display currency. Rate is relative to the base
// currency; orders are always submitted in the base currency.
type CurrencyRate struct {
	Code   string          `json:"code"`
	Symbol string          `json:"symbol"`
	Label  string          `json:"label"`
	Rate   decimal.Decimal `json:"rate"`
}

// RateTable maps a currency code to its rate relative to the base currency.
type RateTable map[string]decimal.Decimal
