// Package currency converts base-currency prices for display. Stored and
// submitted amounts are never converted.
package currency

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/utafrali/storefront/internal/domain"
)

// DefaultBase is the base currency when none is configured.
const DefaultBase = "USD"

var supported = []domain.CurrencyRate{
	{Code: "USD", Symbol: "$", Label: "US Dollar"},
	{Code: "EUR", Symbol: "€", Label: "Euro"},
	{Code: "GBP", Symbol: "£", Label: "British Pound"},
	{Code: "SEK", Symbol: "kr", Label: "Swedish Krona"},
	{Code: "SOS", Symbol: "Sh", Label: "Somali Shilling"},
}

// Currencies returns the selectable display currencies. Rate is left zero;
// rates come from the exchange-rate endpoint.
func Currencies() []domain.CurrencyRate {
	out := make([]domain.CurrencyRate, len(supported))
	copy(out, supported)
	return out
}

// Lookup returns the metadata of code.
func Lookup(code string) (domain.CurrencyRate, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, c := range supported {
		if c.Code == code {
			return c, true
		}
	}
	return domain.CurrencyRate{}, false
}

// Converter applies rates relative to Base.
type Converter struct {
	Base string
}

// NewConverter returns a converter for base, or DefaultBase when base is empty.
func NewConverter(base string) Converter {
	base = strings.ToUpper(strings.TrimSpace(base))
	if base == "" {
		base = DefaultBase
	}
	return Converter{Base: base}
}

// DisplayPrice converts amount into target. The base currency is returned
// unchanged; a target without a rate is shown at a factor of one.
func (c Converter) DisplayPrice(amount decimal.Decimal, rates domain.RateTable, target string) decimal.Decimal {
	target = strings.ToUpper(strings.TrimSpace(target))
	if target == "" || target == c.Base {
		return amount
	}
	rate, ok := rates[target]
	if !ok {
		return amount
	}
	return amount.Mul(rate)
}

// Format renders amount with two decimals, prefixed by the currency symbol.
// Unknown codes are prefixed by the code itself.
func Format(amount decimal.Decimal, code string) string {
	symbol := strings.ToUpper(code) + " "
	if c, ok := Lookup(code); ok {
		symbol = c.Symbol
	}
	return symbol + amount.StringFixed(2)
}
