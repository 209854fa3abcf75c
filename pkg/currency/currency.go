// Package currency holds the card currencies supported by the ledger and the
// decimal precision each of them is settled in.
package currency

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Code is an ISO 4217 currency code.
type Code string

const (
	RUB Code = "RUB"
	USD Code = "USD"
	EUR Code = "EUR"
)

const (
	// DefaultCurrency is used for cards created without an explicit currency.
	DefaultCurrency = RUB
	// DefaultDecimals is the number of fractional digits card balances carry.
	DefaultDecimals = 2
)

// Meta holds currency-specific metadata.
type Meta struct {
	Decimals int32
	Symbol   string
}

var supported = map[Code]Meta{
	RUB: {Decimals: 2, Symbol: "₽"},
	USD: {Decimals: 2, Symbol: "$"},
	EUR: {Decimals: 2, Symbol: "€"},
}

// String implements fmt.Stringer.
func (c Code) String() string {
	return string(c)
}

// Parse normalizes s and reports whether it names a supported currency.
func Parse(s string) (Code, bool) {
	c := Code(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := supported[c]
	return c, ok
}

// IsSupported checks if a currency code is one of the card currencies.
func IsSupported(code string) bool {
	_, ok := supported[Code(code)]
	return ok
}

// Get returns currency metadata, falling back to DefaultDecimals for unknown codes.
func Get(code Code) Meta {
	if m, ok := supported[code]; ok {
		return m
	}
	return Meta{Decimals: DefaultDecimals, Symbol: string(code)}
}

// ListSupported returns the supported codes in a stable order.
func ListSupported() []Code {
	return []Code{RUB, USD, EUR}
}

// HasValidScale reports whether amount fits the currency precision without rounding.
func HasValidScale(amount decimal.Decimal, code Code) bool {
	return amount.Equal(amount.Truncate(Get(code).Decimals))
}

// Round rounds amount to the currency precision using banker's rounding.
func Round(amount decimal.Decimal, code Code) decimal.Decimal {
	return amount.RoundBank(Get(code).Decimals)
}
