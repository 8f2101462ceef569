package money

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCurrencyMismatch is returned when arithmetic is attempted across
// amounts denominated in different currencies.
var ErrCurrencyMismatch = errors.New("money: currency mismatch")

// ErrInvalidAmount is returned when an amount cannot be constructed.
var ErrInvalidAmount = errors.New("money: invalid amount")

// Money represents a monetary value in minor units of a single currency.
// All arithmetic is integer based; there is no floating point anywhere in
// the pricing path.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// New constructs a Money value. The currency code is upper-cased and must be
// non-empty.
func New(amount int64, currency string) (Money, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		return Money{}, fmt.Errorf("currency code required: %w", ErrInvalidAmount)
	}
	return Money{Amount: amount, Currency: code}, nil
}

// MustNew behaves like New but panics on error. Useful in tests and static
// catalogs.
func MustNew(amount int64, currency string) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns the zero value for the given currency.
func Zero(currency string) Money {
	return Money{Amount: 0, Currency: strings.ToUpper(strings.TrimSpace(currency))}
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m.Amount < 0 }

// SameCurrency reports whether both values share a currency code.
func (m Money) SameCurrency(other Money) bool {
	return m.Currency == other.Currency
}

// Add returns m + other, failing when the currencies differ.
func (m Money) Add(other Money) (Money, error) {
	if !m.SameCurrency(other) {
		return Money{}, fmt.Errorf("add %s to %s: %w", other.Currency, m.Currency, ErrCurrencyMismatch)
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Sub returns m - other, failing when the currencies differ.
func (m Money) Sub(other Money) (Money, error) {
	if !m.SameCurrency(other) {
		return Money{}, fmt.Errorf("subtract %s from %s: %w", other.Currency, m.Currency, ErrCurrencyMismatch)
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

// MulQty returns the amount multiplied by an integer quantity. The product
// is exact; there is nothing to round.
func (m Money) MulQty(qty int) Money {
	return Money{Amount: m.Amount * int64(qty), Currency: m.Currency}
}

// PercentOf returns pct percent of the amount with the remainder floored.
// Rounding down is deliberate: discounts computed from a percentage must
// never overshoot the advertised rate.
func (m Money) PercentOf(pct int) Money {
	if pct <= 0 {
		return Money{Amount: 0, Currency: m.Currency}
	}
	if pct > 100 {
		pct = 100
	}
	return Money{Amount: m.Amount * int64(pct) / 100, Currency: m.Currency}
}

// ClampNonNegative returns max(m, 0) in the same currency.
func (m Money) ClampNonNegative() Money {
	if m.Amount < 0 {
		return Money{Amount: 0, Currency: m.Currency}
	}
	return m
}

// Min returns the smaller of two amounts, failing when the currencies differ.
func Min(a, b Money) (Money, error) {
	if !a.SameCurrency(b) {
		return Money{}, fmt.Errorf("compare %s with %s: %w", a.Currency, b.Currency, ErrCurrencyMismatch)
	}
	if b.Amount < a.Amount {
		return b, nil
	}
	return a, nil
}

// LessThan reports whether m is strictly below other, failing when the
// currencies differ.
func (m Money) LessThan(other Money) (bool, error) {
	if !m.SameCurrency(other) {
		return false, fmt.Errorf("compare %s with %s: %w", m.Currency, other.Currency, ErrCurrencyMismatch)
	}
	return m.Amount < other.Amount, nil
}

// String renders the raw minor-unit amount with its currency code. Display
// formatting belongs to the presentation layer.
func (m Money) String() string {
	return fmt.Sprintf("%d %s", m.Amount, m.Currency)
}
