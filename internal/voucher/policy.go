package voucher

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/pasar-checkout/internal/money"
)

var (
	// ErrBelowMinimumPurchase is returned when the order subtotal is under
	// the voucher's threshold.
	ErrBelowMinimumPurchase = errors.New("voucher: below minimum purchase")
	// ErrVoucherInactive is returned when the voucher is used before its
	// validity window opens.
	ErrVoucherInactive = errors.New("voucher: not yet active")
	// ErrVoucherExpired is returned when the voucher is used after its
	// validity window closes.
	ErrVoucherExpired = errors.New("voucher: expired")
	// ErrInvalidRule is returned when the voucher definition itself is
	// malformed.
	ErrInvalidRule = errors.New("voucher: invalid rule")
)

// Kind discriminates how a voucher's discount is computed.
type Kind string

const (
	// KindFixed subtracts a flat amount.
	KindFixed Kind = "fixed"
	// KindPercent subtracts a percentage of the product subtotal.
	KindPercent Kind = "percent"
)

// Voucher is one discount rule as published by the voucher catalog. The
// definition is data only; Evaluate applies it to a subtotal.
type Voucher struct {
	Code        string       `json:"code"`
	Kind        Kind         `json:"kind"`
	Value       money.Money  `json:"value,omitempty"`
	Percent     int          `json:"percent,omitempty"`
	MinPurchase money.Money  `json:"minPurchase"`
	MaxDiscount *money.Money `json:"maxDiscount,omitempty"`
	ValidFrom   *time.Time   `json:"validFrom,omitempty"`
	ValidTo     *time.Time   `json:"validTo,omitempty"`
}

// Evaluate applies the voucher to an order subtotal at the given instant and
// returns the discount amount. Whatever the kind computes is capped by
// MaxDiscount when set, then by the subtotal. The minimum purchase threshold
// is checked against the product subtotal alone; shipping does not count
// toward it.
func Evaluate(v Voucher, subtotal money.Money, now time.Time) (money.Money, error) {
	if err := validateRule(v); err != nil {
		return money.Money{}, err
	}
	if v.ValidFrom != nil && now.Before(*v.ValidFrom) {
		return money.Money{}, fmt.Errorf("voucher %s active from %s: %w", v.Code, v.ValidFrom.Format(time.RFC3339), ErrVoucherInactive)
	}
	if v.ValidTo != nil && now.After(*v.ValidTo) {
		return money.Money{}, fmt.Errorf("voucher %s valid until %s: %w", v.Code, v.ValidTo.Format(time.RFC3339), ErrVoucherExpired)
	}
	if v.MinPurchase.Amount > 0 {
		below, err := subtotal.LessThan(v.MinPurchase)
		if err != nil {
			return money.Money{}, err
		}
		if below {
			return money.Money{}, fmt.Errorf("subtotal %s under threshold %s: %w", subtotal, v.MinPurchase, ErrBelowMinimumPurchase)
		}
	}

	var discount money.Money
	switch v.Kind {
	case KindPercent:
		discount = subtotal.PercentOf(v.Percent)
	case KindFixed:
		if !v.Value.SameCurrency(subtotal) {
			return money.Money{}, fmt.Errorf("voucher %s is %s, order is %s: %w",
				v.Code, v.Value.Currency, subtotal.Currency, money.ErrCurrencyMismatch)
		}
		discount = v.Value
	}

	// MaxDiscount caps either kind.
	if v.MaxDiscount != nil {
		capped, err := money.Min(discount, *v.MaxDiscount)
		if err != nil {
			return money.Money{}, err
		}
		discount = capped
	}

	// Discounts never push a total negative; cap at the subtotal.
	capped, err := money.Min(discount, subtotal)
	if err != nil {
		return money.Money{}, err
	}
	return capped, nil
}

func validateRule(v Voucher) error {
	if strings.TrimSpace(v.Code) == "" {
		return fmt.Errorf("code required: %w", ErrInvalidRule)
	}
	switch v.Kind {
	case KindPercent:
		if v.Percent < 1 || v.Percent > 100 {
			return fmt.Errorf("percent %d out of range: %w", v.Percent, ErrInvalidRule)
		}
	case KindFixed:
		if v.Value.IsNegative() || v.Value.Currency == "" {
			return fmt.Errorf("fixed value %s: %w", v.Value, ErrInvalidRule)
		}
	default:
		return fmt.Errorf("kind %q: %w", v.Kind, ErrInvalidRule)
	}
	return nil
}
