package quote

import (
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/pasar-checkout/internal/cart"
	"github.com/noah-isme/pasar-checkout/internal/money"
	"github.com/noah-isme/pasar-checkout/internal/shipping"
	"github.com/noah-isme/pasar-checkout/internal/voucher"
)

// AppliedVoucher carries the code the buyer entered together with its
// resolved definition. A nil Definition with a non-empty Code means the
// lookup came back empty; the engine records that as a quote error so the
// caller sees exactly why no discount applied.
type AppliedVoucher struct {
	Code       string
	Definition *voucher.Voucher
}

// Quote is the computed, point-in-time price breakdown for a prospective
// order. It is never mutated after creation; a new selection produces a new
// quote.
type Quote struct {
	Subtotal      money.Money `json:"subtotal"`
	ShippingTotal money.Money `json:"shippingTotal"`
	Discount      money.Money `json:"discount"`
	GrandTotal    money.Money `json:"grandTotal"`
	LineCount     int         `json:"lineCount"`
	Errors        []Error     `json:"errors,omitempty"`
}

// Valid reports whether the quote carries no errors at all.
func (q Quote) Valid() bool { return len(q.Errors) == 0 }

// Submittable reports whether checkout submission may proceed. Voucher
// failures alone do not block; everything else does.
func (q Quote) Submittable() bool {
	for _, e := range q.Errors {
		if e.blocksSubmission() {
			return false
		}
	}
	return true
}

// Engine prices a checkout snapshot. It performs no I/O and holds no state:
// calling Quote twice with identical inputs yields identical quotes, and
// concurrent calls are safe.
type Engine struct{}

// Quote computes the full price breakdown for the snapshot.
//
// Per-store shipping costs come from the catalog; a group without a valid
// selection contributes zero and records a SHIPPING_NOT_SELECTED error; the
// quote is still returned so the UI can show a provisional total. The
// voucher, when present, is evaluated against the product subtotal only and
// a failure downgrades to a recorded error with zero discount. The grand
// total is clamped so it can never go negative.
func (Engine) Quote(snap cart.Snapshot, catalog shipping.Catalog, applied *AppliedVoucher, now time.Time) Quote {
	currency := snap.Currency
	subtotal := money.Zero(currency)
	shippingTotal := money.Zero(currency)
	var quoteErrors []Error

	for _, g := range snap.Groups {
		if sum, err := subtotal.Add(g.Subtotal()); err == nil {
			subtotal = sum
		} else {
			quoteErrors = append(quoteErrors, Error{
				Code:    CodeCurrencyMismatch,
				StoreID: g.StoreID,
				Message: err.Error(),
			})
		}

		if !g.HasShippingSelection() {
			quoteErrors = append(quoteErrors, Error{
				Code:    CodeShippingNotSelected,
				StoreID: g.StoreID,
				Message: fmt.Sprintf("no shipping option chosen for store %s", g.StoreID),
			})
			continue
		}
		opt, ok := catalog.Resolve(g.StoreID, g.ShippingOptionID)
		if !ok {
			// The selection references an option the catalog no longer
			// offers; treat the group as unselected.
			quoteErrors = append(quoteErrors, Error{
				Code:    CodeShippingNotSelected,
				StoreID: g.StoreID,
				Message: fmt.Sprintf("option %s is no longer offered by store %s", g.ShippingOptionID, g.StoreID),
			})
			continue
		}
		if sum, err := shippingTotal.Add(opt.Price); err == nil {
			shippingTotal = sum
		} else {
			quoteErrors = append(quoteErrors, Error{
				Code:    CodeCurrencyMismatch,
				StoreID: g.StoreID,
				Message: err.Error(),
			})
		}
	}

	discount := money.Zero(currency)
	if applied != nil && applied.Code != "" {
		if applied.Definition == nil {
			quoteErrors = append(quoteErrors, Error{
				Code:    CodeVoucherNotFound,
				Message: fmt.Sprintf("voucher %s not found", applied.Code),
			})
		} else if d, err := voucher.Evaluate(*applied.Definition, subtotal, now); err != nil {
			quoteErrors = append(quoteErrors, voucherError(err))
		} else {
			discount = d
		}
	}

	grand := subtotal
	if sum, err := grand.Add(shippingTotal); err == nil {
		grand = sum
	}
	if diff, err := grand.Sub(discount); err == nil {
		grand = diff
	}

	return Quote{
		Subtotal:      subtotal,
		ShippingTotal: shippingTotal,
		Discount:      discount,
		GrandTotal:    grand.ClampNonNegative(),
		LineCount:     snap.LineCount(),
		Errors:        quoteErrors,
	}
}

func voucherError(err error) Error {
	switch {
	case errors.Is(err, voucher.ErrBelowMinimumPurchase):
		return Error{Code: CodeBelowMinimumPurchase, Message: err.Error()}
	case errors.Is(err, voucher.ErrVoucherInactive), errors.Is(err, voucher.ErrVoucherExpired):
		return Error{Code: CodeVoucherExpired, Message: err.Error()}
	case errors.Is(err, money.ErrCurrencyMismatch):
		return Error{Code: CodeCurrencyMismatch, Message: err.Error()}
	default:
		return Error{Code: CodeVoucherInvalid, Message: err.Error()}
	}
}
