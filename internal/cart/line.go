package cart

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/pasar-checkout/internal/money"
)

var (
	// ErrQuantityInvalid is returned when a line quantity is below one.
	ErrQuantityInvalid = errors.New("cart: quantity must be at least 1")
	// ErrStockExceeded is returned when a requested quantity exceeds stock.
	ErrStockExceeded = errors.New("cart: quantity exceeds available stock")
	// ErrPriceInvalid is returned when a unit price is negative or lacks a currency.
	ErrPriceInvalid = errors.New("cart: invalid unit price")
	// ErrStoreRequired is returned when a line has no owning store.
	ErrStoreRequired = errors.New("cart: store id required")
	// ErrLineNotFound indicates the referenced line is not in the snapshot.
	ErrLineNotFound = errors.New("cart: line not found")
)

// Line is one purchasable product or variant at a given quantity. Lines are
// validated at construction so the pricing engine never sees a malformed one.
type Line struct {
	LineID    string      `json:"lineId"`
	StoreID   string      `json:"storeId"`
	Title     string      `json:"title"`
	UnitPrice money.Money `json:"unitPrice"`
	Qty       int         `json:"qty"`
	MaxQty    int         `json:"maxQty"`
}

// NewLine validates and constructs a cart line. A zero lineID gets a fresh
// identifier so snapshot edits can address the line later.
func NewLine(lineID, storeID, title string, unitPrice money.Money, qty, maxQty int) (Line, error) {
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		return Line{}, ErrStoreRequired
	}
	if qty < 1 {
		return Line{}, fmt.Errorf("qty %d: %w", qty, ErrQuantityInvalid)
	}
	if maxQty > 0 && qty > maxQty {
		return Line{}, fmt.Errorf("qty %d exceeds stock %d: %w", qty, maxQty, ErrStockExceeded)
	}
	if unitPrice.IsNegative() || unitPrice.Currency == "" {
		return Line{}, ErrPriceInvalid
	}
	if strings.TrimSpace(lineID) == "" {
		lineID = uuid.NewString()
	}
	return Line{
		LineID:    lineID,
		StoreID:   storeID,
		Title:     strings.TrimSpace(title),
		UnitPrice: unitPrice,
		Qty:       qty,
		MaxQty:    maxQty,
	}, nil
}

// Subtotal returns unit price times quantity.
func (l Line) Subtotal() money.Money {
	return l.UnitPrice.MulQty(l.Qty)
}

// withQty returns a copy of the line at the new quantity, re-running the
// construction invariants.
func (l Line) withQty(qty int) (Line, error) {
	return NewLine(l.LineID, l.StoreID, l.Title, l.UnitPrice, qty, l.MaxQty)
}
