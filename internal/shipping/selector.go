package shipping

import (
	"fmt"

	"github.com/noah-isme/pasar-checkout/internal/cart"
)

// Selector validates shipping choices against the session's option catalog
// and answers whether every store group is ready to ship.
type Selector struct {
	Catalog Catalog
}

// Select records the chosen option on the store's group, returning the new
// snapshot. A selection replaces any earlier choice for the same store; an
// option id not present in the store's catalog is rejected without touching
// the snapshot.
func (s Selector) Select(snap cart.Snapshot, storeID, optionID string) (cart.Snapshot, error) {
	if _, ok := s.Catalog.Resolve(storeID, optionID); !ok {
		return cart.Snapshot{}, fmt.Errorf("option %s for store %s: %w", optionID, storeID, ErrUnknownShippingOption)
	}
	return snap.WithShippingOption(storeID, optionID)
}

// IsComplete reports whether every group with at least one line has a
// shipping option chosen. Checkout submission stays blocked until this
// holds.
func (s Selector) IsComplete(snap cart.Snapshot) bool {
	for _, g := range snap.Groups {
		if g.LineCount() == 0 {
			continue
		}
		if !g.HasShippingSelection() {
			return false
		}
	}
	return true
}
