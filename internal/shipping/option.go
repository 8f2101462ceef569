package shipping

import (
	"errors"

	"github.com/noah-isme/pasar-checkout/internal/money"
)

// ErrUnknownShippingOption is returned when a selection references an option
// that is not in the catalog supplied for the store.
var ErrUnknownShippingOption = errors.New("shipping: unknown option for store")

// Option is one courier service tier offered to a store group. Catalog
// entries are immutable; they are supplied by the rate source per store and
// destination.
type Option struct {
	ID      string      `json:"id"`
	StoreID string      `json:"storeId"`
	Courier string      `json:"courier"`
	Service string      `json:"service"`
	Price   money.Money `json:"price"`
	ETA     string      `json:"eta"`
}

// Catalog holds the shipping options available to each store group for one
// checkout session, preserving the order the rate source returned.
type Catalog struct {
	byStore map[string][]Option
}

// NewCatalog builds a catalog from options grouped per owning store.
func NewCatalog(options []Option) Catalog {
	byStore := make(map[string][]Option)
	for _, opt := range options {
		if opt.StoreID == "" || opt.ID == "" {
			continue
		}
		byStore[opt.StoreID] = append(byStore[opt.StoreID], opt)
	}
	return Catalog{byStore: byStore}
}

// OptionsFor returns the ordered options available to the store.
func (c Catalog) OptionsFor(storeID string) []Option {
	return c.byStore[storeID]
}

// Resolve looks up one option by store and id.
func (c Catalog) Resolve(storeID, optionID string) (Option, bool) {
	for _, opt := range c.byStore[storeID] {
		if opt.ID == optionID {
			return opt, true
		}
	}
	return Option{}, false
}

// Stores returns the store ids the catalog covers.
func (c Catalog) Stores() []string {
	ids := make([]string, 0, len(c.byStore))
	for id := range c.byStore {
		ids = append(ids, id)
	}
	return ids
}
