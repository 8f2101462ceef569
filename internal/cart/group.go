package cart

import "github.com/noah-isme/pasar-checkout/internal/money"

// Group is the subset of cart lines owned by one store. Each group is priced
// and shipped independently; the shipping selection is a single slot that a
// later choice replaces.
type Group struct {
	StoreID          string `json:"storeId"`
	StoreName        string `json:"storeName,omitempty"`
	Lines            []Line `json:"lines"`
	ShippingOptionID string `json:"shippingOptionId,omitempty"`
}

// Subtotal sums unit price times quantity over the group's lines. Pure; the
// group is not mutated.
func (g Group) Subtotal() money.Money {
	if len(g.Lines) == 0 {
		return money.Money{}
	}
	total := money.Zero(g.Lines[0].UnitPrice.Currency)
	for _, l := range g.Lines {
		sum, err := total.Add(l.Subtotal())
		if err != nil {
			// Mixed currencies cannot enter a snapshot; see NewSnapshot.
			continue
		}
		total = sum
	}
	return total
}

// LineCount returns the number of lines in the group.
func (g Group) LineCount() int { return len(g.Lines) }

// HasShippingSelection reports whether a shipping option has been chosen.
func (g Group) HasShippingSelection() bool { return g.ShippingOptionID != "" }

func (g Group) clone() Group {
	lines := make([]Line, len(g.Lines))
	copy(lines, g.Lines)
	g.Lines = lines
	return g
}
