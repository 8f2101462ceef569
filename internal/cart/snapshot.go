package cart

import (
	"errors"
	"fmt"
	"sort"

	"github.com/noah-isme/pasar-checkout/internal/money"
)

// ErrEmptySnapshot is returned when a snapshot would contain no lines.
var ErrEmptySnapshot = errors.New("cart: snapshot has no lines")

// Snapshot is an immutable, store-grouped view of a cart at one instant.
// Every edit produces a new snapshot; groups that lose their last line are
// dropped so zero-line groups never persist.
type Snapshot struct {
	Currency string  `json:"currency"`
	Groups   []Group `json:"groups"`
}

// NewSnapshot groups the provided lines per store. All lines must share one
// currency; mixed currencies are rejected at the boundary so the pricing
// engine can assume a single currency per session.
func NewSnapshot(lines []Line) (Snapshot, error) {
	if len(lines) == 0 {
		return Snapshot{}, ErrEmptySnapshot
	}
	currency := lines[0].UnitPrice.Currency
	byStore := make(map[string][]Line)
	order := make([]string, 0)
	for _, l := range lines {
		if l.UnitPrice.Currency != currency {
			return Snapshot{}, fmt.Errorf("line %s is %s, snapshot is %s: %w",
				l.LineID, l.UnitPrice.Currency, currency, money.ErrCurrencyMismatch)
		}
		if _, seen := byStore[l.StoreID]; !seen {
			order = append(order, l.StoreID)
		}
		byStore[l.StoreID] = append(byStore[l.StoreID], l)
	}
	groups := make([]Group, 0, len(order))
	for _, storeID := range order {
		groups = append(groups, Group{StoreID: storeID, Lines: byStore[storeID]})
	}
	return Snapshot{Currency: currency, Groups: groups}, nil
}

// LineCount returns the number of lines across all groups.
func (s Snapshot) LineCount() int {
	n := 0
	for _, g := range s.Groups {
		n += len(g.Lines)
	}
	return n
}

// Subtotal sums every group subtotal.
func (s Snapshot) Subtotal() money.Money {
	total := money.Zero(s.Currency)
	for _, g := range s.Groups {
		if sum, err := total.Add(g.Subtotal()); err == nil {
			total = sum
		}
	}
	return total
}

// Group returns the group owned by the given store.
func (s Snapshot) Group(storeID string) (Group, bool) {
	for _, g := range s.Groups {
		if g.StoreID == storeID {
			return g, true
		}
	}
	return Group{}, false
}

// WithQuantity returns a new snapshot with the line set to the given
// quantity. Quantity invariants are re-checked; a quantity below one is an
// error rather than an implicit removal.
func (s Snapshot) WithQuantity(lineID string, qty int) (Snapshot, error) {
	next := s.clone()
	for gi := range next.Groups {
		for li := range next.Groups[gi].Lines {
			if next.Groups[gi].Lines[li].LineID != lineID {
				continue
			}
			updated, err := next.Groups[gi].Lines[li].withQty(qty)
			if err != nil {
				return Snapshot{}, err
			}
			next.Groups[gi].Lines[li] = updated
			return next, nil
		}
	}
	return Snapshot{}, fmt.Errorf("line %s: %w", lineID, ErrLineNotFound)
}

// WithoutLine returns a new snapshot with the line removed. A group that
// loses its last line is removed entirely; removing the last line of the
// whole cart yields ErrEmptySnapshot.
func (s Snapshot) WithoutLine(lineID string) (Snapshot, error) {
	next := s.clone()
	for gi := range next.Groups {
		for li := range next.Groups[gi].Lines {
			if next.Groups[gi].Lines[li].LineID != lineID {
				continue
			}
			g := next.Groups[gi]
			g.Lines = append(g.Lines[:li], g.Lines[li+1:]...)
			if len(g.Lines) == 0 {
				next.Groups = append(next.Groups[:gi], next.Groups[gi+1:]...)
			} else {
				next.Groups[gi] = g
			}
			if len(next.Groups) == 0 {
				return Snapshot{}, ErrEmptySnapshot
			}
			return next, nil
		}
	}
	return Snapshot{}, fmt.Errorf("line %s: %w", lineID, ErrLineNotFound)
}

// WithShippingOption returns a new snapshot recording the chosen option for
// the store's group. Validation against the option catalog happens in the
// shipping package; this only records an already-validated choice.
func (s Snapshot) WithShippingOption(storeID, optionID string) (Snapshot, error) {
	next := s.clone()
	for gi := range next.Groups {
		if next.Groups[gi].StoreID == storeID {
			next.Groups[gi].ShippingOptionID = optionID
			return next, nil
		}
	}
	return Snapshot{}, fmt.Errorf("store %s: %w", storeID, ErrLineNotFound)
}

// StoreIDs returns the snapshot's store ids in a stable order.
func (s Snapshot) StoreIDs() []string {
	ids := make([]string, 0, len(s.Groups))
	for _, g := range s.Groups {
		ids = append(ids, g.StoreID)
	}
	sort.Strings(ids)
	return ids
}

func (s Snapshot) clone() Snapshot {
	groups := make([]Group, len(s.Groups))
	for i, g := range s.Groups {
		groups[i] = g.clone()
	}
	s.Groups = groups
	return s
}
