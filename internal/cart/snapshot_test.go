package cart

import (
	"errors"
	"testing"

	"github.com/noah-isme/pasar-checkout/internal/money"
)

func line(t *testing.T, id, store string, price int64, qty, maxQty int) Line {
	t.Helper()
	l, err := NewLine(id, store, "item "+id, money.MustNew(price, "IDR"), qty, maxQty)
	if err != nil {
		t.Fatalf("new line %s: %v", id, err)
	}
	return l
}

func TestNewLineRejectsInvalidQuantity(t *testing.T) {
	_, err := NewLine("l1", "store-a", "x", money.MustNew(1000, "IDR"), 0, 5)
	if !errors.Is(err, ErrQuantityInvalid) {
		t.Fatalf("expected ErrQuantityInvalid, got %v", err)
	}
}

func TestNewLineRejectsStockExceeded(t *testing.T) {
	// qty 6 against stock 5 must fail at construction; the pricing engine
	// never sees the line.
	_, err := NewLine("l1", "store-a", "x", money.MustNew(1000, "IDR"), 6, 5)
	if !errors.Is(err, ErrStockExceeded) {
		t.Fatalf("expected ErrStockExceeded, got %v", err)
	}
}

func TestNewLineRejectsNegativePrice(t *testing.T) {
	_, err := NewLine("l1", "store-a", "x", money.Money{Amount: -1, Currency: "IDR"}, 1, 5)
	if !errors.Is(err, ErrPriceInvalid) {
		t.Fatalf("expected ErrPriceInvalid, got %v", err)
	}
}

func TestNewSnapshotGroupsByStore(t *testing.T) {
	snap, err := NewSnapshot([]Line{
		line(t, "l1", "store-a", 10_000, 2, 10),
		line(t, "l2", "store-b", 5_000, 1, 10),
		line(t, "l3", "store-a", 2_500, 4, 10),
	})
	if err != nil {
		t.Fatalf("new snapshot: %v", err)
	}
	if len(snap.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(snap.Groups))
	}
	a, ok := snap.Group("store-a")
	if !ok || len(a.Lines) != 2 {
		t.Fatalf("expected store-a with 2 lines, got %+v", a)
	}
	if got := a.Subtotal().Amount; got != 30_000 {
		t.Fatalf("expected store-a subtotal 30000, got %d", got)
	}
	if got := snap.Subtotal().Amount; got != 35_000 {
		t.Fatalf("expected snapshot subtotal 35000, got %d", got)
	}
	if snap.LineCount() != 3 {
		t.Fatalf("expected 3 lines, got %d", snap.LineCount())
	}
}

func TestNewSnapshotRejectsMixedCurrencies(t *testing.T) {
	l1 := line(t, "l1", "store-a", 10_000, 1, 10)
	l2, err := NewLine("l2", "store-b", "x", money.MustNew(5, "USD"), 1, 10)
	if err != nil {
		t.Fatalf("new line: %v", err)
	}
	if _, err := NewSnapshot([]Line{l1, l2}); !errors.Is(err, money.ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch, got %v", err)
	}
}

func TestWithQuantityReturnsNewSnapshot(t *testing.T) {
	snap, _ := NewSnapshot([]Line{line(t, "l1", "store-a", 10_000, 2, 10)})
	next, err := snap.WithQuantity("l1", 5)
	if err != nil {
		t.Fatalf("with quantity: %v", err)
	}
	if snap.Groups[0].Lines[0].Qty != 2 {
		t.Fatal("original snapshot mutated")
	}
	if next.Groups[0].Lines[0].Qty != 5 {
		t.Fatalf("expected qty 5, got %d", next.Groups[0].Lines[0].Qty)
	}
}

func TestWithQuantityEnforcesStock(t *testing.T) {
	snap, _ := NewSnapshot([]Line{line(t, "l1", "store-a", 10_000, 2, 5)})
	if _, err := snap.WithQuantity("l1", 6); !errors.Is(err, ErrStockExceeded) {
		t.Fatalf("expected ErrStockExceeded, got %v", err)
	}
	if _, err := snap.WithQuantity("l1", 0); !errors.Is(err, ErrQuantityInvalid) {
		t.Fatalf("expected ErrQuantityInvalid, got %v", err)
	}
}

func TestWithoutLineDropsEmptyGroup(t *testing.T) {
	snap, _ := NewSnapshot([]Line{
		line(t, "l1", "store-a", 10_000, 1, 10),
		line(t, "l2", "store-b", 5_000, 1, 10),
	})
	next, err := snap.WithoutLine("l2")
	if err != nil {
		t.Fatalf("without line: %v", err)
	}
	if len(next.Groups) != 1 {
		t.Fatalf("expected empty group removed, got %d groups", len(next.Groups))
	}
	if _, ok := next.Group("store-b"); ok {
		t.Fatal("store-b group should be gone")
	}
}

func TestWithoutLastLineFails(t *testing.T) {
	snap, _ := NewSnapshot([]Line{line(t, "l1", "store-a", 10_000, 1, 10)})
	if _, err := snap.WithoutLine("l1"); !errors.Is(err, ErrEmptySnapshot) {
		t.Fatalf("expected ErrEmptySnapshot, got %v", err)
	}
}

func TestWithShippingOptionReplacesChoice(t *testing.T) {
	snap, _ := NewSnapshot([]Line{line(t, "l1", "store-a", 10_000, 1, 10)})
	next, err := snap.WithShippingOption("store-a", "opt-reg")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	next, err = next.WithShippingOption("store-a", "opt-yes")
	if err != nil {
		t.Fatalf("reselect: %v", err)
	}
	g, _ := next.Group("store-a")
	if g.ShippingOptionID != "opt-yes" {
		t.Fatalf("expected replacement choice opt-yes, got %q", g.ShippingOptionID)
	}
	if snap.Groups[0].ShippingOptionID != "" {
		t.Fatal("original snapshot mutated")
	}
}
