package voucher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/noah-isme/pasar-checkout/internal/money"
)

var testNow = time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)

func percentVoucher(pct int, minPurchase int64, maxDiscount *int64) Voucher {
	v := Voucher{
		Code:        "HEMAT",
		Kind:        KindPercent,
		Percent:     pct,
		MinPurchase: money.MustNew(minPurchase, "IDR"),
	}
	if maxDiscount != nil {
		capped := money.MustNew(*maxDiscount, "IDR")
		v.MaxDiscount = &capped
	}
	return v
}

func TestEvaluatePercentWithCap(t *testing.T) {
	capAmount := int64(100_000)
	v := percentVoucher(10, 0, &capAmount)

	// 10% of 1,000,000 hits the cap exactly.
	discount, err := Evaluate(v, money.MustNew(1_000_000, "IDR"), testNow)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if discount.Amount != 100_000 {
		t.Fatalf("expected discount 100000, got %d", discount.Amount)
	}

	// 10% of 2,000,000 would be 200,000; the cap wins.
	discount, err = Evaluate(v, money.MustNew(2_000_000, "IDR"), testNow)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if discount.Amount != 100_000 {
		t.Fatalf("expected capped discount 100000, got %d", discount.Amount)
	}
}

func TestEvaluateBelowMinimumPurchase(t *testing.T) {
	v := percentVoucher(10, 1_000_000, nil)
	_, err := Evaluate(v, money.MustNew(500_000, "IDR"), testNow)
	if !errors.Is(err, ErrBelowMinimumPurchase) {
		t.Fatalf("expected ErrBelowMinimumPurchase, got %v", err)
	}
}

func TestEvaluateValidityWindow(t *testing.T) {
	from := testNow.Add(time.Hour)
	to := testNow.Add(2 * time.Hour)
	v := percentVoucher(10, 0, nil)
	v.ValidFrom = &from
	v.ValidTo = &to

	if _, err := Evaluate(v, money.MustNew(1_000_000, "IDR"), testNow); !errors.Is(err, ErrVoucherInactive) {
		t.Fatalf("expected ErrVoucherInactive, got %v", err)
	}
	if _, err := Evaluate(v, money.MustNew(1_000_000, "IDR"), testNow.Add(3*time.Hour)); !errors.Is(err, ErrVoucherExpired) {
		t.Fatalf("expected ErrVoucherExpired, got %v", err)
	}
	if _, err := Evaluate(v, money.MustNew(1_000_000, "IDR"), testNow.Add(90*time.Minute)); err != nil {
		t.Fatalf("expected valid window, got %v", err)
	}
}

func TestEvaluateFixedNeverExceedsSubtotal(t *testing.T) {
	v := Voucher{
		Code:        "POTONGAN50",
		Kind:        KindFixed,
		Value:       money.MustNew(50_000, "IDR"),
		MinPurchase: money.Zero("IDR"),
	}
	discount, err := Evaluate(v, money.MustNew(30_000, "IDR"), testNow)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if discount.Amount != 30_000 {
		t.Fatalf("expected discount capped at subtotal 30000, got %d", discount.Amount)
	}
}

func TestEvaluateFixedWithCap(t *testing.T) {
	capped := money.MustNew(30_000, "IDR")
	v := Voucher{
		Code:        "POTONGAN50",
		Kind:        KindFixed,
		Value:       money.MustNew(50_000, "IDR"),
		MinPurchase: money.Zero("IDR"),
		MaxDiscount: &capped,
	}
	discount, err := Evaluate(v, money.MustNew(1_000_000, "IDR"), testNow)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if discount.Amount != 30_000 {
		t.Fatalf("expected discount capped at 30000, got %d", discount.Amount)
	}

	// a cap above the fixed value changes nothing
	loose := money.MustNew(80_000, "IDR")
	v.MaxDiscount = &loose
	discount, err = Evaluate(v, money.MustNew(1_000_000, "IDR"), testNow)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if discount.Amount != 50_000 {
		t.Fatalf("expected discount 50000, got %d", discount.Amount)
	}
}

func TestEvaluatePercentFloors(t *testing.T) {
	v := percentVoucher(10, 0, nil)
	discount, err := Evaluate(v, money.MustNew(999, "IDR"), testNow)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if discount.Amount != 99 {
		t.Fatalf("expected floored discount 99, got %d", discount.Amount)
	}
}

func TestEvaluateRejectsMalformedRules(t *testing.T) {
	cases := []Voucher{
		{Code: "", Kind: KindFixed, Value: money.MustNew(1, "IDR")},
		{Code: "X", Kind: KindPercent, Percent: 0},
		{Code: "X", Kind: KindPercent, Percent: 101},
		{Code: "X", Kind: "bogus"},
		{Code: "X", Kind: KindFixed, Value: money.Money{Amount: -1, Currency: "IDR"}},
	}
	for _, v := range cases {
		if _, err := Evaluate(v, money.MustNew(1_000_000, "IDR"), testNow); !errors.Is(err, ErrInvalidRule) {
			t.Fatalf("voucher %+v: expected ErrInvalidRule, got %v", v, err)
		}
	}
}

func TestStaticSourceLookup(t *testing.T) {
	src := StaticSource{"HEMAT": percentVoucher(10, 0, nil)}

	v, err := src.Lookup(context.Background(), "hemat")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if v.Code != "HEMAT" {
		t.Fatalf("expected HEMAT, got %q", v.Code)
	}
	if _, err := src.Lookup(context.Background(), "NOPE"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
