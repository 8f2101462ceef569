package checkout_test

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pasar-checkout/internal/cart"
	"github.com/noah-isme/pasar-checkout/internal/checkout"
	"github.com/noah-isme/pasar-checkout/internal/events"
	"github.com/noah-isme/pasar-checkout/internal/money"
	"github.com/noah-isme/pasar-checkout/internal/quote"
	"github.com/noah-isme/pasar-checkout/internal/session"
	"github.com/noah-isme/pasar-checkout/internal/shipping"
	"github.com/noah-isme/pasar-checkout/internal/voucher"
)

var fixedNow = time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)

func mustLine(t *testing.T, lineID, storeID string, price int64, qty int) cart.Line {
	t.Helper()
	l, err := cart.NewLine(lineID, storeID, "Produk "+lineID, money.MustNew(price, "IDR"), qty, 10)
	require.NoError(t, err)
	return l
}

func testSnapshot(t *testing.T) cart.Snapshot {
	t.Helper()
	snap, err := cart.NewSnapshot([]cart.Line{
		mustLine(t, "l1", "toko-a", 250_000, 2),
		mustLine(t, "l2", "toko-b", 100_000, 5),
	})
	require.NoError(t, err)
	return snap
}

type recordingSubmitter struct {
	orderID string
	err     error
	calls   int
}

func (r *recordingSubmitter) Submit(_ context.Context, _ session.Session, _ quote.Quote) (string, error) {
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	return r.orderID, nil
}

func newTestService(t *testing.T) (*checkout.Service, *recordingSubmitter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	submitter := &recordingSubmitter{orderID: "order-1"}
	svc := &checkout.Service{
		Sessions: session.Store{Client: client, TTL: time.Hour},
		Carts:    checkout.StaticCartSource{"cart-1": testSnapshot(t)},
		Vouchers: voucher.StaticSource{
			"HEMAT10": {
				Code:        "HEMAT10",
				Kind:        voucher.KindPercent,
				Percent:     10,
				MinPurchase: money.Zero("IDR"),
			},
		},
		Rates:     shipping.MockSource{Currency: "IDR"},
		Submitter: submitter,
		Events:    &events.Bus{Store: events.RedisStreamStore{Client: client}},
		Now:       func() time.Time { return fixedNow },
	}
	return svc, submitter, mr
}

func TestStartSessionSnapshotsCart(t *testing.T) {
	svc, _, _ := newTestService(t)

	sess, err := svc.StartSession(context.Background(), "cart-1", "Jakarta")
	require.NoError(t, err)
	require.Equal(t, session.StateBuilding, sess.State)
	require.Equal(t, 2, sess.Snapshot.LineCount())
	require.Equal(t, "IDR", sess.Currency)

	loaded, err := svc.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Equal(t, sess.ID, loaded.ID)
}

func TestStartSessionUnknownCart(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.StartSession(context.Background(), "missing", "Jakarta")
	require.ErrorIs(t, err, checkout.ErrCartNotFound)
}

func TestQuoteWithoutShippingBlocksSubmission(t *testing.T) {
	svc, submitter, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.StartSession(ctx, "cart-1", "Jakarta")
	require.NoError(t, err)

	quoted, err := svc.Quote(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, session.StateQuoted, quoted.State)
	require.NotNil(t, quoted.Quote)
	// 2x250k + 5x100k, no shipping, no discount.
	require.Equal(t, int64(1_000_000), quoted.Quote.GrandTotal.Amount)
	require.Len(t, quoted.Quote.Errors, 2)

	_, _, err = svc.Submit(ctx, sess.ID)
	require.ErrorIs(t, err, session.ErrNotReady)
	require.Zero(t, submitter.calls)
}

func selectAllShipping(t *testing.T, svc *checkout.Service, id string) session.Session {
	t.Helper()
	ctx := context.Background()
	sess, err := svc.SelectShipping(ctx, id, "toko-a", "toko-a-reg")
	require.NoError(t, err)
	sess, err = svc.SelectShipping(ctx, id, "toko-b", "toko-b-reg")
	require.NoError(t, err)
	return sess
}

func TestFullCheckoutFlow(t *testing.T) {
	svc, submitter, mr := newTestService(t)
	ctx := context.Background()

	sess, err := svc.StartSession(ctx, "cart-1", "Jakarta")
	require.NoError(t, err)

	selectAllShipping(t, svc, sess.ID)

	_, err = svc.ApplyVoucher(ctx, sess.ID, "hemat10")
	require.NoError(t, err)

	quoted, err := svc.Quote(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, session.StateReady, quoted.State)
	// subtotal 1,000,000 + shipping 2x15,000 - 10% of subtotal.
	require.Equal(t, int64(1_000_000), quoted.Quote.Subtotal.Amount)
	require.Equal(t, int64(30_000), quoted.Quote.ShippingTotal.Amount)
	require.Equal(t, int64(100_000), quoted.Quote.Discount.Amount)
	require.Equal(t, int64(930_000), quoted.Quote.GrandTotal.Amount)

	submitted, orderID, err := svc.Submit(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, "order-1", orderID)
	require.Equal(t, session.StateSubmitted, submitted.State)
	require.Equal(t, 1, submitter.calls)

	// Submission lands on the event stream.
	entries, err := mr.Stream(events.DefaultStream)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	// A second submit is rejected.
	_, _, err = svc.Submit(ctx, sess.ID)
	require.ErrorIs(t, err, session.ErrAlreadySubmitted)
	require.Equal(t, 1, submitter.calls)
}

func TestUnknownVoucherDoesNotBlockSubmission(t *testing.T) {
	svc, submitter, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.StartSession(ctx, "cart-1", "Jakarta")
	require.NoError(t, err)
	selectAllShipping(t, svc, sess.ID)

	_, err = svc.ApplyVoucher(ctx, sess.ID, "TIDAKADA")
	require.NoError(t, err)

	quoted, err := svc.Quote(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, session.StateReady, quoted.State)
	require.Len(t, quoted.Quote.Errors, 1)
	require.Equal(t, quote.CodeVoucherNotFound, quoted.Quote.Errors[0].Code)
	require.Zero(t, quoted.Quote.Discount.Amount)

	_, _, err = svc.Submit(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, 1, submitter.calls)
}

func TestEditDropsQuote(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.StartSession(ctx, "cart-1", "Jakarta")
	require.NoError(t, err)
	selectAllShipping(t, svc, sess.ID)

	quoted, err := svc.Quote(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, session.StateReady, quoted.State)

	edited, err := svc.SetQuantity(ctx, sess.ID, "l1", 3)
	require.NoError(t, err)
	require.Equal(t, session.StateBuilding, edited.State)
	require.Nil(t, edited.Quote)
}

func TestSetQuantityValidationSurvivesSnapshot(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.StartSession(ctx, "cart-1", "Jakarta")
	require.NoError(t, err)

	_, err = svc.SetQuantity(ctx, sess.ID, "l1", 0)
	require.ErrorIs(t, err, cart.ErrQuantityInvalid)

	_, err = svc.SetQuantity(ctx, sess.ID, "l1", 99)
	require.ErrorIs(t, err, cart.ErrStockExceeded)

	// Failed edits leave the stored session untouched.
	loaded, err := svc.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	g, ok := loaded.Snapshot.Group("toko-a")
	require.True(t, ok)
	require.Equal(t, 2, g.Lines[0].Qty)
}

func TestRemoveLastLineRejected(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.StartSession(ctx, "cart-1", "Jakarta")
	require.NoError(t, err)

	next, err := svc.RemoveLine(ctx, sess.ID, "l1")
	require.NoError(t, err)
	require.Len(t, next.Snapshot.Groups, 1)

	_, err = svc.RemoveLine(ctx, sess.ID, "l2")
	require.ErrorIs(t, err, cart.ErrEmptySnapshot)
}

func TestSelectShippingRejectsUnknownOption(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.StartSession(ctx, "cart-1", "Jakarta")
	require.NoError(t, err)

	_, err = svc.SelectShipping(ctx, sess.ID, "toko-a", "kilat-override")
	require.ErrorIs(t, err, shipping.ErrUnknownShippingOption)
}

func TestSubmitterFailureKeepsSessionOpen(t *testing.T) {
	svc, submitter, _ := newTestService(t)
	submitter.err = errors.New("order service down")
	ctx := context.Background()

	sess, err := svc.StartSession(ctx, "cart-1", "Jakarta")
	require.NoError(t, err)
	selectAllShipping(t, svc, sess.ID)

	_, _, err = svc.Submit(ctx, sess.ID)
	require.Error(t, err)

	// The stored session did not advance to submitted.
	loaded, err := svc.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	require.NotEqual(t, session.StateSubmitted, loaded.State)

	submitter.err = nil
	_, _, err = svc.Submit(ctx, sess.ID)
	require.NoError(t, err)
}

func TestRemoveVoucherClearsSlot(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.StartSession(ctx, "cart-1", "Jakarta")
	require.NoError(t, err)

	applied, err := svc.ApplyVoucher(ctx, sess.ID, "HEMAT10")
	require.NoError(t, err)
	require.Equal(t, "HEMAT10", applied.VoucherCode)

	cleared, err := svc.RemoveVoucher(ctx, sess.ID)
	require.NoError(t, err)
	require.Empty(t, cleared.VoucherCode)
}

func TestShippingOptionsListsEveryGroup(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.StartSession(ctx, "cart-1", "Jakarta")
	require.NoError(t, err)

	options, err := svc.ShippingOptions(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, options, 2)
	require.Len(t, options["toko-a"], 2)
	require.Len(t, options["toko-b"], 2)
}
