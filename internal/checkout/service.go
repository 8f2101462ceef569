package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/pasar-checkout/internal/events"
	"github.com/noah-isme/pasar-checkout/internal/lock"
	"github.com/noah-isme/pasar-checkout/internal/obs"
	"github.com/noah-isme/pasar-checkout/internal/quote"
	"github.com/noah-isme/pasar-checkout/internal/session"
	"github.com/noah-isme/pasar-checkout/internal/shipping"
	"github.com/noah-isme/pasar-checkout/internal/voucher"
)

// Service orchestrates checkout sessions: it loads cart snapshots, applies
// edits through the session state machine, prices via the quote engine and
// hands submissions to the order collaborator. All persistence is the redis
// session store; the service itself holds no state.
type Service struct {
	Sessions  session.Store
	Carts     CartSource
	Vouchers  voucher.Source
	Rates     shipping.RateSource
	Submitter Submitter
	Events    *events.Bus
	Locks     lock.Locker
	Engine    quote.Engine
	Logger    zerolog.Logger
	Now       func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// StartSession snapshots the cart and opens a new checkout session.
func (s *Service) StartSession(ctx context.Context, cartID, destination string) (session.Session, error) {
	if s == nil || s.Carts == nil {
		return session.Session{}, errors.New("checkout service not configured")
	}
	snap, err := s.Carts.Snapshot(ctx, cartID)
	if err != nil {
		return session.Session{}, err
	}
	sess := session.New(cartID, destination, snap, s.now())
	if err := s.Sessions.Save(ctx, sess); err != nil {
		return session.Session{}, fmt.Errorf("save session: %w", err)
	}
	s.Logger.Info().
		Str("session_id", sess.ID).
		Str("cart_id", cartID).
		Int("lines", snap.LineCount()).
		Msg("checkout session started")
	return sess, nil
}

// GetSession loads a session by id.
func (s *Service) GetSession(ctx context.Context, id string) (session.Session, error) {
	return s.Sessions.Get(ctx, id)
}

// SetQuantity updates one line's quantity, dropping any stale quote.
func (s *Service) SetQuantity(ctx context.Context, id, lineID string, qty int) (session.Session, error) {
	return s.editSnapshot(ctx, id, func(sess session.Session) (session.Session, error) {
		snap, err := sess.Snapshot.WithQuantity(lineID, qty)
		if err != nil {
			return session.Session{}, err
		}
		return sess.WithSnapshot(snap, s.now())
	})
}

// RemoveLine removes one line, dropping its group when it was the last line.
func (s *Service) RemoveLine(ctx context.Context, id, lineID string) (session.Session, error) {
	return s.editSnapshot(ctx, id, func(sess session.Session) (session.Session, error) {
		snap, err := sess.Snapshot.WithoutLine(lineID)
		if err != nil {
			return session.Session{}, err
		}
		return sess.WithSnapshot(snap, s.now())
	})
}

// SelectShipping records a courier choice for one store group after checking
// it against the rates currently offered for the session's destination.
func (s *Service) SelectShipping(ctx context.Context, id, storeID, optionID string) (session.Session, error) {
	return s.editSnapshot(ctx, id, func(sess session.Session) (session.Session, error) {
		options, err := s.Rates.OptionsFor(ctx, storeID, sess.Destination)
		if err != nil {
			return session.Session{}, fmt.Errorf("load rates for store %s: %w", storeID, err)
		}
		selector := shipping.Selector{Catalog: shipping.NewCatalog(options)}
		snap, err := selector.Select(sess.Snapshot, storeID, optionID)
		if err != nil {
			return session.Session{}, err
		}
		return sess.WithSnapshot(snap, s.now())
	})
}

// ApplyVoucher fills the session's voucher slot. A code that fails lookup is
// still recorded; the failure surfaces on the next quote instead of blocking
// the request.
func (s *Service) ApplyVoucher(ctx context.Context, id, code string) (session.Session, error) {
	sess, err := s.Sessions.Get(ctx, id)
	if err != nil {
		return session.Session{}, err
	}
	next, err := sess.WithVoucher(code, s.now())
	if err != nil {
		return session.Session{}, err
	}
	if err := s.Sessions.Save(ctx, next); err != nil {
		return session.Session{}, fmt.Errorf("save session: %w", err)
	}

	result := "applied"
	if s.Vouchers != nil {
		if _, lookupErr := s.Vouchers.Lookup(ctx, next.VoucherCode); errors.Is(lookupErr, voucher.ErrNotFound) {
			result = "not_found"
		} else if lookupErr != nil {
			result = "error"
		}
	}
	if obs.VoucherApplyTotal != nil {
		obs.VoucherApplyTotal.WithLabelValues(result).Inc()
	}
	if s.Events != nil {
		_, _ = s.Events.Emit(ctx, events.TopicVoucherApplied, next.ID, map[string]any{
			"sessionId": next.ID,
			"code":      next.VoucherCode,
			"result":    result,
		})
	}
	s.Logger.Info().
		Str("session_id", next.ID).
		Str("code", next.VoucherCode).
		Str("result", result).
		Msg("voucher applied")
	return next, nil
}

// RemoveVoucher clears the voucher slot.
func (s *Service) RemoveVoucher(ctx context.Context, id string) (session.Session, error) {
	return s.editSnapshot(ctx, id, func(sess session.Session) (session.Session, error) {
		return sess.WithoutVoucher(s.now())
	})
}

// ShippingOptions lists the rates currently offered to every store group in
// the session.
func (s *Service) ShippingOptions(ctx context.Context, id string) (map[string][]shipping.Option, error) {
	sess, err := s.Sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]shipping.Option, len(sess.Snapshot.Groups))
	for _, g := range sess.Snapshot.Groups {
		options, err := s.Rates.OptionsFor(ctx, g.StoreID, sess.Destination)
		if err != nil {
			return nil, fmt.Errorf("load rates for store %s: %w", g.StoreID, err)
		}
		out[g.StoreID] = options
	}
	return out, nil
}

// Quote prices the session as it stands. The computed quote is stored on the
// session; whether it permits submission is encoded in the session state, not
// in an error.
func (s *Service) Quote(ctx context.Context, id string) (session.Session, error) {
	sess, err := s.Sessions.Get(ctx, id)
	if err != nil {
		return session.Session{}, err
	}
	if sess.State == session.StateSubmitted {
		return session.Session{}, session.ErrAlreadySubmitted
	}
	next, q, err := s.price(ctx, sess)
	if err != nil {
		if obs.QuoteTotal != nil {
			obs.QuoteTotal.WithLabelValues("error").Inc()
		}
		return session.Session{}, err
	}
	if err := s.Sessions.Save(ctx, next); err != nil {
		return session.Session{}, fmt.Errorf("save session: %w", err)
	}
	s.recordQuoteMetrics(q)
	if s.Events != nil {
		_, _ = s.Events.Emit(ctx, events.TopicQuoteComputed, next.ID, map[string]any{
			"sessionId":   next.ID,
			"grandTotal":  q.GrandTotal.Amount,
			"currency":    q.GrandTotal.Currency,
			"errorCount":  len(q.Errors),
			"submittable": q.Submittable(),
		})
	}
	return next, nil
}

// Submit re-prices the session, verifies it is submittable and hands it to
// the order collaborator. The returned order id identifies the created order.
func (s *Service) Submit(ctx context.Context, id string) (session.Session, string, error) {
	if s.Submitter == nil {
		return session.Session{}, "", errors.New("checkout submitter not configured")
	}
	if s.Locks.R != nil {
		var (
			sess    session.Session
			orderID string
		)
		err := s.Locks.WithLock(ctx, "pasar:lock:submit:"+id, 30*time.Second, func(ctx context.Context) error {
			var err error
			sess, orderID, err = s.submit(ctx, id)
			return err
		})
		return sess, orderID, err
	}
	return s.submit(ctx, id)
}

func (s *Service) submit(ctx context.Context, id string) (session.Session, string, error) {
	sess, err := s.Sessions.Get(ctx, id)
	if err != nil {
		return session.Session{}, "", err
	}
	if sess.State == session.StateSubmitted {
		return session.Session{}, "", session.ErrAlreadySubmitted
	}
	// Always price against live rates right before hand-off so a quote
	// computed minutes ago cannot smuggle stale selections through.
	priced, q, err := s.price(ctx, sess)
	if err != nil {
		return session.Session{}, "", err
	}
	submitted, err := priced.Submit(s.now())
	if err != nil {
		if obs.SubmissionTotal != nil {
			obs.SubmissionTotal.WithLabelValues("rejected").Inc()
		}
		return session.Session{}, "", err
	}
	orderID, err := s.Submitter.Submit(ctx, submitted, q)
	if err != nil {
		if obs.SubmissionTotal != nil {
			obs.SubmissionTotal.WithLabelValues("error").Inc()
		}
		return session.Session{}, "", fmt.Errorf("submit order: %w", err)
	}
	if err := s.Sessions.Save(ctx, submitted); err != nil {
		return session.Session{}, "", fmt.Errorf("save session: %w", err)
	}
	if obs.SubmissionTotal != nil {
		obs.SubmissionTotal.WithLabelValues("submitted").Inc()
	}
	if s.Events != nil {
		_, _ = s.Events.Emit(ctx, events.TopicCheckoutSubmitted, submitted.ID, map[string]any{
			"sessionId":  submitted.ID,
			"orderId":    orderID,
			"grandTotal": q.GrandTotal.Amount,
			"currency":   q.GrandTotal.Currency,
		})
	}
	s.Logger.Info().
		Str("session_id", submitted.ID).
		Str("order_id", orderID).
		Int64("grand_total", q.GrandTotal.Amount).
		Msg("checkout submitted")
	return submitted, orderID, nil
}

// price computes a fresh quote for the session and records it through the
// state machine. The session's quote and state are updated; nothing is saved.
func (s *Service) price(ctx context.Context, sess session.Session) (session.Session, quote.Quote, error) {
	started := time.Now()
	catalog, err := s.catalogFor(ctx, sess)
	if err != nil {
		return session.Session{}, quote.Quote{}, err
	}
	applied, err := s.resolveVoucher(ctx, sess.VoucherCode)
	if err != nil {
		return session.Session{}, quote.Quote{}, err
	}
	q := s.Engine.Quote(sess.Snapshot, catalog, applied, s.now())
	next, err := sess.WithQuote(q, s.now())
	if err != nil {
		return session.Session{}, quote.Quote{}, err
	}
	if obs.QuoteDuration != nil {
		obs.QuoteDuration.Observe(obs.DurationMillis(time.Since(started)))
	}
	return next, q, nil
}

func (s *Service) catalogFor(ctx context.Context, sess session.Session) (shipping.Catalog, error) {
	if s.Rates == nil {
		return shipping.NewCatalog(nil), nil
	}
	var all []shipping.Option
	for _, g := range sess.Snapshot.Groups {
		options, err := s.Rates.OptionsFor(ctx, g.StoreID, sess.Destination)
		if err != nil {
			return shipping.Catalog{}, fmt.Errorf("load rates for store %s: %w", g.StoreID, err)
		}
		all = append(all, options...)
	}
	return shipping.NewCatalog(all), nil
}

// resolveVoucher maps a stored code to the applied-voucher input the engine
// expects. An unknown code yields a nil definition so the engine records
// VOUCHER_NOT_FOUND; only transport failures abort the quote.
func (s *Service) resolveVoucher(ctx context.Context, code string) (*quote.AppliedVoucher, error) {
	if code == "" {
		return nil, nil
	}
	if s.Vouchers == nil {
		return &quote.AppliedVoucher{Code: code}, nil
	}
	v, err := s.Vouchers.Lookup(ctx, code)
	if errors.Is(err, voucher.ErrNotFound) {
		return &quote.AppliedVoucher{Code: code}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup voucher %s: %w", code, err)
	}
	return &quote.AppliedVoucher{Code: code, Definition: &v}, nil
}

func (s *Service) recordQuoteMetrics(q quote.Quote) {
	if obs.QuoteTotal != nil {
		result := "clean"
		if !q.Valid() {
			result = "with_errors"
		}
		obs.QuoteTotal.WithLabelValues(result).Inc()
	}
	if obs.QuoteErrorTotal != nil {
		for _, e := range q.Errors {
			obs.QuoteErrorTotal.WithLabelValues(e.Code).Inc()
		}
	}
}

func (s *Service) editSnapshot(ctx context.Context, id string, edit func(session.Session) (session.Session, error)) (session.Session, error) {
	sess, err := s.Sessions.Get(ctx, id)
	if err != nil {
		return session.Session{}, err
	}
	next, err := edit(sess)
	if err != nil {
		return session.Session{}, err
	}
	if err := s.Sessions.Save(ctx, next); err != nil {
		return session.Session{}, fmt.Errorf("save session: %w", err)
	}
	return next, nil
}
