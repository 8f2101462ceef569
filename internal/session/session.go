package session

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/pasar-checkout/internal/cart"
	"github.com/noah-isme/pasar-checkout/internal/quote"
)

var (
	// ErrNotReady is returned when submission is attempted before an
	// error-free quote exists.
	ErrNotReady = errors.New("session: quote not ready for submission")
	// ErrAlreadySubmitted is returned when a terminal session is edited.
	ErrAlreadySubmitted = errors.New("session: already submitted")
)

// State tracks where a checkout session sits in its lifecycle.
type State string

const (
	// StateBuilding means the snapshot or voucher is being edited and any
	// previous quote is stale.
	StateBuilding State = "building"
	// StateQuoted means a quote exists but carries blocking errors.
	StateQuoted State = "quoted"
	// StateReady means the latest quote permits submission.
	StateReady State = "ready_to_submit"
	// StateSubmitted is terminal; the order collaborator has taken over.
	StateSubmitted State = "submitted"
)

// Session is one buyer's checkout in progress: the cart snapshot being
// edited, the single voucher slot, and the most recent quote. Edits always
// go through the transition methods so the state machine cannot be skipped.
type Session struct {
	ID          string        `json:"id"`
	CartID      string        `json:"cartId"`
	Destination string        `json:"destination"`
	Currency    string        `json:"currency"`
	Snapshot    cart.Snapshot `json:"snapshot"`
	VoucherCode string        `json:"voucherCode,omitempty"`
	Quote       *quote.Quote  `json:"quote,omitempty"`
	State       State         `json:"state"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// New starts a session in the building state.
func New(cartID, destination string, snap cart.Snapshot, now time.Time) Session {
	return Session{
		ID:          uuid.NewString(),
		CartID:      cartID,
		Destination: destination,
		Currency:    snap.Currency,
		Snapshot:    snap,
		State:       StateBuilding,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// WithSnapshot records an edited snapshot. Any edit drops the stale quote
// and returns the session to building.
func (s Session) WithSnapshot(snap cart.Snapshot, now time.Time) (Session, error) {
	if s.State == StateSubmitted {
		return Session{}, ErrAlreadySubmitted
	}
	s.Snapshot = snap
	return s.backToBuilding(now), nil
}

// WithVoucher fills the single voucher slot, replacing any earlier code.
func (s Session) WithVoucher(code string, now time.Time) (Session, error) {
	if s.State == StateSubmitted {
		return Session{}, ErrAlreadySubmitted
	}
	s.VoucherCode = strings.ToUpper(strings.TrimSpace(code))
	return s.backToBuilding(now), nil
}

// WithoutVoucher clears the voucher slot.
func (s Session) WithoutVoucher(now time.Time) (Session, error) {
	return s.WithVoucher("", now)
}

// WithQuote records a freshly computed quote. The session becomes ready for
// submission only when the quote carries no blocking errors.
func (s Session) WithQuote(q quote.Quote, now time.Time) (Session, error) {
	if s.State == StateSubmitted {
		return Session{}, ErrAlreadySubmitted
	}
	s.Quote = &q
	if q.Submittable() {
		s.State = StateReady
	} else {
		s.State = StateQuoted
	}
	s.UpdatedAt = now
	return s, nil
}

// Submit moves the session into its terminal state. Only a session holding
// a submittable quote may pass.
func (s Session) Submit(now time.Time) (Session, error) {
	switch s.State {
	case StateSubmitted:
		return Session{}, ErrAlreadySubmitted
	case StateReady:
		s.State = StateSubmitted
		s.UpdatedAt = now
		return s, nil
	default:
		return Session{}, ErrNotReady
	}
}

func (s Session) backToBuilding(now time.Time) Session {
	s.State = StateBuilding
	s.Quote = nil
	s.UpdatedAt = now
	return s
}
