package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/pasar-checkout/internal/cart"
	"github.com/noah-isme/pasar-checkout/internal/money"
	"github.com/noah-isme/pasar-checkout/internal/quote"
	"github.com/noah-isme/pasar-checkout/internal/resilience"
	"github.com/noah-isme/pasar-checkout/internal/session"
)

// ErrCartNotFound indicates the cart collaborator has no cart with that id.
var ErrCartNotFound = errors.New("checkout: cart not found")

// CartSource loads the current contents of a buyer's cart. The cart service
// owns the lines; checkout only snapshots them.
type CartSource interface {
	Snapshot(ctx context.Context, cartID string) (cart.Snapshot, error)
}

// HTTPCartSource fetches cart contents from the marketplace cart API.
type HTTPCartSource struct {
	BaseURL string
	Client  resilience.HTTPClient
}

type cartLinePayload struct {
	LineID    string      `json:"lineId"`
	StoreID   string      `json:"storeId"`
	Title     string      `json:"title"`
	UnitPrice money.Money `json:"unitPrice"`
	Qty       int         `json:"qty"`
	MaxQty    int         `json:"maxQty"`
}

// Snapshot fetches and validates the cart identified by cartID. A 404 maps
// to ErrCartNotFound.
func (s HTTPCartSource) Snapshot(ctx context.Context, cartID string) (cart.Snapshot, error) {
	endpoint := strings.TrimRight(s.BaseURL, "/") + "/carts/" + url.PathEscape(cartID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return cart.Snapshot{}, fmt.Errorf("build cart request: %w", err)
	}
	resp, err := s.Client.Do(ctx, req)
	if err != nil {
		return cart.Snapshot{}, fmt.Errorf("fetch cart %s: %w", cartID, err)
	}
	defer func() { _ = resp.Body.Close() }()
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return cart.Snapshot{}, ErrCartNotFound
	default:
		return cart.Snapshot{}, fmt.Errorf("cart source returned %s", resp.Status)
	}
	var payload struct {
		Data struct {
			Lines []cartLinePayload `json:"lines"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return cart.Snapshot{}, fmt.Errorf("decode cart response: %w", err)
	}
	lines := make([]cart.Line, 0, len(payload.Data.Lines))
	for _, l := range payload.Data.Lines {
		line, err := cart.NewLine(l.LineID, l.StoreID, l.Title, l.UnitPrice, l.Qty, l.MaxQty)
		if err != nil {
			return cart.Snapshot{}, fmt.Errorf("cart %s line %s: %w", cartID, l.LineID, err)
		}
		lines = append(lines, line)
	}
	return cart.NewSnapshot(lines)
}

// StaticCartSource serves canned snapshots keyed by cart id. Useful for
// development and tests.
type StaticCartSource map[string]cart.Snapshot

// Snapshot returns the snapshot registered under cartID.
func (s StaticCartSource) Snapshot(_ context.Context, cartID string) (cart.Snapshot, error) {
	snap, ok := s[cartID]
	if !ok {
		return cart.Snapshot{}, ErrCartNotFound
	}
	return snap, nil
}

// Submitter hands a priced session over to the order collaborator. The
// returned id identifies the created order.
type Submitter interface {
	Submit(ctx context.Context, sess session.Session, q quote.Quote) (string, error)
}

// HTTPSubmitter posts the session hand-off to the marketplace order API.
type HTTPSubmitter struct {
	BaseURL string
	Client  resilience.HTTPClient
}

// Submit sends the session and its final quote, expecting an order id back.
func (s HTTPSubmitter) Submit(ctx context.Context, sess session.Session, q quote.Quote) (string, error) {
	body, err := json.Marshal(map[string]any{
		"sessionId":   sess.ID,
		"cartId":      sess.CartID,
		"destination": sess.Destination,
		"snapshot":    sess.Snapshot,
		"voucherCode": sess.VoucherCode,
		"quote":       q,
	})
	if err != nil {
		return "", fmt.Errorf("encode submission: %w", err)
	}
	endpoint := strings.TrimRight(s.BaseURL, "/") + "/orders"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("build submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.Client.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("submit session %s: %w", sess.ID, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("order service returned %s", resp.Status)
	}
	var payload struct {
		Data struct {
			OrderID string `json:"orderId"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode submission response: %w", err)
	}
	if strings.TrimSpace(payload.Data.OrderID) == "" {
		return "", errors.New("order service returned no order id")
	}
	return payload.Data.OrderID, nil
}

// MockSubmitter accepts every submission and mints a random order id.
type MockSubmitter struct{}

// Submit returns a fresh order id without calling anything.
func (MockSubmitter) Submit(_ context.Context, _ session.Session, _ quote.Quote) (string, error) {
	return uuid.NewString(), nil
}
