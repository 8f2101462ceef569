package shipping

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/noah-isme/pasar-checkout/internal/money"
	"github.com/noah-isme/pasar-checkout/internal/resilience"
)

// RateSource supplies the shipping options a store can offer to a given
// destination. Catalogs are read-only inputs; the service never computes
// rates itself.
type RateSource interface {
	OptionsFor(ctx context.Context, storeID, destination string) ([]Option, error)
}

// HTTPSource fetches rates from the marketplace shipping API.
type HTTPSource struct {
	BaseURL string
	Client  resilience.HTTPClient
}

// OptionsFor requests the option list for one store and destination.
func (s HTTPSource) OptionsFor(ctx context.Context, storeID, destination string) ([]Option, error) {
	endpoint := fmt.Sprintf("%s/stores/%s/shipping-options?destination=%s",
		strings.TrimRight(s.BaseURL, "/"), url.PathEscape(storeID), url.QueryEscape(destination))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build rates request: %w", err)
	}
	resp, err := s.Client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetch rates for store %s: %w", storeID, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rate source returned %s", resp.Status)
	}
	var payload struct {
		Data []Option `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode rates response: %w", err)
	}
	for i := range payload.Data {
		payload.Data[i].StoreID = storeID
	}
	return payload.Data, nil
}

// MockSource returns canned rates and is useful for testing and development.
type MockSource struct {
	Currency string
}

// OptionsFor returns two static tiers regardless of destination.
func (m MockSource) OptionsFor(_ context.Context, storeID, _ string) ([]Option, error) {
	currency := m.Currency
	if currency == "" {
		currency = "IDR"
	}
	return []Option{
		{ID: storeID + "-reg", StoreID: storeID, Courier: "jne", Service: "REG", Price: money.MustNew(15_000, currency), ETA: "2-3"},
		{ID: storeID + "-yes", StoreID: storeID, Courier: "jne", Service: "YES", Price: money.MustNew(30_000, currency), ETA: "1"},
	}, nil
}
