package voucher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/noah-isme/pasar-checkout/internal/resilience"
)

// ErrNotFound indicates the voucher code does not exist in the catalog.
var ErrNotFound = errors.New("voucher: not found")

// Source looks up voucher definitions by code. Implementations are
// collaborators; the pricing engine itself never performs I/O.
type Source interface {
	Lookup(ctx context.Context, code string) (Voucher, error)
}

// HTTPSource fetches voucher definitions from the marketplace voucher API.
type HTTPSource struct {
	BaseURL string
	Client  resilience.HTTPClient
}

// Lookup fetches the voucher identified by code. A 404 maps to ErrNotFound.
func (s HTTPSource) Lookup(ctx context.Context, code string) (Voucher, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Voucher{}, ErrNotFound
	}
	endpoint := strings.TrimRight(s.BaseURL, "/") + "/vouchers/" + url.PathEscape(code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Voucher{}, fmt.Errorf("build voucher request: %w", err)
	}
	resp, err := s.Client.Do(ctx, req)
	if err != nil {
		return Voucher{}, fmt.Errorf("fetch voucher %s: %w", code, err)
	}
	defer func() { _ = resp.Body.Close() }()
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return Voucher{}, ErrNotFound
	default:
		return Voucher{}, fmt.Errorf("voucher source returned %s", resp.Status)
	}
	var payload struct {
		Data Voucher `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Voucher{}, fmt.Errorf("decode voucher response: %w", err)
	}
	if strings.TrimSpace(payload.Data.Code) == "" {
		return Voucher{}, ErrNotFound
	}
	return payload.Data, nil
}

// StaticSource serves vouchers from an in-memory map. Useful for development
// and tests.
type StaticSource map[string]Voucher

// Lookup returns the voucher for code, matching case-insensitively.
func (s StaticSource) Lookup(_ context.Context, code string) (Voucher, error) {
	for k, v := range s {
		if strings.EqualFold(k, strings.TrimSpace(code)) {
			return v, nil
		}
	}
	return Voucher{}, ErrNotFound
}
