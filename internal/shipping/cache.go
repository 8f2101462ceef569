package shipping

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/pasar-checkout/internal/obs"
)

// CachedSource fronts a RateSource with a short-lived redis cache so
// repeated quoting inside one checkout session does not hammer the rate
// provider.
type CachedSource struct {
	Next   RateSource
	Client *redis.Client
	TTL    time.Duration
}

// OptionsFor returns cached options when present, otherwise delegates and
// stores the result. Cache failures fall through to the source.
func (c CachedSource) OptionsFor(ctx context.Context, storeID, destination string) ([]Option, error) {
	if c.Next == nil {
		return nil, fmt.Errorf("shipping: rate source not configured")
	}
	key := fmt.Sprintf("pasar:rates:%s:%s", storeID, destination)
	if c.Client != nil {
		if data, err := c.Client.Get(ctx, key).Bytes(); err == nil {
			var cached []Option
			if err := json.Unmarshal(data, &cached); err == nil {
				if obs.RateCacheHits != nil {
					obs.RateCacheHits.WithLabelValues("hit").Inc()
				}
				return cached, nil
			}
		}
		if obs.RateCacheHits != nil {
			obs.RateCacheHits.WithLabelValues("miss").Inc()
		}
	}
	options, err := c.Next.OptionsFor(ctx, storeID, destination)
	if err != nil {
		return nil, err
	}
	if c.Client != nil && c.TTL > 0 {
		if data, err := json.Marshal(options); err == nil {
			_ = c.Client.Set(ctx, key, data, c.TTL).Err()
		}
	}
	return options, nil
}
