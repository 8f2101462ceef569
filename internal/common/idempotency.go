package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const idemKeyPrefix = "pasar:idem:"

// Idem enforces Idempotency-Key semantics with a redis SETNX marker.
// Checkout submission is the main consumer: a replayed submit gets a 409
// instead of placing a second order.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

// keyFor hashes the client-supplied key so arbitrary header content never
// lands in redis key space directly.
func keyFor(header string) string {
	sum := sha256.Sum256([]byte(header))
	return idemKeyPrefix + hex.EncodeToString(sum[:])
}

func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Idempotency-Key")
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := keyFor(header)
		fresh, err := i.R.SetNX(r.Context(), key, "locked", i.TTL).Result()
		if err != nil {
			JSONError(w, http.StatusInternalServerError, "INTERNAL", "idempotency store error", map[string]any{"error": err.Error()})
			return
		}
		if !fresh {
			JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request", nil)
			return
		}
		defer func() {
			// refresh the TTL even when the handler panics
			_ = i.R.Expire(context.Background(), key, i.TTL).Err()
		}()
		next.ServeHTTP(w, r)
	})
}
