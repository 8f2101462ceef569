package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound indicates the session does not exist or has expired.
var ErrNotFound = errors.New("session: not found")

// Store keeps checkout sessions as JSON documents in redis with a TTL.
// Sessions are checkout-scoped ephemera; there is nothing to persist once
// the order is submitted or the buyer walks away.
type Store struct {
	Client *redis.Client
	TTL    time.Duration
}

func (st Store) ttl() time.Duration {
	if st.TTL <= 0 {
		return 2 * time.Hour
	}
	return st.TTL
}

func sessionKey(id string) string {
	return "pasar:session:" + id
}

// Save writes the session, refreshing its TTL.
func (st Store) Save(ctx context.Context, s Session) error {
	if st.Client == nil {
		return errors.New("session store not configured")
	}
	if s.ID == "" {
		return errors.New("session id required")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return st.Client.Set(ctx, sessionKey(s.ID), data, st.ttl()).Err()
}

// Get loads a session by id.
func (st Store) Get(ctx context.Context, id string) (Session, error) {
	if st.Client == nil {
		return Session{}, errors.New("session store not configured")
	}
	data, err := st.Client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}

// Delete removes a session, e.g. after submission hand-off.
func (st Store) Delete(ctx context.Context, id string) error {
	if st.Client == nil {
		return errors.New("session store not configured")
	}
	return st.Client.Del(ctx, sessionKey(id)).Err()
}
