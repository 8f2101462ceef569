package events

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultStream is the redis stream events land on when none is configured.
const DefaultStream = "pasar:events"

// RedisStreamStore appends events to a capped redis stream. Downstream
// consumers (order service, analytics) read the stream with consumer
// groups; this service only produces.
type RedisStreamStore struct {
	Client *redis.Client
	Stream string
	MaxLen int64
}

// Append writes the event via XADD and returns it with its stream id.
func (s RedisStreamStore) Append(ctx context.Context, event Event) (Event, error) {
	if s.Client == nil {
		return Event{}, errors.New("events: redis client not configured")
	}
	stream := s.Stream
	if stream == "" {
		stream = DefaultStream
	}
	maxLen := s.MaxLen
	if maxLen <= 0 {
		maxLen = 10_000
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	id, err := s.Client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxLen,
		Approx: true,
		Values: map[string]any{
			"topic":        event.Topic,
			"aggregate_id": event.AggregateID,
			"payload":      string(event.Payload),
			"occurred_at":  event.OccurredAt.Format(time.RFC3339Nano),
		},
	}).Result()
	if err != nil {
		return Event{}, err
	}
	event.ID = id
	return event, nil
}
