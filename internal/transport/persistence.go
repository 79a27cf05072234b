package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"fenrir/internal/types"
)

// PersistenceAppender appends OrderCreated/OrderUpdated/TradeExecuted/
// BalanceUpdated events to an append-only stream for at-least-once,
// idempotent downstream persistence.
type PersistenceAppender struct {
	client *redis.Client
	stream string
}

// NewPersistenceAppender wraps client for persistence event publication.
func NewPersistenceAppender(client *redis.Client, stream string) *PersistenceAppender {
	return &PersistenceAppender{client: client, stream: stream}
}

// Append writes one persistence event. The supervisor calls this for
// every event in a Result's Persistence slice, in order, before acking
// the originating request — a failure here must halt the consumer loop
// rather than silently drop the event.
func (a *PersistenceAppender) Append(ctx context.Context, event types.PersistenceEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal persistence event: %w", err)
	}
	return a.client.XAdd(ctx, &redis.XAddArgs{
		Stream: a.stream,
		Values: map[string]any{
			"type": string(event.Type),
			"data": string(data),
		},
	}).Err()
}
