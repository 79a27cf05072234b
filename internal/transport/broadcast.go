package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"fenrir/internal/types"
)

// BroadcastPublisher fans out depth/ticker/trade market-data messages to
// their per-market topics. Delivery is best-effort: a publish failure is
// logged by the caller, never fatal.
type BroadcastPublisher struct {
	client *redis.Client
}

// NewBroadcastPublisher wraps client for broadcast publication.
func NewBroadcastPublisher(client *redis.Client) *BroadcastPublisher {
	return &BroadcastPublisher{client: client}
}

// Publish routes a Broadcast to its topic based on Kind.
func (p *BroadcastPublisher) Publish(ctx context.Context, b types.Broadcast) error {
	switch b.Kind {
	case types.BroadcastDepth:
		return p.publish(ctx, fmt.Sprintf("depth:%s", b.Depth.MarketID), b.Depth)
	case types.BroadcastTicker:
		return p.publish(ctx, fmt.Sprintf("ticker:%s", b.Ticker.MarketID), b.Ticker)
	case types.BroadcastTrade:
		return p.publish(ctx, fmt.Sprintf("trades:%s", b.Trade.MarketID), b.Trade)
	default:
		return fmt.Errorf("unknown broadcast kind %d", b.Kind)
	}
}

func (p *BroadcastPublisher) publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal broadcast for %s: %w", topic, err)
	}
	return p.client.Publish(ctx, topic, data).Err()
}
