package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"fenrir/internal/types"
)

// ReplyPublisher publishes the single reply for a request onto its
// correlation channel. Best-effort: a
// requester that is not currently subscribed simply misses the reply, the
// same way the original source's request/reply channel behaves.
type ReplyPublisher struct {
	client *redis.Client
}

// NewReplyPublisher wraps client for reply publication.
func NewReplyPublisher(client *redis.Client) *ReplyPublisher {
	return &ReplyPublisher{client: client}
}

func replyChannel(requestID string) string {
	return fmt.Sprintf("reply:%s", requestID)
}

// PublishOrder publishes an OrderReply.
func (p *ReplyPublisher) PublishOrder(ctx context.Context, reply *types.OrderReply) error {
	data, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("marshal order reply: %w", err)
	}
	return p.client.Publish(ctx, replyChannel(reply.RequestID), data).Err()
}

// PublishBalance publishes a BalanceReply.
func (p *ReplyPublisher) PublishBalance(ctx context.Context, reply *types.BalanceReply) error {
	data, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("marshal balance reply: %w", err)
	}
	return p.client.Publish(ctx, replyChannel(reply.RequestID), data).Err()
}
