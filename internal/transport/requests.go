// Package transport is the engine's only I/O boundary: a Redis Streams
// request consumer group, a Redis Streams persistence appender, and
// Redis Pub/Sub publishers for replies and market-data broadcasts.
// Nothing in package matching ever touches this package; the supervisor
// is the sole caller, and the matching algorithm itself performs no I/O.
//
// Grounded on internal/net/server.go — a tomb-supervised accept loop
// handing parsed messages to a session handler — generalized from raw
// TCP framing to a Redis Streams consumer group.
package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"fenrir/internal/types"
)

// RequestEnvelope is one decoded entry off the request stream: the closed
// request kind tag plus the raw JSON payload for the matching type.
type RequestEnvelope struct {
	StreamID string
	Kind     types.RequestKind
	Raw      json.RawMessage
}

// RequestConsumer reads Order/CancelOrder/Balance requests off a Redis
// Streams consumer group, acking only after the supervisor confirms the
// request was fully applied (at-least-once delivery; the supervisor's
// LRU de-dup absorbs redelivery).
type RequestConsumer struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
}

// NewRequestConsumer creates the consumer group if it does not already
// exist (starting from "$", i.e. only new entries) and returns a consumer
// bound to it.
func NewRequestConsumer(ctx context.Context, client *redis.Client, stream, group, consumer string) (*RequestConsumer, error) {
	if err := client.XGroupCreateMkStream(ctx, stream, group, "$").Err(); err != nil && !isBusyGroupErr(err) {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}
	return &RequestConsumer{client: client, stream: stream, group: group, consumer: consumer}, nil
}

func isBusyGroupErr(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}

// Read blocks for up to count new entries (or blockMillis, whichever comes
// first), decoding each into a RequestEnvelope. Malformed entries are
// logged and skipped rather than failing the whole batch — one bad
// message must not stall the stream.
func (c *RequestConsumer) Read(ctx context.Context, count int64, blockMillis int64) ([]RequestEnvelope, error) {
	res, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    count,
		Block:    durationMillis(blockMillis),
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read request stream: %w", err)
	}

	var envs []RequestEnvelope
	for _, stream := range res {
		for _, msg := range stream.Messages {
			env, ok := decodeEnvelope(msg)
			if !ok {
				log.Warn().Str("stream_id", msg.ID).Msg("dropping malformed request envelope")
				continue
			}
			envs = append(envs, env)
		}
	}
	return envs, nil
}

func decodeEnvelope(msg redis.XMessage) (RequestEnvelope, bool) {
	kindField, ok := msg.Values["kind"].(string)
	if !ok {
		return RequestEnvelope{}, false
	}
	kind, err := types.ParseRequestKind(kindField)
	if err != nil {
		return RequestEnvelope{}, false
	}
	payload, ok := msg.Values["payload"].(string)
	if !ok {
		return RequestEnvelope{}, false
	}
	return RequestEnvelope{StreamID: msg.ID, Kind: kind, Raw: json.RawMessage(payload)}, true
}

// Ack confirms a request has been fully applied and may be removed from
// the group's pending-entries list.
func (c *RequestConsumer) Ack(ctx context.Context, streamIDs ...string) error {
	if len(streamIDs) == 0 {
		return nil
	}
	return c.client.XAck(ctx, c.stream, c.group, streamIDs...).Err()
}
