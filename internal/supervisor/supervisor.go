// Package supervisor runs the tomb-supervised consumer loop that pulls
// requests off the request stream, dispatches them one at a time onto the
// single-writer matching core, publishes replies and persistence events,
// and folds periodic snapshotting into the same loop.
//
// Grounded on internal/net/server.go's Run/sessionHandler pair
// (tomb.WithContext, t.Go, t.Dying()) and internal/worker.go's worker-pool
// shape, generalized from a TCP accept-and-dispatch loop to a
// single-consumer Redis Streams loop — single-consumer because the
// matching core is a single writer by design, unlike that connection-
// per-worker model.
package supervisor

import (
	"context"
	"encoding/json"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"fenrir/internal/matching"
	"fenrir/internal/snapshot"
	"fenrir/internal/transport"
	"fenrir/internal/types"
)

const (
	readBatchSize = 64
	readBlockMs   = 1000
)

// Supervisor owns the consumer loop. It is the only caller of the
// matching core's Apply* methods, which makes the core's "single writer"
// requirement a structural property of this package rather than
// something enforced with locks.
type Supervisor struct {
	engine   *matching.Engine
	consumer *transport.RequestConsumer
	replies  *transport.ReplyPublisher
	persist  *transport.PersistenceAppender
	broad    *transport.BroadcastPublisher
	store    *snapshot.Store
	snapMgr  *snapshot.Manager
	dedup    *lru.Cache[string, struct{}]
}

// New builds a Supervisor wiring every collaborator together. dedupSize
// is the bounded LRU capacity for recently-applied request ids.
func New(
	engine *matching.Engine,
	consumer *transport.RequestConsumer,
	replies *transport.ReplyPublisher,
	persist *transport.PersistenceAppender,
	broad *transport.BroadcastPublisher,
	store *snapshot.Store,
	snapshotIntervalOps int,
	dedupSize int,
) (*Supervisor, error) {
	cache, err := lru.New[string, struct{}](dedupSize)
	if err != nil {
		return nil, fmt.Errorf("create dedup cache: %w", err)
	}
	return &Supervisor{
		engine:   engine,
		consumer: consumer,
		replies:  replies,
		persist:  persist,
		broad:    broad,
		store:    store,
		snapMgr:  snapshot.NewManager(snapshotIntervalOps),
		dedup:    cache,
	}, nil
}

// Run consumes the request stream until ctx is cancelled or a dying tomb
// member returns an error. A persistence-append failure or an invariant
// violation recovered from the matching core both halt the loop — the
// engine must never continue running with state it cannot account for.
func (s *Supervisor) Run(ctx context.Context) error {
	t, ctx := tomb.WithContext(ctx)

	t.Go(func() error {
		return s.consumeLoop(ctx, t)
	})

	return t.Wait()
}

func (s *Supervisor) consumeLoop(ctx context.Context, t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		default:
		}

		envs, err := s.consumer.Read(ctx, readBatchSize, readBlockMs)
		if err != nil {
			log.Error().Err(err).Msg("supervisor: failed reading request stream")
			return err
		}

		for _, env := range envs {
			if err := s.handleEnvelope(ctx, env); err != nil {
				return err
			}
		}
	}
}

// handleEnvelope dispatches one request and handles the invariant-
// violation panic boundary: package matching panics with
// errs.ErrInvariantViolation (or a wrapped ledger/book error the core
// treats as equally fatal) rather than ever returning it to a caller that
// could swallow it. This is the only place that recovers it.
func (s *Supervisor) handleEnvelope(ctx context.Context, env transport.RequestEnvelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Fatal().Interface("panic", r).Str("stream_id", env.StreamID).Msg("invariant violation, halting engine")
			err = fmt.Errorf("invariant violation while applying %s: %v", env.StreamID, r)
		}
	}()

	result, requestID, dup := s.apply(env)
	if dup {
		log.Debug().Str("request_id", requestID).Msg("supervisor: dropping duplicate request")
		// Already applied in a prior delivery of the same stream entry;
		// ack again so the group's pending list still clears.
		return s.consumer.Ack(ctx, env.StreamID)
	}

	for _, pe := range result.Persistence {
		if err := s.persist.Append(ctx, pe); err != nil {
			return fmt.Errorf("append persistence event: %w", err)
		}
	}

	if result.OrderReply != nil {
		if err := s.replies.PublishOrder(ctx, result.OrderReply); err != nil {
			log.Error().Err(err).Msg("supervisor: failed to publish order reply")
		}
	}
	if result.BalanceReply != nil {
		if err := s.replies.PublishBalance(ctx, result.BalanceReply); err != nil {
			log.Error().Err(err).Msg("supervisor: failed to publish balance reply")
		}
	}
	for _, b := range result.Broadcasts {
		if err := s.broad.Publish(ctx, b); err != nil {
			log.Error().Err(err).Msg("supervisor: failed to publish broadcast")
		}
	}

	if err := s.consumer.Ack(ctx, env.StreamID); err != nil {
		return fmt.Errorf("ack request %s: %w", env.StreamID, err)
	}

	if s.snapMgr.Tick() {
		s.runSnapshotCycle(ctx)
	}
	return nil
}

func (s *Supervisor) apply(env transport.RequestEnvelope) (matching.Result, string, bool) {
	switch env.Kind {
	case types.RequestOrder:
		var req types.OrderRequest
		if err := json.Unmarshal(env.Raw, &req); err != nil {
			return matching.Result{}, "", false
		}
		if s.isDuplicate(req.RequestID) {
			return matching.Result{}, req.RequestID, true
		}
		return s.engine.ApplyOrder(req), req.RequestID, false

	case types.RequestCancelOrder:
		var req types.CancelOrderRequest
		if err := json.Unmarshal(env.Raw, &req); err != nil {
			return matching.Result{}, "", false
		}
		if s.isDuplicate(req.RequestID) {
			return matching.Result{}, req.RequestID, true
		}
		return s.engine.ApplyCancel(req), req.RequestID, false

	case types.RequestBalance:
		var req types.BalanceRequest
		if err := json.Unmarshal(env.Raw, &req); err != nil {
			return matching.Result{}, "", false
		}
		if s.isDuplicate(req.RequestID) {
			return matching.Result{}, req.RequestID, true
		}
		return s.engine.ApplyBalance(req), req.RequestID, false

	default:
		return matching.Result{}, "", false
	}
}

// isDuplicate reports whether requestID has already been applied,
// recording it if not.
func (s *Supervisor) isDuplicate(requestID string) bool {
	if _, ok := s.dedup.Get(requestID); ok {
		return true
	}
	s.dedup.Add(requestID, struct{}{})
	return false
}

func (s *Supervisor) runSnapshotCycle(ctx context.Context) {
	if err := s.store.SaveBalances(ctx, s.engine.Ledger().AllByUser()); err != nil {
		log.Error().Err(err).Msg("snapshot: failed to save balances")
	}
	for _, marketID := range s.engine.MarketIDs() {
		if err := s.store.SaveOrderBook(ctx, s.engine.Book(marketID)); err != nil {
			log.Error().Err(err).Str("market_id", marketID).Msg("snapshot: failed to save orderbook")
		}
		if err := s.store.SaveTicker(ctx, s.engine.Ticker(marketID)); err != nil {
			log.Error().Err(err).Str("market_id", marketID).Msg("snapshot: failed to save ticker")
		}
	}
	log.Info().Int("markets", len(s.engine.MarketIDs())).Msg("snapshot: cycle complete")
}

// WarmStart loads balance snapshots into the engine's ledger, then
// restores each market's resting orders from its orderbook snapshot if
// one exists.
func (s *Supervisor) WarmStart(ctx context.Context, marketIDs []string) error {
	n, err := s.store.LoadBalances(ctx, s.engine.Ledger())
	if err != nil {
		return fmt.Errorf("warm start: load balances: %w", err)
	}
	log.Info().Int("users", n).Msg("warm start: balances restored")

	for _, marketID := range marketIDs {
		snap, ok, err := s.store.LoadOrderBook(ctx, marketID)
		if err != nil {
			return fmt.Errorf("warm start: load orderbook %s: %w", marketID, err)
		}
		if !ok {
			continue
		}
		snapshot.Restore(s.engine.Book(marketID), snap)
		log.Info().Str("market_id", marketID).Int("orders", len(snap.Orders)).Msg("warm start: orderbook restored")
	}
	return nil
}
