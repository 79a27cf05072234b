// Package snapshot periodically serializes balances, order books and
// tickers into Redis keys with a TTL, and reloads them on warm start.
// Grounded on original_source/engine/src/trading_engine.rs's
// take_snapshots/load_balance_snapshots pair — same key shapes
// (snapshot:balance:{user}, snapshot:orderbook:{market},
// snapshot:ticker:{market}) and the same durable-vs-ticker TTL split,
// reimplemented against Redis SET EX / GET / KEYS through go-redis
// instead of raw redis::cmd calls.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"fenrir/internal/book"
	"fenrir/internal/ledger"
	"fenrir/internal/types"
)

const (
	balanceKeyPrefix   = "snapshot:balance:"
	orderbookKeyPrefix = "snapshot:orderbook:"
	tickerKeyPrefix    = "snapshot:ticker:"
)

// BalanceSnapshot is the serialized form of one user's full balance row
// set, keyed under snapshot:balance:{user_id}.
type BalanceSnapshot struct {
	UserID   string                       `json:"user_id"`
	Balances map[string]types.TokenBalance `json:"balances"`
}

// OrderBookSnapshot is the serialized resting-order state of one market,
// keyed under snapshot:orderbook:{market_id}.
type OrderBookSnapshot struct {
	MarketID string         `json:"market_id"`
	Orders   []*types.Order `json:"orders"`
}

// Store reads and writes snapshot keys through a Redis client.
type Store struct {
	client     *redis.Client
	durableTTL time.Duration
	tickerTTL  time.Duration
}

// New builds a snapshot Store with the given durable (balances,
// orderbooks) and ticker TTLs.
func New(client *redis.Client, durableTTL, tickerTTL time.Duration) *Store {
	return &Store{client: client, durableTTL: durableTTL, tickerTTL: tickerTTL}
}

// SaveBalances writes one snapshot key per user present in byUser, a
// {token -> balance} map per user built by the caller from
// ledger.Ledger.AllByUser.
func (s *Store) SaveBalances(ctx context.Context, byUser map[string]map[string]types.TokenBalance) error {
	for userID, balances := range byUser {
		snap := BalanceSnapshot{UserID: userID, Balances: balances}
		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("marshal balance snapshot for %s: %w", userID, err)
		}
		key := balanceKeyPrefix + userID
		if err := s.client.Set(ctx, key, data, s.durableTTL).Err(); err != nil {
			return fmt.Errorf("save balance snapshot %s: %w", key, err)
		}
	}
	return nil
}

// SaveOrderBook writes the resting-order snapshot for one market.
func (s *Store) SaveOrderBook(ctx context.Context, b *book.OrderBook) error {
	orders := collectRestingOrders(b)
	snap := OrderBookSnapshot{MarketID: b.MarketID, Orders: orders}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal orderbook snapshot for %s: %w", b.MarketID, err)
	}
	key := orderbookKeyPrefix + b.MarketID
	if err := s.client.Set(ctx, key, data, s.durableTTL).Err(); err != nil {
		return fmt.Errorf("save orderbook snapshot %s: %w", key, err)
	}
	return nil
}

func collectRestingOrders(b *book.OrderBook) []*types.Order {
	var out []*types.Order
	for _, levels := range []*book.Levels{b.Bids, b.Asks} {
		iter := levels.Iter()
		for iter.Next() {
			out = append(out, iter.Item().Orders...)
		}
		iter.Release()
	}
	return out
}

// SaveTicker writes the ticker snapshot for one market, using the
// shorter ticker TTL.
func (s *Store) SaveTicker(ctx context.Context, t types.MarketTicker) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal ticker snapshot for %s: %w", t.MarketID, err)
	}
	key := tickerKeyPrefix + t.MarketID
	if err := s.client.Set(ctx, key, data, s.tickerTTL).Err(); err != nil {
		return fmt.Errorf("save ticker snapshot %s: %w", key, err)
	}
	return nil
}

// LoadBalances loads every snapshot:balance:* key into the ledger ahead
// of request-stream consumption.
func (s *Store) LoadBalances(ctx context.Context, led *ledger.Ledger) (int, error) {
	keys, err := s.client.Keys(ctx, balanceKeyPrefix+"*").Result()
	if err != nil {
		return 0, fmt.Errorf("list balance snapshot keys: %w", err)
	}
	loaded := 0
	for _, key := range keys {
		data, err := s.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			continue // expired between KEYS and GET
		}
		if err != nil {
			return loaded, fmt.Errorf("load balance snapshot %s: %w", key, err)
		}
		var snap BalanceSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			log.Error().Err(err).Str("key", key).Msg("dropping malformed balance snapshot")
			continue
		}
		for tokenID, bal := range snap.Balances {
			if bal.Available > 0 {
				if err := led.Credit(snap.UserID, tokenID, bal.Available); err != nil {
					return loaded, fmt.Errorf("restore available balance for %s/%s: %w", snap.UserID, tokenID, err)
				}
			}
			if bal.Locked > 0 {
				if err := led.Credit(snap.UserID, tokenID, bal.Locked); err != nil {
					return loaded, fmt.Errorf("restore locked balance for %s/%s: %w", snap.UserID, tokenID, err)
				}
				if err := led.Lock(snap.UserID, tokenID, bal.Locked); err != nil {
					return loaded, fmt.Errorf("restore locked balance for %s/%s: %w", snap.UserID, tokenID, err)
				}
			}
		}
		loaded++
	}
	return loaded, nil
}

// LoadOrderBook restores resting orders for one market from its snapshot
// key, if present. Returns ok=false when no snapshot exists (e.g. a
// market that traded for the first time since the last snapshot cycle),
// in which case the supervisor's WarmStart leaves that market's book
// empty; persisted orders are not replayed.
func (s *Store) LoadOrderBook(ctx context.Context, marketID string) (OrderBookSnapshot, bool, error) {
	key := orderbookKeyPrefix + marketID
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return OrderBookSnapshot{}, false, nil
	}
	if err != nil {
		return OrderBookSnapshot{}, false, fmt.Errorf("load orderbook snapshot %s: %w", key, err)
	}
	var snap OrderBookSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return OrderBookSnapshot{}, false, fmt.Errorf("decode orderbook snapshot %s: %w", key, err)
	}
	return snap, true, nil
}

// Restore re-inserts every order from snap into b, in the order they were
// serialized, so FIFO priority within each price level is preserved.
func Restore(b *book.OrderBook, snap OrderBookSnapshot) {
	for _, o := range snap.Orders {
		b.Insert(o.Side == types.Buy, o)
	}
}
