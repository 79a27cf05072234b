// Package matching is the matching core: order validation,
// reservation, the price-time-priority matching algorithm, settlement and
// cancellation. It is the single writer of books, balances and tickers
// and performs no I/O — Apply* methods are pure computation over
// in-memory state and return a Result bundle of events for the supervisor
// to publish, rather than publishing them itself.
//
// Grounded on internal/engine/engine.go (the owning Engine value holding
// a map of per-market order books) and
// internal/engine/orderbook.go (the Match/handleLimit/handleMarket flow),
// generalized from a single AssetType/float64-priced toy book to the full
// registry-sourced, atomic-unit, reservation-and-settlement design this
// package implements.
package matching

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"fenrir/internal/book"
	"fenrir/internal/errs"
	"fenrir/internal/ledger"
	"fenrir/internal/registry"
	"fenrir/internal/types"
)

// Engine owns every piece of mutable exchange state: order books,
// balances, tickers and the sequence counters that give each a strict
// total order. There is exactly one writer; callers must not invoke Apply*
// methods concurrently (the supervisor loop enforces this by construction).
type Engine struct {
	registry    *registry.Registry
	ledger      *ledger.Ledger
	clock       Clock
	depthLevels int

	books     map[string]*book.OrderBook
	tickers   map[string]*tickerState
	depthSeq  map[string]uint64
	tickerSeq map[string]uint64

	orderSeq uint64
	tradeSeq uint64
}

// defaultDepthLevels is used when New is given a non-positive depthLevels,
// matching the config package's own default for market.depth_levels.
const defaultDepthLevels = 50

// New builds an engine over reg and led, using clock for admission
// timestamps and depthLevels as the number of price levels per side
// included in each depth broadcast. Both reg and led are owned
// exclusively by the returned Engine from this point on.
func New(reg *registry.Registry, led *ledger.Ledger, clock Clock, depthLevels int) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	if depthLevels <= 0 {
		depthLevels = defaultDepthLevels
	}
	return &Engine{
		registry:    reg,
		ledger:      led,
		clock:       clock,
		depthLevels: depthLevels,
		books:       make(map[string]*book.OrderBook),
		tickers:     make(map[string]*tickerState),
		depthSeq:    make(map[string]uint64),
		tickerSeq:   make(map[string]uint64),
	}
}

func (e *Engine) bookFor(marketID string) *book.OrderBook {
	b, ok := e.books[marketID]
	if !ok {
		b = book.New(marketID)
		e.books[marketID] = b
	}
	return b
}

func (e *Engine) tickerFor(marketID string) *tickerState {
	t, ok := e.tickers[marketID]
	if !ok {
		t = newTickerState()
		e.tickers[marketID] = t
	}
	return t
}

// Result bundles everything one Apply* call produced: the reply to
// publish on the request's correlation channel, the persistence events to
// append (at-least-once, idempotent by entity id), and the best-effort
// market-data broadcasts to publish. Exactly one of OrderReply/BalanceReply
// is populated, matching the request kind.
type Result struct {
	OrderReply   *types.OrderReply
	BalanceReply *types.BalanceReply
	Persistence  []types.PersistenceEvent
	Broadcasts   []types.Broadcast
}

// Ledger exposes the engine's ledger (used by the supervisor's snapshot
// cycle and warm start, and by tests).
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// Registry exposes the engine's registry for admission-time lookups
// performed outside the matching core (e.g. REST-side validation).
func (e *Engine) Registry() *registry.Registry { return e.registry }

// Book returns the live order book for a market, creating it empty if this
// is the first reference — used by the snapshot manager and by tests.
func (e *Engine) Book(marketID string) *book.OrderBook {
	return e.bookFor(marketID)
}

// MarketIDs lists every market that has been referenced since startup —
// the set the supervisor iterates to snapshot order books and tickers.
func (e *Engine) MarketIDs() []string {
	ids := make([]string, 0, len(e.books))
	for id := range e.books {
		ids = append(ids, id)
	}
	return ids
}

// Ticker returns the current ticker snapshot for a market.
func (e *Engine) Ticker(marketID string) types.MarketTicker {
	now := e.clock.Now()
	return e.tickerFor(marketID).snapshot(marketID, now, e.tickerSeq[marketID])
}

func (e *Engine) nextOrderID() string { return uuid.NewString() }
func (e *Engine) nextTradeID() string { return uuid.NewString() }

func (e *Engine) nextSeq() uint64 {
	e.orderSeq++
	return e.orderSeq
}

func rejectedOrderReply(requestID string, msg string) *types.OrderReply {
	return &types.OrderReply{
		RequestID: requestID,
		Success:   false,
		Status:    types.Rejected,
		Message:   msg,
	}
}

// errMessage renders the human-readable REJECTED message.
func errMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, errs.ErrUnknownMarket):
		return "unknown market"
	case errors.Is(err, errs.ErrUnknownToken):
		return "unknown token"
	case errors.Is(err, errs.ErrMissingPrice):
		return "limit order requires a price"
	case errors.Is(err, errs.ErrInvalidPrice):
		return "price must be a positive multiple of the market tick size"
	case errors.Is(err, errs.ErrInvalidQuantity):
		return "quantity must be at least the market minimum order size"
	case errors.Is(err, errs.ErrInsufficientFunds):
		return "insufficient balance to reserve this order"
	case errors.Is(err, errs.ErrNoLiquidity):
		return "not enough resting liquidity to fill this market order"
	case errors.Is(err, errs.ErrNotFound):
		return "order not found"
	case errors.Is(err, errs.ErrForbidden):
		return "order does not belong to the requesting user"
	case errors.Is(err, errs.ErrOverflow), errors.Is(err, types.ErrOverflow):
		return "amount overflows the supported atomic unit range"
	case errors.Is(err, errs.ErrDuplicateRequest):
		return "request already applied"
	default:
		return fmt.Sprintf("rejected: %v", err)
	}
}
