// Package book is the per-market order book: two price-ordered btrees of
// FIFO queues. Generalized from internal/engine/orderbook.go's
// float64-priced, matching-aware OrderBook to an int64 atomic-unit book
// that only holds and indexes resting orders — the matching algorithm
// itself now lives in package matching, which walks these btrees
// directly the way that file's Match/handleLimit/handleMarket did.
package book

import (
	"github.com/tidwall/btree"

	"fenrir/internal/types"
)

// PriceLevel is a single price and its FIFO queue of resting orders,
// preserving admission order. The matching core
// mutates Orders[i].FilledQuantity and Status in place as it walks the
// queue; the book only ever sees complete *types.Order values.
type PriceLevel struct {
	Price  int64
	Orders []*types.Order
}

type location struct {
	isBid bool
	price int64
}

// Levels is the exported alias for the price-keyed btree used for both
// sides, so callers outside this package (the matching core) can walk it
// with the same btree API directly.
type Levels = btree.BTreeG[*PriceLevel]

// OrderBook holds one market's resting liquidity.
type OrderBook struct {
	MarketID string

	// Bids sorted descending (best bid first); Asks sorted ascending (best
	// ask first) — matching "Bids ordered by descending price; asks
	// by ascending price".
	Bids *Levels
	Asks *Levels

	// index maps an order id to its side/price so Cancel is O(log n)
	// rather than a full book scan.
	index map[string]location
}

// New returns an empty order book for marketID.
func New(marketID string) *OrderBook {
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price > b.Price // descending: greatest first
	})
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price < b.Price // ascending: least first
	})
	return &OrderBook{
		MarketID: marketID,
		Bids:     bids,
		Asks:     asks,
		index:    make(map[string]location),
	}
}

func levelsFor(book *OrderBook, isBid bool) *Levels {
	if isBid {
		return book.Bids
	}
	return book.Asks
}

// Insert appends order to the tail of its own-side queue at order.Price,
// creating the price level if it does not yet exist, and indexes the
// order for O(log n) lookup/cancel. isBid must agree with order.Side
// (Buy -> true, Sell -> false); the matching core passes it explicitly
// rather than re-deriving it here.
func (b *OrderBook) Insert(isBid bool, order *types.Order) {
	levels := levelsFor(b, isBid)
	level, ok := levels.Get(&PriceLevel{Price: order.Price})
	if ok {
		level.Orders = append(level.Orders, order)
	} else {
		levels.Set(&PriceLevel{Price: order.Price, Orders: []*types.Order{order}})
	}
	b.index[order.ID] = location{isBid: isBid, price: order.Price}
}

// Locate returns the side and price an order was indexed under.
func (b *OrderBook) Locate(orderID string) (isBid bool, price int64, ok bool) {
	loc, ok := b.index[orderID]
	return loc.isBid, loc.price, ok
}

// Remove deletes orderID from its price level (wherever it currently sits
// in the FIFO queue — used by Cancel, which need not be at the queue
// head), pruning the level from the tree if it becomes empty. Returns the
// removed order, or ok=false if the order is not resting.
func (b *OrderBook) Remove(orderID string) (*types.Order, bool) {
	loc, ok := b.index[orderID]
	if !ok {
		return nil, false
	}
	levels := levelsFor(b, loc.isBid)
	level, ok := levels.Get(&PriceLevel{Price: loc.price})
	if !ok {
		delete(b.index, orderID)
		return nil, false
	}
	var removed *types.Order
	for i, o := range level.Orders {
		if o.ID == orderID {
			removed = o
			level.Orders = append(level.Orders[:i], level.Orders[i+1:]...)
			break
		}
	}
	if len(level.Orders) == 0 {
		levels.Delete(level)
	}
	delete(b.index, orderID)
	return removed, removed != nil
}

// PruneIfEmpty removes level from its tree if its order queue has been
// drained by the matching loop.
func (b *OrderBook) PruneIfEmpty(isBid bool, level *PriceLevel) {
	if len(level.Orders) == 0 {
		levelsFor(b, isBid).Delete(level)
	}
}

// Unindex removes the book's order-id index entry without touching the
// price level queue — used by the matching loop, which mutates
// level.Orders directly as it consumes the head of the queue.
func (b *OrderBook) Unindex(orderID string) {
	delete(b.index, orderID)
}

// BestBid returns the highest resting bid level, if any.
func (b *OrderBook) BestBid() (*PriceLevel, bool) {
	return b.Bids.Min()
}

// BestAsk returns the lowest resting ask level, if any.
func (b *OrderBook) BestAsk() (*PriceLevel, bool) {
	return b.Asks.Min()
}

// Depth returns up to `levels` (price, total remaining quantity) pairs per
// side for the depth broadcast.
func (b *OrderBook) Depth(levels int) (bids, asks [][2]int64) {
	bids = collectDepth(b.Bids, levels)
	asks = collectDepth(b.Asks, levels)
	return bids, asks
}

func collectDepth(levels *Levels, limit int) [][2]int64 {
	out := make([][2]int64, 0, limit)
	iter := levels.Iter()
	defer iter.Release()
	for iter.Next() && len(out) < limit {
		lvl := iter.Item()
		var qty int64
		for _, o := range lvl.Orders {
			qty += o.Remaining()
		}
		out = append(out, [2]int64{lvl.Price, qty})
	}
	return out
}

// Empty reports whether both sides of the book hold no resting orders.
func (b *OrderBook) Empty() bool {
	return b.Bids.Len() == 0 && b.Asks.Len() == 0
}
