package matching

import (
	"fenrir/internal/book"
	"fenrir/internal/errs"
	"fenrir/internal/registry"
	"fenrir/internal/types"
)

// ApplyCancel locates a resting order by the book's order-id index,
// verifies ownership, unlocks its remaining reserved obligation and
// removes it from the book. Cancelling an order that is
// already Cancelled or Filled — or that never existed — fails NotFound,
// which also makes a duplicate cancel idempotent.
func (e *Engine) ApplyCancel(req types.CancelOrderRequest) Result {
	ctx, err := e.registry.Resolve(req.MarketID)
	if err != nil {
		return rejectResult(req.RequestID, err)
	}
	b := e.bookFor(req.MarketID)

	isBid, price, ok := b.Locate(req.OrderID)
	if !ok {
		return rejectResult(req.RequestID, errs.ErrNotFound)
	}
	// Check ownership before removing — a forbidden cancel must not mutate
	// book state, including the order's place in its FIFO queue.
	levels := b.Asks
	if isBid {
		levels = b.Bids
	}
	if level, found := levels.Get(&book.PriceLevel{Price: price}); found {
		for _, o := range level.Orders {
			if o.ID == req.OrderID && o.UserID != req.UserID {
				return rejectResult(req.RequestID, errs.ErrForbidden)
			}
		}
	}
	order, ok := b.Remove(req.OrderID)
	if !ok {
		return rejectResult(req.RequestID, errs.ErrNotFound)
	}

	if err := e.unlockRemainingObligation(order, ctx); err != nil {
		panic(err)
	}
	order.Status = types.Cancelled

	now := e.clock.Now()
	events := []types.PersistenceEvent{orderUpdatedEvent(order)}
	broadcasts := []types.Broadcast{depthBroadcast(b, req.MarketID, e.nextDepthSeq(req.MarketID), now, e.depthLevels)}

	return Result{
		OrderReply: &types.OrderReply{
			RequestID:         req.RequestID,
			Success:           true,
			Status:            types.Cancelled,
			OrderID:           order.ID,
			FilledQuantity:    order.FilledQuantity,
			RemainingQuantity: order.Remaining(),
		},
		Persistence: events,
		Broadcasts:  broadcasts,
	}
}

// unlockRemainingObligation releases the reservation still held against a
// resting order's unfilled remainder.
func (e *Engine) unlockRemainingObligation(order *types.Order, ctx registry.MarketContext) error {
	remaining := order.Remaining()
	if remaining <= 0 {
		return nil
	}
	if order.Side == types.Sell {
		return e.ledger.Unlock(order.UserID, ctx.Base.ID, remaining)
	}
	notional, err := types.Notional(order.Price, remaining, ctx.Base.Decimals)
	if err != nil {
		return err
	}
	return e.ledger.Unlock(order.UserID, ctx.Quote.ID, notional)
}
