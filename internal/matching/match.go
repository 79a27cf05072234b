package matching

import (
	"encoding/json"

	"fenrir/internal/book"
	"fenrir/internal/errs"
	"fenrir/internal/registry"
	"fenrir/internal/types"
)

// ApplyOrder admits req, reserves funds, runs it through the matching
// algorithm, settles every resulting trade and — for a Limit order with a
// remainder — rests it on the book. It is the engine's single entry point
// for the Order request kind: admission and reservation through
// settlement and reservation reconciliation.
func (e *Engine) ApplyOrder(req types.OrderRequest) Result {
	ctx, err := e.registry.Resolve(req.MarketID)
	if err != nil {
		return rejectResult(req.RequestID, err)
	}

	if req.Kind == types.LimitOrder && req.Price == nil {
		return rejectResult(req.RequestID, errs.ErrMissingPrice)
	}
	if req.Kind == types.LimitOrder {
		price := *req.Price
		if price <= 0 || price%ctx.Market.TickSize != 0 {
			return rejectResult(req.RequestID, errs.ErrInvalidPrice)
		}
	}
	if req.Quantity < ctx.Market.MinOrderSize {
		return rejectResult(req.RequestID, errs.ErrInvalidQuantity)
	}

	b := e.bookFor(req.MarketID)
	isBid := req.Side == types.Buy

	reserveToken := ctx.Quote.ID
	var reserveAmt int64
	if req.Side == types.Sell {
		reserveToken = ctx.Base.ID
		reserveAmt = reserveSell(req.Quantity)
	} else if req.Kind == types.LimitOrder {
		reserveAmt, err = reserveBuyLimit(*req.Price, req.Quantity, ctx.Base.Decimals)
		if err != nil {
			return rejectResult(req.RequestID, err)
		}
	} else {
		reserveAmt, err = reserveBuyMarket(b.Asks, req.Quantity, ctx.Base.Decimals)
		if err != nil {
			return rejectResult(req.RequestID, err)
		}
	}

	if err := e.ledger.Lock(req.UserID, reserveToken, reserveAmt); err != nil {
		return rejectResult(req.RequestID, err)
	}

	now := e.clock.Now()
	order := &types.Order{
		ID:        e.nextOrderID(),
		UserID:    req.UserID,
		MarketID:  req.MarketID,
		Side:      req.Side,
		Kind:      req.Kind,
		Quantity:  req.Quantity,
		Status:    types.Pending,
		CreatedAt: now,
		Seq:       e.nextSeq(),
	}
	if req.Kind == types.LimitOrder {
		order.Price = *req.Price
	}

	events := []types.PersistenceEvent{orderCreatedEvent(order)}
	broadcasts := []types.Broadcast{}

	fills, settleEvents, settleBroadcasts := e.match(b, order, ctx, reserveToken, reserveAmt, now)
	events = append(events, settleEvents...)
	broadcasts = append(broadcasts, settleBroadcasts...)
	events = append(events, orderUpdatedEvent(order))

	remaining := order.Remaining()
	if remaining > 0 {
		if order.Kind == types.LimitOrder {
			order.Status = pendingOrPartial(order)
			b.Insert(isBid, order)
		} else {
			// Market orders never rest. A Buy Market is only admitted when
			// the asks cover its full quantity, so a remainder here comes
			// from a Sell Market, which has no admission-time liquidity
			// check; its unfilled base was already unlocked by
			// reconcileTakerReservation.
			if order.FilledQuantity > 0 {
				order.Status = types.PartiallyFilled
			} else {
				order.Status = types.Rejected
			}
		}
	} else {
		order.Status = types.Filled
	}

	broadcasts = append(broadcasts, depthBroadcast(b, req.MarketID, e.nextDepthSeq(req.MarketID), now, e.depthLevels))
	if len(fills) > 0 {
		broadcasts = append(broadcasts, tickerBroadcast(e.tickerFor(req.MarketID), req.MarketID, e.nextTickerSeq(req.MarketID), now))
	}

	avgPrice, hasAvg := vwapOf(fills, ctx.Base.Decimals)
	reply := &types.OrderReply{
		RequestID:         req.RequestID,
		Success:           order.Status != types.Rejected,
		Status:            order.Status,
		OrderID:           order.ID,
		FilledQuantity:    order.FilledQuantity,
		RemainingQuantity: order.Remaining(),
		Trades:            fills,
	}
	if hasAvg {
		reply.AveragePrice = &avgPrice
	}
	if order.Status == types.Rejected {
		reply.Message = errMessage(errs.ErrNoLiquidity)
	}

	return Result{OrderReply: reply, Persistence: events, Broadcasts: broadcasts}
}

func pendingOrPartial(o *types.Order) types.OrderStatus {
	if o.FilledQuantity == 0 {
		return types.Pending
	}
	return types.PartiallyFilled
}

// match runs the price-time priority walk of the opposite side against
// taker, settling every trade as it is produced. It returns the trade
// fills (for the reply), persistence events and broadcasts for the trades
// themselves (depth/ticker broadcasts are emitted once by the caller after
// the walk completes).
func (e *Engine) match(b *book.OrderBook, taker *types.Order, ctx registry.MarketContext, takerReserveToken string, takerReserveAmt int64, now int64) ([]types.TradeFill, []types.PersistenceEvent, []types.Broadcast) {
	isBid := taker.Side == types.Buy
	opposite := b.Asks
	if !isBid {
		opposite = b.Bids
	}

	var fills []types.TradeFill
	var events []types.PersistenceEvent
	var broadcasts []types.Broadcast
	var executedCost int64 // buy-side taker: sum of trade cost in quote, for reservation reconciliation

	for taker.Remaining() > 0 {
		level, ok := opposite.Min()
		if !ok {
			break
		}
		if taker.Kind == types.LimitOrder {
			if isBid && level.Price > taker.Price {
				break
			}
			if !isBid && level.Price < taker.Price {
				break
			}
		}
		if len(level.Orders) == 0 {
			opposite.Delete(level)
			continue
		}
		maker := level.Orders[0]
		q := min64(taker.Remaining(), maker.Remaining())

		cost, err := types.Notional(level.Price, q, ctx.Base.Decimals)
		if err != nil {
			// Admission already validated this notional at the full
			// reservation; a per-fill overflow here would mean the book
			// itself holds an out-of-range price, which is an invariant
			// violation, not a user-facing rejection.
			panic(errs.ErrInvariantViolation)
		}

		taker.FilledQuantity += q
		maker.FilledQuantity += q

		var buyerID, sellerID string
		if isBid {
			buyerID, sellerID = taker.UserID, maker.UserID
			executedCost += cost
		} else {
			buyerID, sellerID = maker.UserID, taker.UserID
		}

		if err := e.ledger.SettleLocked(buyerID, ctx.Quote.ID, cost); err != nil {
			panic(err)
		}
		if err := e.ledger.Credit(buyerID, ctx.Base.ID, q); err != nil {
			panic(err)
		}
		if err := e.ledger.SettleLocked(sellerID, ctx.Base.ID, q); err != nil {
			panic(err)
		}
		if err := e.ledger.Credit(sellerID, ctx.Quote.ID, cost); err != nil {
			panic(err)
		}

		tradeID := e.nextTradeID()
		fills = append(fills, types.TradeFill{TradeID: tradeID, Price: level.Price, Quantity: q, Timestamp: now})
		trade := types.Trade{
			ID:            tradeID,
			MarketID:      b.MarketID,
			BuyerOrderID:  orderIDFor(isBid, taker, maker),
			SellerOrderID: orderIDFor(!isBid, taker, maker),
			BuyerUserID:   buyerID,
			SellerUserID:  sellerID,
			Price:         level.Price,
			Quantity:      q,
			Timestamp:     now,
		}
		events = append(events, tradeExecutedEvent(trade))
		events = append(events, balanceUpdatedEvent(buyerID, ctx.Quote.ID, e.ledger.Balance(buyerID, ctx.Quote.ID)))
		events = append(events, balanceUpdatedEvent(buyerID, ctx.Base.ID, e.ledger.Balance(buyerID, ctx.Base.ID)))
		events = append(events, balanceUpdatedEvent(sellerID, ctx.Base.ID, e.ledger.Balance(sellerID, ctx.Base.ID)))
		events = append(events, balanceUpdatedEvent(sellerID, ctx.Quote.ID, e.ledger.Balance(sellerID, ctx.Quote.ID)))
		broadcasts = append(broadcasts, tradeBroadcast(trade))
		e.tickerFor(b.MarketID).recordTrade(now, level.Price, q)

		if maker.FilledQuantity == maker.Quantity {
			maker.Status = types.Filled
			level.Orders = level.Orders[1:]
			b.Unindex(maker.ID)
			events = append(events, orderUpdatedEvent(maker))
		} else {
			maker.Status = types.PartiallyFilled
			events = append(events, orderUpdatedEvent(maker))
		}
		b.PruneIfEmpty(!isBid, level)
	}

	if reconcileErr := e.reconcileTakerReservation(taker, ctx, takerReserveToken, takerReserveAmt, executedCost); reconcileErr != nil {
		panic(reconcileErr)
	}

	return fills, events, broadcasts
}

// reconcileTakerReservation refunds whatever portion of the taker's
// up-front reservation is no longer the future obligation for its
// remaining quantity. A Market buy refunds its entire reservation beyond
// what it actually spent. A Limit buy that crossed refunds the realized
// price improvement: the gap between what it reserved at its own limit
// price and what it both spent at better maker prices and still owes on
// its resting remainder at its own limit price. Sell orders reserve exactly
// one unit of base per unit of quantity and SettleLocked removes one unit
// per unit filled, so a Sell Limit needs no refund; a Sell Market, which
// never rests, gets its unfilled base quantity unlocked.
func (e *Engine) reconcileTakerReservation(taker *types.Order, ctx registry.MarketContext, reserveToken string, reserveAmt, executedCost int64) error {
	if taker.Side == types.Sell {
		if taker.Kind == types.MarketOrder && taker.Remaining() > 0 {
			return e.ledger.Unlock(taker.UserID, reserveToken, taker.Remaining())
		}
		return nil
	}

	var stillOwed int64
	if taker.Kind == types.LimitOrder && taker.Remaining() > 0 {
		owed, err := types.Notional(taker.Price, taker.Remaining(), ctx.Base.Decimals)
		if err != nil {
			return err
		}
		stillOwed = owed
	}

	refund := reserveAmt - executedCost - stillOwed
	if refund <= 0 {
		return nil
	}
	return e.ledger.Unlock(taker.UserID, reserveToken, refund)
}

func orderIDFor(wantBuyer bool, taker, maker *types.Order) string {
	takerIsBuyer := taker.Side == types.Buy
	if wantBuyer == takerIsBuyer {
		return taker.ID
	}
	return maker.ID
}

func vwapOf(fills []types.TradeFill, baseDecimals uint8) (int64, bool) {
	if len(fills) == 0 {
		return 0, false
	}
	var cost, qty int64
	for _, f := range fills {
		c, err := types.Notional(f.Price, f.Quantity, baseDecimals)
		if err != nil {
			return 0, false
		}
		cost += c
		qty += f.Quantity
	}
	price, ok, err := types.VWAP(cost, qty, baseDecimals)
	if err != nil || !ok {
		return 0, false
	}
	return price, true
}

func (e *Engine) nextDepthSeq(marketID string) uint64 {
	e.depthSeq[marketID]++
	return e.depthSeq[marketID]
}

func (e *Engine) nextTickerSeq(marketID string) uint64 {
	e.tickerSeq[marketID]++
	return e.tickerSeq[marketID]
}

func depthBroadcast(b *book.OrderBook, marketID string, seq uint64, now int64, depthLevels int) types.Broadcast {
	bids, asks := b.Depth(depthLevels)
	return types.Broadcast{
		Kind: types.BroadcastDepth,
		Depth: &types.DepthUpdate{
			MarketID: marketID,
			Seq:      seq,
			Ts:       now,
			Bids:     toDepthLevels(bids),
			Asks:     toDepthLevels(asks),
		},
	}
}

func toDepthLevels(levels [][2]int64) []types.DepthLevel {
	out := make([]types.DepthLevel, len(levels))
	for i, l := range levels {
		out[i] = types.DepthLevel(l)
	}
	return out
}

func tickerBroadcast(t *tickerState, marketID string, seq uint64, now int64) types.Broadcast {
	tk := t.snapshot(marketID, now, seq)
	return types.Broadcast{
		Kind: types.BroadcastTicker,
		Ticker: &types.TickerUpdate{
			MarketID:  tk.MarketID,
			LastPrice: tk.LastPrice,
			Volume24h: tk.Volume24h,
			High24h:   tk.High24h,
			Low24h:    tk.Low24h,
			Timestamp: tk.Timestamp,
			Seq:       tk.Seq,
		},
	}
}

func tradeBroadcast(t types.Trade) types.Broadcast {
	return types.Broadcast{
		Kind: types.BroadcastTrade,
		Trade: &types.TradePrint{
			TradeID:      t.ID,
			MarketID:     t.MarketID,
			Price:        t.Price,
			Quantity:     t.Quantity,
			BuyerUserID:  t.BuyerUserID,
			SellerUserID: t.SellerUserID,
			Timestamp:    t.Timestamp,
		},
	}
}

func orderCreatedEvent(o *types.Order) types.PersistenceEvent {
	data, _ := json.Marshal(o)
	return types.PersistenceEvent{Type: types.EventOrderCreated, Data: data}
}

func orderUpdatedEvent(o *types.Order) types.PersistenceEvent {
	data, _ := json.Marshal(o)
	return types.PersistenceEvent{Type: types.EventOrderUpdated, Data: data}
}

func tradeExecutedEvent(t types.Trade) types.PersistenceEvent {
	data, _ := json.Marshal(t)
	return types.PersistenceEvent{Type: types.EventTradeExecuted, Data: data}
}

func balanceUpdatedEvent(userID, tokenID string, bal types.TokenBalance) types.PersistenceEvent {
	data, _ := json.Marshal(types.BalanceUpdatedData{
		UserID:    userID,
		TokenID:   tokenID,
		Available: bal.Available,
		Locked:    bal.Locked,
	})
	return types.PersistenceEvent{Type: types.EventBalanceUpdated, Data: data}
}

func rejectResult(requestID string, err error) Result {
	return Result{OrderReply: rejectedOrderReply(requestID, errMessage(err))}
}
