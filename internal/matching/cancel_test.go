package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fenrir/internal/types"
)

func TestCancelRestingOrderUnlocksRemainingObligation(t *testing.T) {
	e := newTestEngine(t)
	fund(t, e, "alice", testQuote, 1_000_000)
	orderRes := e.ApplyOrder(types.OrderRequest{RequestID: "r1", UserID: "alice", MarketID: testMarket, Side: types.Buy, Kind: types.LimitOrder, Price: ptr(100), Quantity: 10})
	orderID := orderRes.OrderReply.OrderID

	before := e.Ledger().Balance("alice", testQuote)
	assert.Equal(t, int64(1000), before.Locked)

	cancelRes := e.ApplyCancel(types.CancelOrderRequest{RequestID: "c1", UserID: "alice", MarketID: testMarket, OrderID: orderID})
	require.True(t, cancelRes.OrderReply.Success)
	assert.Equal(t, types.Cancelled, cancelRes.OrderReply.Status)

	after := e.Ledger().Balance("alice", testQuote)
	assert.Equal(t, int64(0), after.Locked)
	assert.Equal(t, int64(1_000_000), after.Available)
	assert.True(t, e.Book(testMarket).Empty())
}

func TestCancelPartiallyFilledOrderUnlocksOnlyRemainder(t *testing.T) {
	e := newTestEngine(t)
	fund(t, e, "maker", testQuote, 1_000_000)
	fund(t, e, "taker", testBase, 1_000_000)

	buyRes := e.ApplyOrder(types.OrderRequest{RequestID: "b1", UserID: "maker", MarketID: testMarket, Side: types.Buy, Kind: types.LimitOrder, Price: ptr(100), Quantity: 10})
	orderID := buyRes.OrderReply.OrderID

	e.ApplyOrder(types.OrderRequest{RequestID: "s1", UserID: "taker", MarketID: testMarket, Side: types.Sell, Kind: types.LimitOrder, Price: ptr(100), Quantity: 4})

	cancelRes := e.ApplyCancel(types.CancelOrderRequest{RequestID: "c1", UserID: "maker", MarketID: testMarket, OrderID: orderID})
	require.True(t, cancelRes.OrderReply.Success)
	assert.Equal(t, int64(4), cancelRes.OrderReply.FilledQuantity)

	after := e.Ledger().Balance("maker", testQuote)
	assert.Equal(t, int64(0), after.Locked)
}

func TestCancelUnknownOrderIsNotFound(t *testing.T) {
	e := newTestEngine(t)
	res := e.ApplyCancel(types.CancelOrderRequest{RequestID: "c1", UserID: "alice", MarketID: testMarket, OrderID: "ghost"})
	assert.False(t, res.OrderReply.Success)
	assert.NotEqual(t, types.Cancelled, res.OrderReply.Status)
}

func TestCancelByNonOwnerIsForbiddenAndLeavesBookUnchanged(t *testing.T) {
	e := newTestEngine(t)
	fund(t, e, "alice", testQuote, 1_000_000)
	orderRes := e.ApplyOrder(types.OrderRequest{RequestID: "r1", UserID: "alice", MarketID: testMarket, Side: types.Buy, Kind: types.LimitOrder, Price: ptr(100), Quantity: 10})
	orderID := orderRes.OrderReply.OrderID

	res := e.ApplyCancel(types.CancelOrderRequest{RequestID: "c1", UserID: "mallory", MarketID: testMarket, OrderID: orderID})
	assert.False(t, res.OrderReply.Success)

	level, ok := e.Book(testMarket).BestBid()
	require.True(t, ok)
	assert.Len(t, level.Orders, 1)

	bal := e.Ledger().Balance("alice", testQuote)
	assert.Equal(t, int64(1000), bal.Locked)
}

func TestCancelIsIdempotentAgainstDoubleCancel(t *testing.T) {
	e := newTestEngine(t)
	fund(t, e, "alice", testQuote, 1_000_000)
	orderRes := e.ApplyOrder(types.OrderRequest{RequestID: "r1", UserID: "alice", MarketID: testMarket, Side: types.Buy, Kind: types.LimitOrder, Price: ptr(100), Quantity: 10})
	orderID := orderRes.OrderReply.OrderID

	first := e.ApplyCancel(types.CancelOrderRequest{RequestID: "c1", UserID: "alice", MarketID: testMarket, OrderID: orderID})
	require.True(t, first.OrderReply.Success)

	second := e.ApplyCancel(types.CancelOrderRequest{RequestID: "c2", UserID: "alice", MarketID: testMarket, OrderID: orderID})
	assert.False(t, second.OrderReply.Success)
}
