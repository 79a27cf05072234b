package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fenrir/internal/ledger"
	"fenrir/internal/registry"
	"fenrir/internal/types"
)

func TestApplyOrderRejectsUnknownMarket(t *testing.T) {
	e := newTestEngine(t)
	res := e.ApplyOrder(types.OrderRequest{RequestID: "r1", UserID: "alice", MarketID: "ETH-USDC", Side: types.Buy, Kind: types.LimitOrder, Price: ptr(100), Quantity: 1})
	require.NotNil(t, res.OrderReply)
	assert.False(t, res.OrderReply.Success)
	assert.Equal(t, types.Rejected, res.OrderReply.Status)
}

func TestApplyOrderRejectsLimitWithoutPrice(t *testing.T) {
	e := newTestEngine(t)
	res := e.ApplyOrder(types.OrderRequest{RequestID: "r1", UserID: "alice", MarketID: testMarket, Side: types.Buy, Kind: types.LimitOrder, Quantity: 1})
	assert.Equal(t, types.Rejected, res.OrderReply.Status)
}

func TestApplyOrderRejectsPriceNotMultipleOfTickSize(t *testing.T) {
	reg, err := registry.New(testTokens(), testMarkets(10, 1))
	require.NoError(t, err)
	e := New(reg, ledger.New(), &fakeClock{}, 50)
	fund(t, e, "alice", testQuote, 1_000_000)

	res := e.ApplyOrder(types.OrderRequest{RequestID: "r1", UserID: "alice", MarketID: testMarket, Side: types.Buy, Kind: types.LimitOrder, Price: ptr(7), Quantity: 1})
	assert.Equal(t, types.Rejected, res.OrderReply.Status)
}

func TestApplyOrderRejectsQuantityBelowMinimum(t *testing.T) {
	reg, err := registry.New(testTokens(), testMarkets(1, 100))
	require.NoError(t, err)
	e := New(reg, ledger.New(), &fakeClock{}, 50)
	fund(t, e, "alice", testQuote, 1_000_000)

	res := e.ApplyOrder(types.OrderRequest{RequestID: "r1", UserID: "alice", MarketID: testMarket, Side: types.Buy, Kind: types.LimitOrder, Price: ptr(1), Quantity: 50})
	assert.Equal(t, types.Rejected, res.OrderReply.Status)
}

func TestApplyOrderRejectsInsufficientFunds(t *testing.T) {
	e := newTestEngine(t)
	res := e.ApplyOrder(types.OrderRequest{RequestID: "r1", UserID: "alice", MarketID: testMarket, Side: types.Buy, Kind: types.LimitOrder, Price: ptr(100), Quantity: 10})
	assert.Equal(t, types.Rejected, res.OrderReply.Status)
}

func TestApplyOrderRestsUnmatchedLimitOrder(t *testing.T) {
	e := newTestEngine(t)
	fund(t, e, "alice", testQuote, 1_000_000)

	res := e.ApplyOrder(types.OrderRequest{RequestID: "r1", UserID: "alice", MarketID: testMarket, Side: types.Buy, Kind: types.LimitOrder, Price: ptr(100), Quantity: 10})
	require.True(t, res.OrderReply.Success)
	assert.Equal(t, types.Pending, res.OrderReply.Status)
	assert.Equal(t, int64(0), res.OrderReply.FilledQuantity)

	level, ok := e.Book(testMarket).BestBid()
	require.True(t, ok)
	assert.Equal(t, int64(100), level.Price)
}

func TestApplyOrderLockedReservationForLimitBuy(t *testing.T) {
	e := newTestEngine(t)
	fund(t, e, "alice", testQuote, 1_000_000)
	e.ApplyOrder(types.OrderRequest{RequestID: "r1", UserID: "alice", MarketID: testMarket, Side: types.Buy, Kind: types.LimitOrder, Price: ptr(100), Quantity: 10})

	bal := e.Ledger().Balance("alice", testQuote)
	assert.Equal(t, int64(1000), bal.Locked) // notional(100, 10, baseDecimals=0) == 1000
	assert.Equal(t, int64(1_000_000-1000), bal.Available)
}

func TestMatchesCrossingLimitOrdersAndSettles(t *testing.T) {
	e := newTestEngine(t)
	fund(t, e, "maker", testBase, 1_000_000)
	fund(t, e, "taker", testQuote, 1_000_000)

	sellRes := e.ApplyOrder(types.OrderRequest{RequestID: "s1", UserID: "maker", MarketID: testMarket, Side: types.Sell, Kind: types.LimitOrder, Price: ptr(100), Quantity: 10})
	require.Equal(t, types.Pending, sellRes.OrderReply.Status)

	buyRes := e.ApplyOrder(types.OrderRequest{RequestID: "b1", UserID: "taker", MarketID: testMarket, Side: types.Buy, Kind: types.LimitOrder, Price: ptr(100), Quantity: 10})
	require.True(t, buyRes.OrderReply.Success)
	assert.Equal(t, types.Filled, buyRes.OrderReply.Status)
	assert.Equal(t, int64(10), buyRes.OrderReply.FilledQuantity)
	require.Len(t, buyRes.OrderReply.Trades, 1)
	assert.Equal(t, int64(100), buyRes.OrderReply.Trades[0].Price)

	makerBase := e.Ledger().Balance("maker", testBase)
	assert.Equal(t, int64(999990), makerBase.Available)
	assert.Equal(t, int64(0), makerBase.Locked)

	makerQuote := e.Ledger().Balance("maker", testQuote)
	assert.Equal(t, int64(1000), makerQuote.Available)

	takerBase := e.Ledger().Balance("taker", testBase)
	assert.Equal(t, int64(10), takerBase.Available)

	takerQuote := e.Ledger().Balance("taker", testQuote)
	assert.Equal(t, int64(999000), takerQuote.Available)
	assert.Equal(t, int64(0), takerQuote.Locked)

	assert.True(t, e.Book(testMarket).Empty())
}

func TestPartialFillLeavesTakerResting(t *testing.T) {
	e := newTestEngine(t)
	fund(t, e, "maker", testBase, 1_000_000)
	fund(t, e, "taker", testQuote, 1_000_000)

	e.ApplyOrder(types.OrderRequest{RequestID: "s1", UserID: "maker", MarketID: testMarket, Side: types.Sell, Kind: types.LimitOrder, Price: ptr(100), Quantity: 5})
	buyRes := e.ApplyOrder(types.OrderRequest{RequestID: "b1", UserID: "taker", MarketID: testMarket, Side: types.Buy, Kind: types.LimitOrder, Price: ptr(100), Quantity: 10})

	assert.Equal(t, types.PartiallyFilled, buyRes.OrderReply.Status)
	assert.Equal(t, int64(5), buyRes.OrderReply.FilledQuantity)
	assert.Equal(t, int64(5), buyRes.OrderReply.RemainingQuantity)

	level, ok := e.Book(testMarket).BestBid()
	require.True(t, ok)
	assert.Equal(t, int64(5), level.Orders[0].Remaining())
}

func TestPartialFillBuyLimitWithPriceImprovementLocksOnlyRemainingObligation(t *testing.T) {
	e := newTestEngine(t)
	fund(t, e, "maker", testBase, 1_000_000)
	fund(t, e, "taker", testQuote, 1_000_000)

	e.ApplyOrder(types.OrderRequest{RequestID: "s1", UserID: "maker", MarketID: testMarket, Side: types.Sell, Kind: types.LimitOrder, Price: ptr(100), Quantity: 5})
	buyRes := e.ApplyOrder(types.OrderRequest{RequestID: "b1", UserID: "taker", MarketID: testMarket, Side: types.Buy, Kind: types.LimitOrder, Price: ptr(200), Quantity: 10})

	assert.Equal(t, types.PartiallyFilled, buyRes.OrderReply.Status)

	// Reserved notional(200,10)=2000. 5 units filled at 100 (cost 500); the
	// resting 5-unit remainder still owes notional(200,5)=1000 at its own
	// limit price. Locked must be exactly that remainder, not the
	// untouched original reservation of 2000.
	takerQuote := e.Ledger().Balance("taker", testQuote)
	assert.Equal(t, int64(1000), takerQuote.Locked)
	assert.Equal(t, int64(1_000_000-500-1000), takerQuote.Available)
}

func TestMarketOrderRejectedWithoutLiquidity(t *testing.T) {
	e := newTestEngine(t)
	fund(t, e, "taker", testQuote, 1_000_000)

	res := e.ApplyOrder(types.OrderRequest{RequestID: "b1", UserID: "taker", MarketID: testMarket, Side: types.Buy, Kind: types.MarketOrder, Quantity: 10})
	assert.Equal(t, types.Rejected, res.OrderReply.Status)
}

func TestMarketOrderRefundsUnusedReservation(t *testing.T) {
	e := newTestEngine(t)
	fund(t, e, "maker", testBase, 1_000_000)
	fund(t, e, "taker", testQuote, 1_000_000)

	e.ApplyOrder(types.OrderRequest{RequestID: "s1", UserID: "maker", MarketID: testMarket, Side: types.Sell, Kind: types.LimitOrder, Price: ptr(100), Quantity: 20})

	before := e.Ledger().Balance("taker", testQuote)
	res := e.ApplyOrder(types.OrderRequest{RequestID: "b1", UserID: "taker", MarketID: testMarket, Side: types.Buy, Kind: types.MarketOrder, Quantity: 10})
	require.True(t, res.OrderReply.Success)
	assert.Equal(t, types.Filled, res.OrderReply.Status)

	after := e.Ledger().Balance("taker", testQuote)
	// nothing should remain locked once the market order fully fills and
	// reconciles its reservation.
	assert.Equal(t, int64(0), after.Locked)
	assert.Less(t, after.Available, before.Available)
}

func TestVWAPAcrossMultipleFillPrices(t *testing.T) {
	e := newTestEngine(t)
	fund(t, e, "maker1", testBase, 1_000_000)
	fund(t, e, "maker2", testBase, 1_000_000)
	fund(t, e, "taker", testQuote, 1_000_000)

	e.ApplyOrder(types.OrderRequest{RequestID: "s1", UserID: "maker1", MarketID: testMarket, Side: types.Sell, Kind: types.LimitOrder, Price: ptr(100), Quantity: 5})
	e.ApplyOrder(types.OrderRequest{RequestID: "s2", UserID: "maker2", MarketID: testMarket, Side: types.Sell, Kind: types.LimitOrder, Price: ptr(200), Quantity: 5})

	res := e.ApplyOrder(types.OrderRequest{RequestID: "b1", UserID: "taker", MarketID: testMarket, Side: types.Buy, Kind: types.LimitOrder, Price: ptr(200), Quantity: 10})
	require.NotNil(t, res.OrderReply.AveragePrice)
	assert.Equal(t, int64(150), *res.OrderReply.AveragePrice)

	// Reserved notional(200,10)=2000, spent 5@100 + 5@200 = 1500: the 500
	// of price improvement on the first fill must not stay locked forever.
	takerQuote := e.Ledger().Balance("taker", testQuote)
	assert.Equal(t, int64(0), takerQuote.Locked)
	assert.Equal(t, int64(1_000_000-1500), takerQuote.Available)
}

func TestDepthBroadcastEmittedOnEveryOrder(t *testing.T) {
	e := newTestEngine(t)
	fund(t, e, "alice", testQuote, 1_000_000)
	res := e.ApplyOrder(types.OrderRequest{RequestID: "r1", UserID: "alice", MarketID: testMarket, Side: types.Buy, Kind: types.LimitOrder, Price: ptr(100), Quantity: 10})

	var sawDepth bool
	for _, b := range res.Broadcasts {
		if b.Kind == types.BroadcastDepth {
			sawDepth = true
		}
	}
	assert.True(t, sawDepth)
}

func TestTickerBroadcastOnlyEmittedWhenTradesOccur(t *testing.T) {
	e := newTestEngine(t)
	fund(t, e, "alice", testQuote, 1_000_000)
	res := e.ApplyOrder(types.OrderRequest{RequestID: "r1", UserID: "alice", MarketID: testMarket, Side: types.Buy, Kind: types.LimitOrder, Price: ptr(100), Quantity: 10})

	for _, b := range res.Broadcasts {
		assert.NotEqual(t, types.BroadcastTicker, b.Kind)
	}

	fund(t, e, "bob", testBase, 1_000_000)
	matchRes := e.ApplyOrder(types.OrderRequest{RequestID: "r2", UserID: "bob", MarketID: testMarket, Side: types.Sell, Kind: types.LimitOrder, Price: ptr(100), Quantity: 10})
	var sawTicker bool
	for _, b := range matchRes.Broadcasts {
		if b.Kind == types.BroadcastTicker {
			sawTicker = true
		}
	}
	assert.True(t, sawTicker)
}
