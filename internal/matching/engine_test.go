package matching

import (
	"testing"

	"fenrir/internal/ledger"
	"fenrir/internal/registry"
	"fenrir/internal/types"
)

// fakeClock hands out a strictly increasing sequence of timestamps so
// admission order is deterministic across a test without depending on
// wall-clock resolution.
type fakeClock struct{ t int64 }

func (c *fakeClock) Now() int64 {
	c.t++
	return c.t
}

const (
	testMarket = "BTC-USDC"
	testBase   = "BTC"
	testQuote  = "USDC"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	reg, err := registry.New(testTokens(), testMarkets(1, 1))
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	led := ledger.New()
	return New(reg, led, &fakeClock{}, 50)
}

// testTokens uses baseDecimals=0 so notional(price, qty) == price*qty
// exactly, keeping the arithmetic in test assertions easy to follow; the
// truncating-division behavior itself is covered directly in
// internal/types/money_test.go.
func testTokens() []types.Token {
	return []types.Token{
		{ID: testBase, Symbol: "BTC", Decimals: 0, Active: true},
		{ID: testQuote, Symbol: "USDC", Decimals: 0, Active: true},
	}
}

func testMarkets(tickSize, minOrderSize int64) []types.Market {
	return []types.Market{
		{ID: testMarket, Symbol: "BTC/USDC", BaseTokenID: testBase, QuoteTokenID: testQuote, TickSize: tickSize, MinOrderSize: minOrderSize, Active: true},
	}
}

func fund(t *testing.T, e *Engine, userID, tokenID string, amount int64) {
	t.Helper()
	if err := e.Ledger().Credit(userID, tokenID, amount); err != nil {
		t.Fatalf("fund: %v", err)
	}
}

func ptr(v int64) *int64 { return &v }
