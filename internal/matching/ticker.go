package matching

import "fenrir/internal/types"

// windowNanos is the rolling ticker window. original_source accumulated
// volume/high/low forever instead of over a rolling window; this
// implementation keeps a pruned sample deque per market instead of a
// single running total so the window actually rolls.
const windowNanos = int64(24 * 60 * 60 * 1_000_000_000)

type tradeSample struct {
	ts    int64
	price int64
	qty   int64
}

// tickerState tracks the rolling-24h window of trade prints for one
// market. It is intentionally simple (a pruned slice, not a circular
// buffer or a pre-aggregated tree) since the core's single-writer model
// means this never runs concurrently and per-market trade volume is
// bounded by realistic exchange throughput.
type tickerState struct {
	samples   []tradeSample
	lastPrice int64
	hasTrade  bool
}

func newTickerState() *tickerState {
	return &tickerState{}
}

func (t *tickerState) recordTrade(ts, price, qty int64) {
	t.samples = append(t.samples, tradeSample{ts: ts, price: price, qty: qty})
	t.lastPrice = price
	t.hasTrade = true
	t.prune(ts)
}

func (t *tickerState) prune(now int64) {
	cutoff := now - windowNanos
	i := 0
	for i < len(t.samples) && t.samples[i].ts < cutoff {
		i++
	}
	if i > 0 {
		t.samples = t.samples[i:]
	}
}

func (t *tickerState) snapshot(marketID string, now int64, seq uint64) types.MarketTicker {
	t.prune(now)
	var open, high, low, vol int64
	if len(t.samples) > 0 {
		open = t.samples[0].price
		high = t.samples[0].price
		low = t.samples[0].price
		for _, s := range t.samples {
			if s.price > high {
				high = s.price
			}
			if s.price < low {
				low = s.price
			}
			vol += s.qty
		}
	} else if t.hasTrade {
		open, high, low = t.lastPrice, t.lastPrice, t.lastPrice
	}
	return types.MarketTicker{
		MarketID:  marketID,
		LastPrice: t.lastPrice,
		Open24h:   open,
		High24h:   high,
		Low24h:    low,
		Volume24h: vol,
		Timestamp: now,
		Seq:       seq,
	}
}
