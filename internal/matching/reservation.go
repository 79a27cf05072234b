package matching

import (
	"fenrir/internal/book"
	"fenrir/internal/errs"
	"fenrir/internal/types"
)

// reserveSell is always just the order quantity of base token, regardless
// of Market/Limit kind.
func reserveSell(quantity int64) int64 {
	return quantity
}

// reserveBuyLimit is notional(price, quantity) of quote token.
func reserveBuyLimit(price, quantity int64, baseDecimals uint8) (int64, error) {
	return types.Notional(price, quantity, baseDecimals)
}

// reserveBuyMarket walks the ask side top-down, summing notional(level
// price, consumed-at-level) until quantity is covered. Returns
// ErrNoLiquidity if the book cannot cover the full quantity.
func reserveBuyMarket(asks *book.Levels, quantity int64, baseDecimals uint8) (int64, error) {
	remaining := quantity
	var total int64

	iter := asks.Iter()
	defer iter.Release()
	for iter.Next() && remaining > 0 {
		level := iter.Item()
		avail := levelQuantity(level)
		if avail == 0 {
			continue
		}
		consumed := min64(avail, remaining)
		cost, err := types.Notional(level.Price, consumed, baseDecimals)
		if err != nil {
			return 0, err
		}
		if types.AddOverflows(total, cost) {
			return 0, errs.ErrOverflow
		}
		total += cost
		remaining -= consumed
	}
	if remaining > 0 {
		return 0, errs.ErrNoLiquidity
	}
	return total, nil
}

func levelQuantity(level *book.PriceLevel) int64 {
	var q int64
	for _, o := range level.Orders {
		q += o.Remaining()
	}
	return q
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
