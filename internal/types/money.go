package types

import (
	"errors"
	"math"
	"math/big"
)

// ErrOverflow is returned by any atomic-unit arithmetic whose exact result
// cannot be represented as a signed 64-bit integer. Saturating is never an
// acceptable substitute here.
var ErrOverflow = errors.New("overflow")

var maxInt64Big = big.NewInt(math.MaxInt64)

// Notional computes price*quantity/10^baseDecimals using a 256-bit wide
// intermediate and truncation toward zero, rejecting results that do not
// fit in an int64.
func Notional(price, quantity int64, baseDecimals uint8) (int64, error) {
	if price < 0 || quantity < 0 {
		return 0, ErrOverflow
	}
	product := new(big.Int).Mul(big.NewInt(price), big.NewInt(quantity))
	divisor := pow10(baseDecimals)
	result := new(big.Int).Quo(product, divisor) // Quo truncates toward zero
	if result.CmpAbs(maxInt64Big) > 0 {
		return 0, ErrOverflow
	}
	return result.Int64(), nil
}

// VWAP computes sum(cost)*10^baseDecimals/sum(quantity) truncated to an
// int64, or ok=false if quantity is zero (no trades).
func VWAP(totalCost, totalQuantity int64, baseDecimals uint8) (price int64, ok bool, err error) {
	if totalQuantity == 0 {
		return 0, false, nil
	}
	numerator := new(big.Int).Mul(big.NewInt(totalCost), pow10(baseDecimals))
	result := new(big.Int).Quo(numerator, big.NewInt(totalQuantity))
	if result.CmpAbs(maxInt64Big) > 0 {
		return 0, false, ErrOverflow
	}
	return result.Int64(), true, nil
}

// AddOverflows reports whether a+b would overflow a signed 64-bit integer.
// Both a and b are expected non-negative (the ledger only ever adds
// positive deltas), but the check is exact regardless of sign.
func AddOverflows(a, b int64) bool {
	sum := a + b
	return (b > 0 && sum < a) || (b < 0 && sum > a)
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
