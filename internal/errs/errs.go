// Package errs declares the closed error taxonomy shared by the
// registry, ledger, book and matching packages. Validation, funds,
// liquidity and not-found/forbidden errors are ordinary returned errors
// that the supervisor translates into a REJECTED reply. ErrInvariantViolation
// is never returned to a caller that could swallow it silently — it is
// only ever wrapped and panicked with, caught at the top of the supervisor
// loop, logged at Fatal, and the loop halted. No silent repair.
package errs

import "errors"

var (
	// Validation
	ErrUnknownMarket   = errors.New("unknown market")
	ErrUnknownToken    = errors.New("unknown token")
	ErrInvalidPrice    = errors.New("price must be a positive multiple of tick size")
	ErrInvalidQuantity = errors.New("quantity must be at least the minimum order size")
	ErrMissingPrice    = errors.New("limit order requires a price")

	// Funds
	ErrInsufficientFunds = errors.New("insufficient balance")

	// Liquidity
	ErrNoLiquidity = errors.New("not enough liquidity to fill market order")

	// Not found / forbidden
	ErrNotFound = errors.New("order not found")
	ErrForbidden = errors.New("order does not belong to requesting user")

	// Overflow
	ErrOverflow = errors.New("overflow")

	// Fatal — halts the engine, never silently repaired.
	ErrInvariantViolation = errors.New("invariant violation")

	// Idempotence
	ErrDuplicateRequest = errors.New("request already applied")
)
