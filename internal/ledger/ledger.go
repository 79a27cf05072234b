// Package ledger is the per-user, per-token balance ledger. It is
// owned exclusively by the matching core's single writer goroutine — like
// the order book, it holds no internal locking, matching "single
// writer, no sharing" resource model.
package ledger

import (
	"fmt"

	"fenrir/internal/errs"
	"fenrir/internal/types"
)

type key struct {
	user  string
	token string
}

// Ledger is the authoritative store of (available, locked) balances.
type Ledger struct {
	balances map[key]*types.TokenBalance
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{balances: make(map[key]*types.TokenBalance)}
}

func (l *Ledger) entry(user, token string) *types.TokenBalance {
	k := key{user, token}
	b, ok := l.balances[k]
	if !ok {
		b = &types.TokenBalance{}
		l.balances[k] = b
	}
	return b
}

// Credit increases available by delta. delta must be > 0.
func (l *Ledger) Credit(user, token string, delta int64) error {
	if delta <= 0 {
		return fmt.Errorf("credit: delta must be positive, got %d", delta)
	}
	b := l.entry(user, token)
	if types.AddOverflows(b.Available, delta) {
		return errs.ErrOverflow
	}
	b.Available += delta
	return nil
}

// Debit decreases available by delta. Fails InsufficientFunds if
// available < delta.
func (l *Ledger) Debit(user, token string, delta int64) error {
	if delta <= 0 {
		return fmt.Errorf("debit: delta must be positive, got %d", delta)
	}
	b := l.entry(user, token)
	if b.Available < delta {
		return errs.ErrInsufficientFunds
	}
	b.Available -= delta
	return nil
}

// Lock moves delta from available to locked. Fails InsufficientFunds if
// available < delta.
func (l *Ledger) Lock(user, token string, delta int64) error {
	if delta <= 0 {
		return fmt.Errorf("lock: delta must be positive, got %d", delta)
	}
	b := l.entry(user, token)
	if b.Available < delta {
		return errs.ErrInsufficientFunds
	}
	if types.AddOverflows(b.Locked, delta) {
		return errs.ErrOverflow
	}
	b.Available -= delta
	b.Locked += delta
	return nil
}

// Unlock moves delta from locked back to available. Fails
// InvariantViolation if locked < delta — this path must never be taken
// silently; callers that hit it are expected to panic, not recover.
func (l *Ledger) Unlock(user, token string, delta int64) error {
	if delta <= 0 {
		return fmt.Errorf("unlock: delta must be positive, got %d", delta)
	}
	b := l.entry(user, token)
	if b.Locked < delta {
		return errs.ErrInvariantViolation
	}
	if types.AddOverflows(b.Available, delta) {
		return errs.ErrOverflow
	}
	b.Locked -= delta
	b.Available += delta
	return nil
}

// SettleLocked removes delta from locked without crediting it back to
// available — the funds leave this user entirely, settled to a
// counterparty's available via a separate Credit call. Fails
// InvariantViolation if locked < delta.
func (l *Ledger) SettleLocked(user, token string, delta int64) error {
	if delta <= 0 {
		return fmt.Errorf("settle_locked: delta must be positive, got %d", delta)
	}
	b := l.entry(user, token)
	if b.Locked < delta {
		return errs.ErrInvariantViolation
	}
	b.Locked -= delta
	return nil
}

// Balance returns a copy of the current (available, locked) pair.
func (l *Ledger) Balance(user, token string) types.TokenBalance {
	k := key{user, token}
	if b, ok := l.balances[k]; ok {
		return *b
	}
	return types.TokenBalance{}
}

// Balances returns a snapshot of every (token, available, locked) row held
// by user, in no particular order.
func (l *Ledger) Balances(user string) []types.BalanceEntry {
	var out []types.BalanceEntry
	for k, b := range l.balances {
		if k.user != user {
			continue
		}
		out = append(out, types.BalanceEntry{
			TokenID:   k.token,
			Available: b.Available,
			Locked:    b.Locked,
		})
	}
	return out
}

// AllByToken returns every (user, balance) row for a token.
func (l *Ledger) AllByToken(token string) map[string]types.TokenBalance {
	out := make(map[string]types.TokenBalance)
	for k, b := range l.balances {
		if k.token != token {
			continue
		}
		out[k.user] = *b
	}
	return out
}

// AllByUser returns every row grouped by user then token, the shape the
// snapshot store serializes one snapshot:balance:{user_id} key from.
func (l *Ledger) AllByUser() map[string]map[string]types.TokenBalance {
	out := make(map[string]map[string]types.TokenBalance)
	for k, b := range l.balances {
		byToken, ok := out[k.user]
		if !ok {
			byToken = make(map[string]types.TokenBalance)
			out[k.user] = byToken
		}
		byToken[k.token] = *b
	}
	return out
}
