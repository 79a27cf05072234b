// Package registry is the immutable-per-epoch market/token catalog.
// It is refreshed wholesale from an external source; readers always
// observe one consistent generation, never a mix of an old and a new
// catalog.
package registry

import (
	"fmt"
	"sync/atomic"

	"fenrir/internal/errs"
	"fenrir/internal/types"
)

type snapshot struct {
	tokens  map[string]types.Token
	markets map[string]types.Market
}

// Registry holds the current catalog generation. Refresh swaps the whole
// generation atomically so a concurrent Get sees either the old or the new
// catalog, never a torn mix.
type Registry struct {
	current atomic.Pointer[snapshot]
}

// New builds a registry seeded with the given tokens and markets. Every
// market's base/quote token ids must already be present in tokens.
func New(tokens []types.Token, markets []types.Market) (*Registry, error) {
	r := &Registry{}
	if err := r.Refresh(tokens, markets); err != nil {
		return nil, err
	}
	return r, nil
}

// Refresh atomically replaces the catalog. A market referencing a token
// absent from tokens is rejected — "a market returned by the registry is
// guaranteed to reference tokens also present in the registry".
func (r *Registry) Refresh(tokens []types.Token, markets []types.Market) error {
	snap := &snapshot{
		tokens:  make(map[string]types.Token, len(tokens)),
		markets: make(map[string]types.Market, len(markets)),
	}
	for _, t := range tokens {
		snap.tokens[t.ID] = t
	}
	for _, m := range markets {
		if _, ok := snap.tokens[m.BaseTokenID]; !ok {
			return fmt.Errorf("market %s: base token %s not in catalog: %w", m.ID, m.BaseTokenID, errs.ErrUnknownToken)
		}
		if _, ok := snap.tokens[m.QuoteTokenID]; !ok {
			return fmt.Errorf("market %s: quote token %s not in catalog: %w", m.ID, m.QuoteTokenID, errs.ErrUnknownToken)
		}
		snap.markets[m.ID] = m
	}
	r.current.Store(snap)
	return nil
}

// GetToken looks up a token by id against the current generation.
func (r *Registry) GetToken(tokenID string) (types.Token, error) {
	snap := r.current.Load()
	tok, ok := snap.tokens[tokenID]
	if !ok {
		return types.Token{}, errs.ErrUnknownToken
	}
	return tok, nil
}

// GetMarket looks up a market by id against the current generation.
func (r *Registry) GetMarket(marketID string) (types.Market, error) {
	snap := r.current.Load()
	mkt, ok := snap.markets[marketID]
	if !ok {
		return types.Market{}, errs.ErrUnknownMarket
	}
	return mkt, nil
}

// Counts reports the size of the current catalog generation.
func (r *Registry) Counts() (tokens, markets int) {
	snap := r.current.Load()
	return len(snap.tokens), len(snap.markets)
}

// MarketContext bundles a market with its base/quote token metadata, the
// "copy needed fields into the order context" step of so later
// catalog refreshes never mutate an already-accepted order.
type MarketContext struct {
	Market types.Market
	Base   types.Token
	Quote  types.Token
}

// Resolve returns the full market context for marketID in one consistent
// read.
func (r *Registry) Resolve(marketID string) (MarketContext, error) {
	mkt, err := r.GetMarket(marketID)
	if err != nil {
		return MarketContext{}, err
	}
	base, err := r.GetToken(mkt.BaseTokenID)
	if err != nil {
		return MarketContext{}, err
	}
	quote, err := r.GetToken(mkt.QuoteTokenID)
	if err != nil {
		return MarketContext{}, err
	}
	return MarketContext{Market: mkt, Base: base, Quote: quote}, nil
}
