package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCatalogParsesTokensAndMarkets(t *testing.T) {
	path := writeConfigFile(t, `tokens:
  - id: "USDC"
    symbol: "USDC"
    decimals: 6
    active: true
  - id: "BTC"
    symbol: "BTC"
    decimals: 8
    active: true

markets:
  - id: "BTC-USDC"
    symbol: "BTC/USDC"
    basetokenid: "BTC"
    quotetokenid: "USDC"
    ticksize: 100
    minordersize: 1000
    active: true
`)

	cat, err := LoadCatalog(path)
	require.NoError(t, err)

	require.Len(t, cat.Tokens, 2)
	assert.Equal(t, "USDC", cat.Tokens[0].ID)
	assert.Equal(t, uint8(6), cat.Tokens[0].Decimals)

	require.Len(t, cat.Markets, 1)
	m := cat.Markets[0]
	assert.Equal(t, "BTC-USDC", m.ID)
	assert.Equal(t, "BTC", m.BaseTokenID)
	assert.Equal(t, "USDC", m.QuoteTokenID)
	assert.Equal(t, int64(100), m.TickSize)
	assert.Equal(t, int64(1000), m.MinOrderSize)
	assert.True(t, m.Active)
}

func TestLoadCatalogMissingFileErrors(t *testing.T) {
	_, err := LoadCatalog(t.TempDir() + "/missing.yaml")
	assert.Error(t, err)
}
