package universe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonho/pulserank/internal/domain"
	"github.com/wonho/pulserank/pkg/logger"
)

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "universe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSeed(t *testing.T) {
	path := writeSeed(t, `
instruments:
  - symbol: aapl
    exchange: NASDAQ
    sector: Technology
    currency: USD
    themes: [ai, consumer]
  - symbol: XOM
    exchange: NYSE
    sector: Energy
    currency: USD
`)

	insts, err := LoadSeed(path)
	require.NoError(t, err)
	require.Len(t, insts, 2)

	assert.Equal(t, "AAPL", insts[0].Symbol, "symbols are uppercased")
	assert.Equal(t, "Technology", insts[0].Sector)
	assert.Equal(t, []string{"ai", "consumer"}, insts[0].Themes)
}

func TestLoadSeedRejectsUnknownFields(t *testing.T) {
	path := writeSeed(t, `
instruments:
  - symbol: AAPL
    exchagne: NASDAQ
`)

	_, err := LoadSeed(path)
	assert.Error(t, err)
}

func TestLoadSeedRejectsMissingSymbol(t *testing.T) {
	path := writeSeed(t, `
instruments:
  - exchange: NASDAQ
`)

	_, err := LoadSeed(path)
	assert.Error(t, err)
}

func TestReplaceDiffsMembership(t *testing.T) {
	u := New(logger.NewNop())

	added, removed := u.Replace([]domain.Instrument{
		{Symbol: "AAPL"}, {Symbol: "MSFT"}, {Symbol: "XOM"},
	})
	assert.Equal(t, []string{"AAPL", "MSFT", "XOM"}, added)
	assert.Empty(t, removed)

	added, removed = u.Replace([]domain.Instrument{
		{Symbol: "AAPL"}, {Symbol: "NVDA"},
	})
	assert.Equal(t, []string{"NVDA"}, added)
	assert.Equal(t, []string{"MSFT", "XOM"}, removed)
	assert.Equal(t, 2, u.Len())
}

func TestReplaceFiresDelistHook(t *testing.T) {
	u := New(logger.NewNop())
	u.Replace([]domain.Instrument{{Symbol: "AAPL"}, {Symbol: "MSFT"}})

	var delisted []string
	u.OnDelist(func(symbol string) {
		delisted = append(delisted, symbol)
		// The hook must observe the post-swap membership.
		_, ok := u.Get(symbol)
		assert.False(t, ok)
	})

	u.Replace([]domain.Instrument{{Symbol: "AAPL"}})
	assert.Equal(t, []string{"MSFT"}, delisted)
}

func TestReplaceFiresEveryDelistHook(t *testing.T) {
	u := New(logger.NewNop())
	u.Replace([]domain.Instrument{{Symbol: "AAPL"}, {Symbol: "MSFT"}})

	// Result-cache invalidation and snapshot purging register separately.
	var first, second []string
	u.OnDelist(func(symbol string) { first = append(first, symbol) })
	u.OnDelist(func(symbol string) { second = append(second, symbol) })

	u.Replace([]domain.Instrument{{Symbol: "AAPL"}})
	assert.Equal(t, []string{"MSFT"}, first)
	assert.Equal(t, []string{"MSFT"}, second)
}

func TestGetIsCaseInsensitive(t *testing.T) {
	u := New(logger.NewNop())
	u.Replace([]domain.Instrument{{Symbol: "AAPL", Sector: "Technology"}})

	inst, ok := u.Get("aapl")
	require.True(t, ok)
	assert.Equal(t, "Technology", inst.Sector)
}

func TestListIsOrdered(t *testing.T) {
	u := New(logger.NewNop())
	u.Replace([]domain.Instrument{{Symbol: "XOM"}, {Symbol: "AAPL"}, {Symbol: "MSFT"}})

	insts := u.List()
	require.Len(t, insts, 3)
	assert.Equal(t, "AAPL", insts[0].Symbol)
	assert.Equal(t, "XOM", insts[2].Symbol)
	assert.Equal(t, []string{"AAPL", "MSFT", "XOM"}, u.Symbols())
}
