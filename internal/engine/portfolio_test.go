package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortfolio_BuyCashBookkeeping(t *testing.T) {
	pf := newPortfolio(100000)

	// 100 shares at a 50.05 fill with a 1.00 flat commission.
	err := pf.buy("AAA", 100, 50.05, 1)
	require.NoError(t, err)

	assert.InDelta(t, 94993.99, pf.cash, 1e-9)

	pos, ok := pf.position("AAA")
	require.True(t, ok)
	assert.EqualValues(t, 100, pos.Quantity)
	assert.InDelta(t, 50.05, pos.AveragePrice, 1e-9)
	assert.InDelta(t, 5005, pos.MarketValue, 1e-9)
	assert.InDelta(t, 99999, pf.totalValue(), 1e-9, "only the commission leaves the book")
}

func TestPortfolio_BuyInsufficientCashLeavesStateUntouched(t *testing.T) {
	pf := newPortfolio(1000)

	err := pf.buy("AAA", 100, 50, 1)
	require.Error(t, err)

	assert.InDelta(t, 1000, pf.cash, 1e-9)
	assert.Zero(t, pf.openPositions())
}

func TestPortfolio_BuyAveragesCost(t *testing.T) {
	pf := newPortfolio(100000)

	require.NoError(t, pf.buy("AAA", 100, 10, 0))
	require.NoError(t, pf.buy("AAA", 100, 20, 0))

	pos, ok := pf.position("AAA")
	require.True(t, ok)
	assert.EqualValues(t, 200, pos.Quantity)
	assert.InDelta(t, 15, pos.AveragePrice, 1e-9)
	assert.InDelta(t, 3000, pos.CostBasis, 1e-9)
}

func TestPortfolio_SellLiquidatesAndRealizesPnL(t *testing.T) {
	pf := newPortfolio(100000)
	require.NoError(t, pf.buy("AAA", 100, 50, 1))

	quantity, pnl, ok := pf.sell("AAA", 55, 1)
	require.True(t, ok)

	assert.EqualValues(t, 100, quantity)
	assert.InDelta(t, 500, pnl, 1e-9, "100 × (55 − 50)")
	assert.Zero(t, pf.openPositions(), "full liquidation removes the position")
	// 100000 − 5000 − 1 + 5500 − 1
	assert.InDelta(t, 100498, pf.cash, 1e-9)
}

func TestPortfolio_SellWithoutPositionIsNoop(t *testing.T) {
	pf := newPortfolio(1000)

	_, _, ok := pf.sell("AAA", 55, 1)
	assert.False(t, ok)
	assert.InDelta(t, 1000, pf.cash, 1e-9)
}

func TestPortfolio_MarkToMarketCarriesForward(t *testing.T) {
	pf := newPortfolio(100000)
	require.NoError(t, pf.buy("AAA", 10, 50, 0))
	require.NoError(t, pf.buy("BBB", 10, 30, 0))

	// Only AAA trades today; BBB carries its prior price forward.
	pf.markToMarket(map[string]float64{"AAA": 60})

	aaa, _ := pf.position("AAA")
	bbb, _ := pf.position("BBB")
	assert.InDelta(t, 60, aaa.CurrentPrice, 1e-9)
	assert.InDelta(t, 600, aaa.MarketValue, 1e-9)
	assert.InDelta(t, 30, bbb.CurrentPrice, 1e-9)
	assert.InDelta(t, 300, bbb.MarketValue, 1e-9)
}
