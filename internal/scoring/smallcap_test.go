package scoring

import (
	"context"
	"testing"
	"time"

	"golang-backtest/internal/dto"
	"golang-backtest/internal/factor"
	"golang-backtest/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallCapConfig(params *dto.SmallCapParams) dto.StrategyConfig {
	return dto.StrategyConfig{
		Name:          "smallcap-momentum",
		ScoringKind:   dto.ScoringSmallCap,
		SmallCap:      params,
		StockUniverse: []string{"TEST"},
		Enabled:       true,
	}
}

// flatBars builds n identical bars so every sub-score sits at its floor.
func flatBars(n int, close float64, volume int64) []dto.PriceBar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]dto.PriceBar, n)
	for i := range bars {
		bars[i] = dto.PriceBar{
			Symbol:    "TEST",
			Timestamp: start.AddDate(0, 0, i),
			Open:      close,
			High:      close,
			Low:       close,
			Close:     close,
			Volume:    volume,
		}
	}
	return bars
}

func newSmallCapForTest(t *testing.T, params *dto.SmallCapParams, opts ...Option) Scorer {
	t.Helper()
	scorer, err := NewScorer(smallCapConfig(params), factor.NewRegistry(), logger.NewNop(), opts...)
	require.NoError(t, err)
	return scorer
}

func TestSmallCap_QualityFilter(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		params *dto.SmallCapParams
		bars   []dto.PriceBar
		opts   []Option
	}{
		{
			name:   "insufficient history",
			params: nil,
			bars:   flatBars(50, 10, 100000),
		},
		{
			name:   "price below floor",
			params: &dto.SmallCapParams{MinPrice: 5},
			bars:   flatBars(120, 2, 100000),
		},
		{
			name:   "volume below floor",
			params: &dto.SmallCapParams{MinAvgVolume: 500000},
			bars:   flatBars(120, 10, 100000),
		},
		{
			name:   "market cap outside band",
			params: &dto.SmallCapParams{MinMarketCap: 50e6, MaxMarketCap: 2e9},
			bars:   flatBars(120, 10, 100000),
			opts: []Option{WithMarketCapLookup(func(string) (float64, bool) {
				return 10e9, true
			})},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scorer := newSmallCapForTest(t, tt.params, tt.opts...)

			signal, err := scorer.Evaluate(ctx, "TEST", tt.bars, lastBar(tt.bars).Timestamp)
			require.NoError(t, err)

			assert.Equal(t, dto.SignalHold, signal.Type)
			assert.Zero(t, signal.Strength)
			assert.Contains(t, signal.Metadata, MetaFiltered)
			assert.Empty(t, signal.FactorScores, "filtered symbols are never scored")
		})
	}
}

func TestSmallCap_UnknownMarketCapSkipsBandCheck(t *testing.T) {
	scorer := newSmallCapForTest(t,
		&dto.SmallCapParams{MinMarketCap: 50e6, MaxMarketCap: 2e9},
		WithMarketCapLookup(func(string) (float64, bool) { return 0, false }),
	)

	bars := flatBars(120, 10, 100000)
	signal, err := scorer.Evaluate(context.Background(), "TEST", bars, lastBar(bars).Timestamp)
	require.NoError(t, err)

	assert.NotContains(t, signal.Metadata, MetaFiltered)
}

func TestSmallCap_SubScoresAndTotalAreClamped(t *testing.T) {
	// Exponential melt-up: maximal momentum, trend, breakout and volume.
	bars := flatBars(120, 100, 100000)
	price := 100.0
	for i := 100; i < 120; i++ {
		price *= 1.02
		bars[i].Open = price
		bars[i].High = price
		bars[i].Low = price
		bars[i].Close = price
	}
	bars[119].Volume = 500000

	scorer := newSmallCapForTest(t, nil)
	signal, err := scorer.Evaluate(context.Background(), "TEST", bars, lastBar(bars).Timestamp)
	require.NoError(t, err)

	require.Len(t, signal.FactorScores, 5)
	for _, sc := range signal.FactorScores {
		assert.GreaterOrEqual(t, sc.Value, 0.0, "sub-score %s below floor", sc.Factor)
		assert.LessOrEqual(t, sc.Value, 20.0, "sub-score %s above budget", sc.Factor)
	}

	total := signal.Metadata["composite_score"].(float64)
	assert.GreaterOrEqual(t, total, 0.0)
	assert.LessOrEqual(t, total, 100.0)
	assert.InDelta(t, total/100, signal.Strength, 1e-9)
}

func TestSmallCap_MeltUpScoresBuy(t *testing.T) {
	// +2%/day for 20 days: momentum, trend, breakout and volume surge all hit
	// their top tiers; RSI is pinned overbought and contributes 0. Total 80.
	bars := flatBars(120, 100, 100000)
	price := 100.0
	for i := 100; i < 120; i++ {
		price *= 1.02
		bars[i].Open = price
		bars[i].High = price
		bars[i].Low = price
		bars[i].Close = price
	}
	bars[119].Volume = 500000

	scorer := newSmallCapForTest(t, nil)
	signal, err := scorer.Evaluate(context.Background(), "TEST", bars, lastBar(bars).Timestamp)
	require.NoError(t, err)

	assert.Equal(t, dto.SignalBuy, signal.Type)
	assert.Greater(t, signal.PositionSizePercent, 0.0, "BUY tiers carry explicit sizing")
	assert.Greater(t, signal.StopLossPercent, 0.0)
}

func TestSmallCap_WeakCompositeScoresSell(t *testing.T) {
	// Perfectly flat series: RSI pins at 100 (no losses), momentum and volume
	// surge score 0, only trend near-zero and breakout floor contribute.
	bars := flatBars(120, 10, 100000)

	scorer := newSmallCapForTest(t, nil)
	signal, err := scorer.Evaluate(context.Background(), "TEST", bars, lastBar(bars).Timestamp)
	require.NoError(t, err)

	assert.Equal(t, dto.SignalSell, signal.Type)
	assert.Less(t, signal.Strength, 0.5)
}

func TestApplyTier(t *testing.T) {
	tests := []struct {
		name     string
		total    float64
		wantType dto.SignalType
		wantSize float64
		wantSL   float64
		wantTP   float64
	}{
		{"strong buy tier", 90, dto.SignalBuy, 15, 10, 30},
		{"buy tier", 80, dto.SignalBuy, 12, 12, 0},
		{"strong buy boundary", 85, dto.SignalBuy, 15, 10, 30},
		{"buy boundary", 75, dto.SignalBuy, 12, 12, 0},
		{"hold band", 60, dto.SignalHold, 0, 0, 0},
		{"sell below fifty", 49.9, dto.SignalSell, 0, 0, 0},
		{"hold at fifty", 50, dto.SignalHold, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signal := dto.Signal{Type: dto.SignalHold}
			applyTier(&signal, tt.total)

			assert.Equal(t, tt.wantType, signal.Type)
			assert.Equal(t, tt.wantSize, signal.PositionSizePercent)
			assert.Equal(t, tt.wantSL, signal.StopLossPercent)
			assert.Equal(t, tt.wantTP, signal.TakeProfitPercent)
		})
	}
}

func TestBucket(t *testing.T) {
	tiers := []tier{{3, 20}, {2, 15}, {1.5, 10}, {1, 5}}

	assert.Equal(t, 20.0, bucket(3.5, tiers))
	assert.Equal(t, 15.0, bucket(2.5, tiers))
	assert.Equal(t, 10.0, bucket(1.6, tiers))
	assert.Equal(t, 5.0, bucket(1.2, tiers))
	assert.Equal(t, 0.0, bucket(1.0, tiers), "tiers are strictly exclusive")
	assert.Equal(t, 0.0, bucket(0.4, tiers))
}

func TestSmallCap_BreakoutPercentiles(t *testing.T) {
	scorer := &smallCapScorer{cfg: smallCapConfig(nil), log: logger.NewNop()}

	// Range 100..200 over the trailing window.
	build := func(lastClose float64) []dto.PriceBar {
		bars := flatBars(120, 150, 100000)
		bars[0].High = 200
		bars[0].Low = 100
		last := &bars[119]
		last.Open = lastClose
		last.High = lastClose
		last.Low = lastClose
		last.Close = lastClose
		return bars
	}

	tests := []struct {
		name      string
		lastClose float64
		want      float64
	}{
		{"new high earns full points", 199, 20},
		{"ninetieth percentile", 192, 15},
		{"value bounce band", 125, 10},
		{"below tenth percentile", 105, 5},
		{"dead middle earns nothing", 150, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := scorer.breakoutScore(build(tt.lastClose))
			assert.Equal(t, tt.want, score.Value)
		})
	}
}

func lastBar(bars []dto.PriceBar) dto.PriceBar {
	return bars[len(bars)-1]
}
