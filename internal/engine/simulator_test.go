package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang-backtest/internal/dto"
	"golang-backtest/pkg/logger"
	"golang-backtest/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func dailyBars(symbol string, closes []float64) []dto.PriceBar {
	bars := make([]dto.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = dto.PriceBar{
			Symbol:    symbol,
			Timestamp: day0.AddDate(0, 0, i),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    1000,
		}
	}
	return bars
}

// scriptedScorer replays pre-planned signals keyed by symbol and day; every
// other evaluation is a HOLD.
type scriptedScorer struct {
	signals map[string]map[int64]dto.Signal
	err     error
}

func (s *scriptedScorer) Evaluate(ctx context.Context, symbol string, bars []dto.PriceBar, at time.Time) (dto.Signal, error) {
	if s.err != nil {
		return dto.Signal{}, s.err
	}
	if planned, ok := s.signals[symbol][utils.TruncateToDay(at).Unix()]; ok {
		planned.Symbol = symbol
		planned.Timestamp = at
		return planned, nil
	}
	return dto.Signal{Symbol: symbol, Type: dto.SignalHold, Timestamp: at}, nil
}

func scriptSignal(s *scriptedScorer, symbol string, day time.Time, signal dto.Signal) {
	if s.signals == nil {
		s.signals = make(map[string]map[int64]dto.Signal)
	}
	if s.signals[symbol] == nil {
		s.signals[symbol] = make(map[int64]dto.Signal)
	}
	s.signals[symbol][utils.TruncateToDay(day).Unix()] = signal
}

type memorySink struct {
	trades    []dto.BacktestTrade
	snapshots []dto.DailySnapshot
}

func (m *memorySink) RecordTrade(ctx context.Context, trade dto.BacktestTrade) error {
	m.trades = append(m.trades, trade)
	return nil
}

func (m *memorySink) RecordSnapshot(ctx context.Context, snapshot dto.DailySnapshot) error {
	m.snapshots = append(m.snapshots, snapshot)
	return nil
}

func runConfig(days int) dto.BacktestConfig {
	return dto.BacktestConfig{
		StrategyID:  1,
		StartDate:   day0,
		EndDate:     day0.AddDate(0, 0, days-1),
		InitialCash: 100000,
		Commission:  1,
		Slippage:    0.001,
	}
}

func testStrategy(universe ...string) dto.StrategyConfig {
	return dto.StrategyConfig{
		ID:            1,
		Name:          "test",
		ScoringKind:   dto.ScoringWeighted,
		StockUniverse: universe,
		Risk: dto.RiskManagement{
			MaxPositionSizePercent: 10,
			MaxPositions:           10,
		},
		Enabled: true,
	}
}

func TestSimulator_ZeroTradeRunIsFlat(t *testing.T) {
	sim := NewSimulator(logger.NewNop())
	sink := &memorySink{}

	result, err := sim.Run(context.Background(), RunInput{
		Config:   runConfig(5),
		Strategy: testStrategy("AAA"),
		Scorer:   &scriptedScorer{},
		Prices:   map[string][]dto.PriceBar{"AAA": dailyBars("AAA", []float64{50, 51, 52, 51, 50})},
		Sink:     sink,
	})
	require.NoError(t, err)

	assert.Empty(t, result.Trades)
	require.Len(t, result.Snapshots, 5)
	for _, snap := range result.Snapshots {
		assert.InDelta(t, 100000, snap.TotalValue, 1e-9, "HOLD-only run stays at initial cash")
		assert.Zero(t, snap.PositionCount)
	}
	assert.InDelta(t, 100000, result.FinalValue, 1e-9)

	require.NotNil(t, result.Metrics)
	assert.Zero(t, result.Metrics.TotalReturn)
	assert.Zero(t, result.Metrics.TotalTrades)
	assert.Zero(t, result.Metrics.WinRate)
	assert.Zero(t, result.Metrics.ProfitFactor)

	assert.Len(t, sink.snapshots, 5)
	assert.Empty(t, sink.trades)
}

func TestSimulator_BuyAndSellRoundTrip(t *testing.T) {
	scorer := &scriptedScorer{}
	scriptSignal(scorer, "AAA", day0, dto.Signal{Type: dto.SignalBuy, Strength: 0.9})
	scriptSignal(scorer, "AAA", day0.AddDate(0, 0, 2), dto.Signal{Type: dto.SignalSell, Strength: 0.2})

	sim := NewSimulator(logger.NewNop())
	cfg := runConfig(3)

	result, err := sim.Run(context.Background(), RunInput{
		Config:   cfg,
		Strategy: testStrategy("AAA"),
		Scorer:   scorer,
		Prices:   map[string][]dto.PriceBar{"AAA": dailyBars("AAA", []float64{50, 55, 60})},
	})
	require.NoError(t, err)

	require.Len(t, result.Trades, 2)
	buy, sell := result.Trades[0], result.Trades[1]

	assert.Equal(t, dto.TradeBuy, buy.Side)
	assert.InDelta(t, 50*1.001, buy.Price, 1e-9)
	assert.Nil(t, buy.PnL, "opening buys carry no P&L")
	// 10% of 100000 at the slipped fill price.
	slippedFill := 50 * 1.001
	assert.EqualValues(t, int64(10000/slippedFill), buy.Quantity)

	assert.Equal(t, dto.TradeSell, sell.Side)
	assert.InDelta(t, 60*0.999, sell.Price, 1e-9)
	require.NotNil(t, sell.PnL)
	assert.InDelta(t, float64(buy.Quantity)*(sell.Price-buy.Price), *sell.PnL, 1e-9)

	// Cash conservation: initial − buy cost − 2 commissions + sell proceeds.
	wantFinal := 100000 - buy.Amount - 2 + sell.Amount
	assert.InDelta(t, wantFinal, result.FinalValue, 1e-9)
	assert.Zero(t, result.Snapshots[2].PositionCount)
}

func TestSimulator_MaxPositionsBoundsNewEntries(t *testing.T) {
	scorer := &scriptedScorer{}
	for _, sym := range []string{"AAA", "BBB", "CCC"} {
		scriptSignal(scorer, sym, day0, dto.Signal{Type: dto.SignalBuy, Strength: 0.9})
	}
	// An add to an already-open position is allowed at the limit.
	scriptSignal(scorer, "AAA", day0.AddDate(0, 0, 1), dto.Signal{Type: dto.SignalBuy, Strength: 0.9})

	strategy := testStrategy("AAA", "BBB", "CCC")
	strategy.Risk.MaxPositions = 1

	prices := map[string][]dto.PriceBar{
		"AAA": dailyBars("AAA", []float64{50, 50}),
		"BBB": dailyBars("BBB", []float64{40, 40}),
		"CCC": dailyBars("CCC", []float64{30, 30}),
	}

	sim := NewSimulator(logger.NewNop())
	result, err := sim.Run(context.Background(), RunInput{
		Config:   runConfig(2),
		Strategy: strategy,
		Scorer:   scorer,
		Prices:   prices,
	})
	require.NoError(t, err)

	require.Len(t, result.Trades, 2)
	for _, trade := range result.Trades {
		assert.Equal(t, "AAA", trade.Symbol, "symbols are processed in order; only the first entry fits")
	}
	assert.Equal(t, 1, result.Snapshots[1].PositionCount)
}

func TestSimulator_SellWithoutPositionIsSkipped(t *testing.T) {
	scorer := &scriptedScorer{}
	scriptSignal(scorer, "AAA", day0, dto.Signal{Type: dto.SignalSell, Strength: 0.1})

	sim := NewSimulator(logger.NewNop())
	result, err := sim.Run(context.Background(), RunInput{
		Config:   runConfig(1),
		Strategy: testStrategy("AAA"),
		Scorer:   scorer,
		Prices:   map[string][]dto.PriceBar{"AAA": dailyBars("AAA", []float64{50})},
	})
	require.NoError(t, err)

	assert.Empty(t, result.Trades)
	assert.InDelta(t, 100000, result.FinalValue, 1e-9)
}

func TestSimulator_CarryForwardOnSparseSeries(t *testing.T) {
	scorer := &scriptedScorer{}
	scriptSignal(scorer, "AAA", day0, dto.Signal{Type: dto.SignalBuy, Strength: 0.9})

	// AAA only trades on day 1; BBB keeps the calendar alive on days 2-3.
	aaa := dailyBars("AAA", []float64{50})
	bbb := dailyBars("BBB", []float64{10, 10, 10})

	sim := NewSimulator(logger.NewNop())
	result, err := sim.Run(context.Background(), RunInput{
		Config:   runConfig(3),
		Strategy: testStrategy("AAA", "BBB"),
		Scorer:   scorer,
		Prices:   map[string][]dto.PriceBar{"AAA": aaa, "BBB": bbb},
	})
	require.NoError(t, err)

	require.Len(t, result.Snapshots, 3)
	// The missing bars carry the day-1 price forward: the curve stays flat.
	assert.InDelta(t, result.Snapshots[0].TotalValue, result.Snapshots[2].TotalValue, 1e-9)
	assert.Equal(t, 1, result.Snapshots[2].PositionCount)
}

func TestSimulator_SymbolsWithoutDataAreExcluded(t *testing.T) {
	sim := NewSimulator(logger.NewNop())

	result, err := sim.Run(context.Background(), RunInput{
		Config:   runConfig(2),
		Strategy: testStrategy("AAA", "GHOST"),
		Scorer:   &scriptedScorer{},
		Prices:   map[string][]dto.PriceBar{"AAA": dailyBars("AAA", []float64{50, 51})},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"GHOST"}, result.SkippedSymbols)
}

func TestSimulator_NoUsableData(t *testing.T) {
	sim := NewSimulator(logger.NewNop())

	_, err := sim.Run(context.Background(), RunInput{
		Config:   runConfig(2),
		Strategy: testStrategy("AAA"),
		Scorer:   &scriptedScorer{},
		Prices:   map[string][]dto.PriceBar{},
	})
	assert.ErrorIs(t, err, ErrNoUsableData)
}

func TestSimulator_EvaluationFailureIsIsolated(t *testing.T) {
	sim := NewSimulator(logger.NewNop())

	result, err := sim.Run(context.Background(), RunInput{
		Config:   runConfig(2),
		Strategy: testStrategy("AAA"),
		Scorer:   &scriptedScorer{err: errors.New("indicator blew up")},
		Prices:   map[string][]dto.PriceBar{"AAA": dailyBars("AAA", []float64{50, 51})},
	})
	require.NoError(t, err, "per-symbol failures never abort the run")

	assert.Empty(t, result.Trades)
	assert.Len(t, result.Snapshots, 2)
}

func TestSimulator_CancellationStopsBetweenDays(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sim := NewSimulator(logger.NewNop())
	_, err := sim.Run(ctx, RunInput{
		Config:   runConfig(5),
		Strategy: testStrategy("AAA"),
		Scorer:   &scriptedScorer{},
		Prices:   map[string][]dto.PriceBar{"AAA": dailyBars("AAA", []float64{50, 51, 52, 53, 54})},
	})
	assert.ErrorIs(t, err, context.Canceled)
}
