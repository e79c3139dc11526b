// Package engine implements the day-by-day backtest simulator: it drives time
// forward over the trading calendar, asks the scorer for decisions per symbol,
// applies risk and sizing rules, and records trades and daily snapshots.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"golang-backtest/internal/analytics"
	"golang-backtest/internal/dto"
	"golang-backtest/internal/scoring"
	"golang-backtest/pkg/common"
	"golang-backtest/pkg/logger"
	"golang-backtest/pkg/utils"
)

// ErrNoUsableData is returned when no universe symbol has any price bar
// inside the run window — there is nothing to simulate.
var ErrNoUsableData = errors.New("no usable price data for any symbol in the universe")

// evalConcurrency bounds per-day parallel signal evaluation.
const evalConcurrency = 8

// Sink receives trades and snapshots as they are produced. A nil Sink in
// RunInput disables recording entirely for ad-hoc runs; the simulation result
// is identical either way.
type Sink interface {
	RecordTrade(ctx context.Context, trade dto.BacktestTrade) error
	RecordSnapshot(ctx context.Context, snapshot dto.DailySnapshot) error
}

// RunInput bundles everything one backtest run needs. Prices carry the full
// history per symbol (ascending, deduplicated), including warm-up bars before
// the start date.
type RunInput struct {
	Config   dto.BacktestConfig
	Strategy dto.StrategyConfig
	Scorer   scoring.Scorer
	Prices   map[string][]dto.PriceBar
	Sink     Sink
}

type Simulator struct {
	log *logger.Logger
}

func NewSimulator(log *logger.Logger) *Simulator {
	return &Simulator{log: log}
}

// Run executes one backtest. The day loop is strictly sequential; per-symbol
// signal evaluation within a day is parallel. Cancellation is checked once
// per simulated day.
func (s *Simulator) Run(ctx context.Context, in RunInput) (*dto.BacktestResult, error) {
	symbols, skipped := usableSymbols(in.Strategy.StockUniverse, in.Prices, in.Config.StartDate, in.Config.EndDate)
	if len(symbols) == 0 {
		return nil, ErrNoUsableData
	}
	for _, sym := range skipped {
		s.log.WarnContext(ctx, "symbol excluded from run, no price data in window",
			logger.StringField("symbol", sym))
	}

	days, closesByDay := tradingCalendar(symbols, in.Prices, in.Config.StartDate, in.Config.EndDate)

	pf := newPortfolio(in.Config.InitialCash)
	result := &dto.BacktestResult{
		Config:         in.Config,
		Trades:         []dto.BacktestTrade{},
		Snapshots:      make([]dto.DailySnapshot, 0, len(days)),
		SkippedSymbols: skipped,
	}

	prevTotal := in.Config.InitialCash
	for _, day := range days {
		if !utils.ShouldContinue(ctx, s.log) {
			return nil, ctx.Err()
		}

		closes := closesByDay[day.Unix()]
		pf.markToMarket(closes)

		signals := s.evaluateDay(ctx, in, symbols, day)

		for _, signal := range signals {
			if signal == nil || signal.Type == dto.SignalHold {
				continue
			}
			closePrice, hasBar := closes[signal.Symbol]
			if !hasBar {
				s.log.DebugContext(ctx, "no bar on day, signal not executable",
					logger.StringField("symbol", signal.Symbol),
					logger.TimeField("day", day))
				continue
			}
			if trade := s.applySignal(ctx, in, pf, *signal, closePrice, day); trade != nil {
				result.Trades = append(result.Trades, *trade)
				s.record(ctx, in.Sink, *trade)
			}
		}

		total := pf.totalValue()
		snapshot := dto.DailySnapshot{
			Timestamp:      day,
			TotalValue:     total,
			CashBalance:    pf.cash,
			PositionsValue: pf.positionsValue(),
			PositionCount:  pf.openPositions(),
			DailyReturn:    total - prevTotal,
		}
		prevTotal = total
		result.Snapshots = append(result.Snapshots, snapshot)
		s.recordSnapshot(ctx, in.Sink, snapshot)
	}

	result.FinalValue = pf.totalValue()

	metrics, err := analytics.Calculate(result.Snapshots, result.Trades)
	if err != nil {
		s.log.DebugContext(ctx, "metrics unavailable for run", logger.ErrorField(err))
	} else {
		result.Metrics = metrics
	}

	return result, nil
}

// evaluateDay scores every symbol in parallel. A single symbol's failure
// (error or panic) is logged and leaves a nil slot; it never aborts the day.
func (s *Simulator) evaluateDay(ctx context.Context, in RunInput, symbols []string, day time.Time) []*dto.Signal {
	signals := make([]*dto.Signal, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(evalConcurrency)
	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			signal, err := evaluateSymbol(gctx, in.Scorer, symbol, in.Prices[symbol], day)
			if err != nil {
				s.log.WarnContext(gctx, "symbol evaluation failed, skipping for the day",
					logger.StringField("symbol", symbol),
					logger.TimeField("day", day),
					logger.ErrorField(err))
				return nil
			}
			signals[i] = signal
			return nil
		})
	}
	_ = g.Wait()

	return signals
}

func evaluateSymbol(ctx context.Context, scorer scoring.Scorer, symbol string, bars []dto.PriceBar, day time.Time) (signal *dto.Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			signal, err = nil, fmt.Errorf("evaluation panicked: %v", r)
		}
	}()

	sig, err := scorer.Evaluate(ctx, symbol, bars, day)
	if err != nil {
		return nil, err
	}
	return &sig, nil
}

// applySignal applies the risk policy and executes the fill against the
// portfolio. Returns nil when the signal resolves to a no-op.
func (s *Simulator) applySignal(ctx context.Context, in RunInput, pf *portfolio, signal dto.Signal, closePrice float64, day time.Time) *dto.BacktestTrade {
	switch signal.Type {
	case dto.SignalBuy:
		return s.executeBuy(ctx, in, pf, signal, closePrice, day)
	case dto.SignalSell:
		return s.executeSell(ctx, in, pf, signal, closePrice, day)
	default:
		return nil
	}
}

func (s *Simulator) executeBuy(ctx context.Context, in RunInput, pf *portfolio, signal dto.Signal, closePrice float64, day time.Time) *dto.BacktestTrade {
	risk := in.Strategy.Risk
	if _, held := pf.position(signal.Symbol); !held {
		if risk.MaxPositions > 0 && pf.openPositions() >= risk.MaxPositions {
			s.log.DebugContext(ctx, "max positions reached, BUY skipped",
				logger.StringField("symbol", signal.Symbol),
				logger.IntField("max_positions", risk.MaxPositions))
			return nil
		}
	}

	// Tier-based sizing on the signal overrides the strategy default, which
	// overrides the global heuristic.
	sizePercent := signal.PositionSizePercent
	if sizePercent <= 0 {
		sizePercent = risk.MaxPositionSizePercent
	}
	if sizePercent <= 0 {
		sizePercent = common.DefaultPositionSizePercent
	}

	fillPrice := closePrice * (1 + in.Config.Slippage)
	targetNotional := sizePercent / 100 * pf.totalValue()
	quantity := int64(targetNotional / fillPrice)

	// Never plan a fill the cash balance cannot cover.
	if affordable := int64((pf.cash - in.Config.Commission) / fillPrice); quantity > affordable {
		quantity = affordable
	}
	if quantity <= 0 {
		s.log.DebugContext(ctx, "BUY resolves to zero quantity, skipped",
			logger.StringField("symbol", signal.Symbol),
			logger.Float64Field("cash", pf.cash))
		return nil
	}

	if err := pf.buy(signal.Symbol, quantity, fillPrice, in.Config.Commission); err != nil {
		s.log.WarnContext(ctx, "BUY fill rejected",
			logger.StringField("symbol", signal.Symbol),
			logger.ErrorField(err))
		return nil
	}

	return &dto.BacktestTrade{
		Timestamp:      day,
		Symbol:         signal.Symbol,
		Side:           dto.TradeBuy,
		Quantity:       quantity,
		Price:          fillPrice,
		Amount:         float64(quantity) * fillPrice,
		SignalType:     signal.Type,
		SignalStrength: signal.Strength,
		Reasoning:      signal.Reasoning,
	}
}

func (s *Simulator) executeSell(ctx context.Context, in RunInput, pf *portfolio, signal dto.Signal, closePrice float64, day time.Time) *dto.BacktestTrade {
	fillPrice := closePrice * (1 - in.Config.Slippage)

	quantity, pnl, ok := pf.sell(signal.Symbol, fillPrice, in.Config.Commission)
	if !ok {
		s.log.DebugContext(ctx, "SELL with no open position, skipped",
			logger.StringField("symbol", signal.Symbol))
		return nil
	}

	return &dto.BacktestTrade{
		Timestamp:      day,
		Symbol:         signal.Symbol,
		Side:           dto.TradeSell,
		Quantity:       quantity,
		Price:          fillPrice,
		Amount:         float64(quantity) * fillPrice,
		SignalType:     signal.Type,
		SignalStrength: signal.Strength,
		Reasoning:      signal.Reasoning,
		PnL:            utils.ToPointer(pnl),
	}
}

func (s *Simulator) record(ctx context.Context, sink Sink, trade dto.BacktestTrade) {
	if sink == nil {
		return
	}
	if err := sink.RecordTrade(ctx, trade); err != nil {
		s.log.ErrorContext(ctx, "failed to persist trade", logger.ErrorField(err))
	}
}

func (s *Simulator) recordSnapshot(ctx context.Context, sink Sink, snapshot dto.DailySnapshot) {
	if sink == nil {
		return
	}
	if err := sink.RecordSnapshot(ctx, snapshot); err != nil {
		s.log.ErrorContext(ctx, "failed to persist snapshot", logger.ErrorField(err))
	}
}

// usableSymbols splits the universe into symbols with at least one bar inside
// the run window and symbols excluded for the whole run.
func usableSymbols(universe []string, prices map[string][]dto.PriceBar, start, end time.Time) (usable, skipped []string) {
	start, end = utils.TruncateToDay(start), utils.TruncateToDay(end)
	for _, symbol := range universe {
		if hasBarInWindow(prices[symbol], start, end) {
			usable = append(usable, symbol)
		} else {
			skipped = append(skipped, symbol)
		}
	}
	sort.Strings(usable)
	sort.Strings(skipped)
	return usable, skipped
}

func hasBarInWindow(bars []dto.PriceBar, start, end time.Time) bool {
	for _, b := range bars {
		day := utils.TruncateToDay(b.Timestamp)
		if !day.Before(start) && !day.After(end) {
			return true
		}
	}
	return false
}

// tradingCalendar derives the ordered set of distinct trading days in the
// window (union over all symbols, deduplicated, ascending) together with a
// day-keyed close index for mark-to-market and fills.
func tradingCalendar(symbols []string, prices map[string][]dto.PriceBar, start, end time.Time) ([]time.Time, map[int64]map[string]float64) {
	start, end = utils.TruncateToDay(start), utils.TruncateToDay(end)
	closesByDay := make(map[int64]map[string]float64)
	for _, symbol := range symbols {
		for _, bar := range prices[symbol] {
			day := utils.TruncateToDay(bar.Timestamp)
			if day.Before(start) || day.After(end) {
				continue
			}
			key := day.Unix()
			if closesByDay[key] == nil {
				closesByDay[key] = make(map[string]float64)
			}
			closesByDay[key][symbol] = bar.Close
		}
	}

	days := make([]time.Time, 0, len(closesByDay))
	for key := range closesByDay {
		days = append(days, time.Unix(key, 0).UTC())
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, closesByDay
}
