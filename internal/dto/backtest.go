package dto

import "time"

// BacktestRequest defines the parameters for running a backtest over a stored
// strategy.
type BacktestRequest struct {
	StrategyID  uint      `json:"strategy_id" validate:"required"`
	StartDate   time.Time `json:"start_date" validate:"required"`
	EndDate     time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
	InitialCash float64   `json:"initial_cash" validate:"gt=0"`
	Commission  float64   `json:"commission" validate:"gte=0"`
	Slippage    float64   `json:"slippage" validate:"gte=0,lt=1"`
}

// BacktestConfig is the engine-facing run configuration.
type BacktestConfig struct {
	StrategyID  uint      `json:"strategy_id"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	InitialCash float64   `json:"initial_cash"`
	Commission  float64   `json:"commission"` // flat currency per trade
	Slippage    float64   `json:"slippage"`   // unidirectional fraction
}

type TradeSide string

const (
	TradeBuy  TradeSide = "BUY"
	TradeSell TradeSide = "SELL"
)

// BacktestTrade records a single simulated fill. PnL is populated only for
// trades that reduce or close a position; nil for opening buys.
type BacktestTrade struct {
	Timestamp      time.Time  `json:"timestamp"`
	Symbol         string     `json:"symbol"`
	Side           TradeSide  `json:"side"`
	Quantity       int64      `json:"quantity"`
	Price          float64    `json:"price"`
	Amount         float64    `json:"amount"`
	SignalType     SignalType `json:"signal_type"`
	SignalStrength float64    `json:"signal_strength"`
	Reasoning      string     `json:"reasoning,omitempty"`
	PnL            *float64   `json:"pnl,omitempty"`
}

// SimulatedPosition is engine-owned mutable state that lives for the duration
// of one run. Created on first BUY, removed when quantity reaches zero.
type SimulatedPosition struct {
	Symbol       string  `json:"symbol"`
	Quantity     int64   `json:"quantity"`
	AveragePrice float64 `json:"average_price"`
	CurrentPrice float64 `json:"current_price"`
	CostBasis    float64 `json:"cost_basis"`
	MarketValue  float64 `json:"market_value"`
}

// DailySnapshot is the end-of-day portfolio state, append-only, one per
// simulated trading day. DailyReturn is the dollar change versus the prior
// snapshot.
type DailySnapshot struct {
	Timestamp      time.Time `json:"timestamp"`
	TotalValue     float64   `json:"total_value"`
	CashBalance    float64   `json:"cash_balance"`
	PositionsValue float64   `json:"positions_value"`
	PositionCount  int       `json:"position_count"`
	DailyReturn    float64   `json:"daily_return"`
}

// BacktestResult bundles everything one run produced.
type BacktestResult struct {
	RunID      uint                `json:"run_id,omitempty"`
	Config     BacktestConfig      `json:"config"`
	Trades     []BacktestTrade     `json:"trades"`
	Snapshots  []DailySnapshot     `json:"snapshots"`
	Metrics    *PerformanceMetrics `json:"metrics,omitempty"`
	FinalValue float64             `json:"final_value"`
	// SkippedSymbols lists universe symbols excluded for the whole run
	// (no usable price data).
	SkippedSymbols []string `json:"skipped_symbols,omitempty"`
}
