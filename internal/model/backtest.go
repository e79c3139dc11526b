package model

import "time"

const (
	RunStatusRunning   = "RUNNING"
	RunStatusCompleted = "COMPLETED"
	RunStatusFailed    = "FAILED"
)

type BacktestRun struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	StrategyID   uint      `gorm:"not null;index" json:"strategy_id"`
	StartDate    time.Time `gorm:"not null" json:"start_date"`
	EndDate      time.Time `gorm:"not null" json:"end_date"`
	InitialCash  float64   `gorm:"not null" json:"initial_cash"`
	Commission   float64   `gorm:"not null" json:"commission"`
	Slippage     float64   `gorm:"not null" json:"slippage"`
	FinalValue   *float64  `json:"final_value"`
	Status       string    `gorm:"not null" json:"status"`
	ErrorMessage *string   `json:"error_message"`
	Strategy     Strategy  `gorm:"foreignKey:StrategyID;references:ID" json:"-"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (BacktestRun) TableName() string {
	return "backtest_runs"
}

type BacktestTrade struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	RunID          uint      `gorm:"not null;index" json:"run_id"`
	Timestamp      time.Time `gorm:"not null" json:"timestamp"`
	Symbol         string    `gorm:"not null" json:"symbol"`
	Side           string    `gorm:"not null" json:"side"`
	Quantity       int64     `gorm:"not null" json:"quantity"`
	Price          float64   `gorm:"not null" json:"price"`
	Amount         float64   `gorm:"not null" json:"amount"`
	SignalType     string    `json:"signal_type"`
	SignalStrength float64   `json:"signal_strength"`
	Reasoning      string    `json:"reasoning"`
	PnL            *float64  `gorm:"column:pnl" json:"pnl"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (BacktestTrade) TableName() string {
	return "backtest_trades"
}

type DailySnapshot struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	RunID          uint      `gorm:"not null;index" json:"run_id"`
	Timestamp      time.Time `gorm:"not null" json:"timestamp"`
	TotalValue     float64   `gorm:"not null" json:"total_value"`
	CashBalance    float64   `gorm:"not null" json:"cash_balance"`
	PositionsValue float64   `gorm:"not null" json:"positions_value"`
	PositionCount  int       `gorm:"not null" json:"position_count"`
	DailyReturn    float64   `gorm:"not null" json:"daily_return"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (DailySnapshot) TableName() string {
	return "daily_snapshots"
}

// PerformanceMetric rows are replaced, not appended: one row per run, upserted
// on recalculation.
type PerformanceMetric struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RunID       uint      `gorm:"not null;uniqueIndex" json:"run_id"`
	PeriodStart time.Time `gorm:"not null" json:"period_start"`
	PeriodEnd   time.Time `gorm:"not null" json:"period_end"`

	TotalReturn        float64 `json:"total_return"`
	TotalReturnPercent float64 `json:"total_return_percent"`
	AnnualizedReturn   float64 `json:"annualized_return"`
	Volatility         float64 `json:"volatility"`
	DownsideDeviation  float64 `json:"downside_deviation"`
	MaxDrawdown        float64 `json:"max_drawdown"`
	MaxDrawdownPercent float64 `json:"max_drawdown_percent"`
	SharpeRatio        float64 `json:"sharpe_ratio"`
	SortinoRatio       float64 `json:"sortino_ratio"`
	CalmarRatio        float64 `json:"calmar_ratio"`
	VaR95              float64 `gorm:"column:var_95" json:"var_95"`
	VaR99              float64 `gorm:"column:var_99" json:"var_99"`
	CVaR95             float64 `gorm:"column:cvar_95" json:"cvar_95"`
	CVaR99             float64 `gorm:"column:cvar_99" json:"cvar_99"`
	TotalTrades        int     `json:"total_trades"`
	WinningTrades      int     `json:"winning_trades"`
	LosingTrades       int     `json:"losing_trades"`
	WinRate            float64 `json:"win_rate"`
	ProfitFactor       float64 `json:"profit_factor"`
	AverageTrade       float64 `json:"average_trade"`
	TotalRealizedPnL   float64 `gorm:"column:total_realized_pnl" json:"total_realized_pnl"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PerformanceMetric) TableName() string {
	return "performance_metrics"
}
