package common

const (
	// TradingDaysPerYear is used to annualize daily volatility.
	TradingDaysPerYear = 252

	// RiskFreeRate is the annual risk-free rate used by Sharpe/Sortino.
	RiskFreeRate = 0.02

	// DefaultPositionSizePercent is the sizing heuristic applied when neither
	// the signal nor the strategy risk config carries an explicit size.
	DefaultPositionSizePercent = 10.0

	IntervalDaily = "1d"
)
