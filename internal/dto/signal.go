package dto

import "time"

type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
	SignalHold SignalType = "HOLD"
)

// Signal is an actionable decision for one symbol at one evaluation date.
// Strength reflects composite conviction monotonically; HOLD signals are never
// sized by the simulator.
type Signal struct {
	Symbol       string        `json:"symbol"`
	Type         SignalType    `json:"type"`
	Strength     float64       `json:"strength"`
	Timestamp    time.Time     `json:"timestamp"`
	FactorScores []FactorScore `json:"factor_scores,omitempty"`

	// Sizing hints. Zero means "no opinion": the simulator falls back to the
	// strategy risk config. PositionSizePercent overrides the default sizing
	// heuristic when a composite strategy carries tier-based sizes.
	StopLossPercent     float64 `json:"stop_loss_percent,omitempty"`
	TakeProfitPercent   float64 `json:"take_profit_percent,omitempty"`
	PositionSizePercent float64 `json:"position_size_percent,omitempty"`

	Reasoning string                 `json:"reasoning,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}
