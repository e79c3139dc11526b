package dto

type ScoringKind string

const (
	// ScoringWeighted blends independent factor opinions by weight.
	ScoringWeighted ScoringKind = "weighted"
	// ScoringSmallCap is the fixed-rule five-factor small-cap composite.
	ScoringSmallCap ScoringKind = "smallcap"
)

type RiskManagement struct {
	MaxPositionSizePercent float64 `json:"max_position_size_percent" validate:"gte=0,lte=100"`
	StopLossPercent        float64 `json:"stop_loss_percent" validate:"gte=0,lte=100"`
	TakeProfitPercent      float64 `json:"take_profit_percent" validate:"gte=0"`
	MaxPositions           int     `json:"max_positions" validate:"gte=1"`
}

// SmallCapParams holds the quality pre-filter bounds of the small-cap
// composite. Zero values disable the corresponding check.
type SmallCapParams struct {
	MinPrice     float64 `json:"min_price"`
	MinAvgVolume float64 `json:"min_avg_volume"`
	MinMarketCap float64 `json:"min_market_cap"`
	MaxMarketCap float64 `json:"max_market_cap"`
}

// StrategyConfig is read-only to the engine during a run.
type StrategyConfig struct {
	ID            uint            `json:"id"`
	Name          string          `json:"name" validate:"required"`
	ScoringKind   ScoringKind     `json:"scoring_kind" validate:"required,oneof=weighted smallcap"`
	Factors       []FactorConfig  `json:"factors" validate:"dive"`
	Risk          RiskManagement  `json:"risk_management"`
	SmallCap      *SmallCapParams `json:"small_cap,omitempty"`
	StockUniverse []string        `json:"stock_universe" validate:"required,min=1"`
	Enabled       bool            `json:"enabled"`
}
