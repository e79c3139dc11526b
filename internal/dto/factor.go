package dto

type FactorType string

const (
	FactorRSI     FactorType = "rsi"
	FactorMACD    FactorType = "macd"
	FactorMACross FactorType = "ma_cross"
)

// FactorParams carries the numeric tuning knobs of a factor (periods,
// thresholds). Unset keys fall back to the factor's defaults.
type FactorParams map[string]float64

func (p FactorParams) GetOr(key string, fallback float64) float64 {
	if p == nil {
		return fallback
	}
	if v, ok := p[key]; ok {
		return v
	}
	return fallback
}

// FactorConfig is one entry of a strategy's factor list. At evaluation time
// weights are re-normalized over the enabled subset so they sum to 1.0
// regardless of the stored values.
type FactorConfig struct {
	Name    string       `json:"name" validate:"required"`
	Type    FactorType   `json:"type" validate:"required"`
	Weight  float64      `json:"weight" validate:"gte=0,lte=1"`
	Enabled bool         `json:"enabled"`
	Params  FactorParams `json:"params,omitempty"`
}

// FactorScore is a factor's normalized opinion about one symbol at one
// evaluation date. Value lives in [-1, 1] for generic factors; composite
// strategies store 0-point-scale sub-scores instead (see Metadata).
type FactorScore struct {
	Factor     string                 `json:"factor"`
	Value      float64                `json:"value"`
	Confidence float64                `json:"confidence"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Metadata keys shared across factor evaluators.
const (
	MetaInsufficientData = "insufficient_data"
	MetaFailedFactors    = "failed_factors"
)
