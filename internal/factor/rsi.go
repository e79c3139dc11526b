package factor

import (
	"fmt"
	"time"

	"golang-backtest/internal/dto"
)

const (
	defaultRSIPeriod     = 14
	defaultRSIOversold   = 30
	defaultRSIOverbought = 70

	// neutralRSI is reported when there are not enough bars for the lookback.
	neutralRSI = 50.0
)

type rsiFactor struct{}

// NewRSI returns the RSI evaluator. The score is bullish below the oversold
// threshold, bearish above the overbought threshold, and a linear blend in
// between.
func NewRSI() Evaluator {
	return &rsiFactor{}
}

func (f *rsiFactor) Name() string { return "rsi" }

func (f *rsiFactor) ValidateParams(params dto.FactorParams) error {
	period := params.GetOr("period", defaultRSIPeriod)
	oversold := params.GetOr("oversold", defaultRSIOversold)
	overbought := params.GetOr("overbought", defaultRSIOverbought)

	if period < 2 {
		return fmt.Errorf("%w: rsi period must be >= 2, got %v", ErrInvalidParams, period)
	}
	if oversold <= 0 || overbought >= 100 || oversold >= overbought {
		return fmt.Errorf("%w: rsi thresholds must satisfy 0 < oversold < overbought < 100, got %v/%v",
			ErrInvalidParams, oversold, overbought)
	}
	return nil
}

func (f *rsiFactor) Evaluate(bars []dto.PriceBar, at time.Time, params dto.FactorParams) (dto.FactorScore, error) {
	period := int(params.GetOr("period", defaultRSIPeriod))
	oversold := params.GetOr("oversold", defaultRSIOversold)
	overbought := params.GetOr("overbought", defaultRSIOverbought)

	window := windowEndingAt(bars, at)
	prices := closes(window)
	if len(prices) < period+1 {
		return insufficientScore(f.Name(), 0.25, map[string]interface{}{
			"rsi":    neutralRSI,
			"period": period,
		}), nil
	}

	rsi := computeRSI(prices, period)
	value := scoreFromRSI(rsi, oversold, overbought)

	confidence := 0.4 + 0.3*abs(value)
	if rsi <= oversold || rsi >= overbought {
		confidence = 0.9
	}

	return dto.FactorScore{
		Factor:     f.Name(),
		Value:      value,
		Confidence: confidence,
		Metadata: map[string]interface{}{
			"rsi":        rsi,
			"period":     period,
			"oversold":   oversold,
			"overbought": overbought,
		},
	}, nil
}

// computeRSI averages gains and losses of the last `period` close-to-close
// deltas. A zero average loss yields RSI 100 (never divide by zero).
func computeRSI(prices []float64, period int) float64 {
	var gains, losses float64
	start := len(prices) - period
	for i := start; i < len(prices); i++ {
		delta := prices[i] - prices[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses += -delta
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// scoreFromRSI maps an RSI reading to [-1, 1]: oversold is strongly bullish,
// overbought strongly bearish, linear blend in between.
func scoreFromRSI(rsi, oversold, overbought float64) float64 {
	switch {
	case rsi <= oversold:
		return 1
	case rsi >= overbought:
		return -1
	default:
		return 1 - 2*(rsi-oversold)/(overbought-oversold)
	}
}

// RSIValue exposes the raw RSI reading for consumers that bucket on it
// directly (the small-cap composite). ok is false when history is shorter
// than period+1 bars.
func RSIValue(bars []dto.PriceBar, at time.Time, period int) (rsi float64, ok bool) {
	prices := closes(windowEndingAt(bars, at))
	if len(prices) < period+1 {
		return neutralRSI, false
	}
	return computeRSI(prices, period), true
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
