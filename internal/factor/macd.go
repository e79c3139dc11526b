package factor

import (
	"fmt"
	"math"
	"time"

	"golang-backtest/internal/dto"
)

const (
	defaultMACDFast   = 12
	defaultMACDSlow   = 26
	defaultMACDSignal = 9

	crossoverScore      = 0.8
	crossoverConfidence = 0.9
)

type macdFactor struct{}

// NewMACD returns the MACD evaluator. A histogram sign flip since the prior
// bar wins over everything else; otherwise the histogram is normalized by the
// largest absolute histogram value seen in the window.
func NewMACD() Evaluator {
	return &macdFactor{}
}

func (f *macdFactor) Name() string { return "macd" }

func (f *macdFactor) ValidateParams(params dto.FactorParams) error {
	fast := params.GetOr("fast_period", defaultMACDFast)
	slow := params.GetOr("slow_period", defaultMACDSlow)
	signal := params.GetOr("signal_period", defaultMACDSignal)

	if fast < 2 || slow < 2 || signal < 2 {
		return fmt.Errorf("%w: macd periods must be >= 2", ErrInvalidParams)
	}
	if fast >= slow {
		return fmt.Errorf("%w: macd fast period (%v) must be shorter than slow period (%v)",
			ErrInvalidParams, fast, slow)
	}
	return nil
}

func (f *macdFactor) Evaluate(bars []dto.PriceBar, at time.Time, params dto.FactorParams) (dto.FactorScore, error) {
	fast := int(params.GetOr("fast_period", defaultMACDFast))
	slow := int(params.GetOr("slow_period", defaultMACDSlow))
	signal := int(params.GetOr("signal_period", defaultMACDSignal))

	window := windowEndingAt(bars, at)
	prices := closes(window)
	if len(prices) < slow+signal {
		return insufficientScore(f.Name(), 0, map[string]interface{}{
			"required_bars": slow + signal,
		}), nil
	}

	fastEMA := emaSeries(prices, fast)
	slowEMA := emaSeries(prices, slow)

	macdLine := make([]float64, 0, len(prices)-slow+1)
	for i := slow - 1; i < len(prices); i++ {
		macdLine = append(macdLine, fastEMA[i]-slowEMA[i])
	}

	signalLine := emaSeries(macdLine, signal)
	hist := make([]float64, 0, len(macdLine)-signal+1)
	for i := signal - 1; i < len(macdLine); i++ {
		hist = append(hist, macdLine[i]-signalLine[i])
	}

	cur := hist[len(hist)-1]
	prev := hist[len(hist)-2]
	macdLast := macdLine[len(macdLine)-1]
	signalLast := signalLine[len(signalLine)-1]

	value, confidence, crossed := classifyHistogram(prev, cur, maxAbs(hist))
	if !crossed {
		// Reward wide MACD/signal separation relative to the price level.
		avgClose := mean(prices)
		if avgClose > 0 {
			confidence = math.Min(1, confidence+10*math.Abs(macdLast-signalLast)/avgClose)
		}
	}

	return dto.FactorScore{
		Factor:     f.Name(),
		Value:      value,
		Confidence: confidence,
		Metadata: map[string]interface{}{
			"macd":      macdLast,
			"signal":    signalLast,
			"histogram": cur,
			"crossover": crossed,
		},
	}, nil
}

// classifyHistogram applies the MACD decision policy: a sign flip since the
// prior bar scores ±0.8 at 0.9 confidence; otherwise the current histogram is
// normalized by the window's maximum absolute histogram value, with
// confidence capped at 0.7.
func classifyHistogram(prev, cur, histMax float64) (value, confidence float64, crossed bool) {
	if prev*cur < 0 {
		if cur > 0 {
			return crossoverScore, crossoverConfidence, true
		}
		return -crossoverScore, crossoverConfidence, true
	}

	if histMax > 0 {
		value = clamp(cur/histMax, -1, 1)
	}
	confidence = math.Min(0.7, math.Abs(value))
	return value, confidence, false
}
