package factor

import (
	"fmt"
	"math"
	"time"

	"golang-backtest/internal/dto"
)

const (
	defaultMAShort = 20
	defaultMALong  = 50
)

type maCrossFactor struct{}

// NewMACross returns the moving-average-crossover evaluator. Short above long
// is bullish, scaled by the normalized gap between the averages; the decision
// shape mirrors the MACD factor.
func NewMACross() Evaluator {
	return &maCrossFactor{}
}

func (f *maCrossFactor) Name() string { return "ma_cross" }

func (f *maCrossFactor) ValidateParams(params dto.FactorParams) error {
	short := params.GetOr("short_period", defaultMAShort)
	long := params.GetOr("long_period", defaultMALong)

	if short < 2 || long < 2 {
		return fmt.Errorf("%w: ma periods must be >= 2", ErrInvalidParams)
	}
	if short >= long {
		return fmt.Errorf("%w: ma short period (%v) must be shorter than long period (%v)",
			ErrInvalidParams, short, long)
	}
	return nil
}

func (f *maCrossFactor) Evaluate(bars []dto.PriceBar, at time.Time, params dto.FactorParams) (dto.FactorScore, error) {
	short := int(params.GetOr("short_period", defaultMAShort))
	long := int(params.GetOr("long_period", defaultMALong))
	useEMA := params.GetOr("exponential", 0) != 0

	window := windowEndingAt(bars, at)
	prices := closes(window)
	if len(prices) < long+1 {
		return insufficientScore(f.Name(), 0, map[string]interface{}{
			"required_bars": long + 1,
		}), nil
	}

	maFn := smaSeries
	if useEMA {
		maFn = emaSeries
	}
	shortMA := maFn(prices, short)
	longMA := maFn(prices, long)

	// Relative gap between the averages, valid once the long MA has warmed up.
	gaps := make([]float64, 0, len(prices)-long+1)
	for i := long - 1; i < len(prices); i++ {
		if longMA[i] == 0 {
			gaps = append(gaps, 0)
			continue
		}
		gaps = append(gaps, (shortMA[i]-longMA[i])/longMA[i])
	}

	cur := gaps[len(gaps)-1]
	prev := gaps[len(gaps)-2]

	value, confidence, crossed := classifyHistogram(prev, cur, maxAbs(gaps))

	return dto.FactorScore{
		Factor:     f.Name(),
		Value:      value,
		Confidence: confidence,
		Metadata: map[string]interface{}{
			"short_ma":    shortMA[len(shortMA)-1],
			"long_ma":     longMA[len(longMA)-1],
			"gap":         cur,
			"crossover":   crossed,
			"exponential": useEMA,
		},
	}, nil
}

// TrendState summarizes the MACD line/histogram relationship for consumers
// that bucket trend strength (the small-cap composite).
type TrendState struct {
	MACD         float64
	Signal       float64
	Histogram    float64
	PrevHist     float64
	AverageClose float64
	OK           bool
}

// MACDTrendState computes the trend inputs the small-cap composite buckets
// on. OK is false when history is shorter than slow+signal bars.
func MACDTrendState(bars []dto.PriceBar, at time.Time, params dto.FactorParams) TrendState {
	fast := int(params.GetOr("fast_period", defaultMACDFast))
	slow := int(params.GetOr("slow_period", defaultMACDSlow))
	signal := int(params.GetOr("signal_period", defaultMACDSignal))

	window := windowEndingAt(bars, at)
	prices := closes(window)
	if len(prices) < slow+signal {
		return TrendState{}
	}

	fastEMA := emaSeries(prices, fast)
	slowEMA := emaSeries(prices, slow)
	macdLine := make([]float64, 0, len(prices)-slow+1)
	for i := slow - 1; i < len(prices); i++ {
		macdLine = append(macdLine, fastEMA[i]-slowEMA[i])
	}
	signalLine := emaSeries(macdLine, signal)

	n := len(macdLine)
	cur := macdLine[n-1] - signalLine[n-1]
	prev := cur
	if n >= signal+1 && !math.IsNaN(signalLine[n-2]) {
		prev = macdLine[n-2] - signalLine[n-2]
	}

	return TrendState{
		MACD:         macdLine[n-1],
		Signal:       signalLine[n-1],
		Histogram:    cur,
		PrevHist:     prev,
		AverageClose: mean(prices),
		OK:           true,
	}
}
