package scoring

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang-backtest/internal/dto"
	"golang-backtest/internal/factor"
	"golang-backtest/pkg/logger"
	"golang-backtest/pkg/utils"
)

const (
	// minHistoryBars is the quality-filter floor; the breakout sub-score needs
	// the same depth before it contributes points.
	minHistoryBars = 100

	momentumLookback = 20
	volumeLookback   = 20
	rsiLookback      = 14
	breakoutLookback = 260

	maxSubScore       = 20.0
	maxCompositeScore = 100.0

	strongBuyScore = 85.0
	buyScore       = 75.0
	sellScore      = 50.0

	// nearZeroHistFraction bounds "near-zero" MACD histogram readings relative
	// to the average close of the window.
	nearZeroHistFraction = 1e-3
)

// MetaFiltered flags symbols rejected by the quality pre-filter; the value is
// the rejection reason.
const MetaFiltered = "filtered"

// smallCapScorer is the fixed-rule composite: five independent sub-scores
// worth 20 points apiece, summed to 0-100 and mapped to tiers with their own
// sizing and risk hints. It bypasses the weighted composer entirely.
type smallCapScorer struct {
	cfg       dto.StrategyConfig
	marketCap MarketCapLookup
	log       *logger.Logger
}

func newSmallCapScorer(cfg dto.StrategyConfig, log *logger.Logger, marketCap MarketCapLookup) *smallCapScorer {
	return &smallCapScorer{cfg: cfg, marketCap: marketCap, log: log}
}

func (s *smallCapScorer) Evaluate(ctx context.Context, symbol string, bars []dto.PriceBar, at time.Time) (dto.Signal, error) {
	window := barsEndingAt(bars, at)

	if reason := s.qualityFilter(symbol, window); reason != "" {
		s.log.DebugContext(ctx, "symbol rejected by quality filter",
			logger.StringField("symbol", symbol),
			logger.StringField("reason", reason),
		)
		return dto.Signal{
			Symbol:    symbol,
			Type:      dto.SignalHold,
			Strength:  0,
			Timestamp: at,
			Reasoning: "quality filter: " + reason,
			Metadata:  map[string]interface{}{MetaFiltered: reason},
		}, nil
	}

	scores := []dto.FactorScore{
		s.momentumScore(window),
		s.oversoldScore(window, at),
		s.volumeSurgeScore(window),
		s.trendScore(window, at),
		s.breakoutScore(window),
	}

	var total float64
	for _, sc := range scores {
		total += sc.Value
	}
	total = utils.Clamp(total, 0, maxCompositeScore)

	signal := dto.Signal{
		Symbol:       symbol,
		Type:         dto.SignalHold,
		Strength:     total / maxCompositeScore,
		Timestamp:    at,
		FactorScores: scores,
		Reasoning:    fmt.Sprintf("composite score %.0f/100", total),
		Metadata:     map[string]interface{}{"composite_score": total},
	}
	applyTier(&signal, total)

	return signal, nil
}

// applyTier maps the composite score to a signal type with tier-based sizing
// hints. The hints override the simulator's default sizing heuristic.
func applyTier(signal *dto.Signal, total float64) {
	switch {
	case total >= strongBuyScore:
		signal.Type = dto.SignalBuy
		signal.PositionSizePercent = 15
		signal.StopLossPercent = 10
		signal.TakeProfitPercent = 30
	case total >= buyScore:
		signal.Type = dto.SignalBuy
		signal.PositionSizePercent = 12
		signal.StopLossPercent = 12
	case total < sellScore:
		signal.Type = dto.SignalSell
	}
}

// qualityFilter rejects symbols before scoring: too little history, price or
// trailing volume below floor, or market cap outside the configured band.
// Zero-valued bounds disable the corresponding check.
func (s *smallCapScorer) qualityFilter(symbol string, window []dto.PriceBar) string {
	if len(window) < minHistoryBars {
		return fmt.Sprintf("history %d bars, need %d", len(window), minHistoryBars)
	}

	p := s.cfg.SmallCap
	if p == nil {
		return ""
	}

	last := window[len(window)-1]
	if p.MinPrice > 0 && last.Close < p.MinPrice {
		return fmt.Sprintf("price %.2f below floor %.2f", last.Close, p.MinPrice)
	}
	if p.MinAvgVolume > 0 {
		if avg := averageVolume(window, volumeLookback); avg < p.MinAvgVolume {
			return fmt.Sprintf("avg volume %.0f below floor %.0f", avg, p.MinAvgVolume)
		}
	}
	if s.marketCap != nil && (p.MinMarketCap > 0 || p.MaxMarketCap > 0) {
		if mc, ok := s.marketCap(symbol); ok {
			if p.MinMarketCap > 0 && mc < p.MinMarketCap {
				return fmt.Sprintf("market cap %.0f below band", mc)
			}
			if p.MaxMarketCap > 0 && mc > p.MaxMarketCap {
				return fmt.Sprintf("market cap %.0f above band", mc)
			}
		}
	}
	return ""
}

// momentumScore buckets the 20-trading-day percent return.
func (s *smallCapScorer) momentumScore(window []dto.PriceBar) dto.FactorScore {
	cur := window[len(window)-1].Close
	past := window[len(window)-1-momentumLookback].Close

	var returnPct float64
	if past > 0 {
		returnPct = (cur - past) / past * 100
	}

	points := bucket(returnPct, []tier{
		{20, 20}, {15, 15}, {10, 10}, {5, 5},
	})

	return subScore("momentum", points, map[string]interface{}{
		"return_pct": returnPct,
		"lookback":   momentumLookback,
	})
}

// oversoldScore buckets the 14-day RSI; lower readings earn more points.
func (s *smallCapScorer) oversoldScore(window []dto.PriceBar, at time.Time) dto.FactorScore {
	rsi, ok := factor.RSIValue(window, at, rsiLookback)
	if !ok {
		return subScore("rsi", 0, map[string]interface{}{dto.MetaInsufficientData: true})
	}

	var points float64
	switch {
	case rsi < 30:
		points = 20
	case rsi < 40:
		points = 15
	case rsi < 50:
		points = 10
	case rsi < 60:
		points = 5
	}

	return subScore("rsi", points, map[string]interface{}{"rsi": rsi})
}

// volumeSurgeScore buckets current volume against its 20-day average.
func (s *smallCapScorer) volumeSurgeScore(window []dto.PriceBar) dto.FactorScore {
	cur := float64(window[len(window)-1].Volume)
	avg := averageVolume(window[:len(window)-1], volumeLookback)

	var ratio float64
	if avg > 0 {
		ratio = cur / avg
	}

	points := bucket(ratio, []tier{
		{3, 20}, {2, 15}, {1.5, 10}, {1, 5},
	})

	return subScore("volume_surge", points, map[string]interface{}{
		"volume_ratio": ratio,
	})
}

// trendScore derives points from the MACD line/histogram state.
func (s *smallCapScorer) trendScore(window []dto.PriceBar, at time.Time) dto.FactorScore {
	state := factor.MACDTrendState(window, at, nil)
	if !state.OK {
		return subScore("trend", 0, map[string]interface{}{dto.MetaInsufficientData: true})
	}

	var points float64
	switch {
	case state.Histogram > 0 && state.Histogram > state.PrevHist && state.MACD > state.Signal:
		points = 20
	case state.MACD > state.Signal && state.Histogram > 0:
		points = 15
	case state.MACD > state.Signal:
		points = 10
	case math.Abs(state.Histogram) < nearZeroHistFraction*state.AverageClose:
		points = 5
	}

	return subScore("trend", points, map[string]interface{}{
		"macd":      state.MACD,
		"signal":    state.Signal,
		"histogram": state.Histogram,
	})
}

// breakoutScore places the current price inside the trailing high/low range
// (up to 260 bars). The 10th-30th percentile band earns value-bounce points.
func (s *smallCapScorer) breakoutScore(window []dto.PriceBar) dto.FactorScore {
	if len(window) < minHistoryBars {
		return subScore("breakout", 0, map[string]interface{}{dto.MetaInsufficientData: true})
	}

	lookback := window
	if len(lookback) > breakoutLookback {
		lookback = lookback[len(lookback)-breakoutLookback:]
	}

	high := lookback[0].High
	low := lookback[0].Low
	for _, b := range lookback[1:] {
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
	}

	cur := window[len(window)-1].Close
	var percentile float64
	if high > low {
		percentile = (cur - low) / (high - low) * 100
	}

	var points float64
	switch {
	case percentile >= 95:
		points = 20
	case percentile >= 90:
		points = 15
	case percentile >= 10 && percentile <= 30:
		points = 10
	case percentile < 10:
		points = 5
	}

	return subScore("breakout", points, map[string]interface{}{
		"percentile": percentile,
		"range_high": high,
		"range_low":  low,
		"range_bars": len(lookback),
	})
}

type tier struct {
	above  float64
	points float64
}

// bucket returns the points of the first tier the value strictly exceeds.
func bucket(value float64, tiers []tier) float64 {
	for _, t := range tiers {
		if value > t.above {
			return t.points
		}
	}
	return 0
}

func subScore(name string, points float64, metadata map[string]interface{}) dto.FactorScore {
	return dto.FactorScore{
		Factor:     name,
		Value:      utils.Clamp(points, 0, maxSubScore),
		Confidence: 1,
		Metadata:   metadata,
	}
}

// averageVolume averages the trailing `lookback` bars of the window (fewer if
// the window is shorter).
func averageVolume(window []dto.PriceBar, lookback int) float64 {
	if len(window) == 0 {
		return 0
	}
	if len(window) > lookback {
		window = window[len(window)-lookback:]
	}
	var sum float64
	for _, b := range window {
		sum += float64(b.Volume)
	}
	return sum / float64(len(window))
}

// barsEndingAt trims the series to bars at or before the evaluation date.
// Bars are ordered ascending, so scan from the tail.
func barsEndingAt(bars []dto.PriceBar, at time.Time) []dto.PriceBar {
	for i := len(bars) - 1; i >= 0; i-- {
		if !bars[i].Timestamp.After(at) {
			return bars[:i+1]
		}
	}
	return nil
}
