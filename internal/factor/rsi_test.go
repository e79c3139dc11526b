package factor

import (
	"testing"
	"time"

	"golang-backtest/internal/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func barsFromCloses(symbol string, closes []float64) []dto.PriceBar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]dto.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = dto.PriceBar{
			Symbol:    symbol,
			Timestamp: start.AddDate(0, 0, i),
			Open:      c,
			High:      c * 1.01,
			Low:       c * 0.99,
			Close:     c,
			Volume:    1000,
		}
	}
	return bars
}

func lastBarTime(bars []dto.PriceBar) time.Time {
	return bars[len(bars)-1].Timestamp
}

func TestRSI_Evaluate(t *testing.T) {
	rising := make([]float64, 20)
	falling := make([]float64, 20)
	for i := range rising {
		rising[i] = 100 + float64(i)
		falling[i] = 100 - float64(i)
	}

	tests := []struct {
		name           string
		closes         []float64
		wantRSI        float64
		wantValue      float64
		wantConfidence float64
	}{
		{
			name:           "all gains pins RSI at 100 and score strongly bearish",
			closes:         rising,
			wantRSI:        100,
			wantValue:      -1,
			wantConfidence: 0.9,
		},
		{
			name:           "all losses pins RSI at 0 and score strongly bullish",
			closes:         falling,
			wantRSI:        0,
			wantValue:      1,
			wantConfidence: 0.9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bars := barsFromCloses("TEST", tt.closes)
			score, err := NewRSI().Evaluate(bars, lastBarTime(bars), nil)
			require.NoError(t, err)

			assert.InDelta(t, tt.wantRSI, score.Metadata["rsi"], 1e-9)
			assert.InDelta(t, tt.wantValue, score.Value, 1e-9)
			assert.InDelta(t, tt.wantConfidence, score.Confidence, 1e-9)
		})
	}
}

func TestRSI_InsufficientHistory(t *testing.T) {
	bars := barsFromCloses("TEST", []float64{100, 101, 102})

	score, err := NewRSI().Evaluate(bars, lastBarTime(bars), nil)
	require.NoError(t, err)

	assert.Equal(t, 0.0, score.Value)
	assert.Equal(t, 0.25, score.Confidence)
	assert.Equal(t, true, score.Metadata[dto.MetaInsufficientData])
	assert.Equal(t, neutralRSI, score.Metadata["rsi"])
}

func TestScoreFromRSI(t *testing.T) {
	tests := []struct {
		name string
		rsi  float64
		want float64
	}{
		{"below oversold is max bullish", 20, 1},
		{"at oversold is max bullish", 30, 1},
		{"midpoint is neutral", 50, 0},
		{"at overbought is max bearish", 70, -1},
		{"above overbought is max bearish", 85, -1},
		{"linear blend between thresholds", 40, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, scoreFromRSI(tt.rsi, 30, 70), 1e-9)
		})
	}
}

func TestRSI_NoLookahead(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i%7)
	}
	bars := barsFromCloses("TEST", closes)
	at := bars[24].Timestamp

	full, err := NewRSI().Evaluate(bars, at, nil)
	require.NoError(t, err)

	truncated, err := NewRSI().Evaluate(bars[:25], at, nil)
	require.NoError(t, err)

	assert.Equal(t, truncated, full, "bars after the evaluation date must not affect the score")
}

func TestRSI_ValidateParams(t *testing.T) {
	f := NewRSI()

	assert.NoError(t, f.ValidateParams(nil))
	assert.NoError(t, f.ValidateParams(dto.FactorParams{"period": 21, "oversold": 25, "overbought": 75}))

	assert.ErrorIs(t, f.ValidateParams(dto.FactorParams{"period": 1}), ErrInvalidParams)
	assert.ErrorIs(t, f.ValidateParams(dto.FactorParams{"oversold": 80, "overbought": 70}), ErrInvalidParams)
	assert.ErrorIs(t, f.ValidateParams(dto.FactorParams{"overbought": 120}), ErrInvalidParams)
}
