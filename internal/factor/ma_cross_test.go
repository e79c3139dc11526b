package factor

import (
	"testing"

	"golang-backtest/internal/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMACross_Evaluate(t *testing.T) {
	up := make([]float64, 60)
	down := make([]float64, 60)
	for i := range up {
		up[i] = 100 + float64(i)
		down[i] = 200 - float64(i)
	}

	params := dto.FactorParams{"short_period": 5, "long_period": 20}

	t.Run("uptrend reads bullish", func(t *testing.T) {
		bars := barsFromCloses("TEST", up)
		score, err := NewMACross().Evaluate(bars, lastBarTime(bars), params)
		require.NoError(t, err)
		assert.Greater(t, score.Value, 0.0)
		assert.LessOrEqual(t, score.Value, 1.0)
	})

	t.Run("downtrend reads bearish", func(t *testing.T) {
		bars := barsFromCloses("TEST", down)
		score, err := NewMACross().Evaluate(bars, lastBarTime(bars), params)
		require.NoError(t, err)
		assert.Less(t, score.Value, 0.0)
		assert.GreaterOrEqual(t, score.Value, -1.0)
	})

	t.Run("too little history degrades to neutral", func(t *testing.T) {
		bars := barsFromCloses("TEST", up[:10])
		score, err := NewMACross().Evaluate(bars, lastBarTime(bars), params)
		require.NoError(t, err)
		assert.Equal(t, 0.0, score.Value)
		assert.Equal(t, true, score.Metadata[dto.MetaInsufficientData])
	})
}

func TestMACross_ValidateParams(t *testing.T) {
	f := NewMACross()

	assert.NoError(t, f.ValidateParams(nil))
	assert.ErrorIs(t, f.ValidateParams(dto.FactorParams{"short_period": 50, "long_period": 20}), ErrInvalidParams)
	assert.ErrorIs(t, f.ValidateParams(dto.FactorParams{"short_period": 1}), ErrInvalidParams)
}

func TestMACDTrendState(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + 2*float64(i)
	}
	bars := barsFromCloses("TEST", closes)

	state := MACDTrendState(bars, lastBarTime(bars), nil)
	require.True(t, state.OK)
	assert.Greater(t, state.MACD, state.Signal, "steady uptrend keeps MACD above its signal line")
	assert.Greater(t, state.AverageClose, 0.0)

	short := MACDTrendState(bars[:10], lastBarTime(bars[:10]), nil)
	assert.False(t, short.OK)
}
