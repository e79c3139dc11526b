package scoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang-backtest/internal/dto"
	"golang-backtest/internal/factor"
	"golang-backtest/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFactor struct {
	name      string
	value     float64
	err       error
	panicking bool
}

func (s *stubFactor) Name() string                               { return s.name }
func (s *stubFactor) ValidateParams(params dto.FactorParams) error { return nil }

func (s *stubFactor) Evaluate(bars []dto.PriceBar, at time.Time, params dto.FactorParams) (dto.FactorScore, error) {
	if s.panicking {
		panic("stub factor exploded")
	}
	if s.err != nil {
		return dto.FactorScore{}, s.err
	}
	return dto.FactorScore{Factor: s.name, Value: s.value, Confidence: 1}, nil
}

func stubRegistry(factors map[dto.FactorType]*stubFactor) *factor.Registry {
	reg := factor.NewRegistry()
	for ft, f := range factors {
		f := f
		reg.Register(ft, func() factor.Evaluator { return f })
	}
	return reg
}

func weightedConfig(factors ...dto.FactorConfig) dto.StrategyConfig {
	return dto.StrategyConfig{
		Name:          "test-strategy",
		ScoringKind:   dto.ScoringWeighted,
		Factors:       factors,
		StockUniverse: []string{"TEST"},
		Enabled:       true,
	}
}

func TestWeightedScorer_Evaluate(t *testing.T) {
	now := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		values       map[dto.FactorType]float64
		weights      map[dto.FactorType]float64
		wantType     dto.SignalType
		wantStrength float64
	}{
		{
			name:         "unanimous bullish factors trigger BUY",
			values:       map[dto.FactorType]float64{"stub_a": 1, "stub_b": 1},
			weights:      map[dto.FactorType]float64{"stub_a": 0.6, "stub_b": 0.4},
			wantType:     dto.SignalBuy,
			wantStrength: 1,
		},
		{
			name:         "unanimous bearish factors trigger SELL",
			values:       map[dto.FactorType]float64{"stub_a": -1, "stub_b": -1},
			weights:      map[dto.FactorType]float64{"stub_a": 0.5, "stub_b": 0.5},
			wantType:     dto.SignalSell,
			wantStrength: 0,
		},
		{
			name:         "buy threshold is exclusive",
			values:       map[dto.FactorType]float64{"stub_a": 1, "stub_b": 0},
			weights:      map[dto.FactorType]float64{"stub_a": 0.5, "stub_b": 0.5},
			wantType:     dto.SignalHold,
			wantStrength: 0.75,
		},
		{
			name: "stored weights are renormalized over the enabled subset",
			// Weights 3:1 behave exactly like 0.75:0.25.
			values:       map[dto.FactorType]float64{"stub_a": 1, "stub_b": -1},
			weights:      map[dto.FactorType]float64{"stub_a": 3, "stub_b": 1},
			wantType:     dto.SignalHold,
			wantStrength: 0.75,
		},
		{
			name:         "all-zero weights degrade to equal weighting",
			values:       map[dto.FactorType]float64{"stub_a": 1, "stub_b": -1},
			weights:      map[dto.FactorType]float64{"stub_a": 0, "stub_b": 0},
			wantType:     dto.SignalHold,
			wantStrength: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubs := make(map[dto.FactorType]*stubFactor)
			var configs []dto.FactorConfig
			for ft, v := range tt.values {
				stubs[ft] = &stubFactor{name: string(ft), value: v}
				configs = append(configs, dto.FactorConfig{
					Name:    string(ft),
					Type:    ft,
					Weight:  tt.weights[ft],
					Enabled: true,
				})
			}

			scorer, err := NewScorer(weightedConfig(configs...), stubRegistry(stubs), logger.NewNop())
			require.NoError(t, err)

			signal, err := scorer.Evaluate(context.Background(), "TEST", nil, now)
			require.NoError(t, err)

			assert.Equal(t, tt.wantType, signal.Type)
			assert.InDelta(t, tt.wantStrength, signal.Strength, 1e-9)
			assert.Equal(t, "TEST", signal.Symbol)
			assert.Equal(t, now, signal.Timestamp)
		})
	}
}

func TestWeightedScorer_FactorFailureIsIsolated(t *testing.T) {
	stubs := map[dto.FactorType]*stubFactor{
		"stub_ok":    {name: "stub_ok", value: 1},
		"stub_err":   {name: "stub_err", err: errors.New("feed unavailable")},
		"stub_panic": {name: "stub_panic", panicking: true},
	}
	cfg := weightedConfig(
		dto.FactorConfig{Name: "stub_ok", Type: "stub_ok", Weight: 0.5, Enabled: true},
		dto.FactorConfig{Name: "stub_err", Type: "stub_err", Weight: 0.25, Enabled: true},
		dto.FactorConfig{Name: "stub_panic", Type: "stub_panic", Weight: 0.25, Enabled: true},
	)

	scorer, err := NewScorer(cfg, stubRegistry(stubs), logger.NewNop())
	require.NoError(t, err)

	signal, err := scorer.Evaluate(context.Background(), "TEST", nil, time.Now())
	require.NoError(t, err, "factor failures must not abort composition")

	// Only the healthy factor contributes: 0.5 weight at full value.
	assert.InDelta(t, 0.5, signal.Strength, 1e-9)
	assert.ElementsMatch(t, []string{"stub_err", "stub_panic"}, signal.Metadata[dto.MetaFailedFactors])
	assert.Len(t, signal.FactorScores, 1)
}

func TestWeightedScorer_DisabledFactorsAreSkipped(t *testing.T) {
	stubs := map[dto.FactorType]*stubFactor{
		"stub_a": {name: "stub_a", value: 1},
		"stub_b": {name: "stub_b", value: -1},
	}
	cfg := weightedConfig(
		dto.FactorConfig{Name: "stub_a", Type: "stub_a", Weight: 0.5, Enabled: true},
		dto.FactorConfig{Name: "stub_b", Type: "stub_b", Weight: 0.5, Enabled: false},
	)

	scorer, err := NewScorer(cfg, stubRegistry(stubs), logger.NewNop())
	require.NoError(t, err)

	signal, err := scorer.Evaluate(context.Background(), "TEST", nil, time.Now())
	require.NoError(t, err)

	// The enabled factor's weight renormalizes to 1.0.
	assert.Equal(t, dto.SignalBuy, signal.Type)
	assert.InDelta(t, 1.0, signal.Strength, 1e-9)
}

func TestNewScorer_Validation(t *testing.T) {
	reg := factor.NewRegistry()

	tests := []struct {
		name string
		cfg  dto.StrategyConfig
	}{
		{
			name: "unknown scoring kind",
			cfg:  dto.StrategyConfig{Name: "s", ScoringKind: "genetic"},
		},
		{
			name: "unknown factor type",
			cfg: weightedConfig(
				dto.FactorConfig{Name: "x", Type: "bollinger", Weight: 1, Enabled: true},
			),
		},
		{
			name: "no enabled factors",
			cfg: weightedConfig(
				dto.FactorConfig{Name: "rsi", Type: dto.FactorRSI, Weight: 1, Enabled: false},
			),
		},
		{
			name: "invalid factor params",
			cfg: weightedConfig(
				dto.FactorConfig{
					Name: "rsi", Type: dto.FactorRSI, Weight: 1, Enabled: true,
					Params: dto.FactorParams{"period": 1},
				},
			),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScorer(tt.cfg, reg, logger.NewNop())
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}
