package scoring

import (
	"context"
	"fmt"
	"time"

	"golang-backtest/internal/dto"
	"golang-backtest/internal/factor"
	"golang-backtest/pkg/logger"
)

const (
	buyThreshold  = 0.75
	sellThreshold = 0.50
)

type weightedFactor struct {
	cfg  dto.FactorConfig
	eval factor.Evaluator
}

// weightedScorer implements the generic composite: every enabled factor's
// [-1,1] value is normalized to [0,1], weighted, and summed into a combined
// score in [0,1].
type weightedScorer struct {
	cfg     dto.StrategyConfig
	factors []weightedFactor
	log     *logger.Logger
}

func newWeightedScorer(cfg dto.StrategyConfig, reg *factor.Registry, log *logger.Logger) (*weightedScorer, error) {
	var factors []weightedFactor
	for _, fc := range cfg.Factors {
		if !fc.Enabled {
			continue
		}
		eval, err := reg.New(fc.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: factor %q: %v", ErrValidation, fc.Name, err)
		}
		if err := eval.ValidateParams(fc.Params); err != nil {
			return nil, fmt.Errorf("%w: factor %q: %v", ErrValidation, fc.Name, err)
		}
		factors = append(factors, weightedFactor{cfg: fc, eval: eval})
	}
	if len(factors) == 0 {
		return nil, fmt.Errorf("%w: strategy %q has no enabled factors", ErrValidation, cfg.Name)
	}

	return &weightedScorer{cfg: cfg, factors: factors, log: log}, nil
}

func (s *weightedScorer) Evaluate(ctx context.Context, symbol string, bars []dto.PriceBar, at time.Time) (dto.Signal, error) {
	// Re-normalize weights over the enabled subset so they sum to 1.0
	// regardless of the stored values. All-zero stored weights degrade to
	// equal weighting.
	var totalWeight float64
	for _, wf := range s.factors {
		totalWeight += wf.cfg.Weight
	}

	var (
		combined float64
		scores   = make([]dto.FactorScore, 0, len(s.factors))
		failed   []string
	)
	for _, wf := range s.factors {
		weight := wf.cfg.Weight / totalWeight
		if totalWeight == 0 {
			weight = 1 / float64(len(s.factors))
		}

		score, err := safeEvaluate(wf.eval, bars, at, wf.cfg.Params)
		if err != nil {
			// A single factor failure contributes zero and is flagged, never
			// aborts the composition.
			s.log.WarnContext(ctx, "factor evaluation failed",
				logger.StringField("symbol", symbol),
				logger.StringField("factor", wf.cfg.Name),
				logger.ErrorField(err),
			)
			failed = append(failed, wf.cfg.Name)
			continue
		}

		scores = append(scores, score)
		combined += weight * (score.Value + 1) / 2
	}

	signalType := dto.SignalHold
	switch {
	case combined > buyThreshold:
		signalType = dto.SignalBuy
	case combined < sellThreshold:
		signalType = dto.SignalSell
	}

	metadata := map[string]interface{}{
		"combined_score": combined,
	}
	if len(failed) > 0 {
		metadata[dto.MetaFailedFactors] = failed
	}

	return dto.Signal{
		Symbol:       symbol,
		Type:         signalType,
		Strength:     combined,
		Timestamp:    at,
		FactorScores: scores,
		Reasoning:    fmt.Sprintf("weighted composite %.3f over %d factors", combined, len(s.factors)),
		Metadata:     metadata,
	}, nil
}

// safeEvaluate shields the composer from a panicking factor implementation.
func safeEvaluate(eval factor.Evaluator, bars []dto.PriceBar, at time.Time, params dto.FactorParams) (score dto.FactorScore, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("factor %s panicked: %v", eval.Name(), r)
		}
	}()
	return eval.Evaluate(bars, at, params)
}
