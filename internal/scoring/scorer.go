// Package scoring blends factor opinions into actionable BUY/SELL/HOLD
// signals. Two strategies exist: a generic weighted composite over independent
// factors, and a fixed-rule small-cap composite with its own point budget.
// The variant is selected by configuration, never by subtyping.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang-backtest/internal/dto"
	"golang-backtest/internal/factor"
	"golang-backtest/pkg/logger"
)

// ErrValidation wraps strategy configuration problems detected before a run
// starts.
var ErrValidation = errors.New("invalid strategy configuration")

// Scorer turns a symbol's price history into a trading decision for one
// evaluation date. Implementations consume only bars with timestamp at or
// before the evaluation date.
type Scorer interface {
	Evaluate(ctx context.Context, symbol string, bars []dto.PriceBar, at time.Time) (dto.Signal, error)
}

// MarketCapLookup resolves a symbol's market capitalization for the small-cap
// quality filter. ok=false means the figure is unknown and the band check is
// skipped for that symbol.
type MarketCapLookup func(symbol string) (marketCap float64, ok bool)

// Option customizes scorer construction.
type Option func(*options)

type options struct {
	marketCap MarketCapLookup
}

// WithMarketCapLookup supplies market capitalization data to the small-cap
// quality filter.
func WithMarketCapLookup(fn MarketCapLookup) Option {
	return func(o *options) { o.marketCap = fn }
}

// NewScorer builds the scorer selected by the strategy's scoring kind. All
// factor types and params are validated up front so a malformed strategy is
// rejected before any simulation work happens.
func NewScorer(cfg dto.StrategyConfig, reg *factor.Registry, log *logger.Logger, opts ...Option) (Scorer, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	switch cfg.ScoringKind {
	case dto.ScoringWeighted:
		return newWeightedScorer(cfg, reg, log)
	case dto.ScoringSmallCap:
		return newSmallCapScorer(cfg, log, o.marketCap), nil
	default:
		return nil, fmt.Errorf("%w: unknown scoring kind %q", ErrValidation, cfg.ScoringKind)
	}
}
