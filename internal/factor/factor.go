// Package factor implements the technical-factor evaluators: stateless
// functions that turn a price window into a normalized opinion (score in
// [-1, 1] plus confidence in [0, 1]).
package factor

import (
	"errors"
	"fmt"
	"time"

	"golang-backtest/internal/dto"
)

var (
	// ErrUnknownFactor is returned when a strategy references a factor type
	// that has not been registered.
	ErrUnknownFactor = errors.New("unknown factor type")

	// ErrInvalidParams wraps factor parameter validation failures.
	ErrInvalidParams = errors.New("invalid factor params")
)

// Evaluator turns the price window ending at the evaluation date into a
// FactorScore. Implementations must consume only bars with timestamp at or
// before the evaluation date, and degrade to a neutral score with an
// insufficient-data marker instead of failing when history is short.
type Evaluator interface {
	Name() string
	ValidateParams(params dto.FactorParams) error
	Evaluate(bars []dto.PriceBar, at time.Time, params dto.FactorParams) (dto.FactorScore, error)
}

// Constructor builds a fresh evaluator instance.
type Constructor func() Evaluator

// Registry maps factor type keys to constructors. The built-in set is closed;
// Register is the extension point for custom factors.
type Registry struct {
	constructors map[dto.FactorType]Constructor
}

// NewRegistry returns a registry pre-populated with the built-in factors.
func NewRegistry() *Registry {
	r := &Registry{constructors: make(map[dto.FactorType]Constructor)}
	r.Register(dto.FactorRSI, func() Evaluator { return NewRSI() })
	r.Register(dto.FactorMACD, func() Evaluator { return NewMACD() })
	r.Register(dto.FactorMACross, func() Evaluator { return NewMACross() })
	return r
}

func (r *Registry) Register(t dto.FactorType, c Constructor) {
	r.constructors[t] = c
}

// New builds an evaluator for the given factor type.
func (r *Registry) New(t dto.FactorType) (Evaluator, error) {
	c, ok := r.constructors[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFactor, t)
	}
	return c(), nil
}

// insufficientScore is the neutral degradation used by every evaluator when
// the window is too short for a meaningful reading.
func insufficientScore(name string, confidence float64, extra map[string]interface{}) dto.FactorScore {
	md := map[string]interface{}{dto.MetaInsufficientData: true}
	for k, v := range extra {
		md[k] = v
	}
	return dto.FactorScore{
		Factor:     name,
		Value:      0,
		Confidence: confidence,
		Metadata:   md,
	}
}
