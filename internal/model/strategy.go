package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"golang-backtest/internal/dto"
)

type Strategy struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Name           string         `gorm:"not null;uniqueIndex" json:"name"`
	ScoringKind    string         `gorm:"not null" json:"scoring_kind"`
	Factors        datatypes.JSON `json:"factors"`
	RiskManagement datatypes.JSON `json:"risk_management"`
	SmallCap       datatypes.JSON `json:"small_cap"`
	StockUniverse  datatypes.JSON `gorm:"not null" json:"stock_universe"`
	Enabled        *bool          `gorm:"not null;default:true" json:"enabled"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Strategy) TableName() string {
	return "strategies"
}

// ToConfig deserializes the stored JSON columns into the engine-facing
// strategy configuration.
func (s *Strategy) ToConfig() (dto.StrategyConfig, error) {
	cfg := dto.StrategyConfig{
		ID:          s.ID,
		Name:        s.Name,
		ScoringKind: dto.ScoringKind(s.ScoringKind),
		Enabled:     s.Enabled != nil && *s.Enabled,
	}

	if len(s.Factors) > 0 {
		if err := json.Unmarshal(s.Factors, &cfg.Factors); err != nil {
			return cfg, err
		}
	}
	if len(s.RiskManagement) > 0 {
		if err := json.Unmarshal(s.RiskManagement, &cfg.Risk); err != nil {
			return cfg, err
		}
	}
	if len(s.SmallCap) > 0 {
		if err := json.Unmarshal(s.SmallCap, &cfg.SmallCap); err != nil {
			return cfg, err
		}
	}
	if len(s.StockUniverse) > 0 {
		if err := json.Unmarshal(s.StockUniverse, &cfg.StockUniverse); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// StrategyFromConfig serializes a strategy configuration into its storable
// form.
func StrategyFromConfig(cfg dto.StrategyConfig) (*Strategy, error) {
	factors, err := json.Marshal(cfg.Factors)
	if err != nil {
		return nil, err
	}
	risk, err := json.Marshal(cfg.Risk)
	if err != nil {
		return nil, err
	}
	universe, err := json.Marshal(cfg.StockUniverse)
	if err != nil {
		return nil, err
	}

	s := &Strategy{
		ID:             cfg.ID,
		Name:           cfg.Name,
		ScoringKind:    string(cfg.ScoringKind),
		Factors:        factors,
		RiskManagement: risk,
		StockUniverse:  universe,
		Enabled:        &cfg.Enabled,
	}
	if cfg.SmallCap != nil {
		smallCap, err := json.Marshal(cfg.SmallCap)
		if err != nil {
			return nil, err
		}
		s.SmallCap = smallCap
	}
	return s, nil
}
