package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"golang-backtest/internal/dto"
	"golang-backtest/internal/factor"
	"golang-backtest/internal/model"
	"golang-backtest/internal/repository"
	"golang-backtest/internal/scoring"
	"golang-backtest/pkg/logger"
)

var ErrStrategyNotFound = errors.New("strategy not found")

type StrategyService interface {
	Create(ctx context.Context, cfg dto.StrategyConfig) (dto.StrategyConfig, error)
	Update(ctx context.Context, id uint, cfg dto.StrategyConfig) (dto.StrategyConfig, error)
	Delete(ctx context.Context, id uint) error
	Get(ctx context.Context, id uint) (dto.StrategyConfig, error)
	List(ctx context.Context) ([]dto.StrategyConfig, error)
}

type strategyService struct {
	log          *logger.Logger
	strategyRepo repository.StrategyRepository
	registry     *factor.Registry
	validate     *validator.Validate
}

func NewStrategyService(log *logger.Logger, strategyRepo repository.StrategyRepository, registry *factor.Registry) StrategyService {
	return &strategyService{
		log:          log,
		strategyRepo: strategyRepo,
		registry:     registry,
		validate:     validator.New(),
	}
}

// validateConfig rejects malformed strategies before they are stored: struct
// tags first, then a dry scorer construction to validate factor types and
// params the same way a run would.
func (s *strategyService) validateConfig(cfg dto.StrategyConfig) error {
	if err := s.validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", scoring.ErrValidation, err)
	}
	if _, err := scoring.NewScorer(cfg, s.registry, s.log); err != nil {
		return err
	}
	return nil
}

func (s *strategyService) Create(ctx context.Context, cfg dto.StrategyConfig) (dto.StrategyConfig, error) {
	if err := s.validateConfig(cfg); err != nil {
		return dto.StrategyConfig{}, err
	}

	m, err := model.StrategyFromConfig(cfg)
	if err != nil {
		return dto.StrategyConfig{}, err
	}
	m.ID = 0

	if err := s.strategyRepo.Create(ctx, m); err != nil {
		s.log.ErrorContext(ctx, "failed to create strategy", logger.ErrorField(err))
		return dto.StrategyConfig{}, err
	}

	s.log.InfoContext(ctx, "strategy created",
		logger.IntField("strategy_id", int(m.ID)),
		logger.StringField("name", m.Name))
	return m.ToConfig()
}

func (s *strategyService) Update(ctx context.Context, id uint, cfg dto.StrategyConfig) (dto.StrategyConfig, error) {
	if err := s.validateConfig(cfg); err != nil {
		return dto.StrategyConfig{}, err
	}

	if _, err := s.getModel(ctx, id); err != nil {
		return dto.StrategyConfig{}, err
	}

	m, err := model.StrategyFromConfig(cfg)
	if err != nil {
		return dto.StrategyConfig{}, err
	}
	m.ID = id

	if err := s.strategyRepo.Update(ctx, m); err != nil {
		s.log.ErrorContext(ctx, "failed to update strategy", logger.ErrorField(err))
		return dto.StrategyConfig{}, err
	}
	return m.ToConfig()
}

func (s *strategyService) Delete(ctx context.Context, id uint) error {
	if _, err := s.getModel(ctx, id); err != nil {
		return err
	}
	return s.strategyRepo.Delete(ctx, id)
}

func (s *strategyService) Get(ctx context.Context, id uint) (dto.StrategyConfig, error) {
	m, err := s.getModel(ctx, id)
	if err != nil {
		return dto.StrategyConfig{}, err
	}
	return m.ToConfig()
}

func (s *strategyService) List(ctx context.Context) ([]dto.StrategyConfig, error) {
	models, err := s.strategyRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	configs := make([]dto.StrategyConfig, 0, len(models))
	for _, m := range models {
		cfg, err := m.ToConfig()
		if err != nil {
			s.log.WarnContext(ctx, "skipping unreadable strategy row",
				logger.IntField("strategy_id", int(m.ID)),
				logger.ErrorField(err))
			continue
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

func (s *strategyService) getModel(ctx context.Context, id uint) (*model.Strategy, error) {
	m, err := s.strategyRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStrategyNotFound
		}
		return nil, err
	}
	return m, nil
}
