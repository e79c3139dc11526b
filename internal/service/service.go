package service

import (
	"golang-backtest/config"
	"golang-backtest/internal/factor"
	"golang-backtest/internal/repository"
	"golang-backtest/pkg/logger"
)

type Service struct {
	StrategyService  StrategyService
	BacktestService  BacktestService
	SchedulerService SchedulerService
}

func NewService(
	cfg *config.Config,
	log *logger.Logger,
	repo *repository.Repository,
) *Service {
	registry := factor.NewRegistry()

	strategyService := NewStrategyService(log, repo.StrategyRepo, registry)
	backtestService := NewBacktestService(cfg, log, repo, registry)
	schedulerService := NewSchedulerService(cfg, log, repo.StrategyRepo, backtestService)

	return &Service{
		StrategyService:  strategyService,
		BacktestService:  backtestService,
		SchedulerService: schedulerService,
	}
}
