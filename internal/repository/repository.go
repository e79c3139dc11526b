package repository

import (
	"golang-backtest/config"
	"golang-backtest/pkg/cache"
	"golang-backtest/pkg/logger"

	"gorm.io/gorm"
)

type Repository struct {
	PriceHistoryRepo PriceHistoryRepository
	StrategyRepo     StrategyRepository
	BacktestRepo     BacktestRepository
	UnitOfWork       UnitOfWork
}

func NewRepository(cfg *config.Config, db *gorm.DB, memCache cache.Cache, log *logger.Logger) *Repository {
	return &Repository{
		PriceHistoryRepo: NewYahooFinanceRepository(cfg, memCache, log),
		StrategyRepo:     NewStrategyRepository(db),
		BacktestRepo:     NewBacktestRepository(db),
		UnitOfWork:       NewUnitOfWork(db),
	}
}
