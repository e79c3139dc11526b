package repository

import (
	"context"

	"golang-backtest/internal/model"
	"golang-backtest/pkg/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BacktestRepository interface {
	CreateRun(ctx context.Context, run *model.BacktestRun, opts ...utils.DBOption) error
	UpdateRun(ctx context.Context, run *model.BacktestRun, opts ...utils.DBOption) error
	GetRun(ctx context.Context, id uint, opts ...utils.DBOption) (*model.BacktestRun, error)
	ListRuns(ctx context.Context, strategyID uint, opts ...utils.DBOption) ([]model.BacktestRun, error)

	SaveTrade(ctx context.Context, trade *model.BacktestTrade, opts ...utils.DBOption) error
	SaveSnapshot(ctx context.Context, snapshot *model.DailySnapshot, opts ...utils.DBOption) error
	SaveMetrics(ctx context.Context, metrics *model.PerformanceMetric, opts ...utils.DBOption) error

	GetTrades(ctx context.Context, runID uint, opts ...utils.DBOption) ([]model.BacktestTrade, error)
	GetSnapshots(ctx context.Context, runID uint, opts ...utils.DBOption) ([]model.DailySnapshot, error)
	GetMetrics(ctx context.Context, runID uint, opts ...utils.DBOption) (*model.PerformanceMetric, error)
}

type backtestRepository struct {
	db *gorm.DB
}

func NewBacktestRepository(db *gorm.DB) BacktestRepository {
	return &backtestRepository{db: db}
}

func (r *backtestRepository) CreateRun(ctx context.Context, run *model.BacktestRun, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db, opts...)
	return db.WithContext(ctx).Create(run).Error
}

func (r *backtestRepository) UpdateRun(ctx context.Context, run *model.BacktestRun, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db, opts...)
	return db.WithContext(ctx).Save(run).Error
}

func (r *backtestRepository) GetRun(ctx context.Context, id uint, opts ...utils.DBOption) (*model.BacktestRun, error) {
	db := utils.ApplyOptions(r.db, opts...)

	var run model.BacktestRun
	if err := db.WithContext(ctx).First(&run, id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *backtestRepository) ListRuns(ctx context.Context, strategyID uint, opts ...utils.DBOption) ([]model.BacktestRun, error) {
	db := utils.ApplyOptions(r.db, opts...)

	query := db.WithContext(ctx).Order("id desc")
	if strategyID != 0 {
		query = query.Where("strategy_id = ?", strategyID)
	}

	var runs []model.BacktestRun
	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *backtestRepository) SaveTrade(ctx context.Context, trade *model.BacktestTrade, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db, opts...)
	return db.WithContext(ctx).Create(trade).Error
}

func (r *backtestRepository) SaveSnapshot(ctx context.Context, snapshot *model.DailySnapshot, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db, opts...)
	return db.WithContext(ctx).Create(snapshot).Error
}

// SaveMetrics upserts on run_id: a recalculation replaces the previous row
// for the same run instead of appending.
func (r *backtestRepository) SaveMetrics(ctx context.Context, metrics *model.PerformanceMetric, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db, opts...)
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "run_id"}},
			UpdateAll: true,
		}).
		Create(metrics).Error
}

func (r *backtestRepository) GetTrades(ctx context.Context, runID uint, opts ...utils.DBOption) ([]model.BacktestTrade, error) {
	db := utils.ApplyOptions(r.db, opts...)

	var trades []model.BacktestTrade
	if err := db.WithContext(ctx).Where("run_id = ?", runID).Order("timestamp asc, id asc").Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}

func (r *backtestRepository) GetSnapshots(ctx context.Context, runID uint, opts ...utils.DBOption) ([]model.DailySnapshot, error) {
	db := utils.ApplyOptions(r.db, opts...)

	var snapshots []model.DailySnapshot
	if err := db.WithContext(ctx).Where("run_id = ?", runID).Order("timestamp asc").Find(&snapshots).Error; err != nil {
		return nil, err
	}
	return snapshots, nil
}

func (r *backtestRepository) GetMetrics(ctx context.Context, runID uint, opts ...utils.DBOption) (*model.PerformanceMetric, error) {
	db := utils.ApplyOptions(r.db, opts...)

	var metrics model.PerformanceMetric
	if err := db.WithContext(ctx).Where("run_id = ?", runID).First(&metrics).Error; err != nil {
		return nil, err
	}
	return &metrics, nil
}
