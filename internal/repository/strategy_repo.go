package repository

import (
	"context"

	"golang-backtest/internal/model"
	"golang-backtest/pkg/utils"

	"gorm.io/gorm"
)

type StrategyRepository interface {
	Create(ctx context.Context, strategy *model.Strategy, opts ...utils.DBOption) error
	Update(ctx context.Context, strategy *model.Strategy, opts ...utils.DBOption) error
	Delete(ctx context.Context, id uint, opts ...utils.DBOption) error
	GetByID(ctx context.Context, id uint, opts ...utils.DBOption) (*model.Strategy, error)
	GetAll(ctx context.Context, opts ...utils.DBOption) ([]model.Strategy, error)
	GetEnabled(ctx context.Context, opts ...utils.DBOption) ([]model.Strategy, error)
}

type strategyRepository struct {
	db *gorm.DB
}

func NewStrategyRepository(db *gorm.DB) StrategyRepository {
	return &strategyRepository{db: db}
}

func (r *strategyRepository) Create(ctx context.Context, strategy *model.Strategy, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db, opts...)
	return db.WithContext(ctx).Create(strategy).Error
}

func (r *strategyRepository) Update(ctx context.Context, strategy *model.Strategy, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db, opts...)
	return db.WithContext(ctx).Save(strategy).Error
}

func (r *strategyRepository) Delete(ctx context.Context, id uint, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db, opts...)
	return db.WithContext(ctx).Delete(&model.Strategy{}, id).Error
}

func (r *strategyRepository) GetByID(ctx context.Context, id uint, opts ...utils.DBOption) (*model.Strategy, error) {
	db := utils.ApplyOptions(r.db, opts...)

	var strategy model.Strategy
	if err := db.WithContext(ctx).First(&strategy, id).Error; err != nil {
		return nil, err
	}
	return &strategy, nil
}

func (r *strategyRepository) GetAll(ctx context.Context, opts ...utils.DBOption) ([]model.Strategy, error) {
	db := utils.ApplyOptions(r.db, opts...)

	var strategies []model.Strategy
	if err := db.WithContext(ctx).Order("id asc").Find(&strategies).Error; err != nil {
		return nil, err
	}
	return strategies, nil
}

func (r *strategyRepository) GetEnabled(ctx context.Context, opts ...utils.DBOption) ([]model.Strategy, error) {
	opts = append(opts, utils.WithWhere("enabled = ?", true))
	return r.GetAll(ctx, opts...)
}
