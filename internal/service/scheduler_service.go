package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"golang-backtest/config"
	"golang-backtest/internal/dto"
	"golang-backtest/internal/repository"
	"golang-backtest/pkg/logger"
)

// SchedulerService re-runs every enabled strategy over a trailing window on a
// cron schedule, keeping stored metrics fresh.
type SchedulerService interface {
	Start(ctx context.Context) error
	Stop()
}

type schedulerService struct {
	cfg             *config.Config
	log             *logger.Logger
	strategyRepo    repository.StrategyRepository
	backtestService BacktestService
	cron            *cron.Cron
}

func NewSchedulerService(
	cfg *config.Config,
	log *logger.Logger,
	strategyRepo repository.StrategyRepository,
	backtestService BacktestService,
) SchedulerService {
	return &schedulerService{
		cfg:             cfg,
		log:             log,
		strategyRepo:    strategyRepo,
		backtestService: backtestService,
		cron:            cron.New(),
	}
}

func (s *schedulerService) Start(ctx context.Context) error {
	if !s.cfg.Scheduler.Enabled {
		s.log.Info("scheduler disabled")
		return nil
	}

	_, err := s.cron.AddFunc(s.cfg.Scheduler.CronExpression, func() {
		s.runEnabledStrategies(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info("scheduler started",
		logger.StringField("cron", s.cfg.Scheduler.CronExpression),
		logger.IntField("trailing_window_days", s.cfg.Scheduler.TrailingWindowDays))
	return nil
}

func (s *schedulerService) Stop() {
	<-s.cron.Stop().Done()
}

func (s *schedulerService) runEnabledStrategies(ctx context.Context) {
	strategies, err := s.strategyRepo.GetEnabled(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to load enabled strategies", logger.ErrorField(err))
		return
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -s.cfg.Scheduler.TrailingWindowDays)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Scheduler.MaxConcurrency)
	for _, strategy := range strategies {
		strategy := strategy
		g.Go(func() error {
			runCtx, cancel := context.WithTimeout(gctx, s.cfg.Scheduler.RunTimeoutDuration)
			defer cancel()

			result, err := s.backtestService.Run(runCtx, dto.BacktestRequest{
				StrategyID:  strategy.ID,
				StartDate:   start,
				EndDate:     end,
				InitialCash: s.cfg.Backtest.DefaultInitialCash,
				Commission:  s.cfg.Backtest.DefaultCommission,
				Slippage:    s.cfg.Backtest.DefaultSlippage,
			})
			if err != nil {
				// One broken strategy must not stop the sweep.
				s.log.ErrorContext(runCtx, "scheduled backtest failed",
					logger.IntField("strategy_id", int(strategy.ID)),
					logger.ErrorField(err))
				return nil
			}

			s.log.InfoContext(runCtx, "scheduled backtest completed",
				logger.IntField("strategy_id", int(strategy.ID)),
				logger.IntField("run_id", int(result.RunID)),
				logger.Float64Field("final_value", result.FinalValue))
			return nil
		})
	}
	_ = g.Wait()
}
