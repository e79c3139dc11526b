package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"golang-backtest/config"
	"golang-backtest/internal/dto"
	"golang-backtest/internal/engine"
	"golang-backtest/internal/factor"
	"golang-backtest/internal/model"
	"golang-backtest/internal/repository"
	"golang-backtest/internal/scoring"
	"golang-backtest/pkg/logger"
	"golang-backtest/pkg/utils"
)

// warmupDays of extra calendar history are fetched before the run start so
// indicators with the deepest lookback (the 260-bar breakout range) have bars
// to work with on day one.
const warmupDays = 550

var ErrRunNotFound = errors.New("backtest run not found")

// RunDetail is a stored run with everything it produced.
type RunDetail struct {
	Run       *model.BacktestRun       `json:"run"`
	Trades    []model.BacktestTrade    `json:"trades"`
	Snapshots []model.DailySnapshot    `json:"snapshots"`
	Metrics   *model.PerformanceMetric `json:"metrics,omitempty"`
}

type BacktestService interface {
	// Run executes a persisted backtest: a run row is created up front and
	// trades/snapshots/metrics are written through the sink as they appear.
	Run(ctx context.Context, req dto.BacktestRequest) (*dto.BacktestResult, error)

	// RunAdhoc executes a backtest against an unsaved strategy with recording
	// disabled. Nothing is written to the database.
	RunAdhoc(ctx context.Context, strategy dto.StrategyConfig, cfg dto.BacktestConfig) (*dto.BacktestResult, error)

	GetRun(ctx context.Context, runID uint) (*RunDetail, error)
	ListRuns(ctx context.Context, strategyID uint) ([]model.BacktestRun, error)
}

type backtestService struct {
	cfg      *config.Config
	log      *logger.Logger
	repo     *repository.Repository
	registry *factor.Registry
	validate *validator.Validate
}

func NewBacktestService(cfg *config.Config, log *logger.Logger, repo *repository.Repository, registry *factor.Registry) BacktestService {
	return &backtestService{
		cfg:      cfg,
		log:      log,
		repo:     repo,
		registry: registry,
		validate: validator.New(),
	}
}

func (s *backtestService) Run(ctx context.Context, req dto.BacktestRequest) (*dto.BacktestResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", scoring.ErrValidation, err)
	}

	strategyModel, err := s.repo.StrategyRepo.GetByID(ctx, req.StrategyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStrategyNotFound
		}
		return nil, err
	}
	strategy, err := strategyModel.ToConfig()
	if err != nil {
		return nil, err
	}

	cfg := dto.BacktestConfig{
		StrategyID:  req.StrategyID,
		StartDate:   utils.TruncateToDay(req.StartDate),
		EndDate:     utils.TruncateToDay(req.EndDate),
		InitialCash: req.InitialCash,
		Commission:  req.Commission,
		Slippage:    req.Slippage,
	}

	run := &model.BacktestRun{
		StrategyID:  req.StrategyID,
		StartDate:   cfg.StartDate,
		EndDate:     cfg.EndDate,
		InitialCash: cfg.InitialCash,
		Commission:  cfg.Commission,
		Slippage:    cfg.Slippage,
		Status:      model.RunStatusRunning,
	}
	if err := s.repo.BacktestRepo.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	result, err := s.simulate(ctx, strategy, cfg, &runSink{repo: s.repo.BacktestRepo, runID: run.ID})
	if err != nil {
		run.Status = model.RunStatusFailed
		run.ErrorMessage = utils.ToPointer(err.Error())
		if updateErr := s.repo.BacktestRepo.UpdateRun(ctx, run); updateErr != nil {
			s.log.ErrorContext(ctx, "failed to mark run as failed", logger.ErrorField(updateErr))
		}
		return nil, err
	}
	result.RunID = run.ID

	// Metrics and the terminal status land in one transaction so a run is
	// never COMPLETED without its metrics row.
	finalizeErr := s.repo.UnitOfWork.Run(func(opts ...utils.DBOption) error {
		if result.Metrics != nil {
			if err := s.repo.BacktestRepo.SaveMetrics(ctx, metricsToModel(run.ID, result.Metrics), opts...); err != nil {
				return err
			}
		}
		run.Status = model.RunStatusCompleted
		run.FinalValue = utils.ToPointer(result.FinalValue)
		return s.repo.BacktestRepo.UpdateRun(ctx, run, opts...)
	})
	if finalizeErr != nil {
		s.log.ErrorContext(ctx, "failed to finalize run", logger.ErrorField(finalizeErr))
	}

	s.log.InfoContext(ctx, "backtest run completed",
		logger.IntField("run_id", int(run.ID)),
		logger.IntField("trades", len(result.Trades)),
		logger.Float64Field("final_value", result.FinalValue))
	return result, nil
}

func (s *backtestService) RunAdhoc(ctx context.Context, strategy dto.StrategyConfig, cfg dto.BacktestConfig) (*dto.BacktestResult, error) {
	cfg.StartDate = utils.TruncateToDay(cfg.StartDate)
	cfg.EndDate = utils.TruncateToDay(cfg.EndDate)
	if cfg.InitialCash <= 0 {
		cfg.InitialCash = s.cfg.Backtest.DefaultInitialCash
	}
	return s.simulate(ctx, strategy, cfg, nil)
}

func (s *backtestService) simulate(ctx context.Context, strategy dto.StrategyConfig, cfg dto.BacktestConfig, sink engine.Sink) (*dto.BacktestResult, error) {
	scorer, err := scoring.NewScorer(strategy, s.registry, s.log)
	if err != nil {
		return nil, err
	}

	prices, err := s.fetchPrices(ctx, strategy.StockUniverse, cfg)
	if err != nil {
		return nil, err
	}

	return engine.NewSimulator(s.log).Run(ctx, engine.RunInput{
		Config:   cfg,
		Strategy: strategy,
		Scorer:   scorer,
		Prices:   prices,
		Sink:     sink,
	})
}

// fetchPrices loads the full-window history for every universe symbol up
// front, in parallel. A symbol whose fetch fails is left out and excluded
// from the run; only the I/O boundary carries a timeout.
func (s *backtestService) fetchPrices(ctx context.Context, universe []string, cfg dto.BacktestConfig) (map[string][]dto.PriceBar, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.Backtest.FetchTimeout)
	defer cancel()

	prices := make(map[string][]dto.PriceBar, len(universe))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(fetchCtx)
	g.SetLimit(s.cfg.Backtest.FetchConcurrency)
	for _, symbol := range universe {
		symbol := symbol
		g.Go(func() error {
			bars, err := s.repo.PriceHistoryRepo.GetPriceHistory(gctx, dto.GetPriceHistoryParam{
				Symbol: symbol,
				Start:  cfg.StartDate.AddDate(0, 0, -warmupDays),
				End:    cfg.EndDate.AddDate(0, 0, 1),
			})
			if err != nil {
				s.log.WarnContext(gctx, "price fetch failed, symbol excluded from run",
					logger.StringField("symbol", symbol),
					logger.ErrorField(err))
				return nil
			}
			mu.Lock()
			prices[symbol] = bars
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return prices, nil
}

func (s *backtestService) GetRun(ctx context.Context, runID uint) (*RunDetail, error) {
	run, err := s.repo.BacktestRepo.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}

	trades, err := s.repo.BacktestRepo.GetTrades(ctx, runID)
	if err != nil {
		return nil, err
	}
	snapshots, err := s.repo.BacktestRepo.GetSnapshots(ctx, runID)
	if err != nil {
		return nil, err
	}

	metrics, err := s.repo.BacktestRepo.GetMetrics(ctx, runID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return &RunDetail{
		Run:       run,
		Trades:    trades,
		Snapshots: snapshots,
		Metrics:   metrics,
	}, nil
}

func (s *backtestService) ListRuns(ctx context.Context, strategyID uint) ([]model.BacktestRun, error) {
	return s.repo.BacktestRepo.ListRuns(ctx, strategyID)
}

// runSink adapts the backtest repository to the simulator's sink interface,
// stamping every row with the run it belongs to.
type runSink struct {
	repo  repository.BacktestRepository
	runID uint
}

func (r *runSink) RecordTrade(ctx context.Context, trade dto.BacktestTrade) error {
	return r.repo.SaveTrade(ctx, &model.BacktestTrade{
		RunID:          r.runID,
		Timestamp:      trade.Timestamp,
		Symbol:         trade.Symbol,
		Side:           string(trade.Side),
		Quantity:       trade.Quantity,
		Price:          trade.Price,
		Amount:         trade.Amount,
		SignalType:     string(trade.SignalType),
		SignalStrength: trade.SignalStrength,
		Reasoning:      trade.Reasoning,
		PnL:            trade.PnL,
	})
}

func (r *runSink) RecordSnapshot(ctx context.Context, snapshot dto.DailySnapshot) error {
	return r.repo.SaveSnapshot(ctx, &model.DailySnapshot{
		RunID:          r.runID,
		Timestamp:      snapshot.Timestamp,
		TotalValue:     snapshot.TotalValue,
		CashBalance:    snapshot.CashBalance,
		PositionsValue: snapshot.PositionsValue,
		PositionCount:  snapshot.PositionCount,
		DailyReturn:    snapshot.DailyReturn,
	})
}

func metricsToModel(runID uint, m *dto.PerformanceMetrics) *model.PerformanceMetric {
	return &model.PerformanceMetric{
		RunID:              runID,
		PeriodStart:        m.PeriodStart,
		PeriodEnd:          m.PeriodEnd,
		TotalReturn:        m.TotalReturn,
		TotalReturnPercent: m.TotalReturnPercent,
		AnnualizedReturn:   m.AnnualizedReturn,
		Volatility:         m.Volatility,
		DownsideDeviation:  m.DownsideDeviation,
		MaxDrawdown:        m.MaxDrawdown,
		MaxDrawdownPercent: m.MaxDrawdownPercent,
		SharpeRatio:        m.SharpeRatio,
		SortinoRatio:       m.SortinoRatio,
		CalmarRatio:        m.CalmarRatio,
		VaR95:              m.VaR95,
		VaR99:              m.VaR99,
		CVaR95:             m.CVaR95,
		CVaR99:             m.CVaR99,
		TotalTrades:        m.TotalTrades,
		WinningTrades:      m.WinningTrades,
		LosingTrades:       m.LosingTrades,
		WinRate:            m.WinRate,
		ProfitFactor:       m.ProfitFactor,
		AverageTrade:       m.AverageTrade,
		TotalRealizedPnL:   m.TotalRealizedPnL,
	}
}
