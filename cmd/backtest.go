package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"golang-backtest/config"
	"golang-backtest/internal/dto"
	"golang-backtest/internal/factor"
	"golang-backtest/internal/repository"
	"golang-backtest/internal/service"
	"golang-backtest/pkg/cache"
	"golang-backtest/pkg/logger"
	"golang-backtest/pkg/utils"
)

var (
	backtestStrategyFile string
	backtestStart        string
	backtestEnd          string
	backtestCash         float64
	backtestCommission   float64
	backtestSlippage     float64
)

// backtestCmd runs one backtest from a strategy JSON file with recording
// disabled. It needs no database: prices come straight from the market-data
// API and the result is printed to stdout.
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run an ad-hoc backtest from a strategy file",
	Run:   RunAdhocBacktest,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestStrategyFile, "strategy-file", "", "path to a strategy config JSON file (required)")
	backtestCmd.Flags().StringVar(&backtestStart, "start", "", "start date, YYYY-MM-DD (required)")
	backtestCmd.Flags().StringVar(&backtestEnd, "end", "", "end date, YYYY-MM-DD (required)")
	backtestCmd.Flags().Float64Var(&backtestCash, "cash", 0, "initial cash (default from config)")
	backtestCmd.Flags().Float64Var(&backtestCommission, "commission", 0, "flat commission per trade")
	backtestCmd.Flags().Float64Var(&backtestSlippage, "slippage", 0, "unidirectional slippage fraction")
	_ = backtestCmd.MarkFlagRequired("strategy-file")
	_ = backtestCmd.MarkFlagRequired("start")
	_ = backtestCmd.MarkFlagRequired("end")
}

func RunAdhocBacktest(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	appLog, err := logger.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	raw, err := os.ReadFile(backtestStrategyFile)
	if err != nil {
		log.Fatalf("Failed to read strategy file: %v", err)
	}
	var strategy dto.StrategyConfig
	if err := json.Unmarshal(raw, &strategy); err != nil {
		log.Fatalf("Failed to parse strategy file: %v", err)
	}

	start, err := utils.ParseDate(backtestStart)
	if err != nil {
		log.Fatalf("Invalid start date: %v", err)
	}
	end, err := utils.ParseDate(backtestEnd)
	if err != nil {
		log.Fatalf("Invalid end date: %v", err)
	}

	if backtestCommission == 0 {
		backtestCommission = cfg.Backtest.DefaultCommission
	}
	if backtestSlippage == 0 {
		backtestSlippage = cfg.Backtest.DefaultSlippage
	}

	// Only the price repository is needed; no database connection is opened.
	memCache := cache.NewCache(cfg.Cache.DefaultExpiration, cfg.Cache.CleanupInterval)
	repo := &repository.Repository{
		PriceHistoryRepo: repository.NewYahooFinanceRepository(cfg, memCache, appLog),
	}
	backtestService := service.NewBacktestService(cfg, appLog, repo, factor.NewRegistry())

	result, err := backtestService.RunAdhoc(ctx, strategy, dto.BacktestConfig{
		StartDate:   start,
		EndDate:     end,
		InitialCash: backtestCash,
		Commission:  backtestCommission,
		Slippage:    backtestSlippage,
	})
	if err != nil {
		log.Fatalf("Backtest failed: %v", err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}
	fmt.Println(string(out))
}
