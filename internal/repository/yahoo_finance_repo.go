package repository

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"golang-backtest/config"
	"golang-backtest/internal/dto"
	"golang-backtest/pkg/cache"
	"golang-backtest/pkg/common"
	"golang-backtest/pkg/httpclient"
	"golang-backtest/pkg/logger"
)

// PriceHistoryRepository fetches ordered, deduplicated OHLCV bars for one
// symbol. Gaps in the series are permitted; the simulator tolerates them.
type PriceHistoryRepository interface {
	GetPriceHistory(ctx context.Context, param dto.GetPriceHistoryParam) ([]dto.PriceBar, error)
}

type yahooFinanceRepository struct {
	httpClient httpclient.HTTPClient
	cache      cache.Cache
	cfg        *config.Config
	log        *logger.Logger
	limiter    *rate.Limiter
}

func NewYahooFinanceRepository(cfg *config.Config, memCache cache.Cache, log *logger.Logger) PriceHistoryRepository {
	perRequest := time.Minute / time.Duration(cfg.YahooFinance.MaxRequestPerMinute)

	return &yahooFinanceRepository{
		httpClient: httpclient.New(cfg.YahooFinance.BaseURL, cfg.YahooFinance.Timeout),
		cache:      memCache,
		cfg:        cfg,
		log:        log,
		limiter:    rate.NewLimiter(rate.Every(perRequest), 1),
	}
}

func (r *yahooFinanceRepository) GetPriceHistory(ctx context.Context, param dto.GetPriceHistoryParam) ([]dto.PriceBar, error) {
	if param.Interval == "" {
		param.Interval = common.IntervalDaily
	}

	cacheKey := fmt.Sprintf("prices:%s:%d:%d:%s",
		param.Symbol, param.Start.Unix(), param.End.Unix(), param.Interval)
	if bars, ok := cache.GetTyped[[]dto.PriceBar](r.cache, cacheKey); ok {
		return bars, nil
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := "/" + param.Symbol
	queryParams := map[string]string{
		"period1":        fmt.Sprintf("%d", param.Start.Unix()),
		"period2":        fmt.Sprintf("%d", param.End.Unix()),
		"interval":       param.Interval,
		"includePrePost": "false",
		"events":         "div,split",
	}
	headers := map[string]string{
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0.0.0 Safari/537.36",
		"Accept":          "application/json, text/plain, */*",
		"Accept-Language": "en-US,en;q=0.9",
		"Referer":         "https://finance.yahoo.com/",
	}

	var yahooResp dto.YahooFinanceResponse
	resp, err := r.httpClient.Get(ctx, endpoint, queryParams, headers, &yahooResp)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch data from yahoo finance: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		r.log.ErrorContext(ctx, "Yahoo Finance API returned non-OK status",
			logger.StringField("symbol", param.Symbol),
			logger.IntField("status_code", resp.StatusCode),
			logger.StringField("body", string(resp.Body)))
		return nil, fmt.Errorf("yahoo finance api returned status: %d", resp.StatusCode)
	}
	if yahooResp.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo finance api error: %v", yahooResp.Chart.Error)
	}
	if len(yahooResp.Chart.Result) == 0 {
		return nil, fmt.Errorf("no data returned for symbol: %s", param.Symbol)
	}

	result := yahooResp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("no quote data available for symbol: %s", param.Symbol)
	}
	quote := result.Indicators.Quote[0]

	bars := make([]dto.PriceBar, 0, len(result.Timestamp))
	seen := make(map[int64]bool, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) ||
			i >= len(quote.Close) || i >= len(quote.Volume) {
			continue
		}
		// Zero values mark missing data in the chart API.
		if quote.Open[i] == 0 || quote.High[i] == 0 || quote.Low[i] == 0 || quote.Close[i] == 0 {
			continue
		}
		if seen[ts] {
			continue
		}
		seen[ts] = true

		bars = append(bars, dto.PriceBar{
			Symbol:    param.Symbol,
			Timestamp: time.Unix(ts, 0).UTC(),
			Open:      quote.Open[i],
			High:      quote.High[i],
			Low:       quote.Low[i],
			Close:     quote.Close[i],
			Volume:    quote.Volume[i],
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no valid OHLCV data found for symbol: %s", param.Symbol)
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})

	r.cache.Set(cacheKey, bars, r.cfg.YahooFinance.CacheExpiration)
	return bars, nil
}
