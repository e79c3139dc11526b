package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log          Logger       `mapstructure:"logger"`
	DB           Database     `mapstructure:"database"`
	API          API          `mapstructure:"api"`
	Cache        Cache        `mapstructure:"cache"`
	YahooFinance YahooFinance `mapstructure:"yahoo_finance"`
	Backtest     Backtest     `mapstructure:"backtest"`
	Scheduler    Scheduler    `mapstructure:"scheduler"`
}

type Logger struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type Database struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	TimeZone        string `mapstructure:"time_zone"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

type API struct {
	Port int `mapstructure:"port"`
}

type Cache struct {
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

type YahooFinance struct {
	BaseURL             string        `mapstructure:"base_url"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
	CacheExpiration     time.Duration `mapstructure:"cache_expiration"`
}

type Backtest struct {
	DefaultCommission  float64       `mapstructure:"default_commission"`
	DefaultSlippage    float64       `mapstructure:"default_slippage"`
	DefaultInitialCash float64       `mapstructure:"default_initial_cash"`
	FetchConcurrency   int           `mapstructure:"fetch_concurrency"`
	FetchTimeout       time.Duration `mapstructure:"fetch_timeout"`
}

type Scheduler struct {
	Enabled            bool          `mapstructure:"enabled"`
	CronExpression     string        `mapstructure:"cron_expression"`
	TrailingWindowDays int           `mapstructure:"trailing_window_days"`
	MaxConcurrency     int           `mapstructure:"max_concurrency"`
	RunTimeoutDuration time.Duration `mapstructure:"run_timeout_duration"`
}

func Load() (*Config, error) {
	// .env is optional; real deployments set env vars directly.
	_ = godotenv.Load()

	viper.SetConfigType("yaml")
	viper.SetConfigName("config")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		fmt.Println("No config file loaded:", err)
	}

	setDefaults()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.encoding", "json")
	viper.SetDefault("api.port", 8080)
	viper.SetDefault("cache.default_expiration", 5*time.Minute)
	viper.SetDefault("cache.cleanup_interval", 10*time.Minute)
	viper.SetDefault("yahoo_finance.base_url", "https://query1.finance.yahoo.com/v8/finance/chart")
	viper.SetDefault("yahoo_finance.timeout", 15*time.Second)
	viper.SetDefault("yahoo_finance.max_request_per_minute", 60)
	viper.SetDefault("yahoo_finance.cache_expiration", 15*time.Minute)
	viper.SetDefault("backtest.default_commission", 1.0)
	viper.SetDefault("backtest.default_slippage", 0.001)
	viper.SetDefault("backtest.default_initial_cash", 100000.0)
	viper.SetDefault("backtest.fetch_concurrency", 4)
	viper.SetDefault("backtest.fetch_timeout", 2*time.Minute)
	viper.SetDefault("scheduler.enabled", false)
	viper.SetDefault("scheduler.cron_expression", "0 22 * * 1-5")
	viper.SetDefault("scheduler.trailing_window_days", 365)
	viper.SetDefault("scheduler.max_concurrency", 2)
	viper.SetDefault("scheduler.run_timeout_duration", 10*time.Minute)
}
