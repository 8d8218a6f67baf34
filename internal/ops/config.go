// Package ops loads and validates the runtime configuration.
package ops

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/risk"
)

// FileConfig mirrors the config file layout. Prices and percentages arrive
// as strings so they survive the trip into decimals without float rounding.
type FileConfig struct {
	App      AppConfig      `mapstructure:"app"`
	Streams  []StreamConfig `mapstructure:"streams" validate:"min=1,dive"`
	Buffer   BufferConfig   `mapstructure:"buffer"`
	Bus      BusConfig      `mapstructure:"bus"`
	Risk     RiskConfig     `mapstructure:"risk"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Strategy StrategyConfig `mapstructure:"strategy"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Server   ServerConfig   `mapstructure:"server"`
	Profile  ProfileConfig  `mapstructure:"profile"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
}

type StreamConfig struct {
	Symbol   string `mapstructure:"symbol" validate:"required"`
	Kind     string `mapstructure:"kind" validate:"required,oneof=ticker kline depth trade"`
	Interval string `mapstructure:"interval" validate:"required_if=Kind kline"`
}

type BufferConfig struct {
	TickCapacity  int `mapstructure:"tick_capacity"`
	KlineCapacity int `mapstructure:"kline_capacity"`
	DepthCapacity int `mapstructure:"depth_capacity"`
	TradeCapacity int `mapstructure:"trade_capacity"`
}

type BusConfig struct {
	HistorySize    int `mapstructure:"history_size"`
	AsyncQueueSize int `mapstructure:"async_queue_size"`
}

type RiskConfig struct {
	MaxPositionSize    string `mapstructure:"max_position_size"`
	MaxPositionPct     string `mapstructure:"max_position_pct"`
	StopLossPct        string `mapstructure:"stop_loss_pct"`
	TakeProfitPct      string `mapstructure:"take_profit_pct"`
	MaxDailyLoss       string `mapstructure:"max_daily_loss"`
	MaxOrdersPerSymbol int    `mapstructure:"max_orders_per_symbol"`
	RiskPerTradePct    string `mapstructure:"risk_per_trade_pct"`
}

type MonitorConfig struct {
	CheckInterval time.Duration `mapstructure:"check_interval"`
}

type ExchangeConfig struct {
	Mode          string        `mapstructure:"mode" validate:"oneof=paper binance"`
	StreamURL     string        `mapstructure:"stream_url"`
	RestURL       string        `mapstructure:"rest_url"`
	APIKey        string        `mapstructure:"api_key"`
	APISecret     string        `mapstructure:"api_secret"`
	InitialEquity string        `mapstructure:"initial_equity" validate:"required"`
	BaseDelay     time.Duration `mapstructure:"base_delay"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	PingInterval  time.Duration `mapstructure:"ping_interval"`
}

type StrategyConfig struct {
	Provider      string  `mapstructure:"provider"`
	FastPeriod    int     `mapstructure:"fast_period"`
	SlowPeriod    int     `mapstructure:"slow_period"`
	MinConfidence float64 `mapstructure:"min_confidence" validate:"gte=0,lte=1"`
}

type JournalConfig struct {
	DSN string `mapstructure:"dsn"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type ProfileConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ServerURL string `mapstructure:"server_url"`
}

// Loaded is the resolved configuration ready for wiring.
type Loaded struct {
	File          FileConfig
	Streams       []model.StreamKey
	RiskParams    risk.Parameters
	RiskPerTrade  decimal.Decimal
	InitialEquity decimal.Decimal
}

// Load reads the config file, fills defaults, validates, and resolves the
// decimal fields. Environment variables override file values, e.g.
// TRADER_EXCHANGE_API_KEY for exchange.api_key.
func Load(path string) (*Loaded, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("TRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	var file FileConfig
	if err := v.Unmarshal(&file); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	if err := validator.New().Struct(file); err != nil {
		return nil, errors.Wrap(err, "validate config")
	}

	return resolve(file)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "trader")
	v.SetDefault("buffer.tick_capacity", 1000)
	v.SetDefault("buffer.kline_capacity", 500)
	v.SetDefault("buffer.depth_capacity", 100)
	v.SetDefault("buffer.trade_capacity", 500)
	v.SetDefault("bus.history_size", 1000)
	v.SetDefault("bus.async_queue_size", 256)
	v.SetDefault("risk.max_position_size", "1000")
	v.SetDefault("risk.max_position_pct", "0.1")
	v.SetDefault("risk.stop_loss_pct", "0.02")
	v.SetDefault("risk.take_profit_pct", "0.04")
	v.SetDefault("risk.max_daily_loss", "100")
	v.SetDefault("risk.max_orders_per_symbol", 5)
	v.SetDefault("risk.risk_per_trade_pct", "0.01")
	v.SetDefault("monitor.check_interval", "30s")
	v.SetDefault("exchange.mode", "paper")
	v.SetDefault("exchange.initial_equity", "10000")
	v.SetDefault("exchange.base_delay", "1s")
	v.SetDefault("exchange.max_attempts", 5)
	v.SetDefault("exchange.ping_interval", "15s")
	v.SetDefault("strategy.provider", "sma_cross")
	v.SetDefault("strategy.fast_period", 9)
	v.SetDefault("strategy.slow_period", 21)
	v.SetDefault("strategy.min_confidence", 0.3)
	v.SetDefault("server.addr", ":8080")
}

func resolve(file FileConfig) (*Loaded, error) {
	loaded := &Loaded{File: file}

	for _, s := range file.Streams {
		loaded.Streams = append(loaded.Streams, model.StreamKey{
			Symbol:   s.Symbol,
			Kind:     enum.StreamKind(s.Kind),
			Interval: s.Interval,
		})
	}

	var err error
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"risk.max_position_size", file.Risk.MaxPositionSize, &loaded.RiskParams.MaxPositionSize},
		{"risk.max_position_pct", file.Risk.MaxPositionPct, &loaded.RiskParams.MaxPositionPct},
		{"risk.stop_loss_pct", file.Risk.StopLossPct, &loaded.RiskParams.StopLossPct},
		{"risk.take_profit_pct", file.Risk.TakeProfitPct, &loaded.RiskParams.TakeProfitPct},
		{"risk.max_daily_loss", file.Risk.MaxDailyLoss, &loaded.RiskParams.MaxDailyLoss},
		{"risk.risk_per_trade_pct", file.Risk.RiskPerTradePct, &loaded.RiskPerTrade},
		{"exchange.initial_equity", file.Exchange.InitialEquity, &loaded.InitialEquity},
	}
	for _, f := range fields {
		if *f.dst, err = decimal.NewFromString(f.raw); err != nil {
			return nil, errors.Wrapf(err, "parse %s %q", f.name, f.raw)
		}
	}
	loaded.RiskParams.MaxOrdersPerSymbol = file.Risk.MaxOrdersPerSymbol

	return loaded, nil
}
