// Package ops loads the engine's JSON file configuration and resolves it
// into ready-to-use settings.
package ops

import (
	"encoding/json"
	"os"
	"time"

	"github.com/yanun0323/errors"

	"main/internal/clock"
	"main/internal/decimal"
	"main/internal/marketdata"
	"main/internal/risk"
	"main/pkg/conn"
)

// FileConfig mirrors the JSON config layout. Omitted fields resolve to
// defaults; risk toggles are pointers so "absent" and "false" stay
// distinguishable.
type FileConfig struct {
	Clock     ClockConfig     `json:"clock"`
	Risk      RiskConfig      `json:"risk"`
	Symbols   []string        `json:"symbols"`
	Simulator SimulatorConfig `json:"simulator"`
	Recorder  RecorderConfig  `json:"recorder"`
}

// ClockConfig selects the time source.
type ClockConfig struct {
	Mode string `json:"mode"`
}

// RiskConfig overrides the default risk limits.
type RiskConfig struct {
	MaxPositionSize decimal.Decimal `json:"maxPositionSize"`
	MaxOrderSize    decimal.Decimal `json:"maxOrderSize"`
	MaxDailyLoss    decimal.Decimal `json:"maxDailyLoss"`

	EnablePositionLimits *bool `json:"enablePositionLimits"`
	EnableOrderLimits    *bool `json:"enableOrderLimits"`
	EnableLossLimits     *bool `json:"enableLossLimits"`
}

// SimulatorConfig configures the synthetic feed.
type SimulatorConfig struct {
	BasePrice  decimal.Decimal `json:"basePrice"`
	TickSize   decimal.Decimal `json:"tickSize"`
	Spread     decimal.Decimal `json:"spread"`
	Depth      int             `json:"depth"`
	IntervalMs int             `json:"intervalMs"`
	Seed       int64           `json:"seed"`
}

// RecorderConfig configures the optional trade sink.
type RecorderConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslMode"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	ClockMode clock.Mode
	Risk      risk.Limits
	Symbols   []string
	Simulator marketdata.SimulatorConfig
	Recorder  RecorderSpec
}

// RecorderSpec is the resolved recorder setting.
type RecorderSpec struct {
	Enabled bool
	Conn    conn.PostgresOption
}

// Load reads a JSON config file and resolves it.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, errors.Wrap(err, "read config")
	}
	return Parse(data)
}

// Parse resolves raw JSON config bytes.
func Parse(data []byte) (Loaded, error) {
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, errors.Wrap(err, "decode config")
	}

	mode, err := clock.ParseMode(cfg.Clock.Mode)
	if err != nil {
		return Loaded{}, err
	}

	symbols := cfg.Symbols
	if len(symbols) == 0 {
		symbols = []string{"BTC-USDT"}
	}

	return Loaded{
		ClockMode: mode,
		Risk:      resolveRisk(cfg.Risk),
		Symbols:   symbols,
		Simulator: resolveSimulator(cfg.Simulator),
		Recorder:  resolveRecorder(cfg.Recorder),
	}, nil
}

func resolveRisk(cfg RiskConfig) risk.Limits {
	limits := risk.DefaultLimits()
	if !cfg.MaxPositionSize.IsZero() {
		limits.MaxPositionSize = cfg.MaxPositionSize
	}
	if !cfg.MaxOrderSize.IsZero() {
		limits.MaxOrderSize = cfg.MaxOrderSize
	}
	if !cfg.MaxDailyLoss.IsZero() {
		limits.MaxDailyLoss = cfg.MaxDailyLoss
	}
	if cfg.EnablePositionLimits != nil {
		limits.EnablePositionLimits = *cfg.EnablePositionLimits
	}
	if cfg.EnableOrderLimits != nil {
		limits.EnableOrderLimits = *cfg.EnableOrderLimits
	}
	if cfg.EnableLossLimits != nil {
		limits.EnableLossLimits = *cfg.EnableLossLimits
	}
	return limits
}

func resolveSimulator(cfg SimulatorConfig) marketdata.SimulatorConfig {
	out := marketdata.SimulatorConfig{
		BasePrice: cfg.BasePrice,
		TickSize:  cfg.TickSize,
		Spread:    cfg.Spread,
		Depth:     cfg.Depth,
		Interval:  time.Duration(cfg.IntervalMs) * time.Millisecond,
		Seed:      cfg.Seed,
	}
	if out.BasePrice.IsZero() {
		out.BasePrice = decimal.New(50000)
	}
	return out
}

func resolveRecorder(cfg RecorderConfig) RecorderSpec {
	return RecorderSpec{
		Enabled: cfg.Enabled,
		Conn: conn.PostgresOption{
			Host:     cfg.Host,
			Port:     cfg.Port,
			User:     cfg.User,
			Password: cfg.Password,
			Database: cfg.Database,
			SSLMode:  cfg.SSLMode,
		},
	}
}
