// Package config loads the bot's YAML configuration. Environment references
// like ${TELEGRAM_BOT_TOKEN} are expanded before parsing so secrets never sit
// in the file, and a few flags override the file for one-off runs.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/signalsingaravelan/signal-singaravelan/internal/logger"
	"github.com/signalsingaravelan/signal-singaravelan/internal/risk"
	"github.com/signalsingaravelan/signal-singaravelan/internal/strategy"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that reads from YAML strings like "2s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts back to the standard library type.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	Gateway  Gateway  `yaml:"gateway"`
	Retry    Retry    `yaml:"retry"`
	Trading  Trading  `yaml:"trading"`
	Strategy Strategy `yaml:"strategy"`
	History  History  `yaml:"history"`
	TradeLog TradeLog `yaml:"tradelog"`
	Notify   Notify   `yaml:"notify"`
	Log      Log      `yaml:"log"`
}

// Gateway settings. Zero values fall through to the gateway package defaults
// (local endpoint, 30s timeout, five confirmation rounds, standard
// suppression set).
type Gateway struct {
	BaseURL            string   `yaml:"base_url"`
	InsecureSkipVerify bool     `yaml:"insecure_skip_verify"`
	Timeout            Duration `yaml:"timeout"`
	SuppressedWarnings []string `yaml:"suppressed_warnings"`
	MaxConfirmRounds   int      `yaml:"max_confirm_rounds"`
}

type Retry struct {
	MaxAttempts  int      `yaml:"max_attempts"`
	InitialDelay Duration `yaml:"initial_delay"`
	Multiplier   float64  `yaml:"multiplier"`
}

type Trading struct {
	Symbol             string  `yaml:"symbol"`
	Exchange           string  `yaml:"exchange"`
	Currency           string  `yaml:"currency"`
	TIF                string  `yaml:"tif"`
	CommissionSchedule string  `yaml:"commission_schedule"`
	MinCash            float64 `yaml:"min_cash"`
	CashBuffer         float64 `yaml:"cash_buffer"`
	DryRun             bool    `yaml:"dry_run"`
}

type Strategy struct {
	Name string `yaml:"name"` // "regime" or "static"
	// StaticSignal is the signal the static strategy reports.
	StaticSignal string `yaml:"static_signal"`
}

type History struct {
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
}

type TradeLog struct {
	Path string `yaml:"path"`
}

type Notify struct {
	Telegram Telegram `yaml:"telegram"`
	Webhook  Webhook  `yaml:"webhook"`
}

type Telegram struct {
	Token  string `yaml:"token"`
	ChatID string `yaml:"chat_id"`
}

type Webhook struct {
	URL string `yaml:"url"`
}

type Log struct {
	Level string `yaml:"level"`
}

// Default returns the configuration a run starts from before the file and
// flags are applied.
func Default() Config {
	return Config{
		Gateway: Gateway{
			InsecureSkipVerify: true,
		},
		Retry: Retry{
			MaxAttempts:  3,
			InitialDelay: Duration(2 * time.Second),
			Multiplier:   2,
		},
		Trading: Trading{
			Exchange:           "SMART",
			Currency:           "USD",
			TIF:                "DAY",
			CommissionSchedule: "TIERED",
			MinCash:            5,
			CashBuffer:         1,
		},
		Strategy: Strategy{Name: "regime"},
		History: History{
			URL:     "https://stooq.com/q/d/l/?s=%5Endx&i=d",
			Timeout: Duration(30 * time.Second),
		},
		TradeLog: TradeLog{Path: "trades.db"},
		Log:      Log{Level: "info"},
	}
}

// Load parses the command line and the YAML file it points at. Flags win over
// the file, the file wins over the defaults.
func Load(args []string) (Config, error) {
	fs := flag.NewFlagSet("bot", flag.ContinueOnError)
	path := fs.String("config", "", "path to the YAML config file")
	symbol := fs.String("symbol", "", "override the traded symbol")
	dryRun := fs.Bool("dry-run", false, "size and log the order without submitting it")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if *path != "" {
		data, err := os.ReadFile(*path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", *path, err)
		}
	}
	if *symbol != "" {
		cfg.Trading.Symbol = *symbol
	}
	if *dryRun {
		cfg.Trading.DryRun = true
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Trading.Symbol == "" {
		return fmt.Errorf("trading.symbol is required")
	}
	if _, err := risk.ParseSchedule(c.Trading.CommissionSchedule); err != nil {
		return fmt.Errorf("trading.commission_schedule: %w", err)
	}
	if c.Trading.TIF == "" {
		return fmt.Errorf("trading.tif is required")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if c.Retry.InitialDelay <= 0 {
		return fmt.Errorf("retry.initial_delay must be positive")
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be at least 1")
	}
	if c.Gateway.MaxConfirmRounds < 0 {
		return fmt.Errorf("gateway.max_confirm_rounds must not be negative")
	}

	switch c.Strategy.Name {
	case "regime":
		if c.History.URL == "" {
			return fmt.Errorf("history.url is required for the regime strategy")
		}
	case "static":
		if _, err := strategy.ParseSignal(c.Strategy.StaticSignal); err != nil {
			return fmt.Errorf("strategy.static_signal: %w", err)
		}
	default:
		return fmt.Errorf("unknown strategy: %q", c.Strategy.Name)
	}

	if c.TradeLog.Path == "" {
		return fmt.Errorf("tradelog.path is required")
	}
	if (c.Notify.Telegram.Token == "") != (c.Notify.Telegram.ChatID == "") {
		return fmt.Errorf("notify.telegram needs both token and chat_id")
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}
