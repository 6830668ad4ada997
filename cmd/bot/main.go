package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/signalsingaravelan/signal-singaravelan/internal/config"
	"github.com/signalsingaravelan/signal-singaravelan/internal/engine"
	"github.com/signalsingaravelan/signal-singaravelan/internal/gateway"
	"github.com/signalsingaravelan/signal-singaravelan/internal/logger"
	"github.com/signalsingaravelan/signal-singaravelan/internal/md"
	"github.com/signalsingaravelan/signal-singaravelan/internal/notify"
	"github.com/signalsingaravelan/signal-singaravelan/internal/retry"
	"github.com/signalsingaravelan/signal-singaravelan/internal/risk"
	"github.com/signalsingaravelan/signal-singaravelan/internal/strategy"
	"github.com/signalsingaravelan/signal-singaravelan/internal/tradelog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	os.Exit(run(cfg))
}

func run(cfg config.Config) int {
	runID := uuid.NewString()
	log, err := logger.New(os.Stdout, cfg.Log.Level, "trading-bot", runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw := gateway.New(gateway.Options{
		BaseURL:            cfg.Gateway.BaseURL,
		InsecureSkipVerify: cfg.Gateway.InsecureSkipVerify,
		Timeout:            cfg.Gateway.Timeout.Std(),
		SuppressedWarnings: cfg.Gateway.SuppressedWarnings,
		MaxConfirmRounds:   cfg.Gateway.MaxConfirmRounds,
		Retry: retry.Policy{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.InitialDelay.Std(),
			Multiplier:   cfg.Retry.Multiplier,
		},
	}, log)

	store, err := tradelog.Open(cfg.TradeLog.Path, log)
	if err != nil {
		log.Error("open trade journal", "error", err)
		return 1
	}
	defer store.Close()

	schedule, err := risk.ParseSchedule(cfg.Trading.CommissionSchedule)
	if err != nil {
		log.Error("commission schedule", "error", err)
		return 1
	}
	gate := risk.Gate{
		Schedule:   schedule,
		MinCash:    decimal.NewFromFloat(cfg.Trading.MinCash),
		CashBuffer: decimal.NewFromFloat(cfg.Trading.CashBuffer),
		Log:        log.With("component", "risk"),
	}

	strat, err := buildStrategy(cfg, log)
	if err != nil {
		log.Error("build strategy", "error", err)
		return 1
	}

	eng := engine.New(engine.Options{
		Symbol:   cfg.Trading.Symbol,
		Exchange: cfg.Trading.Exchange,
		Currency: cfg.Trading.Currency,
		TIF:      cfg.Trading.TIF,
		DryRun:   cfg.Trading.DryRun,
	}, gw, strat, gate, store, buildNotifier(cfg, log), log)

	if err := eng.Run(ctx); err != nil {
		return 1
	}
	return 0
}

func buildStrategy(cfg config.Config, log *slog.Logger) (strategy.Strategy, error) {
	switch cfg.Strategy.Name {
	case "regime":
		history := md.NewHistoryClient(cfg.History.URL, cfg.History.Timeout.Std(), log)
		return strategy.NewRegime(history, log), nil
	case "static":
		signal, err := strategy.ParseSignal(cfg.Strategy.StaticSignal)
		if err != nil {
			return nil, err
		}
		return strategy.Static{Signal: signal}, nil
	default:
		return nil, fmt.Errorf("unknown strategy: %q", cfg.Strategy.Name)
	}
}

// buildNotifier always includes the log channel, so alerts reach the run log
// even with no external channel configured.
func buildNotifier(cfg config.Config, log *slog.Logger) notify.Notifier {
	channels := notify.Fanout{notify.NewLog(log)}
	if tg := cfg.Notify.Telegram; tg.Token != "" && tg.ChatID != "" {
		channels = append(channels, notify.NewTelegram(tg.Token, tg.ChatID))
	}
	if wh := cfg.Notify.Webhook; wh.URL != "" {
		channels = append(channels, notify.NewWebhook(wh.URL))
	}
	return channels
}
