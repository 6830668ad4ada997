// Package notify delivers run alerts (signals, executed trades, failures) to
// external channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/signalsingaravelan/signal-singaravelan/internal/trade"
)

// Severity of an alert.
type Severity string

const (
	Info    Severity = "INFO"
	Warning Severity = "WARNING"
	Error   Severity = "ERROR"
)

// Alert is one notification to be delivered.
type Alert struct {
	Severity  Severity `json:"severity"`
	Title     string   `json:"title"`
	Message   string   `json:"message"`
	AccountID string   `json:"account_id,omitempty"`
}

// Notifier delivers alerts to one channel.
type Notifier interface {
	Send(ctx context.Context, alert Alert) error
}

// TradeExecuted builds the alert for a recorded trade.
func TradeExecuted(t trade.Trade) Alert {
	message := fmt.Sprintf(
		"Time: %s\nAccount: %s\nAction: %s\nSymbol: %s\nAmount: $%s\nShares: %s\nOrder ID: %s",
		t.ExecutedAt.UTC().Format("2006-01-02 15:04:05"),
		t.AccountID,
		t.Action,
		t.Symbol,
		t.DollarAmount.StringFixed(2),
		t.Shares.String(),
		t.OrderID,
	)
	return Alert{
		Severity:  Info,
		Title:     fmt.Sprintf("Trade Executed: %s %s", t.Action, t.Symbol),
		Message:   message,
		AccountID: t.AccountID,
	}
}

// Log writes alerts to the run log. It is the fallback channel when no
// external one is configured.
type Log struct {
	log *slog.Logger
}

func NewLog(log *slog.Logger) *Log {
	return &Log{log: log.With("component", "notify")}
}

func (n *Log) Send(_ context.Context, alert Alert) error {
	n.log.Info("alert",
		"severity", alert.Severity,
		"title", alert.Title,
		"message", alert.Message,
		"account_id", alert.AccountID)
	return nil
}

// Fanout delivers each alert to every channel and reports every failure.
type Fanout []Notifier

func (f Fanout) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range f {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
