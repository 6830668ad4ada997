// Package engine runs one trading decision cycle: fetch the market signal,
// read account and price state from the gateway, place at most one order, and
// hand the outcome to the journal and the operator channels.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/signalsingaravelan/signal-singaravelan/internal/gateway"
	"github.com/signalsingaravelan/signal-singaravelan/internal/notify"
	"github.com/signalsingaravelan/signal-singaravelan/internal/risk"
	"github.com/signalsingaravelan/signal-singaravelan/internal/strategy"
	"github.com/signalsingaravelan/signal-singaravelan/internal/trade"

	"github.com/shopspring/decimal"
)

// Gateway is the brokerage surface the engine drives. *gateway.Client
// implements it.
type Gateway interface {
	Initialize(ctx context.Context) error
	AccountID(ctx context.Context) (string, error)
	ContractID(ctx context.Context, symbol string) (int, error)
	Price(ctx context.Context, conid int) (decimal.Decimal, error)
	Position(ctx context.Context, accountID string, conid int) (decimal.Decimal, error)
	AvailableCash(ctx context.Context, accountID string) (decimal.Decimal, error)
	Balance(ctx context.Context, accountID string) (decimal.Decimal, error)
	PlaceOrder(ctx context.Context, accountID string, ticket gateway.OrderTicket) (string, error)
}

// History records executed trades. *tradelog.Store implements it.
type History interface {
	Append(ctx context.Context, t trade.Trade) (trade.Trade, error)
}

// Options fix the engine's trading parameters for the run.
type Options struct {
	Symbol   string
	Exchange string
	Currency string
	TIF      string
	// DryRun sizes and logs the order without putting it on the wire.
	DryRun bool
}

type Engine struct {
	opts     Options
	gateway  Gateway
	strategy strategy.Strategy
	gate     risk.Gate
	history  History
	notifier notify.Notifier
	log      *slog.Logger
}

func New(opts Options, gw Gateway, strat strategy.Strategy, gate risk.Gate, history History, notifier notify.Notifier, log *slog.Logger) *Engine {
	if opts.TIF == "" {
		opts.TIF = "DAY"
	}
	return &Engine{
		opts:     opts,
		gateway:  gw,
		strategy: strat,
		gate:     gate,
		history:  history,
		notifier: notifier,
		log:      log.With("component", "engine"),
	}
}

// Run executes exactly one decision cycle. Every failure is logged and
// reported to the operator before it surfaces, and the end-of-run marker is
// emitted no matter how the cycle went.
func (e *Engine) Run(ctx context.Context) (err error) {
	var accountID string
	e.log.Info("run begin", "symbol", e.opts.Symbol, "dry_run", e.opts.DryRun)
	defer e.log.Info("run end")
	defer func() {
		if err == nil {
			return
		}
		e.log.Error("run failed", "error", err)
		e.sendAlert(ctx, notify.Alert{
			Severity:  notify.Error,
			Title:     "Trading Run Failed",
			Message:   err.Error(),
			AccountID: accountID,
		})
	}()

	if err = e.gateway.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize gateway session: %w", err)
	}
	accountID, err = e.gateway.AccountID(ctx)
	if err != nil {
		return fmt.Errorf("resolve account: %w", err)
	}
	conid, err := e.gateway.ContractID(ctx, e.opts.Symbol)
	if err != nil {
		return fmt.Errorf("resolve contract for %s: %w", e.opts.Symbol, err)
	}

	signal, err := e.strategy.GetSignal(ctx, accountID)
	if err != nil {
		return fmt.Errorf("fetch signal: %w", err)
	}
	e.log.Info("signal fetched", "signal", signal)
	e.sendAlert(ctx, notify.Alert{
		Severity:  notify.Info,
		Title:     fmt.Sprintf("Market Signal: %s", signal),
		Message:   fmt.Sprintf("Signal %s for %s", signal, e.opts.Symbol),
		AccountID: accountID,
	})
	if signal == strategy.Closed {
		e.log.Info("no action", "reason", "market_closed")
		return nil
	}

	price, err := e.gateway.Price(ctx, conid)
	if err != nil {
		return fmt.Errorf("fetch price: %w", err)
	}
	position, err := e.gateway.Position(ctx, accountID, conid)
	if err != nil {
		return fmt.Errorf("fetch position: %w", err)
	}
	cash, err := e.gateway.AvailableCash(ctx, accountID)
	if err != nil {
		return fmt.Errorf("fetch available cash: %w", err)
	}
	balance, err := e.gateway.Balance(ctx, accountID)
	if err != nil {
		return fmt.Errorf("fetch balance: %w", err)
	}
	e.log.Info("market data fetched",
		"price", price, "position", position, "cash", cash, "balance", balance)

	var executed *trade.Trade
	switch signal {
	case strategy.Bullish:
		executed, err = e.buy(ctx, accountID, conid, cash, price)
	case strategy.Bearish, strategy.Neutral:
		executed, err = e.sell(ctx, accountID, conid, position, price)
	}
	if err != nil || executed == nil {
		return err
	}

	recorded, journalErr := e.history.Append(ctx, *executed)
	if journalErr != nil {
		// The order is already on the wire; a journaling failure must not
		// fail the run.
		e.log.Error("trade journaling failed", "error", journalErr, "order_id", executed.OrderID)
		recorded = *executed
		recorded.EnsureOrderID()
	}
	e.sendAlert(ctx, notify.TradeExecuted(recorded))
	return nil
}

// buy converts available cash into a cash-quantity market buy.
func (e *Engine) buy(ctx context.Context, accountID string, conid int, cash, price decimal.Decimal) (*trade.Trade, error) {
	plan, err := e.gate.SpendablePlan(cash, price)
	if errors.Is(err, risk.ErrInsufficientCash) {
		e.log.Info("no action", "reason", "insufficient_cash", "cash", cash)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	spendable, _ := plan.Spendable.Float64()
	orderID, err := e.placeOrder(ctx, accountID, gateway.OrderTicket{
		ConID:    conid,
		Side:     gateway.SideBuy,
		CashQty:  &spendable,
		TIF:      e.opts.TIF,
		Exchange: e.opts.Exchange,
		Currency: e.opts.Currency,
	})
	if err != nil || orderID == "" {
		return nil, err
	}
	t := trade.New(accountID, trade.Buy, e.opts.Symbol, plan.Spendable, plan.Quantity, orderID)
	return &t, nil
}

// sell closes the whole position with a share-quantity market sell. Sells are
// sized in whole shares; fractional dust stays in the account.
func (e *Engine) sell(ctx context.Context, accountID string, conid int, position, price decimal.Decimal) (*trade.Trade, error) {
	shares := position.Floor()
	if shares.Sign() <= 0 {
		e.log.Info("no action", "reason", "no_position", "position", position)
		return nil, nil
	}

	quantity, _ := shares.Float64()
	orderID, err := e.placeOrder(ctx, accountID, gateway.OrderTicket{
		ConID:    conid,
		Side:     gateway.SideSell,
		Quantity: &quantity,
		TIF:      e.opts.TIF,
		Exchange: e.opts.Exchange,
		Currency: e.opts.Currency,
	})
	if err != nil || orderID == "" {
		return nil, err
	}
	t := trade.New(accountID, trade.Sell, e.opts.Symbol, shares.Mul(price), shares, orderID)
	return &t, nil
}

func (e *Engine) placeOrder(ctx context.Context, accountID string, ticket gateway.OrderTicket) (string, error) {
	if e.opts.DryRun {
		e.log.Info("dry run, order not submitted",
			"side", ticket.Side, "conid", ticket.ConID,
			"quantity", floatOrNil(ticket.Quantity), "cash_qty", floatOrNil(ticket.CashQty))
		return "", nil
	}
	return e.gateway.PlaceOrder(ctx, accountID, ticket)
}

func floatOrNil(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// sendAlert delivers an operator notification. Delivery failures are logged
// and never abort the trade flow.
func (e *Engine) sendAlert(ctx context.Context, alert notify.Alert) {
	if err := e.notifier.Send(ctx, alert); err != nil {
		e.log.Error("notification failed", "title", alert.Title, "error", err)
	}
}
