package trade

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Action string

const (
	Buy  Action = "Buy"
	Sell Action = "Sell"
)

// Trade is one executed order as recorded in the history store and reported
// to the operator.
type Trade struct {
	AccountID    string
	Action       Action
	Symbol       string
	DollarAmount decimal.Decimal
	Shares       decimal.Decimal
	OrderID      string
	ExecutedAt   time.Time
}

// New builds a trade record. Shares are kept to two decimal places (half away
// from zero) and the timestamp is always UTC.
func New(accountID string, action Action, symbol string, dollarAmount, shares decimal.Decimal, orderID string) Trade {
	return Trade{
		AccountID:    accountID,
		Action:       action,
		Symbol:       symbol,
		DollarAmount: dollarAmount,
		Shares:       shares.Round(2),
		OrderID:      orderID,
		ExecutedAt:   time.Now().UTC(),
	}
}

const generatedIDLayout = "20060102150405"

// EnsureOrderID fills in a synthesized id when the gateway did not hand one
// back: ORD_ followed by the compact UTC timestamp.
func (t *Trade) EnsureOrderID() string {
	if t.OrderID == "" {
		t.OrderID = "ORD_" + time.Now().UTC().Format(generatedIDLayout)
	}
	return t.OrderID
}

// Summary is the one-line human form used in notifications.
func (t Trade) Summary() string {
	return fmt.Sprintf("%s %s shares of %s for $%s (order %s)",
		t.Action, t.Shares.String(), t.Symbol, t.DollarAmount.StringFixed(2), t.OrderID)
}
