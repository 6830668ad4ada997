package risk

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
)

// Schedule names a brokerage commission schedule.
type Schedule string

const (
	Tiered Schedule = "TIERED"
	Fixed  Schedule = "FIXED"
)

var (
	tieredPerShare = decimal.NewFromFloat(0.0035)
	tieredMinimum  = decimal.NewFromFloat(0.35)
	tieredValueCap = decimal.NewFromFloat(0.01)
	fixedPerShare  = decimal.NewFromFloat(0.005)
	fixedMinimum   = decimal.NewFromInt(1)
)

// ErrInsufficientCash means the account holds less than the configured
// minimum and the buy is skipped, not failed.
var ErrInsufficientCash = errors.New("insufficient_cash")

// ParseSchedule rejects anything but the schedules the brokerage offers.
func ParseSchedule(value string) (Schedule, error) {
	switch Schedule(strings.ToUpper(value)) {
	case Tiered:
		return Tiered, nil
	case Fixed:
		return Fixed, nil
	default:
		return "", fmt.Errorf("unknown commission schedule: %q", value)
	}
}

// Commission returns the expected fee for a market order of the given share
// quantity at the given price, rounded to cents.
//
// TIERED is per-share 0.0035 with a 0.35 floor, capped at 1% of trade value.
// FIXED is per-share 0.005 with a 1.00 floor.
func Commission(schedule Schedule, shares, price decimal.Decimal) (decimal.Decimal, error) {
	switch schedule {
	case Tiered:
		fee := decimal.Max(shares.Mul(tieredPerShare), tieredMinimum)
		valueCap := shares.Mul(price).Mul(tieredValueCap)
		return decimal.Min(fee, valueCap).Round(2), nil
	case Fixed:
		return decimal.Max(shares.Mul(fixedPerShare), fixedMinimum).Round(2), nil
	default:
		return decimal.Zero, fmt.Errorf("unknown commission schedule: %q", schedule)
	}
}

// Plan is a sized buy ready to put on the wire.
type Plan struct {
	Quantity   decimal.Decimal // fractional shares the cash covers
	Commission decimal.Decimal
	Spendable  decimal.Decimal // dollars for the cash-quantity order
}

// Gate sizes buys and enforces the pre-trade cash checks.
type Gate struct {
	Schedule   Schedule
	MinCash    decimal.Decimal
	CashBuffer decimal.Decimal
	Log        *slog.Logger
}

// SpendablePlan converts available cash into an order-sized dollar amount:
// quantity = cash/price, commission per the schedule, spendable = cash minus
// commission minus the cash buffer.
func (g Gate) SpendablePlan(cash, price decimal.Decimal) (Plan, error) {
	if cash.Cmp(g.MinCash) <= 0 {
		g.Log.Info("buy skipped", "reason", "insufficient_cash", "cash", cash, "min_cash", g.MinCash)
		return Plan{}, ErrInsufficientCash
	}
	if price.Sign() <= 0 {
		return Plan{}, fmt.Errorf("invalid_price: %s", price)
	}

	quantity := cash.Div(price)
	commission, err := Commission(g.Schedule, quantity, price)
	if err != nil {
		return Plan{}, err
	}
	spendable := cash.Sub(commission).Sub(g.CashBuffer)
	if spendable.Sign() <= 0 {
		g.Log.Info("buy skipped", "reason", "spendable_not_positive", "cash", cash, "commission", commission)
		return Plan{}, ErrInsufficientCash
	}

	g.Log.Info("buy sized",
		"cash", cash, "price", price, "quantity", quantity.Round(2),
		"schedule", g.Schedule, "commission", commission, "spendable", spendable)
	return Plan{Quantity: quantity, Commission: commission, Spendable: spendable}, nil
}
