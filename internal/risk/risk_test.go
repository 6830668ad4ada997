package risk

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
)

func testGate(schedule Schedule) Gate {
	return Gate{
		Schedule:   schedule,
		MinCash:    decimal.NewFromInt(5),
		CashBuffer: decimal.NewFromInt(1),
		Log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestCommissionTiered(t *testing.T) {
	got, err := Commission(Tiered, decimal.NewFromInt(1000), decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("commission: %v", err)
	}
	if want := decimal.NewFromFloat(3.50); !got.Equal(want) {
		t.Fatalf("expected tiered commission %s, got %s", want, got)
	}
}

func TestCommissionTieredValueCap(t *testing.T) {
	// 10 shares at $1: the 0.35 floor exceeds 1% of the $10 trade value.
	got, err := Commission(Tiered, decimal.NewFromInt(10), decimal.NewFromInt(1))
	if err != nil {
		t.Fatalf("commission: %v", err)
	}
	if want := decimal.NewFromFloat(0.10); !got.Equal(want) {
		t.Fatalf("expected capped commission %s, got %s", want, got)
	}
}

func TestCommissionFixed(t *testing.T) {
	got, err := Commission(Fixed, decimal.NewFromInt(10), decimal.NewFromInt(5))
	if err != nil {
		t.Fatalf("commission: %v", err)
	}
	if want := decimal.NewFromFloat(1.00); !got.Equal(want) {
		t.Fatalf("expected fixed commission %s, got %s", want, got)
	}
}

func TestCommissionRejectsUnknownSchedule(t *testing.T) {
	if _, err := Commission(Schedule("FLAT"), decimal.NewFromInt(1), decimal.NewFromInt(1)); err == nil {
		t.Fatalf("expected error for unknown schedule")
	}
}

func TestParseSchedule(t *testing.T) {
	if s, err := ParseSchedule("tiered"); err != nil || s != Tiered {
		t.Fatalf("expected TIERED, got %v %v", s, err)
	}
	if s, err := ParseSchedule("FIXED"); err != nil || s != Fixed {
		t.Fatalf("expected FIXED, got %v %v", s, err)
	}
	if _, err := ParseSchedule("free"); err == nil {
		t.Fatalf("expected error for unknown schedule name")
	}
}

func TestSpendablePlan(t *testing.T) {
	gate := testGate(Tiered)

	plan, err := gate.SpendablePlan(decimal.NewFromInt(1000), decimal.NewFromInt(50))
	if err != nil {
		t.Fatalf("spendable plan: %v", err)
	}
	if want := decimal.NewFromInt(20); !plan.Quantity.Equal(want) {
		t.Fatalf("expected quantity %s, got %s", want, plan.Quantity)
	}
	if want := decimal.NewFromFloat(0.35); !plan.Commission.Equal(want) {
		t.Fatalf("expected commission %s, got %s", want, plan.Commission)
	}
	if want := decimal.NewFromFloat(998.65); !plan.Spendable.Equal(want) {
		t.Fatalf("expected spendable %s, got %s", want, plan.Spendable)
	}
}

func TestSpendablePlanSkipsBelowMinimumCash(t *testing.T) {
	gate := testGate(Tiered)

	_, err := gate.SpendablePlan(decimal.NewFromInt(5), decimal.NewFromInt(50))
	if !errors.Is(err, ErrInsufficientCash) {
		t.Fatalf("expected ErrInsufficientCash at the minimum, got %v", err)
	}

	_, err = gate.SpendablePlan(decimal.NewFromInt(4), decimal.NewFromInt(50))
	if !errors.Is(err, ErrInsufficientCash) {
		t.Fatalf("expected ErrInsufficientCash below the minimum, got %v", err)
	}
}

func TestSpendablePlanRejectsBadPrice(t *testing.T) {
	gate := testGate(Tiered)

	if _, err := gate.SpendablePlan(decimal.NewFromInt(1000), decimal.Zero); err == nil {
		t.Fatalf("expected error for zero price")
	}
}
