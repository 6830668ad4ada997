package tradelog

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/signalsingaravelan/signal-singaravelan/internal/trade"

	"github.com/shopspring/decimal"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.db")
	s := openStore(t, path)
	ctx := context.Background()

	older := trade.Trade{
		AccountID:    "DU1",
		Action:       trade.Buy,
		Symbol:       "TQQQ",
		DollarAmount: decimal.RequireFromString("998.65"),
		Shares:       decimal.RequireFromString("19.97"),
		OrderID:      "1799796559",
		ExecutedAt:   time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC),
	}
	newer := trade.Trade{
		AccountID:    "DU1",
		Action:       trade.Sell,
		Symbol:       "TQQQ",
		DollarAmount: decimal.RequireFromString("1050.00"),
		Shares:       decimal.NewFromInt(19),
		OrderID:      "1799796600",
		ExecutedAt:   time.Date(2025, 3, 11, 14, 30, 0, 0, time.UTC),
	}
	elsewhere := trade.Trade{
		AccountID:    "DU2",
		Action:       trade.Buy,
		Symbol:       "TQQQ",
		DollarAmount: decimal.NewFromInt(5),
		Shares:       decimal.NewFromInt(1),
		OrderID:      "x",
		ExecutedAt:   time.Date(2025, 3, 12, 14, 30, 0, 0, time.UTC),
	}
	for _, tr := range []trade.Trade{older, newer, elsewhere} {
		if _, err := s.Append(ctx, tr); err != nil {
			t.Fatalf("Append(%s): %v", tr.OrderID, err)
		}
	}

	got, err := s.History(ctx, "DU1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("History returned %d trades, want 2", len(got))
	}
	if got[0].OrderID != "1799796600" || got[1].OrderID != "1799796559" {
		t.Fatalf("order ids = %s, %s, want newest first", got[0].OrderID, got[1].OrderID)
	}
	if !got[1].DollarAmount.Equal(older.DollarAmount) {
		t.Errorf("dollar amount = %s, want %s", got[1].DollarAmount, older.DollarAmount)
	}
	if !got[1].Shares.Equal(older.Shares) {
		t.Errorf("shares = %s, want %s", got[1].Shares, older.Shares)
	}
	if got[0].Action != trade.Sell || got[1].Action != trade.Buy {
		t.Errorf("actions = %s, %s", got[0].Action, got[1].Action)
	}
	if !got[1].ExecutedAt.Equal(older.ExecutedAt) {
		t.Errorf("executed at = %s, want %s", got[1].ExecutedAt, older.ExecutedAt)
	}
}

func TestAppendSynthesizesOrderID(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "trades.db"))

	recorded, err := s.Append(context.Background(), trade.Trade{
		AccountID:    "DU1",
		Action:       trade.Buy,
		Symbol:       "TQQQ",
		DollarAmount: decimal.NewFromInt(100),
		Shares:       decimal.NewFromInt(2),
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if !regexp.MustCompile(`^ORD_\d{14}$`).MatchString(recorded.OrderID) {
		t.Fatalf("synthesized order id = %q, want ORD_ timestamp form", recorded.OrderID)
	}

	got, err := s.History(context.Background(), "DU1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 1 || got[0].OrderID != recorded.OrderID {
		t.Fatalf("History = %+v, want the synthesized id persisted", got)
	}
}

func TestHistorySurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.db")
	ctx := context.Background()

	s := openStore(t, path)
	if _, err := s.Append(ctx, trade.Trade{
		AccountID:    "DU1",
		Action:       trade.Buy,
		Symbol:       "TQQQ",
		DollarAmount: decimal.NewFromInt(10),
		Shares:       decimal.NewFromInt(1),
		OrderID:      "keep-me",
		ExecutedAt:   time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := openStore(t, path)
	got, err := reopened.History(ctx, "DU1")
	if err != nil {
		t.Fatalf("History after reopen: %v", err)
	}
	if len(got) != 1 || got[0].OrderID != "keep-me" {
		t.Fatalf("History after reopen = %+v", got)
	}
}

func TestHistoryEmpty(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "trades.db"))
	got, err := s.History(context.Background(), "DU1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("History = %+v, want empty", got)
	}
}
