package strategy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/signalsingaravelan/signal-singaravelan/internal/md"
)

type stubHistory struct {
	bars  []md.Bar
	err   error
	calls int
}

func (s *stubHistory) DailyBars(ctx context.Context) ([]md.Bar, error) {
	s.calls++
	return s.bars, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Wednesday, regular session.
var tradingDay = time.Date(2026, time.August, 19, 13, 0, 0, 0, time.UTC)

func flatBar(close float64) md.Bar {
	return md.Bar{Open: close, High: close + 1, Low: close - 1, Close: close, Volume: 1e6}
}

// crashBar closes near its low on heavy volume with a wide range.
func crashBar() md.Bar {
	return md.Bar{Open: 100, High: 100.5, Low: 79.9, Close: 80, Volume: 5e6}
}

// dailySeries stamps bars with consecutive dates ending at end.
func dailySeries(end time.Time, bars []md.Bar) []md.Bar {
	n := len(bars)
	for i := range bars {
		bars[i].Date = end.AddDate(0, 0, i-n+1)
	}
	return bars
}

func newTestRegime(h HistorySource) *Regime {
	r := NewRegime(h, testLogger())
	r.now = func() time.Time { return tradingDay }
	return r
}

func TestEvaluateBullishOnSteadyUptrend(t *testing.T) {
	bars := make([]md.Bar, 70)
	for i := range bars {
		close := 100 + 0.5*float64(i)
		bars[i] = md.Bar{Open: close, High: close + 1, Low: close - 1, Close: close, Volume: 1e6}
	}

	view := evaluate(dailySeries(tradingDay.AddDate(0, 0, -1), bars))
	if view.signal != Bullish {
		t.Fatalf("expected BULLISH, got %s", view.signal)
	}
	if view.blackDot || view.redDot {
		t.Fatalf("expected no dots on an uptrend, got black=%v red=%v", view.blackDot, view.redDot)
	}
}

func TestEvaluateBearishOnVolatilityCrash(t *testing.T) {
	bars := make([]md.Bar, 71)
	for i := range bars[:70] {
		bars[i] = flatBar(100)
	}
	bars[70] = crashBar()

	view := evaluate(dailySeries(tradingDay.AddDate(0, 0, -1), bars))
	if view.signal != Bearish {
		t.Fatalf("expected BEARISH, got %s", view.signal)
	}
	if !view.blackDot {
		t.Fatalf("expected a black dot on the crash day")
	}
	if view.redDot {
		t.Fatalf("expected no red dot from a single down day")
	}
}

func TestEvaluateBearishOnPersistentDownVolume(t *testing.T) {
	bars := make([]md.Bar, 80)
	for i := range bars {
		close := 150 - 0.1*float64(i)
		bars[i] = md.Bar{Open: close, High: close + 0.5, Low: close - 0.5, Close: close, Volume: 1e6}
	}

	view := evaluate(dailySeries(tradingDay.AddDate(0, 0, -1), bars))
	if view.signal != Bearish {
		t.Fatalf("expected BEARISH, got %s", view.signal)
	}
	if !view.redDot {
		t.Fatalf("expected a red dot on persistent down volume")
	}
	if view.blackDot {
		t.Fatalf("expected no black dot without a volatility spike")
	}
}

func TestEvaluateNeutralAfterRecentDot(t *testing.T) {
	bars := make([]md.Bar, 71)
	for i := range bars[:65] {
		bars[i] = flatBar(100)
	}
	bars[65] = crashBar()
	for i := 66; i < 71; i++ {
		bars[i] = flatBar(100)
	}

	view := evaluate(dailySeries(tradingDay.AddDate(0, 0, -1), bars))
	if view.signal != Neutral {
		t.Fatalf("expected NEUTRAL with a dot five sessions back, got %s", view.signal)
	}
	if view.blackDot || view.redDot {
		t.Fatalf("expected no dot on the latest day, got black=%v red=%v", view.blackDot, view.redDot)
	}
}

func TestGetSignalClosedOnWeekendWithoutFetching(t *testing.T) {
	stub := &stubHistory{}
	r := newTestRegime(stub)
	r.now = func() time.Time {
		return time.Date(2026, time.August, 22, 13, 0, 0, 0, time.UTC) // Saturday
	}

	signal, err := r.GetSignal(context.Background(), "DU123")
	if err != nil {
		t.Fatalf("get signal: %v", err)
	}
	if signal != Closed {
		t.Fatalf("expected CLOSED, got %s", signal)
	}
	if stub.calls != 0 {
		t.Fatalf("expected no history fetch on a closed day, got %d calls", stub.calls)
	}
}

func TestGetSignalDropsPartialTodayBar(t *testing.T) {
	bars := make([]md.Bar, 71)
	for i := range bars[:70] {
		close := 100 + 0.5*float64(i)
		bars[i] = md.Bar{Open: close, High: close + 1, Low: close - 1, Close: close, Volume: 1e6}
	}
	bars[70] = crashBar()
	// The crash bar carries today's date: a partial session that must not
	// count.
	stub := &stubHistory{bars: dailySeries(tradingDay, bars)}
	r := newTestRegime(stub)

	signal, err := r.GetSignal(context.Background(), "DU123")
	if err != nil {
		t.Fatalf("get signal: %v", err)
	}
	if signal != Bullish {
		t.Fatalf("expected BULLISH once today's bar is dropped, got %s", signal)
	}
}

func TestGetSignalRejectsShortHistory(t *testing.T) {
	bars := make([]md.Bar, 30)
	for i := range bars {
		bars[i] = flatBar(100)
	}
	stub := &stubHistory{bars: dailySeries(tradingDay.AddDate(0, 0, -1), bars)}
	r := newTestRegime(stub)

	_, err := r.GetSignal(context.Background(), "DU123")
	if err == nil || !strings.Contains(err.Error(), "insufficient") {
		t.Fatalf("expected insufficient history error, got %v", err)
	}
}

func TestGetSignalPropagatesFetchError(t *testing.T) {
	stub := &stubHistory{err: errors.New("connection refused")}
	r := newTestRegime(stub)

	if _, err := r.GetSignal(context.Background(), "DU123"); err == nil {
		t.Fatalf("expected fetch error to propagate")
	}
}

func TestParseSignal(t *testing.T) {
	if s, err := ParseSignal("bullish"); err != nil || s != Bullish {
		t.Fatalf("expected BULLISH, got %v %v", s, err)
	}
	if _, err := ParseSignal("sideways"); err == nil {
		t.Fatalf("expected error for unknown signal")
	}
}

func TestStaticReturnsConfiguredSignal(t *testing.T) {
	s := Static{Signal: Bearish}
	got, err := s.GetSignal(context.Background(), "DU123")
	if err != nil || got != Bearish {
		t.Fatalf("expected BEARISH, got %v %v", got, err)
	}
}
