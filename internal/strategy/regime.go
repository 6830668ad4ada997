package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/signalsingaravelan/signal-singaravelan/internal/markethours"
	"github.com/signalsingaravelan/signal-singaravelan/internal/md"
)

const (
	smaWindow     = 50
	atrWindow     = 14
	dotWindow     = 5
	bullishWindow = 10
	redDotCount   = 3
	trSpikeFactor = 1.5
	crThreshold   = 0.10

	// Oldest bar a fully informed signal can need: the SMA window, plus the
	// dot lookback, plus the bullish lookback.
	minBars = smaWindow + dotWindow - 1 + bullishWindow - 1
)

// HistorySource supplies the daily index bars the monitor runs on.
type HistorySource interface {
	DailyBars(ctx context.Context) ([]md.Bar, error)
}

// Regime is the production strategy: a dot monitor over daily index history.
//
// A black dot marks sudden heavy selling (close below the 50-day average
// while, within the last five sessions, true range spiked above 1.5x ATR,
// the close landed in the bottom tenth of the day's range, and volume ran
// above its 50-day average). A red dot marks persistent weakness (close below
// the 50-day average while the up/down volume ratio sat under 1 on three of
// the last five sessions). No dots for ten sessions is bullish; a dot today
// is bearish; anything else is neutral.
type Regime struct {
	history HistorySource
	log     *slog.Logger
	now     func() time.Time
}

func NewRegime(history HistorySource, log *slog.Logger) *Regime {
	return &Regime{
		history: history,
		log:     log.With("component", "strategy"),
		now:     time.Now,
	}
}

func (r *Regime) GetSignal(ctx context.Context, accountID string) (Signal, error) {
	today := markethours.ExchangeTime(r.now())
	if !markethours.IsTradingDay(today) {
		next := markethours.NextTradingDay(today)
		attrs := []any{"date", today.Format("2006-01-02"), "next_session", next.Format("2006-01-02")}
		if name, ok := markethours.HolidayName(today); ok {
			attrs = append(attrs, "holiday", name)
		}
		r.log.Info("market closed today", attrs...)
		return Closed, nil
	}

	bars, err := r.history.DailyBars(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch index history: %w", err)
	}
	// A bar stamped with today's date is a partial session; the monitor only
	// reads completed days.
	bars = dropPartialToday(bars, today)
	if len(bars) < minBars {
		return "", fmt.Errorf("insufficient index history: %d bars, need %d", len(bars), minBars)
	}

	view := evaluate(bars)
	r.log.Info("market signal computed",
		"signal", view.signal, "as_of", view.asOf.Format("2006-01-02"),
		"black_dot", view.blackDot, "red_dot", view.redDot)
	return view.signal, nil
}

type outlook struct {
	signal   Signal
	asOf     time.Time
	blackDot bool
	redDot   bool
}

func evaluate(bars []md.Bar) outlook {
	n := len(bars)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	sma50 := md.RollingMean(closes, smaWindow)
	volSMA50 := md.RollingMean(volumes, smaWindow)

	tr := make([]float64, n)
	cr := make([]float64, n)
	upVol := make([]float64, n)
	downVol := make([]float64, n)
	for i, b := range bars {
		if i == 0 {
			tr[i] = b.High - b.Low
		} else {
			prev := bars[i-1].Close
			tr[i] = math.Max(b.High, prev) - math.Min(b.Low, prev)
			if b.Close > prev {
				upVol[i] = b.Volume
			}
			if b.Close < prev {
				downVol[i] = b.Volume
			}
		}
		if b.High == b.Low {
			cr[i] = math.NaN()
		} else {
			cr[i] = (b.Close - b.Low) / (b.High - b.Low)
		}
	}

	atr := md.RollingMean(tr, atrWindow)
	upSum := md.RollingSum(upVol, smaWindow)
	downSum := md.RollingSum(downVol, smaWindow)

	// NaN warmups fail every comparison below, so early rows simply never
	// light a dot.
	spikeDay := make([]bool, n)
	udvrBelow1 := make([]bool, n)
	for i := 0; i < n; i++ {
		spikeDay[i] = tr[i] > trSpikeFactor*atr[i] && cr[i] < crThreshold && volumes[i] > volSMA50[i]
		udvrBelow1[i] = upSum[i]/downSum[i] < 1
	}

	blackDot := make([]bool, n)
	redDot := make([]bool, n)
	for i := dotWindow - 1; i < n; i++ {
		if closes[i] >= sma50[i] || math.IsNaN(sma50[i]) {
			continue
		}
		window := i - dotWindow + 1
		blackDot[i] = anyTrue(spikeDay[window : i+1])
		redDot[i] = countTrue(udvrBelow1[window:i+1]) >= redDotCount
	}

	last := n - 1
	bullish := true
	for i := last - bullishWindow + 1; i <= last; i++ {
		if blackDot[i] || redDot[i] {
			bullish = false
			break
		}
	}

	view := outlook{asOf: bars[last].Date, blackDot: blackDot[last], redDot: redDot[last]}
	switch {
	case bullish:
		view.signal = Bullish
	case view.blackDot || view.redDot:
		view.signal = Bearish
	default:
		view.signal = Neutral
	}
	return view
}

func dropPartialToday(bars []md.Bar, today time.Time) []md.Bar {
	if len(bars) == 0 {
		return bars
	}
	if bars[len(bars)-1].Date.Format("2006-01-02") == today.Format("2006-01-02") {
		return bars[:len(bars)-1]
	}
	return bars
}

func anyTrue(values []bool) bool {
	for _, v := range values {
		if v {
			return true
		}
	}
	return false
}

func countTrue(values []bool) int {
	count := 0
	for _, v := range values {
		if v {
			count++
		}
	}
	return count
}
