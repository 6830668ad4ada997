package strategy

import (
	"context"
	"fmt"
	"strings"
)

// Signal is the market outlook for one decision cycle.
type Signal string

const (
	Bullish Signal = "BULLISH"
	Bearish Signal = "BEARISH"
	Neutral Signal = "NEUTRAL"
	Closed  Signal = "CLOSED"
)

// Strategy produces the signal the executor acts on. Implementations own
// their data sources; the executor only hands over the account id for
// reporting context.
type Strategy interface {
	GetSignal(ctx context.Context, accountID string) (Signal, error)
}

// ParseSignal maps a config string onto a Signal.
func ParseSignal(value string) (Signal, error) {
	switch s := Signal(strings.ToUpper(value)); s {
	case Bullish, Bearish, Neutral, Closed:
		return s, nil
	default:
		return "", fmt.Errorf("unknown signal: %q", value)
	}
}
