package strategy

import "context"

// Static always reports the same signal. Useful for drills and for manually
// forcing a cycle through one branch.
type Static struct {
	Signal Signal
}

func (s Static) GetSignal(ctx context.Context, accountID string) (Signal, error) {
	return s.Signal, nil
}
