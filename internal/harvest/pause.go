package harvest

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"
)

// TimerPauser implements Pauser with a real timer, returning early if the
// context finishes first.
type TimerPauser struct{}

// Pause blocks for delay or until ctx is done, whichever comes first.
func (TimerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// JitterRange is a closed interval of sleep durations. The zero value means
// no pause.
type JitterRange struct {
	Min time.Duration
	Max time.Duration
}

// Duration picks a uniformly random delay in [Min, Max]. A degenerate range
// (Max <= Min) returns Min.
func (r JitterRange) Duration() time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	span := r.Max - r.Min
	bound := big.NewInt(int64(span) + 1)
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return r.Min + span/2
	}
	return r.Min + time.Duration(n.Int64())
}
