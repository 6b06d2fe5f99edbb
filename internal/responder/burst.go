package responder

import (
	"context"
	"net"
	"time"

	"github.com/pingpong/internal/monitor"
	"github.com/pingpong/internal/pacing"
)

// Burst is the reply session for one accepted probe: a countdown of replies
// to a single target at a fixed interval.
type Burst struct {
	Target    net.Addr
	Remaining int
	Interval  time.Duration
	Sent      int
}

// NewBurst creates a burst of count replies to target
func NewBurst(target net.Addr, count int, interval time.Duration) *Burst {
	return &Burst{
		Target:    target,
		Remaining: count,
		Interval:  interval,
	}
}

// Run sends replies until the countdown reaches zero, a send fails, or ctx is
// cancelled, and reports which of the three happened. A cancelled burst can be
// resumed by calling Run again with a live context.
func (b *Burst) Run(ctx context.Context, send func(to net.Addr) error) (string, error) {
	// Repeat treats a zero count as unbounded
	if b.Done() {
		return monitor.OutcomeCompleted, nil
	}

	n, err := pacing.Repeat(ctx, b.Remaining, b.Interval, func(int) error {
		return send(b.Target)
	})
	b.Sent += n
	b.Remaining -= n

	switch {
	case err != nil:
		return monitor.OutcomeAborted, err
	case b.Remaining > 0:
		return monitor.OutcomeCancelled, nil
	default:
		return monitor.OutcomeCompleted, nil
	}
}

// Done reports whether the countdown has finished
func (b *Burst) Done() bool {
	return b.Remaining <= 0
}
