package booking

import (
	"context"
	"fmt"
	"time"
)

// Sweeper cancels expired unpaid holds in the background so abandoned
// checkouts stop counting against zone capacity. It is opt-in: with the
// sweeper off, a hold that is never confirmed strands its capacity, which is
// the historical behavior of this engine.
type Sweeper struct {
	Service  *Service
	Interval time.Duration
}

func NewSweeper(svc *Service, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{Service: svc, Interval: interval}
}

// Run sweeps until the context is cancelled.
func (sw *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(sw.Interval)
	defer ticker.Stop()

	sw.Service.logInfo("SWEEPER", fmt.Sprintf("hold sweep running every %s", sw.Interval))

	for {
		select {
		case <-ctx.Done():
			sw.Service.logInfo("SWEEPER", "hold sweep stopped")
			return
		case <-ticker.C:
			sw.SweepOnce(ctx)
		}
	}
}

// SweepOnce cancels every hold past its expiry right now.
func (sw *Sweeper) SweepOnce(ctx context.Context) {
	swept, err := sw.Service.DB.CancelExpiredHolds(ctx, time.Now())
	if err != nil {
		sw.Service.logWarn("SWEEPER", fmt.Sprintf("sweep failed: %v", err))
		return
	}
	if swept > 0 {
		sw.Service.logInfo("SWEEPER", fmt.Sprintf("cancelled %d expired holds", swept))
	}
}
