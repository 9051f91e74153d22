package orchestrator

import (
	"context"
	"time"
)

const sweepBatchSize = 100

// RunSweeper periodically reclaims envelopes past their deadline into
// expired. It runs until the context is cancelled and is safe to run
// concurrently with any other operation: each expiry goes through the same
// per-envelope lock as user actions and webhooks.
func (o *Orchestrator) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.SweepExpired(ctx)
		}
	}
}

// SweepExpired runs one sweep pass and returns how many envelopes expired.
func (o *Orchestrator) SweepExpired(ctx context.Context) int {
	ids, err := o.store.ListExpiredIDs(ctx, o.now().UTC(), sweepBatchSize)
	if err != nil {
		o.log.Error("expiry sweep: listing failed", "error", err)
		return 0
	}
	expired := 0
	for _, id := range ids {
		ok, err := o.Expire(ctx, id)
		if err != nil {
			o.log.Error("expiry sweep: expire failed", "envelope_id", id, "error", err)
			continue
		}
		if ok {
			expired++
		}
	}
	if expired > 0 {
		o.log.Info("expiry sweep finished", "expired", expired)
	}
	return expired
}
