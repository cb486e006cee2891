package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Every runs fn once right away and then on every tick until ctx is done.
// A failed pass is logged; the next tick retries.
func Every(ctx context.Context, interval time.Duration, log *zap.Logger, fn func(context.Context) error) {
	run := func() {
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			log.Error("periodic pass failed", zap.Error(err))
		}
	}

	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}
