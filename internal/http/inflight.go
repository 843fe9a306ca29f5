package http

import (
	"context"
	"sync/atomic"
	"time"
)

// globalInFlightTracker counts requests currently being served. Incremented
// and decremented by MetricsMiddleware; read during graceful shutdown to
// drain in-flight work before closing storage.
var globalInFlightTracker atomic.Int64

// InFlightCount returns the current number of in-flight requests.
func InFlightCount() int64 {
	return globalInFlightTracker.Load()
}

// WaitForInFlight blocks until in-flight requests reach zero or ctx is done.
// checkInterval is the interval between count checks.
func WaitForInFlight(ctx context.Context, checkInterval time.Duration) error {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	for {
		if InFlightCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
