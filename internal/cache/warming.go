package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/weatherdash/weather-api-handler/internal/models"
	"github.com/weatherdash/weather-api-handler/internal/observability"
)

// ViewSource yields the most recent persisted reading per city. Implemented
// by the datastore; declared here to avoid a dependency on that package.
type ViewSource interface {
	RecentReadings(cityNames []string, limit int) ([]models.Snapshot, error)
}

// Warmer pre-populates the merged-view cache from storage so the first
// queries after startup are cache hits. It never calls the weather
// provider: warming must not spend quota, so cities with no stored history
// are simply left cold.
type Warmer struct {
	cache  Cache
	source ViewSource
	ttl    time.Duration
	logger *zap.Logger
}

// NewWarmer creates a Warmer over the given cache and storage source.
func NewWarmer(c Cache, source ViewSource, ttl time.Duration, logger *zap.Logger) *Warmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Warmer{cache: c, source: source, ttl: ttl, logger: logger}
}

// Warm loads the latest stored reading for each city and caches it.
// Returns an error when storage cannot be read; individual Set failures
// are counted and skipped.
func (w *Warmer) Warm(ctx context.Context, cities []string) error {
	if w.cache == nil || len(cities) == 0 {
		return nil
	}
	observability.CacheWarmingTotal.Inc()
	start := time.Now()

	views, err := w.source.RecentReadings(cities, 1)
	if err != nil {
		observability.CacheWarmingErrorsTotal.Inc()
		return fmt.Errorf("warming query: %w", err)
	}

	warmed := 0
	for _, snap := range views {
		if err := w.cache.Set(ctx, Key(snap.Location.Name), snap, w.ttl); err != nil {
			observability.CacheErrorsTotal.WithLabelValues("set").Inc()
			w.logger.Warn("cache warm set failed",
				zap.String("city", snap.Location.Name), zap.Error(err))
			continue
		}
		warmed++
	}

	w.logger.Info("cache warming complete",
		zap.Int("cities", len(cities)),
		zap.Int("warmed", warmed),
		zap.Float64("duration_seconds", time.Since(start).Seconds()))
	return nil
}
