// Package batch fans one weather fetch per requested city out over a
// bounded worker pool, persists what succeeds, and aggregates the outcome.
package batch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/weatherdash/weather-api-handler/internal/cache"
	"github.com/weatherdash/weather-api-handler/internal/client"
	"github.com/weatherdash/weather-api-handler/internal/datastore"
	"github.com/weatherdash/weather-api-handler/internal/models"
	"github.com/weatherdash/weather-api-handler/internal/observability"
	"github.com/weatherdash/weather-api-handler/internal/ratelimit"
)

// DefaultPoolWidth bounds how many provider calls are in flight per batch.
// The pacer further serializes their start times regardless of pool width.
const DefaultPoolWidth = 5

// Processor orchestrates multi-city weather acquisition.
type Processor struct {
	client    client.WeatherClient
	store     datastore.Interface
	pacer     *ratelimit.Pacer
	logger    *zap.Logger
	poolWidth int
	recent    *RecentBatches

	viewCache cache.Cache
	cacheTTL  time.Duration
}

// NewProcessor returns a Processor. poolWidth <= 0 selects DefaultPoolWidth.
func NewProcessor(c client.WeatherClient, store datastore.Interface, pacer *ratelimit.Pacer, recent *RecentBatches, poolWidth int, logger *zap.Logger) *Processor {
	if poolWidth <= 0 {
		poolWidth = DefaultPoolWidth
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		client:    c,
		store:     store,
		pacer:     pacer,
		logger:    logger,
		poolWidth: poolWidth,
		recent:    recent,
	}
}

// SetViewCache wires the query surface's read cache into the fetch path.
// When set, a persisted reading also refreshes the city's cached view, so
// queries right after a batch never see the previous reading.
func (p *Processor) SetViewCache(c cache.Cache, ttl time.Duration) {
	p.viewCache = c
	p.cacheTTL = ttl
}

// Recent exposes the recent-batches buffer for the query surface.
func (p *Processor) Recent() *RecentBatches {
	return p.recent
}

// PoolWidth reports the configured worker pool width. Used by /status.
func (p *Processor) PoolWidth() int {
	return p.poolWidth
}

type cityResult struct {
	city string
	err  error
}

// ProcessBatch dispatches one fetch per city across the worker pool and
// blocks until every task has finished. Deduplication is the caller's job;
// succeeded + failed always equals len(cities). Per-city failures never
// abort the batch; the batch fails only when zero cities succeed.
func (p *Processor) ProcessBatch(ctx context.Context, cities []string) models.BatchResult {
	p.logger.Info("processing weather batch", zap.Int("cities", len(cities)), zap.Strings("names", cities))
	observability.CitiesPerBatch.Observe(float64(len(cities)))

	jobs := make(chan string)
	results := make(chan cityResult)

	workers := p.poolWidth
	if len(cities) < workers {
		workers = len(cities)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for city := range jobs {
				results <- cityResult{city: city, err: p.fetchCity(ctx, city)}
			}
		}()
	}
	go func() {
		for _, city := range cities {
			jobs <- city
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	// Collected in completion order, not input order.
	succeeded := make([]string, 0, len(cities))
	errs := make([]string, 0)
	for res := range results {
		if res.err != nil {
			errs = append(errs, client.FailureMessage(res.city, res.err))
			continue
		}
		succeeded = append(succeeded, res.city)
	}

	batchID := uuid.New().String()
	now := time.Now().UTC()
	if p.recent != nil {
		p.recent.Push(models.BatchRecord{
			BatchID:     batchID,
			Cities:      succeeded,
			Timestamp:   float64(now.UnixNano()) / float64(time.Second),
			RequestedAt: now,
		})
	}

	success := len(succeeded) > 0
	if success {
		observability.BatchesTotal.WithLabelValues("success").Inc()
	} else {
		observability.BatchesTotal.WithLabelValues("failure").Inc()
	}

	p.logger.Info("completed weather batch",
		zap.String("batch_id", batchID),
		zap.Int("succeeded", len(succeeded)),
		zap.Int("failed", len(errs)))

	return models.BatchResult{
		Success:         success,
		BatchID:         batchID,
		RequestedCities: cities,
		SucceededCities: len(succeeded),
		FailedCities:    len(errs),
		Errors:          errs,
		Timestamp:       float64(now.UnixNano()) / float64(time.Second),
	}
}

// fetchCity performs one paced provider call and, on structural success,
// persists the location and reading. A persistence failure is logged,
// counted, and swallowed: fetch success is defined by provider response
// validity alone.
func (p *Processor) fetchCity(ctx context.Context, city string) error {
	p.logger.Debug("fetching weather", zap.String("city", city))

	if p.pacer != nil {
		p.pacer.Acquire()
	}

	snap, raw, err := p.client.CurrentWeather(ctx, city)
	if err != nil {
		observability.CityFetchesTotal.WithLabelValues(string(client.CategorizeError(err))).Inc()
		p.logger.Warn("fetch failed", zap.String("city", city), zap.Error(err))
		return err
	}
	observability.CityFetchesTotal.WithLabelValues("success").Inc()

	locationID, err := p.store.UpsertLocation(&snap.Location)
	if err == nil {
		var readingID uint
		readingID, err = p.store.AppendReading(locationID, &snap, raw)
		if err == nil {
			p.logger.Debug("stored weather reading",
				zap.String("city", city),
				zap.Uint("location_id", locationID),
				zap.Uint("reading_id", readingID))
			p.refreshViewCache(ctx, &snap)
		}
	}
	if err != nil {
		observability.StorageFailuresSwallowedTotal.Inc()
		p.logger.Error("storage failed after successful fetch; reading dropped",
			zap.String("city", city), zap.Error(err))
	}

	return nil
}

// refreshViewCache replaces the cached merged view with the reading that
// was just persisted. Only readings that reached storage are cached; after
// a swallowed storage failure the cache keeps serving what storage holds.
func (p *Processor) refreshViewCache(ctx context.Context, snap *models.Snapshot) {
	if p.viewCache == nil {
		return
	}
	if err := p.viewCache.Set(ctx, cache.Key(snap.Location.Name), *snap, p.cacheTTL); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("set").Inc()
		p.logger.Warn("view cache refresh failed",
			zap.String("city", snap.Location.Name), zap.Error(err))
	}
}
