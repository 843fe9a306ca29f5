package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/weatherdash/weather-api-handler/internal/batch"
	"github.com/weatherdash/weather-api-handler/internal/cache"
	"github.com/weatherdash/weather-api-handler/internal/client"
	"github.com/weatherdash/weather-api-handler/internal/config"
	"github.com/weatherdash/weather-api-handler/internal/datastore"
	httphandler "github.com/weatherdash/weather-api-handler/internal/http"
	"github.com/weatherdash/weather-api-handler/internal/lifecycle"
	"github.com/weatherdash/weather-api-handler/internal/observability"
	"github.com/weatherdash/weather-api-handler/internal/ratelimit"
	"github.com/weatherdash/weather-api-handler/internal/validation"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	store, err := datastore.New(&datastore.Config{
		Engine:   cfg.StorageEngine,
		Host:     cfg.StorageHost,
		Port:     cfg.StoragePort,
		Database: cfg.StorageDatabase,
		Username: cfg.StorageUser,
		Password: cfg.StoragePassword,
		Debug:    cfg.StorageDebug,
	})
	if err != nil {
		logger.Fatal("storage config", zap.Error(err))
	}
	if err := store.Open(); err != nil {
		logger.Fatal("storage", zap.Error(err))
	}
	logger.Info("storage ready",
		zap.String("engine", cfg.StorageEngine),
		zap.String("host", cfg.StorageHost),
		zap.String("database", cfg.StorageDatabase))

	weatherClient, err := client.NewWeatherAPIClient(cfg.WeatherAPIKey, cfg.WeatherAPIBase, cfg.RequestTimeout)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}
	probeCtx, probeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := weatherClient.ValidateAPIKey(probeCtx); err != nil {
		logger.Warn("weather API key validation failed", zap.Error(err))
	}
	probeCancel()

	pacer := ratelimit.NewPacer(cfg.PacerInterval)
	recent := batch.NewRecentBatches(cfg.RecentBatchCapacity)
	processor := batch.NewProcessor(weatherClient, store, pacer, recent, cfg.PoolWidth, logger)

	var viewCache cache.Cache
	var memcacheCloser *cache.MemcachedCache
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcacheCloser = mc
		viewCache = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		viewCache = cache.NewInMemoryCache()
		logger.Info("cache backend: in_memory")
	}
	processor.SetViewCache(viewCache, cfg.CacheTTL)

	handler := httphandler.NewHandler(processor, store, viewCache, cfg.CacheTTL, cfg.RequestTimeout, logger)
	if memcacheCloser != nil {
		handler.SetCachePing(memcacheCloser.Ping)
	}

	if len(cfg.TrackedCities) > 0 {
		observability.SetTrackedCities(cfg.TrackedCities)

		warmer := cache.NewWarmer(viewCache, store, cfg.CacheTTL, logger)
		go func() {
			warmCtx, warmCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer warmCancel()
			if err := warmer.Warm(warmCtx, cfg.TrackedCities); err != nil {
				logger.Warn("cache warming failed", zap.Error(err))
			}
		}()
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.RecoverMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/health", handler.Health).Methods("GET")
	router.HandleFunc("/status", handler.Status).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())

	apiRouter := router.NewRoute().Subrouter()
	apiRouter.Use(httphandler.RateLimitMiddleware(limiter))
	apiRouter.HandleFunc("/process-weather", handler.ProcessWeather).Methods("POST")
	apiRouter.HandleFunc("/recent-requests", handler.RecentRequests).Methods("GET")

	queryRouter := apiRouter.NewRoute().Subrouter()
	queryRouter.Use(httphandler.TimeoutMiddleware(10 * time.Second))
	queryRouter.HandleFunc("/get-recent-data", handler.GetRecentData).Methods("GET")
	queryRouter.HandleFunc("/get-data-by-cities", handler.GetDataByCities).Methods("POST")

	router.NotFoundHandler = http.HandlerFunc(httphandler.NotFound)

	srv := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// Has to cover a full batch of paced provider calls plus
		// headroom for writing the response.
		WriteTimeout: cfg.BatchWriteTimeout(validation.MaxCities),
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", ":"+cfg.ServerPort),
			zap.Int("pool_width", cfg.PoolWidth),
			zap.Duration("provider_timeout", cfg.RequestTimeout))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	if err := store.Close(); err != nil {
		logger.Error("storage close", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
