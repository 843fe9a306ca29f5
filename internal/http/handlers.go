package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/weatherdash/weather-api-handler/internal/batch"
	"github.com/weatherdash/weather-api-handler/internal/cache"
	"github.com/weatherdash/weather-api-handler/internal/datastore"
	"github.com/weatherdash/weather-api-handler/internal/lifecycle"
	"github.com/weatherdash/weather-api-handler/internal/models"
	"github.com/weatherdash/weather-api-handler/internal/observability"
	"github.com/weatherdash/weather-api-handler/internal/validation"
)

const serviceName = "weather-api-handler"
const serviceVersion = "2.0.0"

// recentReadingsLimit is how many rows per requested city the merged-view
// query pulls before keeping the newest per distinct name.
const recentReadingsLimit = 10

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	processor      *batch.Processor
	store          datastore.Interface
	viewCache      cache.Cache
	cacheTTL       time.Duration
	requestTimeout time.Duration
	logger         *zap.Logger
	// CachePing, when set, is checked on /health. Used when backend is memcached.
	cachePing func() error

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. viewCache may be nil to disable the
// merged-view read cache.
func NewHandler(
	processor *batch.Processor,
	store datastore.Interface,
	viewCache cache.Cache,
	cacheTTL time.Duration,
	requestTimeout time.Duration,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		processor:      processor,
		store:          store,
		viewCache:      viewCache,
		cacheTTL:       cacheTTL,
		requestTimeout: requestTimeout,
		logger:         logger,
	}
}

// SetCachePing wires a cache reachability probe into /health.
func (h *Handler) SetCachePing(ping func() error) {
	h.cachePing = ping
}

// ProcessWeather handles POST /process-weather: validates the city list and
// runs the fan-out pipeline, blocking until every city has been attempted.
func (h *Handler) ProcessWeather(w http.ResponseWriter, r *http.Request) {
	if !isJSONRequest(r) {
		writeError(w, http.StatusBadRequest, "Content-Type must be application/json")
		return
	}

	var body struct {
		Cities []interface{} `json:"cities"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cities, err := validation.CleanCities(body.Cities)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, city := range cities {
		observability.RecordCityQuery(city)
	}

	result := h.processor.ProcessBatch(r.Context(), cities)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, result)
}

// GetRecentData handles GET /get-recent-data: merged views for the cities
// that succeeded in the most recent batch.
func (h *Handler) GetRecentData(w http.ResponseWriter, r *http.Request) {
	latest, ok := h.processor.Recent().Latest()
	if !ok {
		writeError(w, http.StatusNotFound, "No recent requests found")
		return
	}
	if len(latest.Cities) == 0 {
		writeError(w, http.StatusNotFound, "No successful cities in recent request")
		return
	}

	views, err := h.mergedViews(r.Context(), latest.Cities)
	if err != nil {
		h.logRequestError(r, "recent data query failed", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if len(views) == 0 {
		writeError(w, http.StatusNotFound, "No weather data found for recent cities")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"request_id":   latest.BatchID,
		"data":         views,
		"cities_count": len(views),
		"requested_at": latest.RequestedAt.Format(time.RFC3339),
		"retrieved_at": time.Now().UTC().Format(time.RFC3339),
	})
}

// GetDataByCities handles POST /get-data-by-cities: merged views for an
// arbitrary city list already present in storage.
func (h *Handler) GetDataByCities(w http.ResponseWriter, r *http.Request) {
	if !isJSONRequest(r) {
		writeError(w, http.StatusBadRequest, "Content-Type must be application/json")
		return
	}

	var body struct {
		Cities []interface{} `json:"cities"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var cities []string
	for _, v := range body.Cities {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			cities = append(cities, strings.TrimSpace(s))
		}
	}
	if len(cities) == 0 {
		writeError(w, http.StatusBadRequest, "No cities provided")
		return
	}
	for _, city := range cities {
		observability.RecordCityQuery(city)
	}

	views, err := h.mergedViews(r.Context(), cities)
	if err != nil {
		h.logRequestError(r, "city data query failed", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"data":         views,
		"cities_count": len(views),
		"retrieved_at": time.Now().UTC().Format(time.RFC3339),
	})
}

// RecentRequests handles GET /recent-requests: the ring buffer contents.
func (h *Handler) RecentRequests(w http.ResponseWriter, r *http.Request) {
	list := h.processor.Recent().List()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"requests": list,
		"count":    len(list),
	})
}

// Status handles GET /status: storage reachability, row counts, recent-batch
// count, and active configuration.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	dbStatus := "connected"
	locations, readings, err := h.store.Counts()
	if err != nil {
		dbStatus = "error: " + err.Error()
		locations, readings = 0, 0
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": serviceName,
		"version": serviceVersion,
		"status":  "running",
		"database": map[string]interface{}{
			"status":                dbStatus,
			"locations_count":       locations,
			"weather_records_count": readings,
		},
		"recent_requests": h.processor.Recent().Len(),
		"config": map[string]interface{}{
			"max_concurrent_requests": h.processor.PoolWidth(),
			"request_timeout":         int(h.requestTimeout.Seconds()),
		},
		"timestamp": epochSeconds(time.Now()),
	})
}

// Health handles GET /health. Reports storage reachability; degraded (503)
// when the database is down or the process is draining.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	statusCode := http.StatusOK
	dbStatus := "healthy"

	switch {
	case lifecycle.IsShuttingDown():
		status = "shutting-down"
		statusCode = http.StatusServiceUnavailable
	default:
		if err := h.store.Ping(); err != nil {
			h.logRequestError(r, "database health check failed", err)
			dbStatus = "unhealthy"
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}
	}

	h.healthStatusMu.Lock()
	if prev := h.healthStatusPrev; prev != "" && prev != status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", status))
	}
	h.healthStatusPrev = status
	h.healthStatusMu.Unlock()

	resp := map[string]interface{}{
		"status":    status,
		"service":   serviceName,
		"database":  dbStatus,
		"timestamp": epochSeconds(time.Now()),
	}
	if h.cachePing != nil {
		if h.cachePing() == nil {
			resp["cache"] = "healthy"
		} else {
			resp["cache"] = "unhealthy"
		}
	}
	writeJSON(w, statusCode, resp)
}

// NotFound is the JSON 404 for unknown routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "Endpoint not found")
}

// mergedViews resolves merged location+reading views for the given cities,
// serving from the read cache where possible and querying storage for the
// rest. Cache keys are lowercased city names.
func (h *Handler) mergedViews(ctx context.Context, cities []string) ([]models.Snapshot, error) {
	views := make([]models.Snapshot, 0, len(cities))
	missing := cities

	if h.viewCache != nil {
		missing = nil
		for _, city := range cities {
			snap, ok, err := h.viewCache.Get(ctx, cache.Key(city))
			if err != nil {
				observability.CacheErrorsTotal.WithLabelValues("get").Inc()
				missing = append(missing, city)
				continue
			}
			if ok {
				observability.CacheHitsTotal.WithLabelValues("merged_view").Inc()
				views = append(views, snap)
				continue
			}
			missing = append(missing, city)
		}
	}

	if len(missing) > 0 {
		fetched, err := h.store.RecentReadings(missing, recentReadingsLimit)
		if err != nil {
			return nil, err
		}
		views = append(views, fetched...)
		if h.viewCache != nil {
			for _, snap := range fetched {
				if err := h.viewCache.Set(ctx, cache.Key(snap.Location.Name), snap, h.cacheTTL); err != nil {
					observability.CacheErrorsTotal.WithLabelValues("set").Inc()
				}
			}
		}
	}
	return views, nil
}

func isJSONRequest(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Content-Type"), "application/json")
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func (h *Handler) logRequestError(r *http.Request, msg string, err error) {
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Error(msg, zap.Error(err))
		return
	}
	h.logger.Error(msg, zap.Error(err))
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the flat error shape the dashboards consume.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
