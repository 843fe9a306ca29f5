package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"
)

func TestCorrelationIDMiddleware(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("generates id when absent", func(t *testing.T) {
		var ctxID interface{}
		handler := CorrelationIDMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctxID = r.Context().Value("correlation_id")
		}))

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

		headerID := rr.Header().Get("X-Correlation-ID")
		if headerID == "" {
			t.Fatal("X-Correlation-ID header not set")
		}
		if ctxID != headerID {
			t.Errorf("context id %v != header id %q", ctxID, headerID)
		}
	})

	t.Run("propagates caller id", func(t *testing.T) {
		handler := CorrelationIDMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Correlation-ID", "caller-supplied-id")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if got := rr.Header().Get("X-Correlation-ID"); got != "caller-supplied-id" {
			t.Errorf("X-Correlation-ID = %q, want caller-supplied-id", got)
		}
	})
}

func TestRecoverMiddleware(t *testing.T) {
	handler := RecoverMiddleware(zaptest.NewLogger(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["success"] != false || body["error"] != "Internal server error" {
		t.Errorf("body = %v", body)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("nil limiter passes through", func(t *testing.T) {
		handler := RateLimitMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/process-weather", nil))
		if rr.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rr.Code)
		}
	})

	t.Run("denies past the burst", func(t *testing.T) {
		limiter := rate.NewLimiter(rate.Limit(1), 2)
		handler := RateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		codes := make([]int, 0, 3)
		for i := 0; i < 3; i++ {
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/process-weather", nil))
			codes = append(codes, rr.Code)
		}

		if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
			t.Errorf("first two codes = %v, want 200s within burst", codes[:2])
		}
		if codes[2] != http.StatusTooManyRequests {
			t.Errorf("third code = %d, want 429", codes[2])
		}
	})

	t.Run("429 body carries correlation id", func(t *testing.T) {
		limiter := rate.NewLimiter(rate.Limit(0), 0)
		handler := RateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		req := httptest.NewRequest(http.MethodGet, "/process-weather", nil)
		req = req.WithContext(context.WithValue(req.Context(), "correlation_id", "corr-123"))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusTooManyRequests {
			t.Fatalf("status = %d, want 429", rr.Code)
		}
		body := decodeBody(t, rr)
		if body["error"] != "Too many requests" {
			t.Errorf("error = %q", body["error"])
		}
		if body["request_id"] != "corr-123" {
			t.Errorf("request_id = %q, want corr-123", body["request_id"])
		}
	})
}

func TestTimeoutMiddleware(t *testing.T) {
	var deadlineSet bool
	handler := TimeoutMiddleware(50 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, deadlineSet = r.Context().Deadline()
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/get-recent-data", nil))
	if !deadlineSet {
		t.Error("request context has no deadline")
	}
}

func TestMetricsMiddleware_TracksInFlight(t *testing.T) {
	var during int64
	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		during = InFlightCount()
	}))

	before := InFlightCount()
	rr := httptest.NewRecorder()

	router := mux.NewRouter()
	router.Handle("/health", handler)
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if during != before+1 {
		t.Errorf("in-flight during request = %d, want %d", during, before+1)
	}
	if after := InFlightCount(); after != before {
		t.Errorf("in-flight after request = %d, want %d", after, before)
	}
}
