package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/matchday/pkg/logger"
	"github.com/okian/matchday/pkg/metrics"
)

// MetricsMiddleware records request count and latency under endpoint. A
// panicking handler is answered with a 500 and logged; other server errors
// are logged at warn.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if p := recover(); p != nil {
				logger.Get().Error(r.Context(), "handler panicked",
					logger.String("endpoint", endpoint),
					logger.Any("panic", p),
				)
				if !rec.wroteHeader {
					writeError(rec, http.StatusInternalServerError, "internal_error", fmt.Errorf("internal error"))
				} else {
					rec.status = http.StatusInternalServerError
				}
			}
			observe(r.Context(), endpoint, r.Method, rec.status, time.Since(start))
		}()

		next(rec, r)
	}
}

func observe(ctx context.Context, endpoint, method string, status int, took time.Duration) {
	code := strconv.Itoa(status)
	metrics.RecordHTTPRequest(endpoint, method, code)
	metrics.RecordHTTPRequestDuration(endpoint, method, code, float64(took.Microseconds())/1000)

	if status < http.StatusBadRequest {
		return
	}
	metrics.RecordErrorByComponent("http", errorClass(status))
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logger.Get().Warn(ctx, "request failed",
			logger.String("endpoint", endpoint),
			logger.String("method", method),
			logger.Int("status", status),
			logger.Duration("took", took),
		)
	}
}

// errorClass buckets a failing status for the error counter.
func errorClass(status int) string {
	switch status {
	case http.StatusServiceUnavailable:
		return "unavailable"
	case http.StatusTooManyRequests:
		return "backpressure"
	case http.StatusNotFound:
		return "not_found"
	}
	if status >= http.StatusInternalServerError {
		return "server_error"
	}
	return "client_error"
}

// statusRecorder remembers the status written through it.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.wroteHeader {
		return
	}
	s.status = code
	s.wroteHeader = true
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	n, err := s.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
