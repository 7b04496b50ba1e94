package core

import (
	"net/http"
	"time"
)

// slowRequestThreshold is how long a request must take before it gets logged
// in production mode even with a 2xx status.
const slowRequestThreshold = time.Second

// statusWriter records the status code a handler wrote, since net/http gives
// no way to read it back off the real ResponseWriter.
type statusWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (w *statusWriter) WriteHeader(code int) {
	if w.wrote {
		return
	}
	w.status, w.wrote = code, true
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wrote {
		w.status, w.wrote = http.StatusOK, true
	}
	return w.ResponseWriter.Write(b)
}

// Flush lets a streamed response (SSE, chunked export) pass through an
// otherwise-wrapped ResponseWriter.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// LoggingMiddleware logs each request's method, path, status, and duration.
// devMode logs every request; otherwise only non-2xx responses and requests
// slower than slowRequestThreshold are logged, to keep steady-state traffic
// quiet.
func LoggingMiddleware(logger Logger, devMode bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(sw, r)
			logRequest(logger, r, sw.status, time.Since(start), devMode)
		})
	}
}

func logRequest(logger Logger, r *http.Request, status int, elapsed time.Duration, devMode bool) {
	if logger == nil {
		return
	}
	if !devMode && status < 400 && elapsed <= slowRequestThreshold {
		return
	}

	fields := map[string]interface{}{
		"method":      r.Method,
		"path":        r.URL.Path,
		"status":      status,
		"duration_ms": elapsed.Milliseconds(),
		"remote_addr": r.RemoteAddr,
	}
	if r.URL.RawQuery != "" {
		fields["query"] = r.URL.RawQuery
	}

	switch {
	case status >= 500:
		logger.ErrorWithContext(r.Context(), "http request error", fields)
	case status >= 400:
		logger.WarnWithContext(r.Context(), "http request client error", fields)
	case elapsed > slowRequestThreshold:
		logger.WarnWithContext(r.Context(), "http request slow", fields)
	default:
		logger.InfoWithContext(r.Context(), "http request", fields)
	}
}
