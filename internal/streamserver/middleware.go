package streamserver

import (
	"log/slog"
	"net/http"
)

// responseWriter wraps http.ResponseWriter to capture status and pass
// Flush through for SSE streaming.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Flush implements http.Flusher so chi's SSE handlers can stream.
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// recoverMiddleware translates a panic raised directly on the request
// goroutine (inside routing or the handler itself, before any work is
// handed off to the scheduler's own goroutines) into a 500 response
// instead of crashing the process. Node pipelines run on errgroup
// goroutines inside TreeBuilder.runBatch and recover from their own
// panics there, converting them into error events instead.
func recoverMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("streamserver: recovered from panic", "panic", rec, "path", r.URL.Path)
					w.WriteHeader(http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// loggingMiddleware logs each request's method, path, and status at
// Info, using a wrapped responseWriter to observe the final status
// code.
func loggingMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)
			log.Info("request", "method", r.Method, "path", r.URL.Path, "status", wrapped.statusCode)
		})
	}
}
