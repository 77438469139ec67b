package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/signclips/hub/internal/api/response"
)

// Logging emits one access log line per request. It runs inside otelhttp and after RequestID,
// so the TraceContextHandler adds request_id and trace_id to the line.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}

		slog.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"response_bytes", ww.BytesWritten(),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// Recoverer turns a handler panic into a 500 problem response.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler { //nolint:errorlint // sentinel compared by identity
					panic(rvr)
				}

				slog.ErrorContext(r.Context(), "panic recovered",
					"panic", rvr,
					"stack_trace", string(debug.Stack()),
				)
				response.RespondInternalServerError(w, "An unexpected error occurred")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
