package transport

import (
	"log/slog"
	"net/http"
	"time"
)

// RelayIDHeader carries the ID of a relayed request in the response.
const RelayIDHeader = "X-Relay-ID"

// Logging returns middleware that emits one access log entry per request.
// Relayed streams are logged when they end, with the bytes sent and the
// relay ID. Server errors log at ERROR, everything else at INFO.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Int64("bytes", rec.bytes),
				slog.Duration("duration", time.Since(start)),
			}
			if id := w.Header().Get(RelayIDHeader); id != "" {
				attrs = append(attrs, slog.String("relay_id", id))
			}

			level, msg := slog.LevelInfo, "request completed"
			switch {
			case rec.status >= http.StatusInternalServerError:
				level, msg = slog.LevelError, "request failed"
			case r.Context().Err() != nil:
				msg = "request aborted by client"
			}
			logger.LogAttrs(r.Context(), level, msg, attrs...)
		})
	}
}
