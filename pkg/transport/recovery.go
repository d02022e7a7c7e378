package transport

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rhuss/streamrelay/pkg/api"
)

// Recovery returns middleware that catches panics in the handler and
// converts them to server error responses. The server continues to accept
// new requests after a panic is recovered. http.ErrAbortHandler is
// re-raised so net/http can abort the connection.
func Recovery(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}
				logger.Error("panic recovered",
					"request_id", RequestIDFromContext(r.Context()),
					"panic", fmt.Sprint(p),
				)
				if !rec.wroteHeader {
					WriteAPIError(w, api.NewServerError(fmt.Sprintf("internal server error: %v", p)))
				}
			}()
			next.ServeHTTP(rec, r)
		})
	}
}
