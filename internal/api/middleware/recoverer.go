package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// panicBody matches the JSON error shape of the handlers.
const panicBody = `{"error":"internal_error","message":"An unexpected error occurred"}` + "\n"

// Recoverer turns a handler panic into a 500 JSON response and logs the stack.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}

					logger.Error("panic recovered",
						slog.String("request_id", GetRequestID(r.Context())),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.Any("panic", rec),
						slog.String("stack", string(debug.Stack())),
					)

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(panicBody))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
