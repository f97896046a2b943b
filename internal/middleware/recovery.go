package middleware

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"deepseek-proxy/pkg/logging"
)

// Recoverer turns a panic into a 500 with the proxy's JSON error shape.
// The stack goes to the log only.
func Recoverer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logging.L(r.Context()).Error("panic recovered",
					zap.Any("error", rec),
					zap.ByteString("stack", debug.Stack()),
				)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"Internal server error","message":"unexpected panic"}`))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
