package middleware

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/logger"
)

// Logging writes one access log line per request. It must run inside
// RequestID to pick up the request id.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		logger.FromContext(r.Context()).Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
