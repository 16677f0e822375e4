package middleware

import (
	"log/slog"
	"time"

	"student-records/internal/metrics"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs one line per request and records HTTP metrics.
// Server errors log at error level, client errors at warn.
func RequestLogger(logger *slog.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var done func(method, route string, status int)
		if m != nil {
			done = m.HTTP.RequestStarted(c.Request.Context())
		}

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		if done != nil {
			done(c.Request.Method, route, status)
		}

		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}

		logger.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"route", route,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}
