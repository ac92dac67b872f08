package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/scribe/internal/metrics"
	"github.com/yoockh/scribe/internal/utils"
)

// RequestLogger tags each request with X-Request-Id, logs one line when it
// finishes and records it in m (which may be nil).
func RequestLogger(l *logrus.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header("X-Request-Id", reqID)
		c.Set("request_id", reqID)

		c.Next()

		lat := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		m.ObserveHTTP(c.Request.Method, route, status, lat)

		fields := logrus.Fields{
			"request_id": reqID,
			"method":     c.Request.Method,
			"route":      route,
			"path":       c.Request.URL.Path,
			"status":     status,
			"bytes":      c.Writer.Size(),
			"latency_ms": lat.Milliseconds(),
			"ip":         c.ClientIP(),
		}
		if userID, ok := c.Get(CtxUserID); ok {
			fields["user_id"] = userID
		}
		entry := l.WithFields(fields)

		if len(c.Errors) > 0 {
			entry = entry.WithFields(logrus.Fields{
				"errors": c.Errors.String(),
				"code":   utils.CodeOf(c.Errors.Last().Err),
			})
		}

		switch {
		case status >= 500:
			entry.Error("request")
		case status >= 400:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}
