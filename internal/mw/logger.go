package mw

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"occupancy-status-backend/internal/logging"
)

// RequestIDHeader carries the request ID back to the client.
const RequestIDHeader = "X-Request-ID"

const loggerKey = "logger"

// RequestLogger tags every request with an ID, stores a scoped logger on the
// context and logs the outcome once the handler chain returns.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		reqLogger := logging.WithRequestID(logger, requestID)
		c.Set(loggerKey, reqLogger)
		c.Header(RequestIDHeader, requestID)

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.String("client_ip", c.ClientIP()),
			zap.Duration("duration", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case c.Writer.Status() >= 500:
			reqLogger.Error("request failed", fields...)
		case c.Writer.Status() >= 400:
			reqLogger.Warn("request rejected", fields...)
		default:
			reqLogger.Debug("request served", fields...)
		}
	}
}

// Logger returns the request-scoped logger set by RequestLogger, or a no-op
// logger when the middleware is not installed.
func Logger(c *gin.Context) *zap.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(*zap.Logger); ok {
			return l
		}
	}
	return zap.NewNop()
}
