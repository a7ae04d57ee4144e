package api

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"rsi-backtest/internal/logger"
	"rsi-backtest/internal/metrics"
)

// RequestIDHeader carries the request ID in and out.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLen = 64

// RequestID reuses a caller-supplied request ID or assigns a new one and
// stores it in the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = logger.NewRequestID()
		}
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), id))
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// AccessLog writes one structured line per request.
func AccessLog(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := append(logger.LogWithRequest(c.Request.Context()),
			"method", c.Request.Method,
			"route", routeOf(c),
			"status", status,
			"duration", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
		switch {
		case status >= 500:
			log.Error("[webapp] request", attrs...)
		case status >= 400:
			log.Warn("[webapp] request", attrs...)
		default:
			log.Info("[webapp] request", attrs...)
		}
	}
}

// Metrics counts requests per route and status code.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.ObserveHTTP(routeOf(c), strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// routeOf returns the matched route pattern so raw paths never become labels.
func routeOf(c *gin.Context) string {
	if r := c.FullPath(); r != "" {
		return r
	}
	return "unmatched"
}
