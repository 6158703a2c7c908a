// Package middleware 提供 Gin 通用中间件（trace 注入、请求日志、panic 恢复、指标、限流）
package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wyfcoding/easyreconcile/pkg/logger"
	"github.com/wyfcoding/easyreconcile/pkg/metrics"
	"github.com/wyfcoding/easyreconcile/pkg/ratelimit"
	"github.com/wyfcoding/easyreconcile/pkg/response"
)

const (
	// TraceHeader 透传 trace id 的请求头
	TraceHeader = "X-Trace-ID"
	// RequestIDKey gin context 中的 request id
	RequestIDKey = "request_id"
)

// GinLogging 注入 trace_id/span_id 并记录请求
func GinLogging() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.NewString()
		traceID := c.GetHeader(TraceHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		ctx := logger.ContextWithTrace(c.Request.Context(), traceID, uuid.NewString())
		c.Request = c.Request.WithContext(ctx)
		c.Set(RequestIDKey, requestID)
		c.Header(TraceHeader, traceID)

		start := time.Now()
		c.Next()

		logger.Info(ctx, "HTTP request completed",
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status_code", c.Writer.Status(),
			"client_ip", c.ClientIP(),
			"duration", time.Since(start),
		)
	}
}

// GinRecovery panic 恢复
func GinRecovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				requestID, _ := c.Get(RequestIDKey)
				logger.Error(c.Request.Context(), "HTTP request panicked",
					"request_id", requestID,
					"panic", fmt.Sprint(r),
				)
				response.ErrorWithStatus(c, http.StatusInternalServerError, "internal server error", fmt.Sprint(requestID))
			}
		}()
		c.Next()
	}
}

// GinMetrics 记录 HTTP 请求指标
func GinMetrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// KeyFunc 从请求中提取限流 key
type KeyFunc func(c *gin.Context) string

// RateLimit 按 key 限流，限流器故障时放行
func RateLimit(limiter ratelimit.Limiter, keyFn KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)
		res, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Warn(c.Request.Context(), "rate limiter unavailable", "key", key, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if !res.Allowed {
			c.Header("Retry-After", strconv.FormatInt(int64(res.RetryAfter/time.Second), 10))
			response.ErrorWithStatus(c, http.StatusTooManyRequests, "too many requests", "retry after "+res.RetryAfter.String())
			return
		}
		c.Next()
	}
}
