package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ceyewan/idforge/clog"
	"github.com/ceyewan/idforge/metrics"
	"github.com/ceyewan/idforge/xerrors"
)

// HeaderRequestID 请求 ID 头
const HeaderRequestID = "X-Request-ID"

// requestID 沿用上游的 X-Request-ID，缺失时生成 UUID，并写入 Context 供日志使用
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Header(HeaderRequestID, id)
		c.Request = c.Request.WithContext(clog.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// accessLog 请求结束后输出一条访问日志
func accessLog(logger clog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []clog.Field{
			clog.String("method", c.Request.Method),
			clog.String("path", c.Request.URL.Path),
			clog.String("route", c.FullPath()),
			clog.Int("status", status),
			clog.Duration("latency", time.Since(start)),
			clog.String("client_ip", c.ClientIP()),
			clog.Int("bytes", c.Writer.Size()),
		}
		ctx := c.Request.Context()
		switch {
		case status >= http.StatusInternalServerError:
			logger.WarnContext(ctx, "http request", fields...)
		case c.FullPath() == pathHealth || c.FullPath() == pathMetrics:
			logger.DebugContext(ctx, "http request", fields...)
		default:
			logger.InfoContext(ctx, "http request", fields...)
		}
	}
}

// recovery 捕获 handler 中的 panic 并返回 500
func recovery(logger clog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorContext(c.Request.Context(), "panic recovered",
					clog.Any("panic", r),
					clog.String("path", c.Request.URL.Path),
				)
				abortWithError(c, logger, fmt.Errorf("panic: %v", r))
			}
		}()
		c.Next()
	}
}

// rateLimit 按客户端 IP 限流，批量接口按请求的 ID 数消耗令牌
func rateLimit(limiter *clientLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		n := 1
		if c.FullPath() == pathBatch {
			if count, err := strconv.Atoi(c.Query("count")); err == nil && count > 1 {
				n = count
			}
		}
		if !limiter.allowN(c.ClientIP(), n) {
			c.Header("Retry-After", "1")
			c.Set(metrics.GinErrorCodeKey, CodeRateLimited)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody{Error: errorDetail{
				Code:      CodeRateLimited,
				Message:   xerrors.Wrapf(xerrors.ErrUnavailable, "rate limit exceeded for %s", c.ClientIP()).Error(),
				RequestID: clog.RequestIDFrom(c.Request.Context()),
			}})
			return
		}
		c.Next()
	}
}
