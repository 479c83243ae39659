package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
)

// GinErrorCodeKey handler 用 c.Set 写入的业务错误码，作为 error_code 标签
const GinErrorCodeKey = "metrics.error_code"

// GinOption GinHTTPMiddleware 选项
type GinOption func(*ginOptions)

type ginOptions struct {
	skip map[string]struct{}
}

// WithSkipRoutes 不记录这些路由模板，例如 /metrics 与 /healthz 的探测请求
func WithSkipRoutes(routes ...string) GinOption {
	return func(o *ginOptions) {
		for _, r := range routes {
			o.skip[r] = struct{}{}
		}
	}
}

// GinHTTPMiddleware 按路由模板与业务错误码记录 RED 指标。
// 未命中路由的请求归入 UnknownRoute，原始路径不会成为标签
func GinHTTPMiddleware(httpMetrics *HTTPServerMetrics, opts ...GinOption) gin.HandlerFunc {
	o := ginOptions{skip: make(map[string]struct{})}
	for _, opt := range opts {
		opt(&o)
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		if _, skipped := o.skip[route]; httpMetrics == nil || (skipped && route != "") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		httpMetrics.Observe(c.Request.Context(), HTTPRequest{
			Method:    c.Request.Method,
			Route:     route,
			Status:    c.Writer.Status(),
			ErrorCode: c.GetString(GinErrorCodeKey),
			Duration:  time.Since(start),
		})
	}
}
