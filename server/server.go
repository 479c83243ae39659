// Package server 通过 HTTP 暴露 ID 生成服务。
//
//	GET  /v1/ids/next                      生成一个 ID
//	POST /v1/ids/batch?count=N             批量生成 N 个 ID
//	GET  /v1/ids/:id/decode?encoding=hex   解码 ID 并给出各种编码
//	GET  /healthz                          就绪检查
//	GET  /metrics                          Prometheus 指标
//
// ID 在 JSON 中以十进制字符串返回，避免 JavaScript 客户端丢失精度。
package server

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/idforge/clog"
	"github.com/ceyewan/idforge/idgen"
	"github.com/ceyewan/idforge/metrics"
	"github.com/ceyewan/idforge/trace"
	"github.com/ceyewan/idforge/xerrors"
)

const (
	pathNext    = "/v1/ids/next"
	pathBatch   = "/v1/ids/batch"
	pathDecode  = "/v1/ids/:id/decode"
	pathHealth  = "/healthz"
	pathMetrics = "/metrics"
)

// Server ID 生成 HTTP 服务
type Server struct {
	cfg     Config
	gen     idgen.IDGenerator
	epoch   int64
	logger  clog.Logger
	checks  map[string]HealthCheck
	engine  *gin.Engine
	http    *http.Server
	limiter *clientLimiter
}

// New 创建 HTTP 服务。gen 若实现 Epoch() 则用于解码，否则使用 idgen.DefaultEpoch
func New(cfg *Config, gen idgen.IDGenerator, opts ...Option) (*Server, error) {
	if gen == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "id generator is required")
	}
	var c Config
	if cfg != nil {
		c = *cfg
	}
	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	o := applyOptions(opts...)

	epoch := idgen.DefaultEpoch
	if e, ok := gen.(interface{ Epoch() int64 }); ok {
		epoch = e.Epoch()
	}

	s := &Server{
		cfg:    c,
		gen:    gen,
		epoch:  epoch,
		logger: o.logger.WithNamespace("server"),
		checks: o.checks,
	}

	httpMetrics, err := metrics.NewHTTPServerMetrics(o.meter, c.ServiceName)
	if err != nil {
		return nil, xerrors.Wrap(err, "create http metrics")
	}

	gin.SetMode(c.Mode)
	engine := gin.New()
	engine.ContextWithFallback = true
	engine.Use(requestID())
	if o.tracing {
		engine.Use(trace.GinMiddleware(c.ServiceName))
	}
	engine.Use(
		accessLog(s.logger),
		recovery(s.logger),
		metrics.GinHTTPMiddleware(httpMetrics, metrics.WithSkipRoutes(pathMetrics, pathHealth)),
	)

	engine.GET(pathHealth, s.handleHealth)
	engine.GET(pathMetrics, gin.WrapH(o.meter.Handler()))

	v1 := engine.Group("/v1/ids")
	if c.RateLimit.enabled() {
		s.limiter = newClientLimiter(c.RateLimit, s.logger)
		v1.Use(rateLimit(s.limiter))
	}
	v1.GET("/next", s.handleNext)
	v1.POST("/batch", s.handleBatch)
	v1.GET("/:id/decode", s.handleDecode)

	engine.NoRoute(func(c *gin.Context) {
		abortWithError(c, s.logger, xerrors.Wrapf(xerrors.ErrNotFound, "route %s %s", c.Request.Method, c.Request.URL.Path))
	})

	s.engine = engine
	s.http = &http.Server{
		Addr:         c.Addr,
		Handler:      engine,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
	return s, nil
}

// Handler 返回 HTTP 处理器，便于测试或挂载到其他服务
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run 监听并服务，直到 ctx 取消后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return xerrors.Wrapf(err, "listen %s", s.cfg.Addr)
	}
	return s.Serve(ctx, ln)
}

// Serve 在给定的 listener 上服务，直到 ctx 取消后优雅关闭
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", clog.String("addr", ln.Addr().String()))
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.closeLimiter()
		return xerrors.Wrap(err, "http serve")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// Shutdown 停止接收新请求并等待进行中的请求完成
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.closeLimiter()
	s.logger.Info("http server shutting down")
	if err := s.http.Shutdown(ctx); err != nil {
		return xerrors.Wrap(err, "http shutdown")
	}
	return nil
}

func (s *Server) closeLimiter() {
	if s.limiter != nil {
		s.limiter.close()
	}
}
