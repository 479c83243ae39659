package server

import (
	"context"

	"github.com/ceyewan/idforge/clog"
	"github.com/ceyewan/idforge/metrics"
)

// Option 服务选项
type Option func(*options)

// HealthCheck 就绪检查，返回错误时 /healthz 返回 503
type HealthCheck func(ctx context.Context) error

type options struct {
	logger  clog.Logger
	meter   metrics.Meter
	tracing bool
	checks  map[string]HealthCheck
}

// WithLogger 设置 Logger
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMeter 设置 Meter，同时在 /metrics 暴露其 Prometheus 指标
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		if meter != nil {
			o.meter = meter
		}
	}
}

// WithTracing 启用 otelgin 链路追踪
func WithTracing() Option {
	return func(o *options) {
		o.tracing = true
	}
}

// WithHealthCheck 注册一个命名的就绪检查
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(o *options) {
		if check != nil {
			o.checks[name] = check
		}
	}
}

func applyOptions(opts ...Option) *options {
	o := &options{
		logger: clog.Discard(),
		meter:  metrics.Discard(),
		checks: make(map[string]HealthCheck),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
