package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ceyewan/idforge/clog"
)

// Option 配置 Meter 实例的选项
type Option func(*options)

type options struct {
	logger   clog.Logger
	registry *prometheus.Registry
}

// WithLogger 注入日志记录器，自动添加 "metrics" 命名空间
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("metrics")
		}
	}
}

// WithRegistry 指定 Prometheus Registry，默认每个 Meter 独立创建一个
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

func applyOptions(opts ...Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = clog.Discard()
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
	}
	return o
}
