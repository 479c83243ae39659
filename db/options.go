package db

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/ceyewan/idforge/clog"
	"github.com/ceyewan/idforge/connector"
	"github.com/ceyewan/idforge/idgen"
	"github.com/ceyewan/idforge/metrics"
)

// Option 配置 DB 实例的选项
type Option func(*options)

type options struct {
	logger    clog.Logger
	meter     metrics.Meter
	tracer    trace.TracerProvider
	connector connector.DatabaseConnector
	generator idgen.IDGenerator
}

// WithLogger 注入日志记录器
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMeter 注入指标
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		if m != nil {
			o.meter = m
		}
	}
}

// WithTracer 注入 TracerProvider，启用 otelgorm 链路追踪
func WithTracer(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracer = tp
	}
}

// WithConnector 注入数据库连接器（MySQL / PostgreSQL / SQLite）
func WithConnector(conn connector.DatabaseConnector) Option {
	return func(o *options) {
		o.connector = conn
	}
}

// WithIDGenerator 注入主键生成器，通常是 *idgen.Node
func WithIDGenerator(gen idgen.IDGenerator) Option {
	return func(o *options) {
		o.generator = gen
	}
}
