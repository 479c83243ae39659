package idgen

import (
	"github.com/ceyewan/idforge/clog"
	"github.com/ceyewan/idforge/connector"
	"github.com/ceyewan/idforge/metrics"
)

// Option Node 与分配器的初始化选项
type Option func(*options)

type options struct {
	logger  clog.Logger
	meter   metrics.Meter
	redis   connector.RedisConnector
	etcd    connector.EtcdConnector
	clock   Clock
	alloc   Allocator
	tracing bool
}

// WithLogger 设置 Logger
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMeter 设置 Meter
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		if meter != nil {
			o.meter = meter
		}
	}
}

// WithRedisConnector 设置 Redis 连接器，method=redis 时必需
func WithRedisConnector(conn connector.RedisConnector) Option {
	return func(o *options) {
		o.redis = conn
	}
}

// WithEtcdConnector 设置 etcd 连接器，method=etcd 时必需
func WithEtcdConnector(conn connector.EtcdConnector) Option {
	return func(o *options) {
		o.etcd = conn
	}
}

// WithNodeClock 替换 Node 内 Snowflake 的时钟
func WithNodeClock(clock Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithAllocator 使用自定义分配器，此时忽略 Config.Method
func WithAllocator(alloc Allocator) Option {
	return func(o *options) {
		o.alloc = alloc
	}
}

// WithTracing 为 worker id 的分配与释放创建 span
func WithTracing() Option {
	return func(o *options) {
		o.tracing = true
	}
}

func applyOptions(opts ...Option) *options {
	o := &options{
		logger: clog.Discard(),
		meter:  metrics.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
