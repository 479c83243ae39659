package server

import (
	"time"

	"github.com/ceyewan/idforge/xerrors"
)

// Config HTTP 服务配置
type Config struct {
	// Addr 监听地址，默认 ":8080"
	Addr string `mapstructure:"addr" yaml:"addr" json:"addr"`

	// Mode gin 运行模式: "debug" | "release" | "test"，默认 "release"
	Mode string `mapstructure:"mode" yaml:"mode" json:"mode"`

	// ServiceName 用于链路追踪与指标标签
	ServiceName string `mapstructure:"service_name" yaml:"service_name" json:"service_name"`

	// MaxBatch 批量接口单次最多生成的 ID 数，默认 1000
	MaxBatch int `mapstructure:"max_batch" yaml:"max_batch" json:"max_batch"`

	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// RateLimit 按客户端 IP 的令牌桶限流
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig 限流配置，Rate <= 0 时关闭
type RateLimitConfig struct {
	// Rate 每秒令牌数
	Rate float64 `mapstructure:"rate" yaml:"rate" json:"rate"`

	// Burst 桶容量，默认等于 Rate 向上取整
	Burst int `mapstructure:"burst" yaml:"burst" json:"burst"`

	// IdleTimeout 客户端空闲超过该时间后释放其令牌桶，默认 10m
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" json:"idle_timeout"`

	// CleanupInterval 清理间隔，默认 1m
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval" json:"cleanup_interval"`
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.Mode == "" {
		c.Mode = "release"
	}
	if c.ServiceName == "" {
		c.ServiceName = "idforge"
	}
	if c.MaxBatch <= 0 {
		c.MaxBatch = 1000
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 5 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	c.RateLimit.setDefaults()
}

func (c *RateLimitConfig) enabled() bool {
	return c.Rate > 0
}

func (c *RateLimitConfig) setDefaults() {
	if !c.enabled() {
		return
	}
	if c.Burst <= 0 {
		c.Burst = int(c.Rate)
		if float64(c.Burst) < c.Rate {
			c.Burst++
		}
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 10 * time.Minute
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Minute
	}
}

func (c *Config) validate() error {
	switch c.Mode {
	case "debug", "release", "test":
	default:
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "unsupported gin mode %q", c.Mode)
	}
	if c.MaxBatch > 100000 {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "max_batch %d too large", c.MaxBatch)
	}
	return nil
}
