package idgen

import (
	"github.com/ceyewan/idforge/xerrors"
)

// worker id 分配方式
const (
	MethodStatic = "static" // 使用配置中的 WorkerID
	MethodIP     = "ip"     // 取本机第一个非回环 IPv4 的最后一段
	MethodRedis  = "redis"  // Redis SET NX EX 抢占
	MethodEtcd   = "etcd"   // etcd 租约 + 事务抢占
)

// Config Node 配置
type Config struct {
	AllocatorConfig `mapstructure:",squash" yaml:",inline"`

	// Epoch 自定义纪元（Unix 毫秒），0 表示 DefaultEpoch
	Epoch int64 `mapstructure:"epoch" yaml:"epoch" json:"epoch"`
}

func (c *Config) setDefaults() {
	c.AllocatorConfig.setDefaults()
	if c.Epoch == 0 {
		c.Epoch = DefaultEpoch
	}
}

func (c *Config) validate() error {
	if err := c.AllocatorConfig.validate(); err != nil {
		return err
	}
	if c.Epoch < 0 {
		return xerrors.WithCode(xerrors.ErrInvalidInput, "epoch_negative")
	}
	return nil
}

// AllocatorConfig WorkerID 分配器配置
type AllocatorConfig struct {
	// Method 分配方式: "static" | "ip" | "redis" | "etcd"，默认 "static"
	Method string `mapstructure:"method" yaml:"method" json:"method"`

	// WorkerID 仅 static 使用 [0, 1023]
	WorkerID int64 `mapstructure:"worker_id" yaml:"worker_id" json:"worker_id"`

	// KeyPrefix 键前缀，默认 "idforge:idgen:worker"
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix" json:"key_prefix"`

	// MaxID 抢占范围 [0, MaxID)，默认 1024
	MaxID int `mapstructure:"max_id" yaml:"max_id" json:"max_id"`

	// TTL 租约 TTL（秒），默认 30
	TTL int `mapstructure:"ttl" yaml:"ttl" json:"ttl"`
}

func (c *AllocatorConfig) setDefaults() {
	if c.Method == "" {
		c.Method = MethodStatic
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "idforge:idgen:worker"
	}
	if c.MaxID <= 0 {
		c.MaxID = MaxWorkerID + 1
	}
	if c.TTL <= 0 {
		c.TTL = 30
	}
}

func (c *AllocatorConfig) validate() error {
	switch c.Method {
	case MethodStatic, MethodIP, MethodRedis, MethodEtcd:
	default:
		return xerrors.WithCode(xerrors.Wrapf(xerrors.ErrInvalidInput, "method %q", c.Method), "unsupported_method")
	}
	if c.Method == MethodStatic && (c.WorkerID < 0 || c.WorkerID > MaxWorkerID) {
		return xerrors.WithCode(&InvalidWorkerIDError{WorkerID: c.WorkerID}, "worker_id_out_of_range")
	}
	if c.MaxID > MaxWorkerID+1 {
		return xerrors.WithCode(xerrors.Wrapf(xerrors.ErrInvalidInput, "max_id %d", c.MaxID), "max_id_out_of_range")
	}
	// 续约间隔为 TTL/3，至少需要 3 秒
	if c.TTL < 3 {
		return xerrors.WithCode(xerrors.Wrapf(xerrors.ErrInvalidInput, "ttl %d", c.TTL), "ttl_too_small")
	}
	return nil
}
