package db

import (
	"time"

	"github.com/ceyewan/idforge/xerrors"
)

// 支持的驱动
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config DB 组件配置
type Config struct {
	// Driver 数据库驱动: "mysql" | "postgres" | "sqlite"，为空时取连接器的方言
	Driver string `mapstructure:"driver" json:"driver" yaml:"driver"`

	// DisableAutoID 关闭创建记录时自动填充 Snowflake 主键
	DisableAutoID bool `mapstructure:"disable_auto_id" json:"disable_auto_id" yaml:"disable_auto_id"`

	// Sharding 分表规则，为 nil 时不分表。一个连接只能注册一组规则
	Sharding *ShardingRule `mapstructure:"sharding" json:"sharding" yaml:"sharding"`

	// LogLevel SQL 日志级别: "silent" | "error" | "warn" | "info"，默认 "warn"
	LogLevel string `mapstructure:"log_level" json:"log_level" yaml:"log_level"`

	// SlowThreshold 慢查询阈值，默认 200ms
	SlowThreshold time.Duration `mapstructure:"slow_threshold" json:"slow_threshold" yaml:"slow_threshold"`
}

// ShardingRule 分表规则
type ShardingRule struct {
	// ShardingKey 分片键，例如 "user_id"
	ShardingKey string `mapstructure:"sharding_key" json:"sharding_key" yaml:"sharding_key"`

	// NumberOfShards 分片数量，例如 64
	NumberOfShards uint `mapstructure:"number_of_shards" json:"number_of_shards" yaml:"number_of_shards"`

	// Tables 应用此规则的逻辑表名
	Tables []string `mapstructure:"tables" json:"tables" yaml:"tables"`
}

func (c *Config) setDefaults(dialect string) {
	if c.Driver == "" {
		c.Driver = dialect
	}
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
	if c.SlowThreshold <= 0 {
		c.SlowThreshold = 200 * time.Millisecond
	}
}

func (c *Config) validate(dialect string) error {
	switch c.Driver {
	case DriverMySQL, DriverPostgres, DriverSQLite:
	default:
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "unsupported driver %q", c.Driver)
	}
	if c.Driver != dialect {
		return xerrors.Wrapf(ErrDriverMismatch, "driver %q, connector %q", c.Driver, dialect)
	}

	switch c.LogLevel {
	case "silent", "error", "warn", "info":
	default:
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "unsupported log level %q", c.LogLevel)
	}

	if c.Sharding != nil {
		if err := c.Sharding.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (r *ShardingRule) validate() error {
	if r.ShardingKey == "" {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "sharding key cannot be empty")
	}
	if r.NumberOfShards == 0 {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "number of shards must be greater than 0")
	}
	if len(r.Tables) == 0 {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "sharding tables cannot be empty")
	}
	for _, table := range r.Tables {
		if table == "" {
			return xerrors.Wrap(xerrors.ErrInvalidInput, "sharding table name cannot be empty")
		}
	}
	return nil
}
