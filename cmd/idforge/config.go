package main

import (
	"context"

	"github.com/ceyewan/idforge/clog"
	"github.com/ceyewan/idforge/config"
	"github.com/ceyewan/idforge/connector"
	"github.com/ceyewan/idforge/db"
	"github.com/ceyewan/idforge/idgen"
	"github.com/ceyewan/idforge/metrics"
	"github.com/ceyewan/idforge/server"
	"github.com/ceyewan/idforge/trace"
	"github.com/ceyewan/idforge/xerrors"
)

// AppConfig idforge 服务配置
type AppConfig struct {
	Log     clog.Config    `mapstructure:"log"`
	Metrics metrics.Config `mapstructure:"metrics"`
	Trace   trace.Config   `mapstructure:"trace"`
	IDGen   idgen.Config   `mapstructure:"idgen"`
	Server  server.Config  `mapstructure:"server"`

	Redis connector.RedisConfig `mapstructure:"redis"`
	Etcd  connector.EtcdConfig  `mapstructure:"etcd"`
	DB    DBConfig              `mapstructure:"db"`
}

// DBConfig 可选的数据库配置，Driver 为空时不连接数据库
type DBConfig struct {
	db.Config `mapstructure:",squash"`

	MySQL    connector.MySQLConfig      `mapstructure:"mysql"`
	Postgres connector.PostgreSQLConfig `mapstructure:"postgres"`
	SQLite   connector.SQLiteConfig     `mapstructure:"sqlite"`

	// InstallTimestampID 启动时在 PostgreSQL 中安装 timestamp_id()
	InstallTimestampID bool `mapstructure:"install_timestamp_id"`

	// TimestampIDWorkerID 数据库侧 timestamp_id() 使用的 worker id，需与应用节点区分
	TimestampIDWorkerID int64 `mapstructure:"timestamp_id_worker_id"`
}

// defaults 注册过默认值的 key 才能被 IDFORGE_ 前缀的环境变量覆盖
var defaults = map[string]any{
	"log.level":       "info",
	"log.format":      "json",
	"log.output":      "stdout",
	"log.add_source":  false,
	"log.source_root": "",

	"metrics.enabled":      true,
	"metrics.service_name": "idforge",
	"metrics.version":      "",
	"metrics.port":         0,
	"metrics.path":         "/metrics",
	"metrics.runtime":      true,

	"trace.enabled":      false,
	"trace.service_name": "idforge",
	"trace.endpoint":     "localhost:4317",
	"trace.sampler":      1.0,
	"trace.batcher":      "batch",
	"trace.insecure":     true,

	"idgen.method":     idgen.MethodStatic,
	"idgen.worker_id":  0,
	"idgen.key_prefix": "idforge:idgen:worker",
	"idgen.max_id":     idgen.MaxWorkerID + 1,
	"idgen.ttl":        30,
	"idgen.epoch":      idgen.DefaultEpoch,

	"server.addr":             ":8080",
	"server.mode":             "release",
	"server.service_name":     "idforge",
	"server.max_batch":        1000,
	"server.read_timeout":     "5s",
	"server.write_timeout":    "10s",
	"server.shutdown_timeout": "10s",

	"server.rate_limit.rate":         0,
	"server.rate_limit.burst":        0,
	"server.rate_limit.idle_timeout": "10m",

	"redis.addr":     "",
	"redis.password": "",
	"redis.db":       0,

	"etcd.endpoints": []string{},
	"etcd.username":  "",
	"etcd.password":  "",

	"db.driver":                 "",
	"db.log_level":              "warn",
	"db.disable_auto_id":        false,
	"db.mysql.dsn":              "",
	"db.postgres.dsn":           "",
	"db.sqlite.path":            "",
	"db.install_timestamp_id":   false,
	"db.timestamp_id_worker_id": idgen.MaxWorkerID,
}

// loadConfig 依次读取 configs/idforge.yaml、idforge.<env>.yaml、.env 与 IDFORGE_* 环境变量
func loadConfig(ctx context.Context, path string) (config.Loader, *AppConfig, error) {
	paths := []string{".", "./configs", "/etc/idforge"}
	if path != "" {
		paths = []string{path}
	}
	loader, err := config.New(&config.Config{
		Name:      "idforge",
		Paths:     paths,
		EnvPrefix: config.DefaultEnvPrefix,
	}, config.WithDefaults(defaults))
	if err != nil {
		return nil, nil, err
	}
	if err := loader.Load(ctx); err != nil {
		return nil, nil, xerrors.Wrap(err, "load config")
	}

	var cfg AppConfig
	if err := loader.Unmarshal(&cfg); err != nil {
		return nil, nil, xerrors.Wrap(err, "unmarshal config")
	}
	return loader, &cfg, nil
}
