// Package db 在 connector 提供的 GORM 连接之上封装数据库访问，并以 Snowflake ID 作为主键。
//
// db 组件提供：
//   - 创建记录时自动为零值的 int64 / uint64 主键填充 ID
//   - 基于 gorm.io/sharding 的分表，分表主键同样由 ID 生成器产生
//   - otelgorm 链路追踪与 clog SQL 日志
//   - PostgreSQL 上安装 timestamp_id() 函数，供数据库侧生成同布局的 ID
//
// 基本使用：
//
//	pgConn, _ := connector.NewPostgreSQL(&cfg.Postgres, connector.WithLogger(logger))
//	_ = pgConn.Connect(ctx)
//	defer pgConn.Close()
//
//	database, _ := db.New(&db.Config{},
//		db.WithConnector(pgConn),
//		db.WithIDGenerator(node),
//		db.WithLogger(logger),
//	)
//
//	order := Order{UserID: 7}
//	_ = database.DB(ctx).Create(&order).Error // order.ID 已被填充
//
// db 组件借用连接器的连接，不负责连接的生命周期。
package db

import (
	"context"
	"sync"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/gorm"

	"github.com/ceyewan/idforge/clog"
	"github.com/ceyewan/idforge/metrics"
	"github.com/ceyewan/idforge/xerrors"
)

// DB 数据库组件
type DB interface {
	// DB 返回绑定 ctx 的 *gorm.DB
	DB(ctx context.Context) *gorm.DB

	// Transaction 执行事务，fn 中的 tx 仅在事务内有效
	Transaction(ctx context.Context, fn func(ctx context.Context, tx *gorm.DB) error) error

	// InstallTimestampID 在 PostgreSQL 上安装 timestamp_id_seq 序列与 timestamp_id() 函数
	InstallTimestampID(ctx context.Context, workerID, epoch int64) error

	// Dialect 返回数据库方言
	Dialect() string

	// Close 关闭组件，连接由连接器管理
	Close() error
}

// claims 记录每个连接上注册了回调或分片插件的组件。
// 回调与插件挂在连接器共享的 *gorm.Config 上，同一连接只能有一个这样的组件
var claims sync.Map // *gorm.Config -> *database

type database struct {
	client  *gorm.DB
	dialect string
	logger  clog.Logger
	ids     *idAssigner

	shared    *gorm.Config
	claimed   bool
	autoID    bool
	closeOnce sync.Once
}

// New 创建数据库组件。
// 启用自动主键或分片时组件独占该连接器，第二个这样的组件返回 ErrConnectorInUse，
// Close 之后自动主键的占用被释放；分片插件无法卸载，连接器生命周期内只能注册一次。
//
//	database, err := db.New(&db.Config{
//	    Sharding: &db.ShardingRule{ShardingKey: "user_id", NumberOfShards: 16, Tables: []string{"orders"}},
//	}, db.WithConnector(conn), db.WithIDGenerator(node))
func New(cfg *Config, opts ...Option) (_ DB, err error) {
	o := options{
		logger: clog.Discard(),
		meter:  metrics.Discard(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.connector == nil {
		return nil, xerrors.WithCode(ErrConnectorRequired, "connector_required")
	}
	client := o.connector.GetClient()
	if client == nil {
		return nil, xerrors.Wrap(ErrConnectorRequired, "connector is not connected")
	}
	shared := client.Config

	var c Config
	if cfg != nil {
		c = *cfg
	}
	dialect := o.connector.Dialect()
	c.setDefaults(dialect)
	if err := c.validate(dialect); err != nil {
		return nil, xerrors.Wrap(err, "invalid db config")
	}
	if o.generator == nil && (!c.DisableAutoID || c.Sharding != nil) {
		return nil, xerrors.WithCode(ErrIDGeneratorRequired, "id_generator_required")
	}

	logger := o.logger.WithNamespace("db").With(clog.String("dialect", dialect))
	client = client.Session(&gorm.Session{
		Logger: newGormLogger(logger, c.LogLevel, c.SlowThreshold),
	})

	d := &database{
		client:  client,
		dialect: dialect,
		logger:  logger,
		shared:  shared,
	}

	if !c.DisableAutoID || c.Sharding != nil {
		if _, loaded := claims.LoadOrStore(shared, d); loaded {
			return nil, xerrors.WithCode(ErrConnectorInUse, "connector_in_use")
		}
		d.claimed = true
		defer func() {
			if err != nil {
				_ = d.Close()
			}
		}()
	}

	if o.generator != nil {
		ids, err := newIDAssigner(o.generator, o.meter, logger)
		if err != nil {
			return nil, err
		}
		d.ids = ids
	}

	if !c.DisableAutoID {
		if err := d.ids.register(client); err != nil {
			return nil, err
		}
		d.autoID = true
	}

	if c.Sharding != nil {
		middleware := d.ids.shardingMiddleware(c.Sharding)
		if _, ok := client.Config.Plugins[middleware.Name()]; ok {
			return nil, xerrors.WithCode(xerrors.Wrap(ErrConnectorInUse, "sharding already registered"), "connector_in_use")
		}
		if err := client.Use(middleware); err != nil {
			return nil, xerrors.Wrap(err, "register sharding middleware")
		}
	}

	if o.tracer != nil {
		plugin := otelgorm.NewPlugin(
			otelgorm.WithTracerProvider(o.tracer),
			otelgorm.WithDBName(o.connector.Name()),
		)
		if err := use(client, plugin); err != nil {
			return nil, xerrors.Wrap(err, "register otelgorm plugin")
		}
	}

	logger.Info("db component created",
		clog.Bool("auto_id", !c.DisableAutoID),
		clog.Bool("sharding", c.Sharding != nil),
		clog.Bool("tracing", o.tracer != nil),
	)
	return d, nil
}

// use 注册插件，同一个连接上重复注册视为成功，用于可共享的 otelgorm
func use(client *gorm.DB, plugin gorm.Plugin) error {
	if _, ok := client.Config.Plugins[plugin.Name()]; ok {
		return nil
	}
	return client.Use(plugin)
}

func (d *database) DB(ctx context.Context) *gorm.DB {
	return d.client.WithContext(ctx)
}

func (d *database) Transaction(ctx context.Context, fn func(ctx context.Context, tx *gorm.DB) error) error {
	return d.client.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, tx)
	})
}

func (d *database) Dialect() string {
	return d.dialect
}

// Close 移除自动主键回调并释放连接器，连接本身由连接器关闭
func (d *database) Close() error {
	var err error
	d.closeOnce.Do(func() {
		if !d.claimed {
			return
		}
		if d.autoID {
			err = d.client.Callback().Create().Remove(CallbackAssignID)
		}
		claims.Delete(d.shared)
	})
	return err
}
