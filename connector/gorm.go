package connector

import (
	"context"
	"sync"
	"sync/atomic"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ceyewan/idforge/clog"
	"github.com/ceyewan/idforge/xerrors"
)

// gormConnector 是 MySQL / PostgreSQL / SQLite 连接器的公共实现，
// 各方言只提供 Dialector 与连接池配置
type gormConnector struct {
	name      string
	dialect   string
	dialector func() gorm.Dialector
	pool      *PoolConfig
	logger    clog.Logger
	recorder  *connectRecorder
	healthy   atomic.Bool

	mu sync.RWMutex
	db *gorm.DB
}

func newGormConnector(name, dialect string, dialector func() gorm.Dialector, pool *PoolConfig, opt *options) *gormConnector {
	return &gormConnector{
		name:      name,
		dialect:   dialect,
		dialector: dialector,
		pool:      pool,
		logger:    opt.logger.With(clog.String("connector", dialect), clog.String("name", name)),
		recorder:  newConnectRecorder(opt.meter, dialect, name),
	}
}

func (c *gormConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return nil
	}

	c.logger.Info("connecting to database")
	db, err := c.open(ctx)
	c.recorder.observe(ctx, err)
	if err != nil {
		c.logger.Error("failed to connect to database", clog.Error(err))
		return xerrors.Wrapf(xerrors.Join(ErrConnection, err), "%s connector[%s]", c.dialect, c.name)
	}

	c.db = db
	c.healthy.Store(true)
	c.logger.Info("connected to database")
	return nil
}

func (c *gormConnector) open(ctx context.Context) (*gorm.DB, error) {
	// SQL 日志由 db 组件按需接管
	db, err := gorm.Open(c.dialector(), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if c.pool != nil {
		sqlDB.SetMaxIdleConns(c.pool.MaxIdleConns)
		sqlDB.SetMaxOpenConns(c.pool.MaxOpenConns)
		sqlDB.SetConnMaxLifetime(c.pool.ConnMaxLifetime)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func (c *gormConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.healthy.Store(false)
	if c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	if err == nil {
		err = sqlDB.Close()
	}
	c.db = nil
	if err != nil {
		c.logger.Error("failed to close database connection", clog.Error(err))
		return err
	}
	c.logger.Info("database connection closed")
	return nil
}

func (c *gormConnector) HealthCheck(ctx context.Context) error {
	db := c.GetClient()
	if db == nil {
		c.healthy.Store(false)
		return xerrors.Wrapf(ErrClientNil, "%s connector[%s]", c.dialect, c.name)
	}

	sqlDB, err := db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		c.healthy.Store(false)
		c.logger.Warn("database health check failed", clog.Error(err))
		return xerrors.Wrapf(xerrors.Join(ErrHealthCheck, err), "%s connector[%s]", c.dialect, c.name)
	}
	c.healthy.Store(true)
	return nil
}

func (c *gormConnector) IsHealthy() bool {
	return c.healthy.Load()
}

func (c *gormConnector) Name() string {
	return c.name
}

func (c *gormConnector) Dialect() string {
	return c.dialect
}

func (c *gormConnector) GetClient() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}
