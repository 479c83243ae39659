package main

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"

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

// app 持有所有组件，按创建的逆序关闭
type app struct {
	cfg    *AppConfig
	logger clog.Logger
	meter  metrics.Meter
	node   *idgen.Node
	server *server.Server

	closers []func(ctx context.Context) error
}

func newApp(ctx context.Context, cfg *AppConfig, logger clog.Logger) (a *app, err error) {
	a = &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.close(context.Background())
		}
	}()

	shutdownTrace, err := trace.Init(&cfg.Trace)
	if err != nil {
		return nil, xerrors.Wrap(err, "init trace")
	}
	a.onClose(shutdownTrace)

	a.meter, err = metrics.New(&cfg.Metrics, metrics.WithLogger(logger))
	if err != nil {
		return nil, xerrors.Wrap(err, "init metrics")
	}
	a.onClose(a.meter.Shutdown)

	connOpts := []connector.Option{
		connector.WithLogger(logger),
		connector.WithMeter(a.meter),
	}
	if cfg.Trace.Enabled {
		connOpts = append(connOpts, connector.WithTracing())
	}

	nodeOpts := []idgen.Option{
		idgen.WithLogger(logger),
		idgen.WithMeter(a.meter),
	}
	if cfg.Trace.Enabled {
		nodeOpts = append(nodeOpts, idgen.WithTracing())
	}
	var checks []server.Option

	switch cfg.IDGen.Method {
	case idgen.MethodRedis:
		conn, err := connector.NewRedis(&cfg.Redis, connOpts...)
		if err != nil {
			return nil, err
		}
		if err := a.connect(ctx, conn); err != nil {
			return nil, err
		}
		nodeOpts = append(nodeOpts, idgen.WithRedisConnector(conn))
		checks = append(checks, server.WithHealthCheck("redis", conn.HealthCheck))
	case idgen.MethodEtcd:
		conn, err := connector.NewEtcd(&cfg.Etcd, connOpts...)
		if err != nil {
			return nil, err
		}
		if err := a.connect(ctx, conn); err != nil {
			return nil, err
		}
		nodeOpts = append(nodeOpts, idgen.WithEtcdConnector(conn))
		checks = append(checks, server.WithHealthCheck("etcd", conn.HealthCheck))
	}

	a.node, err = idgen.NewNode(ctx, &cfg.IDGen, nodeOpts...)
	if err != nil {
		return nil, xerrors.Wrap(err, "create idgen node")
	}
	a.onClose(func(context.Context) error { return a.node.Close() })

	if cfg.DB.Driver != "" {
		check, err := a.setupDB(ctx, connOpts)
		if err != nil {
			return nil, err
		}
		checks = append(checks, check)
	}

	serverOpts := append([]server.Option{
		server.WithLogger(logger),
		server.WithMeter(a.meter),
	}, checks...)
	if cfg.Trace.Enabled {
		serverOpts = append(serverOpts, server.WithTracing())
	}
	a.server, err = server.New(&cfg.Server, a.node, serverOpts...)
	if err != nil {
		return nil, xerrors.Wrap(err, "create server")
	}
	return a, nil
}

// setupDB 连接数据库并按需安装 timestamp_id()，返回数据库的健康检查
func (a *app) setupDB(ctx context.Context, connOpts []connector.Option) (server.Option, error) {
	var (
		conn connector.DatabaseConnector
		err  error
	)
	switch a.cfg.DB.Driver {
	case db.DriverMySQL:
		conn, err = connector.NewMySQL(&a.cfg.DB.MySQL, connOpts...)
	case db.DriverPostgres:
		conn, err = connector.NewPostgreSQL(&a.cfg.DB.Postgres, connOpts...)
	case db.DriverSQLite:
		conn, err = connector.NewSQLite(&a.cfg.DB.SQLite, connOpts...)
	default:
		err = xerrors.Wrapf(xerrors.ErrInvalidInput, "unsupported db driver %q", a.cfg.DB.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := a.connect(ctx, conn); err != nil {
		return nil, err
	}

	dbOpts := []db.Option{
		db.WithConnector(conn),
		db.WithIDGenerator(a.node),
		db.WithLogger(a.logger),
		db.WithMeter(a.meter),
	}
	if a.cfg.Trace.Enabled {
		dbOpts = append(dbOpts, db.WithTracer(otel.GetTracerProvider()))
	}
	database, err := db.New(&a.cfg.DB.Config, dbOpts...)
	if err != nil {
		return nil, xerrors.Wrap(err, "create db")
	}
	a.onClose(func(context.Context) error { return database.Close() })

	if a.cfg.DB.InstallTimestampID {
		if err := database.InstallTimestampID(ctx, a.cfg.DB.TimestampIDWorkerID, a.node.Epoch()); err != nil {
			return nil, err
		}
	}
	return server.WithHealthCheck("db", conn.HealthCheck), nil
}

func (a *app) connect(ctx context.Context, conn connector.Connector) error {
	if err := conn.Connect(ctx); err != nil {
		_ = conn.Close()
		return xerrors.Wrapf(err, "connect %s", conn.Name())
	}
	a.onClose(func(context.Context) error { return conn.Close() })
	return nil
}

func (a *app) onClose(fn func(ctx context.Context) error) {
	a.closers = append(a.closers, fn)
}

// run 阻塞直到 ctx 取消或服务出错，同时跟随配置热更新调整日志级别
func (a *app) run(ctx context.Context, loader config.Loader) error {
	if loader != nil {
		a.watchLogLevel(ctx, loader)
	}
	a.logger.Info("idforge started",
		clog.Int64("worker_id", a.node.WorkerID()),
		clog.String("method", a.node.Method()),
		clog.String("addr", a.cfg.Server.Addr),
	)
	return a.server.Run(ctx)
}

func (a *app) watchLogLevel(ctx context.Context, loader config.Loader) {
	ch, err := loader.Watch(ctx, "log.level")
	if err != nil {
		a.logger.Warn("watch log level failed", clog.Error(err))
		return
	}
	go func() {
		for event := range ch {
			s, _ := event.Value.(string)
			level, err := clog.ParseLevel(s)
			if err != nil {
				a.logger.Warn("ignore invalid log level", clog.String("level", s))
				continue
			}
			if err := a.logger.SetLevel(level); err == nil {
				a.logger.Info("log level changed", clog.String("level", s))
			}
		}
	}()
}

// close 逆序关闭所有组件，汇总错误
func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return xerrors.Combine(errs...)
}
