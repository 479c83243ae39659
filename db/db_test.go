package db

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"gorm.io/gorm"

	"github.com/ceyewan/idforge/idgen"
	"github.com/ceyewan/idforge/testkit"
	"github.com/ceyewan/idforge/xerrors"
)

type order struct {
	ID     int64 `gorm:"primaryKey;autoIncrement:false"`
	UserID int64
	Amount int
}

type account struct {
	ID   uint64 `gorm:"primaryKey;autoIncrement:false"`
	Name string `gorm:"size:64"`
}

// legacy 使用 uint 主键，不由 db 组件填充
type legacy struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

// stubGenerator 依次返回递增的 ID，可注入错误
type stubGenerator struct {
	next atomic.Int64
	err  error
}

func (g *stubGenerator) NextID() (int64, error) {
	if g.err != nil {
		return 0, g.err
	}
	return g.next.Add(1) + 1_000_000, nil
}

func newTestDB(t *testing.T, cfg *Config, gen idgen.IDGenerator, opts ...Option) DB {
	t.Helper()
	opts = append([]Option{
		WithConnector(testkit.NewSQLiteConnector(t)),
		WithIDGenerator(gen),
		WithLogger(testkit.NewLogger()),
	}, opts...)
	database, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	require.NoError(t, database.DB(context.Background()).AutoMigrate(&order{}, &account{}, &legacy{}))
	return database
}

func TestNew_Validation(t *testing.T) {
	conn := testkit.NewSQLiteConnector(t)
	gen := &stubGenerator{}

	_, err := New(nil)
	assert.ErrorIs(t, err, ErrConnectorRequired)

	_, err = New(nil, WithConnector(conn))
	assert.ErrorIs(t, err, ErrIDGeneratorRequired)

	_, err = New(&Config{DisableAutoID: true}, WithConnector(conn))
	assert.NoError(t, err, "关闭自动主键后不需要生成器")

	_, err = New(&Config{Driver: DriverPostgres}, WithConnector(conn), WithIDGenerator(gen))
	assert.ErrorIs(t, err, ErrDriverMismatch)

	_, err = New(&Config{Driver: "oracle"}, WithConnector(conn), WithIDGenerator(gen))
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	_, err = New(&Config{LogLevel: "trace"}, WithConnector(conn), WithIDGenerator(gen))
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	_, err = New(&Config{Sharding: &ShardingRule{NumberOfShards: 4, Tables: []string{"orders"}}},
		WithConnector(conn), WithIDGenerator(gen))
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	_, err = New(&Config{Sharding: &ShardingRule{ShardingKey: "user_id", Tables: []string{"orders"}}},
		WithConnector(conn), WithIDGenerator(gen))
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	database, err := New(&Config{}, WithConnector(conn), WithIDGenerator(gen))
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, database.Dialect())
}

func TestNew_ConnectorInUse(t *testing.T) {
	conn := testkit.NewSQLiteConnector(t)
	ctx := context.Background()

	first, err := New(nil, WithConnector(conn), WithIDGenerator(&stubGenerator{}))
	require.NoError(t, err)
	require.NoError(t, first.DB(ctx).AutoMigrate(&order{}))

	other, err := idgen.NewSnowflake(5)
	require.NoError(t, err)
	_, err = New(nil, WithConnector(conn), WithIDGenerator(other))
	assert.ErrorIs(t, err, ErrConnectorInUse)
	assert.Equal(t, "connector_in_use", xerrors.GetCode(err))

	// 不注册回调的组件可以共享连接
	plain, err := New(&Config{DisableAutoID: true}, WithConnector(conn))
	require.NoError(t, err)
	require.NoError(t, plain.Close())

	// 第一个组件的主键仍来自它自己的生成器
	o := order{UserID: 1}
	require.NoError(t, first.DB(ctx).Create(&o).Error)
	assert.Equal(t, int64(1_000_001), o.ID)

	// 关闭后释放占用
	require.NoError(t, first.Close())
	second, err := New(nil, WithConnector(conn), WithIDGenerator(other))
	require.NoError(t, err)
	defer second.Close()

	o2 := order{UserID: 2}
	require.NoError(t, second.DB(ctx).Create(&o2).Error)
	assert.Equal(t, int64(5), idgen.WorkerIDOf(o2.ID))
}

func TestNew_ShardingRegisteredOnce(t *testing.T) {
	conn := testkit.NewSQLiteConnector(t)
	cfg := &Config{
		DisableAutoID: true,
		Sharding:      &ShardingRule{ShardingKey: "user_id", NumberOfShards: 2, Tables: []string{"orders"}},
	}

	first, err := New(cfg, WithConnector(conn), WithIDGenerator(&stubGenerator{}))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// 分片插件无法卸载，第二条规则不能被静默忽略
	_, err = New(cfg, WithConnector(conn), WithIDGenerator(&stubGenerator{}))
	assert.ErrorIs(t, err, ErrConnectorInUse)
}

func TestAutoID_Create(t *testing.T) {
	sf, err := idgen.NewSnowflake(17)
	require.NoError(t, err)
	database := newTestDB(t, nil, sf)
	ctx := context.Background()

	o := order{UserID: 7, Amount: 100}
	require.NoError(t, database.DB(ctx).Create(&o).Error)
	require.NotZero(t, o.ID)
	assert.Equal(t, int64(17), idgen.WorkerIDOf(o.ID))

	var fetched order
	require.NoError(t, database.DB(ctx).First(&fetched, o.ID).Error)
	assert.Equal(t, 100, fetched.Amount)

	a := account{Name: "alice"}
	require.NoError(t, database.DB(ctx).Create(&a).Error)
	assert.NotZero(t, a.ID)
	assert.Greater(t, int64(a.ID), o.ID, "后创建的记录 ID 更大")
}

func TestAutoID_KeepsExplicitID(t *testing.T) {
	database := newTestDB(t, nil, &stubGenerator{})
	ctx := context.Background()

	o := order{ID: 42, UserID: 1}
	require.NoError(t, database.DB(ctx).Create(&o).Error)
	assert.Equal(t, int64(42), o.ID)
}

func TestAutoID_Batch(t *testing.T) {
	gen := &stubGenerator{}
	database := newTestDB(t, nil, gen)
	ctx := context.Background()

	orders := []order{{UserID: 1}, {ID: 5, UserID: 2}, {UserID: 3}}
	require.NoError(t, database.DB(ctx).Create(&orders).Error)
	assert.Equal(t, int64(1_000_001), orders[0].ID)
	assert.Equal(t, int64(5), orders[1].ID)
	assert.Equal(t, int64(1_000_002), orders[2].ID)

	ptrs := []*account{{Name: "a"}, {Name: "b"}}
	require.NoError(t, database.DB(ctx).Create(&ptrs).Error)
	assert.Equal(t, uint64(1_000_003), ptrs[0].ID)
	assert.Equal(t, uint64(1_000_004), ptrs[1].ID)

	var count int64
	require.NoError(t, database.DB(ctx).Model(&order{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}

func TestAutoID_SkipsNonInt64Keys(t *testing.T) {
	gen := &stubGenerator{}
	database := newTestDB(t, nil, gen)

	l := legacy{Name: "auto increment"}
	require.NoError(t, database.DB(context.Background()).Create(&l).Error)
	assert.Equal(t, uint(1), l.ID, "uint 主键仍使用自增")
	assert.Zero(t, gen.next.Load())
}

func TestAutoID_GeneratorError(t *testing.T) {
	gen := &stubGenerator{err: idgen.ErrLeaseLost}
	database := newTestDB(t, nil, gen)
	ctx := context.Background()

	err := database.DB(ctx).Create(&order{UserID: 1}).Error
	assert.ErrorIs(t, err, idgen.ErrLeaseLost)

	var count int64
	require.NoError(t, database.DB(ctx).Model(&order{}).Count(&count).Error)
	assert.Zero(t, count, "生成失败时不应写入")
}

func TestAutoID_Disabled(t *testing.T) {
	database := newTestDB(t, &Config{DisableAutoID: true}, nil)
	ctx := context.Background()

	o := order{ID: 9, UserID: 1}
	require.NoError(t, database.DB(ctx).Create(&o).Error)
	assert.Equal(t, int64(9), o.ID)
}

func TestTransaction(t *testing.T) {
	database := newTestDB(t, nil, &stubGenerator{})
	ctx := context.Background()

	err := database.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		return tx.Create(&order{UserID: 1}).Error
	})
	require.NoError(t, err)

	rollback := errors.New("rollback")
	err = database.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		require.NoError(t, tx.Create(&order{UserID: 2}).Error)
		return rollback
	})
	assert.ErrorIs(t, err, rollback)

	var count int64
	require.NoError(t, database.DB(ctx).Model(&order{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestInstallTimestampID_UnsupportedDialect(t *testing.T) {
	database := newTestDB(t, nil, &stubGenerator{})
	err := database.InstallTimestampID(context.Background(), 1, 0)
	assert.ErrorIs(t, err, ErrUnsupportedDialect)
}

func TestTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	database := newTestDB(t, nil, &stubGenerator{}, WithTracer(tp))
	require.NoError(t, database.DB(context.Background()).Create(&order{UserID: 1}).Error)

	assert.NotEmpty(t, recorder.Ended(), "otelgorm 应记录 span")
}
