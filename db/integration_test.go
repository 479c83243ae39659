//go:build integration

package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/idforge/idgen"
	"github.com/ceyewan/idforge/testkit"
)

type shardedOrder struct {
	ID     int64 `gorm:"primaryKey;autoIncrement:false"`
	UserID int64
	Amount int
}

func (shardedOrder) TableName() string { return "orders" }

func TestPostgres_InstallTimestampID(t *testing.T) {
	conn := testkit.NewPostgreSQLConnector(t)
	database, err := New(&Config{DisableAutoID: true}, WithConnector(conn), WithLogger(testkit.NewLogger()))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, database.InstallTimestampID(ctx, 1000, 0))
	// 重复安装是幂等的
	require.NoError(t, database.InstallTimestampID(ctx, 1000, 0))

	var first, second int64
	require.NoError(t, database.DB(ctx).Raw("SELECT timestamp_id('events')").Scan(&first).Error)
	require.NoError(t, database.DB(ctx).Raw("SELECT timestamp_id('events')").Scan(&second).Error)
	assert.Greater(t, second, first)
	assert.Equal(t, int64(1000), idgen.WorkerIDOf(first))

	var passthrough int64
	require.NoError(t, database.DB(ctx).Raw("SELECT timestamp_id('events', 42)").Scan(&passthrough).Error)
	assert.Equal(t, int64(42), passthrough)

	// 作为列默认值使用
	require.NoError(t, database.DB(ctx).Exec(
		"CREATE TABLE events (id bigint PRIMARY KEY DEFAULT timestamp_id('events'), name text)").Error)
	require.NoError(t, database.DB(ctx).Exec("INSERT INTO events (name) VALUES ('a'), ('b')").Error)
	var ids []int64
	require.NoError(t, database.DB(ctx).Raw("SELECT id FROM events ORDER BY id").Scan(&ids).Error)
	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])

	err = database.InstallTimestampID(ctx, 1024, 0)
	assert.ErrorIs(t, err, idgen.ErrInvalidWorkerID)
}

func TestPostgres_ShardingWithSnowflakeKeys(t *testing.T) {
	conn := testkit.NewPostgreSQLConnector(t)
	ctx := context.Background()

	// 物理分表需提前建好
	for _, suffix := range []string{"_0", "_1", "_2", "_3"} {
		require.NoError(t, conn.GetClient().Exec(
			"CREATE TABLE orders"+suffix+" (id bigint PRIMARY KEY, user_id bigint, amount int)").Error)
	}

	sf, err := idgen.NewSnowflake(3)
	require.NoError(t, err)
	database, err := New(&Config{
		Sharding: &ShardingRule{ShardingKey: "user_id", NumberOfShards: 4, Tables: []string{"orders"}},
	}, WithConnector(conn), WithIDGenerator(sf), WithLogger(testkit.NewLogger()))
	require.NoError(t, err)

	for userID := int64(1); userID <= 8; userID++ {
		o := shardedOrder{UserID: userID, Amount: int(userID) * 10}
		require.NoError(t, database.DB(ctx).Create(&o).Error)
		assert.Equal(t, int64(3), idgen.WorkerIDOf(o.ID))
	}

	var got []shardedOrder
	require.NoError(t, database.DB(ctx).Where("user_id = ?", 5).Find(&got).Error)
	require.Len(t, got, 1)
	assert.Equal(t, 50, got[0].Amount)

	var shardCount int64
	require.NoError(t, conn.GetClient().Raw("SELECT count(*) FROM orders_1").Scan(&shardCount).Error)
	assert.Equal(t, int64(2), shardCount, "user_id 1 与 5 落在 orders_1")
}

func TestMySQL_AutoID(t *testing.T) {
	conn := testkit.NewMySQLConnector(t)
	sf, err := idgen.NewSnowflake(8)
	require.NoError(t, err)
	database, err := New(nil, WithConnector(conn), WithIDGenerator(sf), WithLogger(testkit.NewLogger()))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, database.DB(ctx).AutoMigrate(&order{}))
	o := order{UserID: 1, Amount: 5}
	require.NoError(t, database.DB(ctx).Create(&o).Error)
	assert.Equal(t, int64(8), idgen.WorkerIDOf(o.ID))

	err = database.InstallTimestampID(ctx, 1, 0)
	assert.ErrorIs(t, err, ErrUnsupportedDialect)
}
