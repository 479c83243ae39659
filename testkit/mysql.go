package testkit

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/ceyewan/idforge/connector"
)

// NewMySQLConnector 启动 MySQL 容器并返回已连接的连接器
func NewMySQLConnector(t *testing.T) connector.DatabaseConnector {
	t.Helper()
	requireDocker(t)
	ctx := context.Background()

	container, err := mysql.Run(ctx, "mysql:8.0",
		mysql.WithDatabase("idforge"),
		mysql.WithUsername("idforge"),
		mysql.WithPassword("idforge"),
	)
	require.NoError(t, err, "failed to start mysql container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, "3306")
	require.NoError(t, err)
	port, err := strconv.Atoi(mapped.Port())
	require.NoError(t, err)

	conn, err := connector.NewMySQL(&connector.MySQLConfig{
		Name:     "test-mysql",
		Host:     host,
		Port:     port,
		Username: "idforge",
		Password: "idforge",
		Database: "idforge",
	}, connector.WithLogger(NewLogger()))
	require.NoError(t, err)

	// 端口就绪后 mysqld 仍可能在初始化，轮询直到可连接
	waitCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	for {
		if err = conn.Connect(waitCtx); err == nil {
			break
		}
		select {
		case <-waitCtx.Done():
			require.NoError(t, err, "timeout waiting for mysql to be ready")
		case <-time.After(2 * time.Second):
		}
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
