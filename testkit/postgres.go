package testkit

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/ceyewan/idforge/connector"
)

// NewPostgreSQLConnector 启动 PostgreSQL 容器并返回已连接的连接器
func NewPostgreSQLConnector(t *testing.T) connector.DatabaseConnector {
	t.Helper()
	requireDocker(t)
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:17-alpine",
		postgres.WithDatabase("idforge"),
		postgres.WithUsername("idforge"),
		postgres.WithPassword("idforge"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	port, err := strconv.Atoi(mapped.Port())
	require.NoError(t, err)

	conn, err := connector.NewPostgreSQL(&connector.PostgreSQLConfig{
		Name:     "test-postgres",
		Host:     host,
		Port:     port,
		Username: "idforge",
		Password: "idforge",
		Database: "idforge",
	}, connector.WithLogger(NewLogger()))
	require.NoError(t, err)
	require.NoError(t, conn.Connect(ctx), "failed to connect to postgres")
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
