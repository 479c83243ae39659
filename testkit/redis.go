package testkit

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/ceyewan/idforge/connector"
)

// EnvRedisAddr 指定已有 Redis 实例的环境变量
const EnvRedisAddr = "IDFORGE_TEST_REDIS_ADDR"

// NewRedisConfig 返回 Redis 测试配置，必要时启动容器
func NewRedisConfig(t *testing.T) *connector.RedisConfig {
	t.Helper()
	if addr := os.Getenv(EnvRedisAddr); addr != "" {
		return &connector.RedisConfig{Name: "test-redis", Addr: addr, DB: 1}
	}

	requireDocker(t)
	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "failed to start redis container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return &connector.RedisConfig{
		Name: "test-redis",
		Addr: fmt.Sprintf("%s:%s", host, port.Port()),
	}
}

// NewRedisConnector 返回已连接的 Redis 连接器，生命周期由 t.Cleanup 管理
func NewRedisConnector(t *testing.T) connector.RedisConnector {
	t.Helper()
	conn, err := connector.NewRedis(NewRedisConfig(t), connector.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to create redis connector")
	require.NoError(t, conn.Connect(context.Background()), "failed to connect to redis")
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
