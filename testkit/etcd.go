package testkit

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tcetcd "github.com/testcontainers/testcontainers-go/modules/etcd"

	"github.com/ceyewan/idforge/connector"
)

// EnvEtcdEndpoints 指定已有 Etcd 实例的环境变量，多个地址用逗号分隔
const EnvEtcdEndpoints = "IDFORGE_TEST_ETCD_ENDPOINTS"

// NewEtcdConfig 返回 Etcd 测试配置，必要时启动容器
func NewEtcdConfig(t *testing.T) *connector.EtcdConfig {
	t.Helper()
	if endpoints := os.Getenv(EnvEtcdEndpoints); endpoints != "" {
		return &connector.EtcdConfig{
			Name:        "test-etcd",
			Endpoints:   strings.Split(endpoints, ","),
			DialTimeout: 5 * time.Second,
		}
	}

	requireDocker(t)
	ctx := context.Background()
	container, err := tcetcd.Run(ctx, "quay.io/coreos/etcd:v3.5.9")
	require.NoError(t, err, "failed to start etcd container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "2379")
	require.NoError(t, err)

	return &connector.EtcdConfig{
		Name:        "test-etcd",
		Endpoints:   []string{fmt.Sprintf("%s:%s", host, port.Port())},
		DialTimeout: 5 * time.Second,
	}
}

// NewEtcdConnector 返回已连接的 Etcd 连接器，生命周期由 t.Cleanup 管理
func NewEtcdConnector(t *testing.T) connector.EtcdConnector {
	t.Helper()
	conn, err := connector.NewEtcd(NewEtcdConfig(t), connector.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to create etcd connector")
	require.NoError(t, conn.Connect(context.Background()), "failed to connect to etcd")
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
