// Package testkit 为 idforge 的测试提供公共依赖：日志与外部服务连接器。
//
// Redis 与 Etcd 优先使用环境变量指定的实例（IDFORGE_TEST_REDIS_ADDR、IDFORGE_TEST_ETCD_ENDPOINTS），
// 未设置时通过 testcontainers 启动容器；Docker 不可用时跳过测试。
package testkit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"

	"github.com/ceyewan/idforge/clog"
)

// NewLogger 返回一个用于测试的 logger。
// 设置 IDFORGE_TEST_VERBOSE=1 时输出 debug 日志，否则静默
func NewLogger() clog.Logger {
	if os.Getenv("IDFORGE_TEST_VERBOSE") == "" {
		return clog.Discard()
	}
	logger, err := clog.New(clog.NewDevDefaultConfig("idforge"))
	if err != nil {
		return clog.Discard()
	}
	return logger
}

// NewContext 返回一个带有超时的测试上下文
func NewContext(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// NewID 返回一个唯一的测试 ID (UUID v4 前 8 位)，用于隔离 key 前缀、表名等
func NewID() string {
	return uuid.New().String()[0:8]
}

// requireDocker Docker 不可用时跳过当前测试
func requireDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
}
