package testkit

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ceyewan/idforge/connector"
)

// NewSQLiteConnector 返回连接到独立内存库的 SQLite 连接器。
// 每次调用使用不同的库名，测试之间互不干扰
func NewSQLiteConnector(t *testing.T) connector.DatabaseConnector {
	t.Helper()
	cfg := &connector.SQLiteConfig{
		Name: "test-sqlite",
		Path: fmt.Sprintf("file:%s?mode=memory&cache=shared", NewID()),
	}
	conn, err := connector.NewSQLite(cfg, connector.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to create sqlite connector")
	require.NoError(t, conn.Connect(context.Background()), "failed to connect to sqlite")
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
