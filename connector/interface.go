// Package connector 管理 idforge 依赖的外部连接：Redis、Etcd 与 SQL 数据库。
//
// NewXXX 只校验配置并创建连接器，Connect 时才真正建立连接。
// Connector 拥有底层连接的生命周期，组件（worker id 分配器、db）只借用客户端，不调用 Close。
//
//	conn, err := connector.NewRedis(&connector.RedisConfig{Addr: "127.0.0.1:6379"},
//		connector.WithLogger(logger), connector.WithTracing())
//	if err != nil {
//		return err
//	}
//	defer conn.Close()
//
//	if err := conn.Connect(ctx); err != nil {
//		return err
//	}
//	client := conn.GetClient()
package connector

import (
	"context"

	"github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"
	"gorm.io/gorm"
)

// Connector 定义所有连接器的通用行为，方法均并发安全
type Connector interface {
	// Connect 建立连接，幂等
	Connect(ctx context.Context) error

	// Close 关闭连接并释放资源，幂等
	Close() error

	// HealthCheck 主动探测连接，并更新 IsHealthy 的缓存结果
	HealthCheck(ctx context.Context) error

	// IsHealthy 返回最近一次探测的结果，不阻塞
	IsHealthy() bool

	// Name 返回连接器名称，用于日志和指标
	Name() string
}

// TypedConnector 提供类型安全的客户端访问
type TypedConnector[T any] interface {
	Connector

	// GetClient 返回底层客户端，Connect 之前或 Close 之后可能为 nil
	GetClient() T
}

// RedisConnector Redis 连接器
type RedisConnector interface {
	TypedConnector[*redis.Client]
}

// EtcdConnector Etcd 连接器
type EtcdConnector interface {
	TypedConnector[*clientv3.Client]
}

// DatabaseConnector 基于 GORM 的 SQL 连接器（MySQL / PostgreSQL / SQLite）
type DatabaseConnector interface {
	TypedConnector[*gorm.DB]

	// Dialect 返回 GORM 方言名称："mysql"、"postgres" 或 "sqlite"
	Dialect() string
}
