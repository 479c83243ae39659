package db

import "github.com/ceyewan/idforge/xerrors"

var (
	// ErrConnectorRequired 未提供数据库连接器
	ErrConnectorRequired = xerrors.New("db: database connector is required")

	// ErrIDGeneratorRequired 启用自动主键或分片时未提供 ID 生成器
	ErrIDGeneratorRequired = xerrors.New("db: id generator is required")

	// ErrDriverMismatch 配置的 Driver 与连接器方言不一致
	ErrDriverMismatch = xerrors.New("db: driver does not match connector dialect")

	// ErrConnectorInUse 连接器已被另一个启用自动主键或分片的 db 组件占用
	ErrConnectorInUse = xerrors.New("db: connector already used by another db component")

	// ErrUnsupportedDialect 当前方言不支持该操作
	ErrUnsupportedDialect = xerrors.New("db: unsupported dialect")
)
