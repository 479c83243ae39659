package connector

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewSQLite 创建 SQLite 连接器，内存库请使用 "file::memory:?cache=shared"
func NewSQLite(cfg *SQLiteConfig, opts ...Option) (DatabaseConnector, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	path := cfg.Path
	return newGormConnector(cfg.Name, "sqlite", func() gorm.Dialector {
		return sqlite.Open(path)
	}, nil, applyOptions(opts)), nil
}
