package connector

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewPostgreSQL 创建 PostgreSQL 连接器
func NewPostgreSQL(cfg *PostgreSQLConfig, opts ...Option) (DatabaseConnector, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	dsn := cfg.dsn()
	return newGormConnector(cfg.Name, "postgres", func() gorm.Dialector {
		return postgres.Open(dsn)
	}, &cfg.PoolConfig, applyOptions(opts)), nil
}
