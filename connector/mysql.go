package connector

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// NewMySQL 创建 MySQL 连接器
func NewMySQL(cfg *MySQLConfig, opts ...Option) (DatabaseConnector, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	dsn := cfg.dsn()
	return newGormConnector(cfg.Name, "mysql", func() gorm.Dialector {
		return mysql.Open(dsn)
	}, &cfg.PoolConfig, applyOptions(opts)), nil
}
