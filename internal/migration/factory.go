package migration

import (
	"fmt"
	"strings"

	"github.com/BaSui01/agentweaver/config"
)

// NewMigratorFromConfig 按应用配置的数据库段创建迁移器
func NewMigratorFromConfig(cfg *config.Config) (*DefaultMigrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	return NewMigratorFromDatabaseConfig(cfg.Database)
}

// NewMigratorFromDatabaseConfig 复用 DatabaseConfig.DSN 构造连接串
func NewMigratorFromDatabaseConfig(dbCfg config.DatabaseConfig) (*DefaultMigrator, error) {
	dbType, err := ParseDatabaseType(dbCfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("invalid database type: %w", err)
	}
	dbCfg.Driver = string(dbType)
	return NewMigrator(&Config{
		DatabaseType: dbType,
		DatabaseURL:  DatabaseURL(dbCfg),
	})
}

// NewMigratorFromURL 直接使用方言与连接串创建迁移器
func NewMigratorFromURL(dbType, dbURL string) (*DefaultMigrator, error) {
	dt, err := ParseDatabaseType(dbType)
	if err != nil {
		return nil, err
	}
	return NewMigrator(&Config{
		DatabaseType: dt,
		DatabaseURL:  dbURL,
	})
}

// DatabaseURL 迁移用连接串
// mysql 需要 multiStatements 才能执行多语句迁移文件
func DatabaseURL(dbCfg config.DatabaseConfig) string {
	dsn := dbCfg.DSN()
	if dbCfg.Driver == "mysql" && !strings.Contains(dsn, "multiStatements=") {
		dsn += "&multiStatements=true"
	}
	return dsn
}
