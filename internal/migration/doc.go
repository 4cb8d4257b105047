/*
Package migration 管理 SQL 检查点存储的表结构，基于 golang-migrate。

# 概述

迁移文件按方言内嵌在 migrations/{postgres,mysql,sqlite} 下，
创建 agentweaver_checkpoints 表及其 updated_at 索引。表结构与
persistence.SQLCheckpointStore 的 gorm 模型一致，因此先执行迁移
再启动服务时，gorm 的自动迁移不会产生额外变更。

# 核心类型

  - Migrator / DefaultMigrator：Up/Down/DownAll/Steps/Goto/Force/Version/Status/Info
  - CLI：供 agentweaver migrate 子命令使用的格式化输出
  - AvailableMigrations：列出内嵌迁移文件

# 连接

NewMigratorFromDatabaseConfig 复用 config.DatabaseConfig.DSN。
sqlite 通过纯 Go 的 glebarez/go-sqlite 驱动打开，与运行时的 gorm 驱动相同。
*/
package migration
