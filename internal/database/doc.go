/*
包 database 提供 SQL 检查点存储使用的 GORM 连接管理。

# 核心类型

  - PoolManager：持有 GORM DB 与底层 sql.DB，负责连接池参数、
    后台探活与关闭。探活成功时通过 StatsRecorder 上报连接数。
  - PoolConfig：最大空闲/打开连接数、连接生命周期、健康检查间隔。

# 驱动

Open 按 config.DatabaseConfig.Driver 选择方言：postgres、mysql，
以及纯 Go 实现的 sqlite（github.com/glebarez/sqlite）。
*/
package database
