/*
包 persistence 提供编排层的检查点与消息归档存储抽象及多后端实现。

# 概述

调度器与工作流引擎在每次状态变化后把快照写入 CheckpointStore，
消息中心把每条已投递消息追加到 MessageLog。核心逻辑从不假设写入
是同步持久的：写入失败只记录日志，不影响编排流程。

# 核心接口

  - Store: 所有存储的基础接口，提供 Close 和 Ping 健康检查。
  - CheckpointStore: 不透明的 key → blob 存储（Save / Load / Delete / List）。
  - MessageLog: 追加写的消息归档，按 Agent 查询，支持按时间裁剪。

# 后端实现

  - Memory: 内存实现，适合开发与测试，重启后数据丢失。
  - File: 每个 key 一个文件，临时文件 + rename 原子写入。
  - Redis: String + Sorted Set 索引；消息归档使用按 Agent 的 List，LTRIM 限长。
  - SQL: 基于 gorm，支持 postgres / mysql / sqlite。

# 使用方式

	store, err := persistence.NewCheckpointStore(cfg, db)
	if err != nil {
	    return err
	}
	defer store.Close()
*/
package persistence
