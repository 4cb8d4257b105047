/*
包 metrics 提供基于 Prometheus 的编排层指标采集。

# 概述

Collector 通过 promauto.With 注册到调用方提供的 Registerer，
测试使用独立的 prometheus.NewRegistry 避免全局冲突。
Collector 同时实现调度、工作流与消息三个组件的指标钩子接口。

# 主要能力

  - 调度指标：提交结果计数、完成计数与耗时、队列深度、各状态 Worker 数。
  - 工作流指标：按终态统计的运行次数与耗时、路由决策、改派次数。
  - 消息指标：按类型统计的投递数、广播扇出与未投递副本。
  - 清理指标：每个 Pruner 删除的记录数。
  - 数据库指标：活跃/空闲连接数。
*/
package metrics
