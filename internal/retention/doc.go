// Package retention 按 cron 计划清理编排层的历史数据。
//
// 路由历史按单次工作流封顶，其余历史（失败记录、消息、终态任务、消息日志）
// 都可能无限增长，由 Sweeper 周期性调用各组件的 Prune。
package retention
