// Package hierarchical 提供基于 Supervisor-Worker 模式的任务调度。
//
// Registry 按注册顺序保存 Worker 记录及其执行体；Supervisor 接收任务，
// 以能力子集判定为唯一条件选择第一个可用 Worker（注册顺序，不做负载均衡、
// 不按优先级排序），无匹配时进入 FIFO 队列。任何 Worker 释放时（完成、
// 注册、故障恢复、重新上线）队列都会在同一次调用内重新处理。
//
// 分配簿记在单个互斥锁内完成，Worker 执行体在锁外的执行池上运行，
// 每次调用都携带由 TaskTimeout 决定截止时间的 context。
package hierarchical
