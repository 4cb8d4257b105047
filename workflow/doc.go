// Package workflow 实现带故障恢复的条件工作流。
//
// 一次运行从 supervisor 节点开始，经 content_analyzer 得到路由信号，
// 再由 conditional_router 按策略（情感、内容类型、置信度）选择处理节点，
// 最终到达唯一的终止节点 workflow_finalizer。
//
// Worker 故障由 FailureManager 记录，所需能力从共享的 Worker 目录读取。
// 错误路由在重路由预算内进入 agent_failure_recovery，为该能力指定替补并从失败节点重新进入；
// 替补只写入本次运行的替换表，不影响其他运行。预算耗尽或没有替补时进入 error_handler。
//
// 节点转换受静态转换表约束，每个节点执行后可写入检查点，Resume 从检查点继续运行。
package workflow
