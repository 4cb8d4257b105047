// Package collaboration 提供 Agent 之间的进程内点对点消息。
//
// Hub 为每个 Agent 维护收件箱、发件箱和已处理 id 集合。直发消息会自动注册双方；
// 广播为除发送者外的每个已注册 Agent 生成独立副本，副本共享会话 id。
// 收件箱读取按优先级（urgent > high > normal > low）再按时间排序，读取不会移除消息。
//
// 广播结果按 BroadcastPolicy 判定：best_effort 至少投递一个副本即成功，
// all_or_nothing 要求全部收件人都能接收，否则不投递任何副本。
//
// 已投递的副本可以归档到 persistence.MessageLog，也可以经 Bridge 发布到 NATS。
package collaboration
