/*
Package main 提供 AgentWeaver 编排服务的程序入口。

# 概述

cmd/agentweaver 加载 YAML / 环境变量配置，构建 agentweaver.Orchestrator，
并在指标端口上暴露 /metrics 与 /health。程序本身不内置任何 Worker，
Worker 由嵌入方通过 Orchestrator.RegisterWorker 注册。

# 子命令

  - serve：启动编排器，收到 SIGINT/SIGTERM 后优雅关闭
  - health：请求 /health，非 200 时以非零状态退出
  - version：打印构建时注入的 Version、BuildTime、GitCommit
*/
package main
