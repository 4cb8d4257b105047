// Package config 提供 AgentWeaver 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量 的顺序叠加，
// 环境变量形如 AGENTWEAVER_<SECTION>_<FIELD>。
// 各段可通过转换方法得到调度、工作流、消息和存储组件自己的配置类型。
package config
