/*
Package types 提供 agentweaver 编排层的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 agent、workflow、
collaboration 等上层模块提供统一的数据契约，以避免循环依赖。

# 核心类型

  - Capability / CapabilitySet: 能力词汇表与集合运算（子集判定）
  - Task / TaskDescriptor: 任务记录、提交描述符与状态转换
  - Priority / TaskStatus: 任务优先级与生命周期状态
  - Error / ErrorCode: 结构化错误体系，含 Retryable 标记

# 主要能力

  - 能力匹配：CapabilitySet.ContainsAll，空需求恒为真
  - 任务转换：Task.Assign / Complete / Fail，非法转换返回 ErrInvalidTransition
  - 错误工具链：NewError / WithCause / IsRetryable / GetErrorCode / IsErrorCode
*/
package types
