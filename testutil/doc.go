/*
Package testutil 提供 AgentWeaver 测试的共享工具和辅助函数。

# 概述

testutil 包为调度器、工作流引擎与编排器的测试提供统一的辅助能力，
避免各包重复实现相似的测试基础设施。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 断言工具: AssertJSONEqual / AssertTaskStatus
  - 异步断言: AssertEventuallyTrue / WaitFor / WaitForChannel
  - 数据工具: MustJSON / MustParseJSON

# 子包

  - testutil/mocks: MockWorker，支持 Builder 模式、错误注入、延迟与调用记录
  - testutil/fixtures: 任务描述符、工作流输入、分析结果与消息样例

# 使用示例

	ctx := testutil.TestContext(t)
	analyzer := mocks.NewMockWorker("text_analyzer", types.CapabilityTextAnalysis).
		WithResult(fixtures.PositiveAnalysis())
	o.RegisterWorker(analyzer)
	state := o.RunWorkflow(ctx, fixtures.WorkflowInput("great"), "t1")
*/
package testutil
