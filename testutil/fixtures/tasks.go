// Package fixtures 提供调度、工作流与消息测试的样例数据。
package fixtures

import (
	"github.com/BaSui01/agentweaver/agent/collaboration"
	"github.com/BaSui01/agentweaver/types"
)

// =============================================================================
// 📋 任务描述符
// =============================================================================

// AnalysisTask 需要 text_analysis 的任务
func AnalysisTask(title string) types.TaskDescriptor {
	return types.TaskDescriptor{
		Title:                title,
		Description:          "analyze incoming text",
		RequiredCapabilities: []string{string(types.CapabilityTextAnalysis)},
		Priority:             "medium",
		Parameters:           map[string]any{"text": "The service was great"},
	}
}

// ProcessingTask 需要 data_processing 的任务
func ProcessingTask(title string) types.TaskDescriptor {
	return types.TaskDescriptor{
		Title:                title,
		RequiredCapabilities: []string{string(types.CapabilityDataProcessing)},
		Priority:             "high",
	}
}

// UnmatchableTask 没有任何 Worker 能满足的任务，用于排队场景
func UnmatchableTask() types.TaskDescriptor {
	return types.TaskDescriptor{
		Title:                "needs everything",
		RequiredCapabilities: []string{"planning", "research", "coordination", "api_client"},
	}
}

// =============================================================================
// 🔀 工作流输入与分析结果
// =============================================================================

// WorkflowInput 工作流初始输入
func WorkflowInput(text string) map[string]any {
	return map[string]any{"text": text}
}

// AnalyzerOutput 内容分析 Worker 的输出
func AnalyzerOutput(sentiment float64, contentType string, confidence float64) map[string]any {
	return map[string]any{
		"sentiment_score": sentiment,
		"content_type":    contentType,
		"confidence":      confidence,
	}
}

// PositiveAnalysis 路由到正面处理器的分析结果
func PositiveAnalysis() map[string]any { return AnalyzerOutput(0.8, "general", 0.95) }

// NegativeAnalysis 路由到负面处理器的分析结果
func NegativeAnalysis() map[string]any { return AnalyzerOutput(-0.7, "general", 0.9) }

// =============================================================================
// 💬 消息
// =============================================================================

// Request 点对点请求消息
func Request(from, to, subject string) collaboration.Message {
	return collaboration.NewMessage(from, to, collaboration.MessageTypeRequest, subject, map[string]any{"body": subject})
}

// Broadcast 广播消息
func Broadcast(from, subject string) collaboration.Message {
	return collaboration.NewMessage(from, collaboration.BroadcastRecipient, collaboration.MessageTypeBroadcast, subject, nil)
}
