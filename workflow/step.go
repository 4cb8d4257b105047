package workflow

import "github.com/BaSui01/agentweaver/types"

// Step 工作流节点
type Step string

const (
	StepStart             Step = "start"
	StepSupervisor        Step = "supervisor"
	StepContentAnalyzer   Step = "content_analyzer"
	StepConditionalRouter Step = "conditional_router"

	// 情感路由输出
	StepPositiveProcessor Step = "positive_sentiment_processor"
	StepNegativeProcessor Step = "negative_sentiment_processor"
	StepNeutralProcessor  Step = "neutral_sentiment_processor"

	// 内容类型路由输出
	StepTechnicalAnalysis Step = "technical_analysis_agent"
	StepMarketingAnalysis Step = "marketing_analysis_agent"
	StepFeedbackAnalysis  Step = "feedback_analysis_agent"
	StepGeneralAnalysis   Step = "general_analysis_agent"

	// 置信度路由输出
	StepHighConfidence   Step = "high_confidence_processor"
	StepMediumConfidence Step = "medium_confidence_processor"
	StepManualReview     Step = "manual_review_processor"

	StepFailureRecovery Step = "agent_failure_recovery"
	StepErrorHandler    Step = "error_handler"
	StepFinalizer       Step = "workflow_finalizer"
)

// processorRoutes 路由输出节点及其路由标签
var processorRoutes = map[Step]string{
	StepPositiveProcessor: "positive",
	StepNegativeProcessor: "negative",
	StepNeutralProcessor:  "neutral",
	StepTechnicalAnalysis: "technical",
	StepMarketingAnalysis: "marketing",
	StepFeedbackAnalysis:  "customer_feedback",
	StepGeneralAnalysis:   "general",
	StepHighConfidence:    "high_confidence",
	StepMediumConfidence:  "medium_confidence",
	StepManualReview:      "manual_review",
}

// transitions 静态转换表
var transitions = buildTransitions()

func buildTransitions() map[Step][]Step {
	routerTargets := []Step{StepFailureRecovery, StepErrorHandler}
	table := map[Step][]Step{
		StepStart:           {StepSupervisor, StepErrorHandler},
		StepSupervisor:      {StepContentAnalyzer, StepErrorHandler},
		StepContentAnalyzer: {StepConditionalRouter, StepFailureRecovery, StepErrorHandler},
		StepFailureRecovery: {StepContentAnalyzer, StepConditionalRouter, StepErrorHandler},
		StepErrorHandler:    {StepFinalizer},
		StepFinalizer:       {},
	}
	for step := range processorRoutes {
		routerTargets = append(routerTargets, step)
		table[step] = []Step{StepFinalizer, StepFailureRecovery, StepErrorHandler}
	}
	table[StepConditionalRouter] = routerTargets
	return table
}

// CanTransition 检查节点转换是否合法
func CanTransition(from, to Step) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsProcessor 是否为路由输出节点
func (s Step) IsProcessor() bool {
	_, ok := processorRoutes[s]
	return ok
}

// IsTerminal 终止节点
func (s Step) IsTerminal() bool { return s == StepFinalizer }

// Route 路由输出节点的标签，如 positive / technical
func (s Step) Route() string { return processorRoutes[s] }

// RequiredCapability 节点执行 Worker 所需的能力，无 Worker 的节点返回空
func (s Step) RequiredCapability() types.Capability {
	switch {
	case s == StepContentAnalyzer:
		return types.CapabilityTextAnalysis
	case s.IsProcessor():
		return types.CapabilityDataProcessing
	default:
		return ""
	}
}

// resumeStep 恢复后重新进入的节点
// 处理器失败时回到条件路由
func resumeStep(failed Step) Step {
	if failed == StepContentAnalyzer {
		return StepContentAnalyzer
	}
	return StepConditionalRouter
}
