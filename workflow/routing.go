package workflow

import (
	"time"

	"go.uber.org/zap"
)

// RoutingStrategy 路由策略
type RoutingStrategy string

const (
	StrategySentiment   RoutingStrategy = "sentiment_based"
	StrategyContentType RoutingStrategy = "content_type_based"
	StrategyConfidence  RoutingStrategy = "confidence_based"
	StrategyError       RoutingStrategy = "error_based"
)

// 路由阈值
const (
	PositiveThreshold         = 0.7
	NegativeThreshold         = -0.3
	HighConfidenceThreshold   = 0.9
	MediumConfidenceThreshold = 0.6
)

// Strategies 全部策略
func Strategies() []RoutingStrategy {
	return []RoutingStrategy{StrategySentiment, StrategyContentType, StrategyConfidence, StrategyError}
}

// RouteFunc 纯函数路由：只读状态，返回下一个节点
type RouteFunc func(state *WorkflowState) Step

// RouteBySentiment ≥0.7 正面，≤-0.3 负面，其余中性；缺失视为 0
func RouteBySentiment(state *WorkflowState) Step {
	score := state.Signals.Sentiment()
	switch {
	case score >= PositiveThreshold:
		return StepPositiveProcessor
	case score <= NegativeThreshold:
		return StepNegativeProcessor
	default:
		return StepNeutralProcessor
	}
}

// RouteByContentType 精确匹配，默认 general
func RouteByContentType(state *WorkflowState) Step {
	switch state.Signals.ContentType {
	case "technical":
		return StepTechnicalAnalysis
	case "marketing":
		return StepMarketingAnalysis
	case "customer_feedback":
		return StepFeedbackAnalysis
	default:
		return StepGeneralAnalysis
	}
}

// RouteByConfidence ≥0.9 高，≥0.6 中，其余人工复核；缺失视为 0
func RouteByConfidence(state *WorkflowState) Step {
	c := state.Signals.ConfidenceValue()
	switch {
	case c >= HighConfidenceThreshold:
		return StepHighConfidence
	case c >= MediumConfidenceThreshold:
		return StepMediumConfidence
	default:
		return StepManualReview
	}
}

// RouteByError 有失败 Worker 且预算未用尽时恢复，否则进入错误处理
func RouteByError(state *WorkflowState) Step {
	if state.Error.FailedWorkerID != "" && state.Recovery.RerouteCount < state.Recovery.MaxReroutes {
		return StepFailureRecovery
	}
	return StepErrorHandler
}

var strategyFuncs = map[RoutingStrategy]RouteFunc{
	StrategySentiment:   RouteBySentiment,
	StrategyContentType: RouteByContentType,
	StrategyConfidence:  RouteByConfidence,
	StrategyError:       RouteByError,
}

// =============================================================================
// Router
// =============================================================================

// Router 条件路由器
// Decide 无副作用；Route 额外把决策写入状态的路由历史
type Router struct {
	historyMax int
	logger     *zap.Logger
}

// NewRouter 创建路由器，historyMax <= 0 表示不裁剪
func NewRouter(historyMax int, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{historyMax: historyMax, logger: logger.With(zap.String("component", "router"))}
}

// Decide 计算下一个节点
// 状态带错误时总是走错误路由；未知策略按情感路由处理
func (r *Router) Decide(state *WorkflowState, strategy RoutingStrategy) (Step, RoutingStrategy) {
	if state.Error.Occurred {
		return RouteByError(state), StrategyError
	}
	fn, ok := strategyFuncs[strategy]
	if !ok {
		strategy = StrategySentiment
		fn = RouteBySentiment
	}
	return fn(state), strategy
}

// Route 决策并在推进前追加路由历史
func (r *Router) Route(state *WorkflowState, strategy RoutingStrategy) Step {
	decision, used := r.Decide(state, strategy)

	state.RoutingHistory = append(state.RoutingHistory, RoutingEntry{
		Timestamp: time.Now(),
		Strategy:  used,
		Decision:  decision,
		Signals:   state.Signals.clone(),
		Error:     state.Error.Occurred,
	})
	if r.historyMax > 0 && len(state.RoutingHistory) > r.historyMax {
		drop := len(state.RoutingHistory) - r.historyMax
		state.RoutingHistory = append(state.RoutingHistory[:0:0], state.RoutingHistory[drop:]...)
	}
	state.RoutingDecision = decision

	r.logger.Debug("routing decision",
		zap.String("workflow_id", state.WorkflowID),
		zap.String("strategy", string(used)),
		zap.String("decision", string(decision)),
	)
	return decision
}
