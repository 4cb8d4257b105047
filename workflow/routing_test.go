package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

func ptr(v float64) *float64 { return &v }

func stateWithSignals(sig Signals) *WorkflowState {
	s := NewWorkflowState(map[string]any{"text": "x"}, "t", DefaultMaxReroutes)
	s.Signals = sig
	return s
}

// --- 路由函数测试 ---

func TestRouteBySentiment(t *testing.T) {
	tests := []struct {
		name  string
		score *float64
		want  Step
	}{
		{"positive", ptr(0.8), StepPositiveProcessor},
		{"positive boundary", ptr(0.7), StepPositiveProcessor},
		{"negative", ptr(-0.5), StepNegativeProcessor},
		{"negative boundary", ptr(-0.3), StepNegativeProcessor},
		{"neutral", ptr(0.2), StepNeutralProcessor},
		{"missing", nil, StepNeutralProcessor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RouteBySentiment(stateWithSignals(Signals{SentimentScore: tt.score}))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRouteByContentType(t *testing.T) {
	tests := map[string]Step{
		"technical":         StepTechnicalAnalysis,
		"marketing":         StepMarketingAnalysis,
		"customer_feedback": StepFeedbackAnalysis,
		"Technical":         StepGeneralAnalysis,
		"":                  StepGeneralAnalysis,
	}
	for ct, want := range tests {
		assert.Equal(t, want, RouteByContentType(stateWithSignals(Signals{ContentType: ct})), ct)
	}
}

func TestRouteByConfidence(t *testing.T) {
	assert.Equal(t, StepHighConfidence, RouteByConfidence(stateWithSignals(Signals{Confidence: ptr(0.9)})))
	assert.Equal(t, StepMediumConfidence, RouteByConfidence(stateWithSignals(Signals{Confidence: ptr(0.6)})))
	assert.Equal(t, StepManualReview, RouteByConfidence(stateWithSignals(Signals{Confidence: ptr(0.59)})))
	assert.Equal(t, StepManualReview, RouteByConfidence(stateWithSignals(Signals{})))
}

func TestRouteByError(t *testing.T) {
	s := stateWithSignals(Signals{})
	assert.Equal(t, StepErrorHandler, RouteByError(s), "no failed worker")

	s.Error = ErrorInfo{Occurred: true, FailedWorkerID: "w1"}
	assert.Equal(t, StepFailureRecovery, RouteByError(s))

	s.Recovery.RerouteCount = s.Recovery.MaxReroutes
	assert.Equal(t, StepErrorHandler, RouteByError(s), "budget exhausted")
}

// --- Router 测试 ---

func TestRouter_ErrorOverridesStrategy(t *testing.T) {
	r := NewRouter(0, zap.NewNop())
	s := stateWithSignals(Signals{SentimentScore: ptr(0.9)})
	s.Error = ErrorInfo{Occurred: true, FailedWorkerID: "w1"}

	step, used := r.Decide(s, StrategySentiment)
	assert.Equal(t, StepFailureRecovery, step)
	assert.Equal(t, StrategyError, used)
}

func TestRouter_UnknownStrategyFallsBack(t *testing.T) {
	r := NewRouter(0, zap.NewNop())
	step, used := r.Decide(stateWithSignals(Signals{SentimentScore: ptr(-0.9)}), "random")
	assert.Equal(t, StepNegativeProcessor, step)
	assert.Equal(t, StrategySentiment, used)
}

func TestRouter_RouteAppendsAndTrimsHistory(t *testing.T) {
	r := NewRouter(2, zap.NewNop())
	s := stateWithSignals(Signals{SentimentScore: ptr(0.1), ContentType: "technical", Confidence: ptr(0.95)})

	r.Route(s, StrategySentiment)
	r.Route(s, StrategyContentType)
	got := r.Route(s, StrategyConfidence)

	assert.Equal(t, StepHighConfidence, got)
	assert.Equal(t, StepHighConfidence, s.RoutingDecision)
	require.Len(t, s.RoutingHistory, 2)
	assert.Equal(t, StrategyContentType, s.RoutingHistory[0].Strategy)
	assert.Equal(t, StepTechnicalAnalysis, s.RoutingHistory[0].Decision)
	assert.Equal(t, StrategyConfidence, s.RoutingHistory[1].Strategy)
}

func TestRouter_HistorySnapshotIsIndependent(t *testing.T) {
	r := NewRouter(0, zap.NewNop())
	s := stateWithSignals(Signals{SentimentScore: ptr(0.8)})
	r.Route(s, StrategySentiment)

	*s.Signals.SentimentScore = -1
	assert.Equal(t, 0.8, s.RoutingHistory[0].Signals.Sentiment())
}

// --- 转换表测试 ---

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StepStart, StepSupervisor))
	assert.True(t, CanTransition(StepContentAnalyzer, StepFailureRecovery))
	assert.True(t, CanTransition(StepFailureRecovery, StepContentAnalyzer))
	assert.True(t, CanTransition(StepConditionalRouter, StepManualReview))
	assert.True(t, CanTransition(StepNeutralProcessor, StepFinalizer))
	assert.True(t, CanTransition(StepErrorHandler, StepFinalizer))

	assert.False(t, CanTransition(StepStart, StepFinalizer))
	assert.False(t, CanTransition(StepSupervisor, StepConditionalRouter))
	assert.False(t, CanTransition(StepErrorHandler, StepFailureRecovery))
	for step := range transitions {
		assert.False(t, CanTransition(StepFinalizer, step), "finalizer is terminal")
	}
}

func TestStep_RequiredCapability(t *testing.T) {
	assert.Equal(t, "text_analysis", string(StepContentAnalyzer.RequiredCapability()))
	assert.Equal(t, "data_processing", string(StepMarketingAnalysis.RequiredCapability()))
	assert.Empty(t, StepConditionalRouter.RequiredCapability())
	assert.Equal(t, "customer_feedback", StepFeedbackAnalysis.Route())
	assert.Equal(t, StepConditionalRouter, resumeStep(StepPositiveProcessor))
	assert.Equal(t, StepContentAnalyzer, resumeStep(StepContentAnalyzer))
}

// --- 属性测试 ---

func TestProperty_RoutingIsDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var sig Signals
		if rapid.Bool().Draw(t, "has_sentiment") {
			v := rapid.Float64Range(-1, 1).Draw(t, "sentiment")
			sig.SentimentScore = &v
		}
		if rapid.Bool().Draw(t, "has_confidence") {
			v := rapid.Float64Range(0, 1).Draw(t, "confidence")
			sig.Confidence = &v
		}
		sig.ContentType = rapid.SampledFrom([]string{"technical", "marketing", "customer_feedback", "general", ""}).Draw(t, "content_type")
		strategy := rapid.SampledFrom([]RoutingStrategy{StrategySentiment, StrategyContentType, StrategyConfidence}).Draw(t, "strategy")

		s := stateWithSignals(sig)
		r := NewRouter(0, zap.NewNop())

		first, used1 := r.Decide(s, strategy)
		second, used2 := r.Decide(s, strategy)
		if first != second || used1 != used2 {
			t.Fatalf("decision changed: %s/%s vs %s/%s", first, used1, second, used2)
		}
		if len(s.RoutingHistory) != 0 || s.RoutingDecision != "" {
			t.Fatalf("Decide mutated state")
		}
		if !CanTransition(StepConditionalRouter, first) || !first.IsProcessor() {
			t.Fatalf("illegal routing target %s", first)
		}

		if strategy == StrategySentiment {
			score := sig.Sentiment()
			switch {
			case score >= PositiveThreshold && first != StepPositiveProcessor,
				score <= NegativeThreshold && first != StepNegativeProcessor,
				score > NegativeThreshold && score < PositiveThreshold && first != StepNeutralProcessor:
				t.Fatalf("score %v routed to %s", score, first)
			}
		}
	})
}
