package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristicSentiment(t *testing.T) {
	tests := []struct {
		text string
		want float64
	}{
		{"Sentiment: excellent service", 0.8},
		{"overall sentiment is negative", -0.6},
		{"sentiment unknown", 0.1},
		{"This product is great", 0.75},
		{"Poor packaging", -0.5},
		{"The sky is blue", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HeuristicSentiment(tt.text), tt.text)
	}
}

func TestHeuristicContentType(t *testing.T) {
	assert.Equal(t, "technical", HeuristicContentType("New API release notes"))
	assert.Equal(t, "customer_feedback", HeuristicContentType("Customer said hi"))
	assert.Equal(t, "marketing", HeuristicContentType("Spring campaign"))
	assert.Equal(t, "general", HeuristicContentType("hello"))
}

func TestExtractSignals(t *testing.T) {
	t.Run("worker values win", func(t *testing.T) {
		sig := extractSignals(map[string]any{
			"sentiment_score": -0.4,
			"content_type":    "marketing",
			"confidence":      1,
		}, "great technical text")
		require.NotNil(t, sig.SentimentScore)
		assert.Equal(t, -0.4, *sig.SentimentScore)
		assert.Equal(t, "marketing", sig.ContentType)
		assert.Equal(t, 1.0, sig.ConfidenceValue())
	})

	t.Run("fallbacks", func(t *testing.T) {
		sig := extractSignals(map[string]any{"summary": "ok"}, "great technical text")
		assert.Equal(t, 0.75, sig.Sentiment())
		assert.Equal(t, "technical", sig.ContentType)
		assert.Equal(t, DefaultConfidence, sig.ConfidenceValue())
	})
}

func TestWorkflowState_CompleteAndForget(t *testing.T) {
	s := NewWorkflowState(map[string]any{"text": "x"}, "t", -1)
	assert.Equal(t, DefaultMaxReroutes, s.Recovery.MaxReroutes)
	assert.Equal(t, StepStart, s.CurrentStep)

	s.complete(StepSupervisor, StepResult{})
	s.complete(StepContentAnalyzer, StepResult{WorkerID: "w1"})
	s.complete(StepContentAnalyzer, StepResult{WorkerID: "w1"})
	assert.Equal(t, []Step{StepSupervisor, StepContentAnalyzer}, s.CompletedSteps)

	s.forget(StepContentAnalyzer)
	assert.False(t, s.HasCompleted(StepContentAnalyzer))
	assert.True(t, s.HasCompleted(StepSupervisor))
	assert.Contains(t, s.StepResults, "content_analyzer_failed")
	assert.NotContains(t, s.StepResults, "content_analyzer")
}

func TestWorkflowState_CloneIsDeep(t *testing.T) {
	s := NewWorkflowState(map[string]any{"text": "x"}, "t", 3)
	s.Signals.SentimentScore = ptr(0.5)
	s.Recovery.Assignments["text_analysis"] = "backup"
	s.complete(StepSupervisor, StepResult{})

	c := s.Clone()
	c.Recovery.Assignments["text_analysis"] = "other"
	*c.Signals.SentimentScore = -1
	c.CompletedSteps[0] = StepFinalizer

	assert.Equal(t, "backup", s.Recovery.Assignments["text_analysis"])
	assert.Equal(t, 0.5, s.Signals.Sentiment())
	assert.Equal(t, StepSupervisor, s.CompletedSteps[0])
	assert.Equal(t, s.WorkflowID, c.WorkflowID)
}
