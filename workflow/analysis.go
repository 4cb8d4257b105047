package workflow

import "strings"

// DefaultConfidence Worker 未给出置信度时的取值
const DefaultConfidence = 0.85

// HeuristicSentiment 关键词情感评分
// 文本含 "sentiment" 时按显式情感词评分，否则按一般评价词评分
func HeuristicSentiment(text string) float64 {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "sentiment") {
		switch {
		case containsAny(lower, "positive", "excellent"):
			return 0.8
		case containsAny(lower, "negative", "terrible"):
			return -0.6
		default:
			return 0.1
		}
	}
	switch {
	case containsAny(lower, "good", "great", "excellent"):
		return 0.75
	case containsAny(lower, "bad", "poor", "terrible"):
		return -0.5
	default:
		return 0.0
	}
}

// HeuristicContentType 关键词内容类型
func HeuristicContentType(text string) string {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, "technical", "api"):
		return "technical"
	case containsAny(lower, "customer", "feedback"):
		return "customer_feedback"
	case containsAny(lower, "marketing", "campaign"):
		return "marketing"
	default:
		return "general"
	}
}

// extractSignals 优先使用 Worker 结果中的信号，缺失的信号由关键词推导
func extractSignals(result map[string]any, text string) Signals {
	var sig Signals
	if v, ok := numberOf(result["sentiment_score"]); ok {
		sig.SentimentScore = &v
	} else {
		h := HeuristicSentiment(text)
		sig.SentimentScore = &h
	}
	if ct, ok := result["content_type"].(string); ok && ct != "" {
		sig.ContentType = ct
	} else {
		sig.ContentType = HeuristicContentType(text)
	}
	if v, ok := numberOf(result["confidence"]); ok {
		sig.Confidence = &v
	} else {
		c := DefaultConfidence
		sig.Confidence = &c
	}
	return sig
}

func numberOf(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
