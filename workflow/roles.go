package workflow

import (
	"github.com/BaSui01/agentweaver/agent"
)

// WorkerResolver 按 id 解析执行体
type WorkerResolver interface {
	Worker(id string) (agent.Worker, bool)
}

// Directory 引擎依赖的 Worker 目录
type Directory interface {
	WorkerDirectory
	WorkerResolver
}

// Roles 节点到主 Worker 的映射
type Roles struct {
	TextAnalyzer     string            `json:"text_analyzer" yaml:"text_analyzer"`
	Processors       map[string]string `json:"processors" yaml:"processors"` // 路由标签 -> Worker id
	DefaultProcessor string            `json:"default_processor" yaml:"default_processor"`
}

// DefaultRoles 默认角色
func DefaultRoles() Roles {
	return Roles{
		TextAnalyzer: "text_analyzer",
		Processors: map[string]string{
			"positive": "positive_processor",
			"negative": "negative_processor",
			"neutral":  "neutral_processor",
		},
		DefaultProcessor: "data_processor",
	}
}

// Primary 节点的主 Worker
func (r Roles) Primary(step Step) string {
	if step == StepContentAnalyzer {
		return r.TextAnalyzer
	}
	if id, ok := r.Processors[step.Route()]; ok && id != "" {
		return id
	}
	return r.DefaultProcessor
}

// resolveWorker 通过本次运行的替换表解析节点负责的 Worker
// 返回 Worker id 以及是否为替补
func resolveWorker(state *WorkflowState, roles Roles, step Step) (string, bool) {
	if capability := step.RequiredCapability(); capability != "" {
		if id, ok := state.Recovery.Assignments[capability]; ok && id != "" {
			return id, true
		}
	}
	return roles.Primary(step), false
}
