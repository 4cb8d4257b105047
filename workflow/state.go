package workflow

import (
	"encoding/json"
	"time"

	"github.com/BaSui01/agentweaver/types"
	"github.com/google/uuid"
)

// Status 工作流状态
type Status string

const (
	StatusRunning   Status = "running"
	StatusRerouted  Status = "rerouted"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// DefaultMaxReroutes 默认重路由上限
const DefaultMaxReroutes = 3

// Signals 路由信号，nil 表示缺失
type Signals struct {
	SentimentScore *float64 `json:"sentiment_score"`
	ContentType    string   `json:"content_type,omitempty"`
	Confidence     *float64 `json:"analysis_confidence"`
}

// Sentiment 缺失时为 0
func (s Signals) Sentiment() float64 {
	if s.SentimentScore == nil {
		return 0
	}
	return *s.SentimentScore
}

// ConfidenceValue 缺失时为 0
func (s Signals) ConfidenceValue() float64 {
	if s.Confidence == nil {
		return 0
	}
	return *s.Confidence
}

func (s Signals) clone() Signals {
	c := Signals{ContentType: s.ContentType}
	if s.SentimentScore != nil {
		v := *s.SentimentScore
		c.SentimentScore = &v
	}
	if s.Confidence != nil {
		v := *s.Confidence
		c.Confidence = &v
	}
	return c
}

// FailureRecord 单次 Worker 故障
type FailureRecord struct {
	Timestamp      time.Time `json:"timestamp"`
	WorkerID       string    `json:"worker_id"`
	Classification string    `json:"error_type"`
	Message        string    `json:"error_message"`
	Step           Step      `json:"step"`
}

// ErrorInfo 当前错误
type ErrorInfo struct {
	Occurred           bool             `json:"error_occurred"`
	Message            string           `json:"error_message,omitempty"`
	Code               types.ErrorCode  `json:"error_code,omitempty"`
	Step               Step             `json:"error_step,omitempty"`
	FailedWorkerID     string           `json:"failed_worker_id,omitempty"`
	RequiredCapability types.Capability `json:"required_capability,omitempty"`
	Details            *FailureRecord   `json:"error_details,omitempty"`
	Critical           bool             `json:"critical,omitempty"`
}

// Recovery 重路由状态
// Assignments 是本次运行的能力到 Worker 的替换表
type Recovery struct {
	RerouteCount int                         `json:"reroute_count"`
	MaxReroutes  int                         `json:"max_reroutes"`
	BackupUsed   bool                        `json:"backup_agent_used"`
	Assignments  map[types.Capability]string `json:"assignments,omitempty"`
}

// RoutingEntry 路由决策记录
type RoutingEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	Strategy  RoutingStrategy `json:"routing_type"`
	Decision  Step            `json:"decision"`
	Signals   Signals         `json:"state_snapshot"`
	Error     bool            `json:"error_occurred"`
}

// ExecutionEntry Worker 调用记录
type ExecutionEntry struct {
	Step      Step          `json:"step"`
	WorkerID  string        `json:"worker_id"`
	Backup    bool          `json:"backup"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// StepResult 节点输出
type StepResult struct {
	Step      Step           `json:"step"`
	WorkerID  string         `json:"worker_id,omitempty"`
	Status    string         `json:"status"`
	Output    map[string]any `json:"result,omitempty"`
	Info      map[string]any `json:"info,omitempty"`
	Error     string         `json:"error,omitempty"`
	Retry     bool           `json:"is_retry,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ExecutionMetrics 终结时的执行摘要
type ExecutionMetrics struct {
	TotalExecutionTime time.Duration `json:"total_execution_time"`
	StepsCompleted     int           `json:"steps_completed"`
	WorkflowStatus     Status        `json:"workflow_status"`
	RoutingDecisions   int           `json:"routing_decisions"`
	Reroutes           int           `json:"agent_failures"`
	BackupUsed         bool          `json:"backup_agents_used"`
}

// Classification 路由分类
type Classification struct {
	Route      string  `json:"route"`
	Sentiment  float64 `json:"score"`
	Confidence float64 `json:"confidence"`
}

// ErrorSummary 失败时的诊断信息
type ErrorSummary struct {
	Step           Step                  `json:"error_step,omitempty"`
	Message        string                `json:"error_message,omitempty"`
	Details        *FailureRecord        `json:"error_details,omitempty"`
	FailedWorkerID string                `json:"failed_worker_id,omitempty"`
	RerouteCount   int                   `json:"reroute_count"`
	BackupUsed     bool                  `json:"backup_agent_used"`
	CompletedSteps []Step                `json:"completed_steps"`
	RoutingHistory []RoutingEntry        `json:"routing_history"`
	PartialResults map[string]StepResult `json:"partial_results"`
	Timestamp      time.Time             `json:"error_timestamp"`
}

// FinalResult 工作流最终结果
type FinalResult struct {
	Status         Status            `json:"workflow_status"`
	WorkflowID     string            `json:"workflow_id"`
	Route          string            `json:"route,omitempty"`
	Classification *Classification   `json:"classification,omitempty"`
	Analysis       map[string]any    `json:"content_analysis,omitempty"`
	Processing     map[string]any    `json:"processing,omitempty"`
	RoutingHistory []RoutingEntry    `json:"routing_history,omitempty"`
	ErrorSummary   *ErrorSummary     `json:"error_summary,omitempty"`
	RouteData      map[string]any    `json:"route_data,omitempty"`
	Metrics        *ExecutionMetrics `json:"execution_metrics,omitempty"`
	ProcessedAt    time.Time         `json:"processing_timestamp"`
}

// WorkflowState 单次工作流运行的完整记录
// 一个运行只由一个 goroutine 修改
type WorkflowState struct {
	WorkflowID string         `json:"workflow_id"`
	ThreadID   string         `json:"thread_id"`
	Name       string         `json:"workflow_name"`
	Input      map[string]any `json:"initial_input"`

	CurrentStep    Step                  `json:"current_step"`
	NextStep       Step                  `json:"next_step,omitempty"`
	CompletedSteps []Step                `json:"completed_steps"`
	StepResults    map[string]StepResult `json:"step_results"`

	AnalysisResult  map[string]any `json:"analysis_result,omitempty"`
	RouteData       map[string]any `json:"route_data,omitempty"`
	FinalResult     *FinalResult   `json:"final_result,omitempty"`
	Signals         Signals        `json:"signals"`
	RoutingDecision Step           `json:"routing_decision,omitempty"`

	Error    ErrorInfo `json:"error"`
	Recovery Recovery  `json:"recovery"`

	RoutingHistory   []RoutingEntry   `json:"routing_history"`
	ExecutionHistory []ExecutionEntry `json:"agent_execution_history"`

	Status             Status            `json:"status"`
	StartedAt          time.Time         `json:"workflow_start_time"`
	EndedAt            time.Time         `json:"workflow_end_time,omitempty"`
	TotalExecutionTime time.Duration     `json:"total_execution_time"`
	Metrics            *ExecutionMetrics `json:"execution_metrics,omitempty"`
}

// NewWorkflowState 创建 start 节点上的新状态
func NewWorkflowState(input map[string]any, threadID string, maxReroutes int) *WorkflowState {
	if maxReroutes < 0 {
		maxReroutes = DefaultMaxReroutes
	}
	in := make(map[string]any, len(input))
	for k, v := range input {
		in[k] = v
	}
	return &WorkflowState{
		WorkflowID:  uuid.NewString(),
		ThreadID:    threadID,
		Name:        "Advanced Conditional Workflow",
		Input:       in,
		CurrentStep: StepStart,
		StepResults: make(map[string]StepResult),
		RouteData:   make(map[string]any),
		Recovery: Recovery{
			MaxReroutes: maxReroutes,
			Assignments: make(map[types.Capability]string),
		},
		Status:    StatusRunning,
		StartedAt: time.Now(),
	}
}

// Text 输入文本
func (s *WorkflowState) Text() string {
	if s.Input == nil {
		return ""
	}
	text, _ := s.Input["text"].(string)
	return text
}

// HasCompleted 节点是否已完成
func (s *WorkflowState) HasCompleted(step Step) bool {
	for _, c := range s.CompletedSteps {
		if c == step {
			return true
		}
	}
	return false
}

func (s *WorkflowState) complete(step Step, result StepResult) {
	result.Step = step
	if result.Status == "" {
		result.Status = "completed"
	}
	if result.Timestamp.IsZero() {
		result.Timestamp = time.Now()
	}
	if !s.HasCompleted(step) {
		s.CompletedSteps = append(s.CompletedSteps, step)
	}
	s.StepResults[string(step)] = result
}

// forget 从已完成列表移除节点，并把其结果归档到 <step>_failed
func (s *WorkflowState) forget(step Step) {
	kept := s.CompletedSteps[:0]
	for _, c := range s.CompletedSteps {
		if c != step {
			kept = append(kept, c)
		}
	}
	s.CompletedSteps = kept

	if prev, ok := s.StepResults[string(step)]; ok {
		s.StepResults[string(step)+"_failed"] = prev
		delete(s.StepResults, string(step))
	}
}

// stampError 记录非 Worker 故障的错误
func (s *WorkflowState) stampError(step Step, code types.ErrorCode, message string) {
	s.Error.Occurred = true
	s.Error.Code = code
	s.Error.Message = message
	s.Error.Step = step
}

// stampCritical 记录非预期错误
func (s *WorkflowState) stampCritical(code types.ErrorCode, message string) {
	s.stampError(s.CurrentStep, code, message)
	s.Error.Critical = true
}

// Clone 深拷贝，用于快照与检查点
func (s *WorkflowState) Clone() *WorkflowState {
	data, err := json.Marshal(s)
	if err != nil {
		c := *s
		return &c
	}
	var c WorkflowState
	if err := json.Unmarshal(data, &c); err != nil {
		cc := *s
		return &cc
	}
	if c.StepResults == nil {
		c.StepResults = make(map[string]StepResult)
	}
	if c.Recovery.Assignments == nil {
		c.Recovery.Assignments = make(map[types.Capability]string)
	}
	return &c
}
