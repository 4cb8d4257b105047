package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/agentweaver/agent"
	"github.com/BaSui01/agentweaver/agent/persistence"
	"github.com/BaSui01/agentweaver/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/BaSui01/agentweaver/workflow"

// Config 工作流引擎配置
type Config struct {
	MaxReroutes       int             `json:"max_reroutes" yaml:"max_reroutes"`
	StepTimeout       time.Duration   `json:"step_timeout" yaml:"step_timeout"`
	Strategy          RoutingStrategy `json:"strategy" yaml:"strategy"`
	RoutingHistoryMax int             `json:"routing_history_max" yaml:"routing_history_max"`
	FailureHistoryMax int             `json:"failure_history_max" yaml:"failure_history_max"`
	MaxSteps          int             `json:"max_steps" yaml:"max_steps"` // 单次运行的节点上限
	Roles             Roles           `json:"roles" yaml:"roles"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		MaxReroutes:       DefaultMaxReroutes,
		StepTimeout:       2 * time.Minute,
		Strategy:          StrategySentiment,
		RoutingHistoryMax: 100,
		FailureHistoryMax: 1000,
		MaxSteps:          64,
		Roles:             DefaultRoles(),
	}
}

// Metrics 工作流指标钩子
type Metrics interface {
	RecordWorkflow(status string, duration time.Duration)
	RecordRoutingDecision(strategy, decision string)
	RecordReroute(capability string)
}

type noopMetrics struct{}

func (noopMetrics) RecordWorkflow(string, time.Duration)  {}
func (noopMetrics) RecordRoutingDecision(string, string) {}
func (noopMetrics) RecordReroute(string)                 {}

// Engine 条件工作流状态机
// 引擎本身无运行状态，不同线程的运行可以并发执行
type Engine struct {
	config   Config
	dir      Directory
	router   *Router
	failures *FailureManager
	store    persistence.CheckpointStore
	metrics  Metrics
	tracer   trace.Tracer
	logger   *zap.Logger
}

// Option 引擎选项
type Option func(*Engine)

// WithCheckpointStore 每个节点后保存状态
func WithCheckpointStore(store persistence.CheckpointStore) Option {
	return func(e *Engine) { e.store = store }
}

// WithMetrics 指标钩子
func WithMetrics(m Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithTracer 自定义 tracer
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// NewEngine 创建引擎
func NewEngine(config Config, dir Directory, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultConfig()
	if config.StepTimeout <= 0 {
		config.StepTimeout = defaults.StepTimeout
	}
	if config.MaxSteps <= 0 {
		config.MaxSteps = defaults.MaxSteps
	}
	if config.MaxReroutes < 0 {
		config.MaxReroutes = defaults.MaxReroutes
	}
	if config.Strategy == "" {
		config.Strategy = defaults.Strategy
	}
	if config.Roles.TextAnalyzer == "" && len(config.Roles.Processors) == 0 && config.Roles.DefaultProcessor == "" {
		config.Roles = defaults.Roles
	}

	e := &Engine{
		config:   config,
		dir:      dir,
		router:   NewRouter(config.RoutingHistoryMax, logger),
		failures: NewFailureManager(dir, config.FailureHistoryMax, logger),
		metrics:  noopMetrics{},
		tracer:   otel.Tracer(instrumentationName),
		logger:   logger.With(zap.String("component", "workflow_engine")),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Router 返回路由器
func (e *Engine) Router() *Router { return e.router }

// FailureManager 返回故障管理器
func (e *Engine) FailureManager() *FailureManager { return e.failures }

// =============================================================================
// 🎯 执行
// =============================================================================

// Execute 从 supervisor 节点运行完整工作流
// 总是返回终态记录，失败体现在 Status 与 Error 中
// threadID 为空时以本次运行的 WorkflowID 作为线程，并发的匿名运行互不覆盖检查点
func (e *Engine) Execute(ctx context.Context, input map[string]any, threadID string) *WorkflowState {
	state := NewWorkflowState(input, threadID, e.config.MaxReroutes)
	if state.ThreadID == "" {
		state.ThreadID = state.WorkflowID
	}
	return e.Continue(ctx, state, StepSupervisor)
}

// Continue 从 next 节点继续运行已有状态
func (e *Engine) Continue(ctx context.Context, state *WorkflowState, next Step) *WorkflowState {
	if state.StepResults == nil {
		state.StepResults = make(map[string]StepResult)
	}
	if state.Recovery.Assignments == nil {
		state.Recovery.Assignments = make(map[types.Capability]string)
	}
	if state.RouteData == nil {
		state.RouteData = make(map[string]any)
	}

	ctx, span := e.tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.String("workflow.id", state.WorkflowID),
		attribute.String("workflow.thread_id", state.ThreadID),
	))
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("workflow panicked", zap.String("workflow_id", state.WorkflowID), zap.Any("panic", r))
			state.stampCritical(types.ErrInternalError, fmt.Sprintf("unexpected failure: %v", r))
			state.Status = StatusFailed
			e.runFinalizer(state)
		}
		span.SetAttributes(
			attribute.String("workflow.status", string(state.Status)),
			attribute.Int("workflow.reroutes", state.Recovery.RerouteCount),
		)
		if state.Status == StatusFailed {
			span.SetStatus(codes.Error, state.Error.Message)
		}
		span.End()
		e.metrics.RecordWorkflow(string(state.Status), state.TotalExecutionTime)
	}()

	e.run(ctx, state, next)
	return state
}

func (e *Engine) run(ctx context.Context, state *WorkflowState, next Step) {
	if state.CurrentStep.IsTerminal() {
		return
	}

	for steps := 0; next != ""; steps++ {
		if next != StepErrorHandler && next != StepFinalizer {
			if steps >= e.config.MaxSteps {
				state.stampCritical(types.ErrIllegalStep, fmt.Sprintf("step limit %d exceeded", e.config.MaxSteps))
				next = StepErrorHandler
			} else if err := ctx.Err(); err != nil {
				state.stampError(state.CurrentStep, types.ErrTimeout, fmt.Sprintf("workflow interrupted: %v", err))
				next = StepErrorHandler
			}
		}

		if !CanTransition(state.CurrentStep, next) {
			e.logger.Error("illegal step transition",
				zap.String("workflow_id", state.WorkflowID),
				zap.String("from", string(state.CurrentStep)),
				zap.String("to", string(next)),
			)
			state.stampCritical(types.ErrIllegalStep,
				fmt.Sprintf("illegal transition %s -> %s", state.CurrentStep, next))
			if CanTransition(state.CurrentStep, StepErrorHandler) {
				next = StepErrorHandler
			} else {
				next = StepFinalizer
			}
		}

		state.CurrentStep = next
		following := e.runStep(ctx, state, next)
		state.NextStep = following
		e.checkpoint(ctx, state)
		next = following
	}
}

func (e *Engine) runStep(ctx context.Context, state *WorkflowState, step Step) Step {
	ctx, span := e.tracer.Start(ctx, "workflow.step", trace.WithAttributes(
		attribute.String("workflow.id", state.WorkflowID),
		attribute.String("workflow.step", string(step)),
	))
	defer span.End()

	var next Step
	switch {
	case step == StepSupervisor:
		next = e.runSupervisor(state)
	case step == StepContentAnalyzer:
		next = e.runContentAnalyzer(ctx, state)
	case step == StepConditionalRouter:
		next = e.runConditionalRouter(state)
	case step.IsProcessor():
		next = e.runProcessor(ctx, state, step)
	case step == StepFailureRecovery:
		next = e.runRecovery(state)
	case step == StepErrorHandler:
		next = e.runErrorHandler(state)
	case step == StepFinalizer:
		next = e.runFinalizer(state)
	default:
		state.stampCritical(types.ErrIllegalStep, fmt.Sprintf("unknown step %s", step))
		next = StepErrorHandler
	}

	span.SetAttributes(attribute.String("workflow.next_step", string(next)))
	if state.Error.Occurred {
		span.SetStatus(codes.Error, state.Error.Message)
	}
	return next
}

// =============================================================================
// 节点
// =============================================================================

func (e *Engine) runSupervisor(state *WorkflowState) Step {
	if len(state.Input) == 0 {
		return e.failValidation(state, "no initial input provided for conditional workflow")
	}
	if strings.TrimSpace(state.Text()) == "" {
		return e.failValidation(state, "no text content provided for analysis")
	}

	state.complete(StepSupervisor, StepResult{
		Info: map[string]any{"action": "conditional_workflow_initialization"},
	})
	e.logger.Info("workflow initialized", zap.String("workflow_id", state.WorkflowID), zap.String("thread_id", state.ThreadID))
	return StepContentAnalyzer
}

func (e *Engine) failValidation(state *WorkflowState, message string) Step {
	state.stampError(StepSupervisor, types.ErrValidation, "Supervisor initialization failed: "+message)
	state.Status = StatusFailed
	e.logger.Warn("workflow input rejected", zap.String("workflow_id", state.WorkflowID), zap.String("reason", message))
	return StepErrorHandler
}

func (e *Engine) runContentAnalyzer(ctx context.Context, state *WorkflowState) Step {
	task, err := types.NewTask(types.TaskDescriptor{
		ID:                   "content_analysis_" + state.WorkflowID,
		Title:                "Conditional Workflow: Content Analysis",
		RequiredCapabilities: []string{string(types.CapabilityTextAnalysis)},
		Parameters: map[string]any{
			"text":          state.Text(),
			"analysis_type": "summarize",
		},
		ThreadID: state.ThreadID,
	})
	if err != nil {
		state.stampCritical(types.ErrInternalError, err.Error())
		return StepErrorHandler
	}

	result, workerID, backup, err := e.invoke(ctx, state, StepContentAnalyzer, task)
	if err != nil {
		return e.onWorkerFailure(state, StepContentAnalyzer, workerID, backup, err)
	}

	state.AnalysisResult = result
	state.Signals = extractSignals(result, state.Text())
	state.complete(StepContentAnalyzer, StepResult{
		WorkerID: workerID,
		Output:   result,
		Retry:    backup,
		Info: map[string]any{
			"sentiment_score": state.Signals.Sentiment(),
			"content_type":    state.Signals.ContentType,
			"confidence":      state.Signals.ConfidenceValue(),
		},
	})
	e.logger.Info("content analysis completed",
		zap.String("workflow_id", state.WorkflowID),
		zap.String("worker_id", workerID),
		zap.Bool("backup", backup),
		zap.Float64("sentiment", state.Signals.Sentiment()),
		zap.String("content_type", state.Signals.ContentType),
	)
	return StepConditionalRouter
}

func (e *Engine) runConditionalRouter(state *WorkflowState) Step {
	state.complete(StepConditionalRouter, StepResult{
		Info: map[string]any{
			"action":              "routing_decision",
			"sentiment_score":     state.Signals.SentimentScore,
			"content_type":        state.Signals.ContentType,
			"analysis_confidence": state.Signals.Confidence,
		},
	})
	return e.route(state, e.config.Strategy)
}

func (e *Engine) runProcessor(ctx context.Context, state *WorkflowState, step Step) Step {
	route := step.Route()
	task, err := types.NewTask(types.TaskDescriptor{
		ID:                   fmt.Sprintf("%s_processing_%s", route, state.WorkflowID),
		Title:                fmt.Sprintf("Conditional Workflow: %s Processing", route),
		RequiredCapabilities: []string{string(types.CapabilityDataProcessing)},
		Parameters: map[string]any{
			"operation":       "process_" + route,
			"route":           route,
			"text":            state.Text(),
			"sentiment_score": state.Signals.Sentiment(),
			"content_type":    state.Signals.ContentType,
			"analysis":        state.AnalysisResult,
		},
		ThreadID: state.ThreadID,
	})
	if err != nil {
		state.stampCritical(types.ErrInternalError, err.Error())
		return StepErrorHandler
	}

	result, workerID, backup, err := e.invoke(ctx, state, step, task)
	if err != nil {
		return e.onWorkerFailure(state, step, workerID, backup, err)
	}

	state.RouteData[route] = result
	state.FinalResult = &FinalResult{
		Status:     state.Status,
		WorkflowID: state.WorkflowID,
		Route:      route,
		Classification: &Classification{
			Route:      route,
			Sentiment:  state.Signals.Sentiment(),
			Confidence: state.Signals.ConfidenceValue(),
		},
		Analysis:       state.AnalysisResult,
		Processing:     result,
		RoutingHistory: append([]RoutingEntry(nil), state.RoutingHistory...),
		RouteData:      state.RouteData,
		ProcessedAt:    time.Now(),
	}
	state.complete(step, StepResult{
		WorkerID: workerID,
		Output:   result,
		Retry:    backup,
		Info:     map[string]any{"route": route},
	})
	e.logger.Info("route processing completed",
		zap.String("workflow_id", state.WorkflowID),
		zap.String("route", route),
		zap.String("worker_id", workerID),
	)
	return StepFinalizer
}

// runRecovery 在预算内用替补替换故障 Worker，并从失败节点重新进入
func (e *Engine) runRecovery(state *WorkflowState) Step {
	failedStep := state.Error.Step
	rec := &state.Recovery

	if rec.RerouteCount >= rec.MaxReroutes {
		state.stampError(StepFailureRecovery, types.ErrRecoveryExhausted,
			fmt.Sprintf("Agent failure recovery failed: maximum reroute attempts (%d) exceeded", rec.MaxReroutes))
		state.Status = StatusFailed
		e.logger.Warn("reroute budget exhausted",
			zap.String("workflow_id", state.WorkflowID),
			zap.Int("reroute_count", rec.RerouteCount),
		)
		return StepErrorHandler
	}

	backup, ok := e.failures.FindBackup(state)
	if !ok {
		state.stampError(StepFailureRecovery, types.ErrNoBackup,
			fmt.Sprintf("Agent failure recovery failed: no backup agent available for capability %q", state.Error.RequiredCapability))
		state.Status = StatusFailed
		return StepErrorHandler
	}

	capability := state.Error.RequiredCapability
	rec.Assignments[capability] = backup
	rec.BackupUsed = true
	rec.RerouteCount++
	state.Error.Occurred = false
	state.Status = StatusRerouted
	state.forget(failedStep)
	state.complete(StepFailureRecovery, StepResult{
		WorkerID: backup,
		Info: map[string]any{
			"action":          "backup_agent_assigned_for_retry",
			"failed_agent":    state.Error.FailedWorkerID,
			"backup_agent":    backup,
			"reroute_attempt": rec.RerouteCount,
			"retry_step":      string(failedStep),
		},
	})
	e.metrics.RecordReroute(string(capability))

	e.logger.Info("backup agent assigned for retry",
		zap.String("workflow_id", state.WorkflowID),
		zap.String("failed_agent", state.Error.FailedWorkerID),
		zap.String("backup_agent", backup),
		zap.String("retry_step", string(failedStep)),
		zap.Int("reroute_count", rec.RerouteCount),
	)
	return resumeStep(failedStep)
}

func (e *Engine) runErrorHandler(state *WorkflowState) Step {
	partial := make(map[string]StepResult, len(state.StepResults))
	for k, v := range state.StepResults {
		partial[k] = v
	}

	state.FinalResult = &FinalResult{
		Status:     StatusFailed,
		WorkflowID: state.WorkflowID,
		Analysis:   state.AnalysisResult,
		RouteData:  state.RouteData,
		ErrorSummary: &ErrorSummary{
			Step:           state.Error.Step,
			Message:        state.Error.Message,
			Details:        state.Error.Details,
			FailedWorkerID: state.Error.FailedWorkerID,
			RerouteCount:   state.Recovery.RerouteCount,
			BackupUsed:     state.Recovery.BackupUsed,
			CompletedSteps: append([]Step(nil), state.CompletedSteps...),
			RoutingHistory: append([]RoutingEntry(nil), state.RoutingHistory...),
			PartialResults: partial,
			Timestamp:      time.Now(),
		},
		ProcessedAt: time.Now(),
	}
	state.Status = StatusFailed

	e.logger.Error("workflow failed",
		zap.String("workflow_id", state.WorkflowID),
		zap.String("error_step", string(state.Error.Step)),
		zap.String("error", state.Error.Message),
	)
	return StepFinalizer
}

// runFinalizer 唯一终止节点；自身的异常被记录到状态而不是向上抛出
func (e *Engine) runFinalizer(state *WorkflowState) (next Step) {
	defer func() {
		if r := recover(); r != nil {
			state.stampCritical(types.ErrFinalization, fmt.Sprintf("Workflow finalization failed: %v", r))
			if state.EndedAt.IsZero() {
				state.EndedAt = time.Now()
			}
			next = ""
		}
	}()

	state.CurrentStep = StepFinalizer
	state.EndedAt = time.Now()
	state.TotalExecutionTime = state.EndedAt.Sub(state.StartedAt)
	if state.Status != StatusFailed {
		state.Status = StatusCompleted
	}
	if state.RoutingDecision == "" && len(state.RoutingHistory) > 0 {
		state.RoutingDecision = state.RoutingHistory[len(state.RoutingHistory)-1].Decision
	}

	state.complete(StepFinalizer, StepResult{
		Info: map[string]any{"workflow_status": string(state.Status)},
	})

	metrics := &ExecutionMetrics{
		TotalExecutionTime: state.TotalExecutionTime,
		StepsCompleted:     len(state.CompletedSteps),
		WorkflowStatus:     state.Status,
		RoutingDecisions:   len(state.RoutingHistory),
		Reroutes:           state.Recovery.RerouteCount,
		BackupUsed:         state.Recovery.BackupUsed,
	}
	state.Metrics = metrics
	if state.FinalResult != nil {
		state.FinalResult.Status = state.Status
		state.FinalResult.Metrics = metrics
	}

	e.logger.Info("workflow finished",
		zap.String("workflow_id", state.WorkflowID),
		zap.String("status", string(state.Status)),
		zap.Duration("duration", state.TotalExecutionTime),
	)
	return ""
}

// =============================================================================
// 辅助
// =============================================================================

func (e *Engine) route(state *WorkflowState, strategy RoutingStrategy) Step {
	decision := e.router.Route(state, strategy)
	used := strategy
	if n := len(state.RoutingHistory); n > 0 {
		used = state.RoutingHistory[n-1].Strategy
	}
	e.metrics.RecordRoutingDecision(string(used), string(decision))
	return decision
}

// invoke 解析并调用节点负责的 Worker
// 截止时间由 StepTimeout 决定，每次调用使用独立的 ExecutionContext
func (e *Engine) invoke(ctx context.Context, state *WorkflowState, step Step, task *types.Task) (map[string]any, string, bool, error) {
	workerID, backup := resolveWorker(state, e.config.Roles, step)
	start := time.Now()

	var (
		result map[string]any
		err    error
	)
	w, ok := e.dir.Worker(workerID)
	switch {
	case !ok:
		err = types.NewError(types.ErrWorkerUnavailable, fmt.Sprintf("worker %s is not registered", workerID)).WithWorker(workerID)
	case !w.CanHandle(task):
		err = types.NewError(types.ErrWorkerUnavailable,
			fmt.Sprintf("worker %s cannot handle %s", workerID, task.RequiredCapabilities.Strings())).WithWorker(workerID)
	default:
		execCtx := agent.NewExecutionContext(task)
		execCtx.WorkflowID = state.WorkflowID
		execCtx.Step = string(step)
		execCtx.Attempt = state.Recovery.RerouteCount + 1

		sctx, cancel := context.WithTimeout(ctx, e.config.StepTimeout)
		result, err = agent.SafeExecute(sctx, w, task, execCtx)
		cancel()
		if err == nil {
			if msg, ok := result["error"].(string); ok && msg != "" {
				err = types.NewError(types.ErrWorkerExecution, msg).WithWorker(workerID)
			}
		}
	}

	entry := ExecutionEntry{
		Step:      step,
		WorkerID:  workerID,
		Backup:    backup,
		StartedAt: start,
		Duration:  time.Since(start),
		Success:   err == nil,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	state.ExecutionHistory = append(state.ExecutionHistory, entry)
	return result, workerID, backup, err
}

// onWorkerFailure 同一能力的替补再次失败直接进入错误处理；否则交给 FailureManager 并按错误路由
func (e *Engine) onWorkerFailure(state *WorkflowState, step Step, workerID string, backup bool, err error) Step {
	state.StepResults[string(step)] = StepResult{
		Step:      step,
		WorkerID:  workerID,
		Status:    "failed",
		Error:     err.Error(),
		Retry:     backup,
		Timestamp: time.Now(),
	}

	e.failures.RecordFailure(state, workerID, err)
	if backup {
		state.Error.Message = fmt.Sprintf("Backup %s failed: %s", step, errorMessage(err))
		state.Status = StatusFailed
		return StepErrorHandler
	}
	return e.route(state, StrategyError)
}

// =============================================================================
// 检查点
// =============================================================================

func checkpointKey(threadID string) string { return "workflow:" + threadID }

// checkpoint 尽力保存，失败只记录日志
func (e *Engine) checkpoint(ctx context.Context, state *WorkflowState) {
	if e.store == nil {
		return
	}
	data, err := json.Marshal(state)
	if err != nil {
		e.logger.Warn("failed to encode workflow state", zap.String("workflow_id", state.WorkflowID), zap.Error(err))
		return
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := e.store.Save(sctx, checkpointKey(state.ThreadID), data); err != nil {
		e.logger.Warn("failed to save workflow checkpoint",
			zap.String("workflow_id", state.WorkflowID),
			zap.String("thread_id", state.ThreadID),
			zap.Error(err),
		)
	}
}

// Load 读取线程最近一次保存的状态
func (e *Engine) Load(ctx context.Context, threadID string) (*WorkflowState, error) {
	if e.store == nil {
		return nil, types.NewError(types.ErrServiceUnavailable, "no checkpoint store configured")
	}
	data, err := e.store.Load(ctx, checkpointKey(threadID))
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, fmt.Errorf("workflow thread %s: %w", threadID, err)
		}
		return nil, fmt.Errorf("load workflow checkpoint: %w", err)
	}
	var state WorkflowState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode workflow checkpoint: %w", err)
	}
	return &state, nil
}

// Resume 从检查点继续未结束的运行，已结束的运行原样返回
func (e *Engine) Resume(ctx context.Context, threadID string) (*WorkflowState, error) {
	state, err := e.Load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if state.CurrentStep.IsTerminal() || state.NextStep == "" {
		return state, nil
	}
	return e.Continue(ctx, state, state.NextStep), nil
}

// =============================================================================
// 📊 状态
// =============================================================================

// EngineStatus 引擎状态报告
type EngineStatus struct {
	Active          bool              `json:"orchestrator_active"`
	Strategy        RoutingStrategy   `json:"strategy"`
	Strategies      []RoutingStrategy `json:"routing_capabilities"`
	MaxReroutes     int               `json:"max_reroutes"`
	FailureHistory  int               `json:"failure_history"`
	Roles           Roles             `json:"roles"`
	RegisteredRoles map[string]bool   `json:"registered_roles"`
}

// Status 引擎状态
func (e *Engine) Status() EngineStatus {
	roles := e.config.Roles
	registered := make(map[string]bool)
	check := func(id string) {
		if id == "" {
			return
		}
		_, ok := e.dir.Worker(id)
		registered[id] = ok
	}
	check(roles.TextAnalyzer)
	check(roles.DefaultProcessor)
	for _, id := range roles.Processors {
		check(id)
	}

	return EngineStatus{
		Active:          true,
		Strategy:        e.config.Strategy,
		Strategies:      Strategies(),
		MaxReroutes:     e.config.MaxReroutes,
		FailureHistory:  e.failures.HistoryLen(),
		Roles:           roles,
		RegisteredRoles: registered,
	}
}
