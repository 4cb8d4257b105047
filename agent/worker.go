package agent

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/BaSui01/agentweaver/internal/ctxkeys"
	"github.com/BaSui01/agentweaver/types"
	"github.com/google/uuid"
)

// Worker 任务执行者契约
type Worker interface {
	ID() string
	Name() string
	Capabilities() types.CapabilitySet

	// Execute 执行任务体；ctx 携带截止时间，实现应在 ctx 结束后尽快返回
	Execute(ctx context.Context, task *types.Task, execCtx *ExecutionContext) (map[string]any, error)

	// CanHandle 默认为能力子集判定，可覆盖
	CanHandle(task *types.Task) bool

	HealthCheck(ctx context.Context) bool
}

// ExecutionContext 单次调用的可变上下文
// 每次调用独立创建，Worker 实例之间不共享
type ExecutionContext struct {
	TaskID     string         `json:"task_id"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	ThreadID   string         `json:"thread_id,omitempty"`
	Step       string         `json:"step,omitempty"`
	Attempt    int            `json:"attempt"`
	Values     map[string]any `json:"values,omitempty"`
}

// NewExecutionContext 为任务创建新的执行上下文
func NewExecutionContext(task *types.Task) *ExecutionContext {
	ec := &ExecutionContext{Values: make(map[string]any)}
	if task != nil {
		ec.TaskID = task.ID
		ec.ThreadID = task.ThreadID
	}
	return ec
}

// Set 写入值
func (ec *ExecutionContext) Set(key string, value any) {
	if ec.Values == nil {
		ec.Values = make(map[string]any)
	}
	ec.Values[key] = value
}

// Get 读取值
func (ec *ExecutionContext) Get(key string) (any, bool) {
	v, ok := ec.Values[key]
	return v, ok
}

// =============================================================================
// BaseWorker
// =============================================================================

// BaseWorker 提供身份、默认 CanHandle 与 HealthCheck
// 具体 Worker 嵌入它并只实现 Execute
type BaseWorker struct {
	id           string
	name         string
	capabilities types.CapabilitySet
}

// NewBaseWorker 创建 BaseWorker，空 id 自动生成
func NewBaseWorker(id, name string, caps ...types.Capability) BaseWorker {
	if id == "" {
		id = uuid.NewString()
	}
	if name == "" {
		name = "Unknown"
	}
	return BaseWorker{id: id, name: name, capabilities: types.NewCapabilitySet(caps...)}
}

func (b BaseWorker) ID() string                          { return b.id }
func (b BaseWorker) Name() string                        { return b.name }
func (b BaseWorker) Capabilities() types.CapabilitySet   { return b.capabilities.Clone() }
func (b BaseWorker) HealthCheck(_ context.Context) bool { return true }

// CanHandle 能力子集判定
func (b BaseWorker) CanHandle(task *types.Task) bool {
	if task == nil {
		return false
	}
	return b.capabilities.ContainsAll(task.RequiredCapabilities)
}

// =============================================================================
// FuncWorker
// =============================================================================

// ExecuteFunc 任务体函数
type ExecuteFunc func(ctx context.Context, task *types.Task, execCtx *ExecutionContext) (map[string]any, error)

// FuncWorker 将函数适配为 Worker
type FuncWorker struct {
	BaseWorker
	fn     ExecuteFunc
	health func(ctx context.Context) bool
}

// NewFuncWorker 创建函数型 Worker
func NewFuncWorker(id, name string, fn ExecuteFunc, caps ...types.Capability) *FuncWorker {
	return &FuncWorker{BaseWorker: NewBaseWorker(id, name, caps...), fn: fn}
}

// WithHealthCheck 覆盖健康检查
func (w *FuncWorker) WithHealthCheck(fn func(ctx context.Context) bool) *FuncWorker {
	w.health = fn
	return w
}

// Execute implements Worker.
func (w *FuncWorker) Execute(ctx context.Context, task *types.Task, execCtx *ExecutionContext) (map[string]any, error) {
	if w.fn == nil {
		return map[string]any{}, nil
	}
	return w.fn(ctx, task, execCtx)
}

// HealthCheck implements Worker.
func (w *FuncWorker) HealthCheck(ctx context.Context) bool {
	if w.health != nil {
		return w.health(ctx)
	}
	return true
}

// SafeExecute 调用 Worker 并把 panic 转为错误
// 传给 Worker 的 ctx 携带 ctxkeys 中的任务、Worker、线程与工作流标识
// 返回的错误均为 *types.Error，ctx 超时映射为 ErrTimeout
func SafeExecute(ctx context.Context, w Worker, task *types.Task, execCtx *ExecutionContext) (result map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = types.NewError(types.ErrWorkerExecution, fmt.Sprintf("%v", r)).
				WithCause(fmt.Errorf("%w: %s", ErrWorkerPanicked, debug.Stack())).
				WithWorker(w.ID())
		}
	}()

	if execCtx == nil {
		execCtx = NewExecutionContext(task)
	}
	ctx = ctxkeys.WithTaskID(ctx, execCtx.TaskID)
	ctx = ctxkeys.WithWorkerID(ctx, w.ID())
	ctx = ctxkeys.WithThreadID(ctx, execCtx.ThreadID)
	ctx = ctxkeys.WithWorkflowID(ctx, execCtx.WorkflowID)

	result, err = w.Execute(ctx, task, execCtx)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		code := types.ErrWorkerExecution
		if ctx.Err() == context.DeadlineExceeded {
			code = types.ErrTimeout
		}
		var typed *types.Error
		if te, ok := err.(*types.Error); ok {
			typed = te
		} else {
			typed = types.NewError(code, err.Error()).WithCause(err).WithRetryable(code == types.ErrTimeout)
		}
		if typed.WorkerID == "" {
			typed.WorkerID = w.ID()
		}
		return nil, typed
	}
	if result == nil {
		result = map[string]any{}
	}
	return result, nil
}
