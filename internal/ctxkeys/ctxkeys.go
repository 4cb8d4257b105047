// Package ctxkeys 定义跨包传递的 context 键。
// Worker 可以从 ctx 读取当前任务、Worker、线程与工作流的标识，用于日志关联。
package ctxkeys

import "context"

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const (
	taskIDKey     contextKey = "task_id"
	workerIDKey   contextKey = "worker_id"
	threadIDKey   contextKey = "thread_id"
	workflowIDKey contextKey = "workflow_id"
)

func withString(ctx context.Context, key contextKey, v string) context.Context {
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func stringValue(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithTaskID 设置 TaskID
func WithTaskID(ctx context.Context, taskID string) context.Context {
	return withString(ctx, taskIDKey, taskID)
}

// TaskID 获取 TaskID
func TaskID(ctx context.Context) (string, bool) { return stringValue(ctx, taskIDKey) }

// WithWorkerID 设置 WorkerID
func WithWorkerID(ctx context.Context, workerID string) context.Context {
	return withString(ctx, workerIDKey, workerID)
}

// WorkerID 获取 WorkerID
func WorkerID(ctx context.Context) (string, bool) { return stringValue(ctx, workerIDKey) }

// WithThreadID 设置 ThreadID
func WithThreadID(ctx context.Context, threadID string) context.Context {
	return withString(ctx, threadIDKey, threadID)
}

// ThreadID 获取 ThreadID
func ThreadID(ctx context.Context) (string, bool) { return stringValue(ctx, threadIDKey) }

// WithWorkflowID 设置 WorkflowID
func WithWorkflowID(ctx context.Context, workflowID string) context.Context {
	return withString(ctx, workflowIDKey, workflowID)
}

// WorkflowID 获取 WorkflowID
func WorkflowID(ctx context.Context) (string, bool) { return stringValue(ctx, workflowIDKey) }
