// MockWorker 的 Worker 测试模拟实现。
//
// 支持固定结果、错误注入、延迟与第 N 次调用后失败。
package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BaSui01/agentweaver/agent"
	"github.com/BaSui01/agentweaver/internal/ctxkeys"
	"github.com/BaSui01/agentweaver/types"
)

// ErrMockFailure FailAfter 注入的错误
var ErrMockFailure = errors.New("mock worker failure")

// --- MockWorker 结构 ---

// MockWorker 是 agent.Worker 的模拟实现
type MockWorker struct {
	agent.BaseWorker

	mu        sync.Mutex
	result    map[string]any
	err       error
	delay     time.Duration
	failAfter int
	healthy   bool
	calls     []MockWorkerCall
}

// MockWorkerCall 记录单次调用
type MockWorkerCall struct {
	TaskID     string
	ThreadID   string
	WorkflowID string
	Step       string
	Params     map[string]any
}

var _ agent.Worker = (*MockWorker)(nil)

// --- 构造函数和 Builder 方法 ---

// NewMockWorker 创建 MockWorker，默认返回空结果且健康
func NewMockWorker(id string, caps ...types.Capability) *MockWorker {
	return &MockWorker{
		BaseWorker: agent.NewBaseWorker(id, id, caps...),
		result:     map[string]any{},
		healthy:    true,
	}
}

// WithResult 设置固定结果
func (m *MockWorker) WithResult(result map[string]any) *MockWorker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = result
	return m
}

// WithError 设置返回错误
func (m *MockWorker) WithError(err error) *MockWorker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithDelay 每次执行前等待，ctx 结束时提前返回
func (m *MockWorker) WithDelay(d time.Duration) *MockWorker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// FailAfter 前 n 次成功，之后返回 ErrMockFailure
func (m *MockWorker) FailAfter(n int) *MockWorker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	return m
}

// WithHealthy 设置健康检查结果
func (m *MockWorker) WithHealthy(healthy bool) *MockWorker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthy = healthy
	return m
}

// --- Worker 接口实现 ---

// Execute implements agent.Worker.
func (m *MockWorker) Execute(ctx context.Context, task *types.Task, execCtx *agent.ExecutionContext) (map[string]any, error) {
	m.mu.Lock()
	call := MockWorkerCall{}
	if task != nil {
		call.TaskID = task.ID
		call.Params = task.Parameters
	}
	if execCtx != nil {
		call.Step = execCtx.Step
	}
	call.ThreadID, _ = ctxkeys.ThreadID(ctx)
	call.WorkflowID, _ = ctxkeys.WorkflowID(ctx)
	m.calls = append(m.calls, call)
	n := len(m.calls)
	result, err, delay, failAfter := m.result, m.err, m.delay, m.failAfter
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if failAfter > 0 && n > failAfter {
		return nil, ErrMockFailure
	}
	return result, nil
}

// HealthCheck implements agent.Worker.
func (m *MockWorker) HealthCheck(context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthy
}

// --- 调用记录 ---

// Calls 返回调用记录副本
func (m *MockWorker) Calls() []MockWorkerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockWorkerCall(nil), m.calls...)
}

// CallCount 返回调用次数
func (m *MockWorker) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Reset 清空调用记录
func (m *MockWorker) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
