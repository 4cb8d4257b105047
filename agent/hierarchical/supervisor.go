package hierarchical

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/agentweaver/agent"
	"github.com/BaSui01/agentweaver/agent/persistence"
	"github.com/BaSui01/agentweaver/internal/pool"
	"github.com/BaSui01/agentweaver/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config 调度器配置
type Config struct {
	TaskTimeout     time.Duration `json:"task_timeout" yaml:"task_timeout"`         // 单任务执行截止时间
	DispatchWorkers int           `json:"dispatch_workers" yaml:"dispatch_workers"` // 异步执行 goroutine 上限
	DispatchQueue   int           `json:"dispatch_queue" yaml:"dispatch_queue"`     // 异步执行队列长度
	PersistTasks    bool          `json:"persist_tasks" yaml:"persist_tasks"`       // 任务记录写入检查点存储
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		TaskTimeout:     5 * time.Minute,
		DispatchWorkers: 16,
		DispatchQueue:   256,
		PersistTasks:    true,
	}
}

// WorkerDescriptor 注册描述符
// 缺省字段在注册时替换为默认值，而不是拒绝
type WorkerDescriptor struct {
	ID           string   `json:"id,omitempty"`
	Name         string   `json:"name,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// Outcome 提交结果
type Outcome string

const (
	OutcomeAssigned Outcome = "assigned"
	OutcomeQueued   Outcome = "queued"
)

// AssignmentResult SubmitTask 的返回值
type AssignmentResult struct {
	Outcome  Outcome `json:"outcome"`
	TaskID   string  `json:"task_id"`
	WorkerID string  `json:"worker_id,omitempty"`
}

// Assigned 是否已分配
func (r AssignmentResult) Assigned() bool { return r.Outcome == OutcomeAssigned }

// Metrics 调度指标钩子，nil 时不记录
type Metrics interface {
	RecordSubmission(outcome string)
	RecordCompletion(status string, duration time.Duration)
	SetQueueDepth(depth int)
	SetWorkerCounts(counts map[agent.Status]int)
}

type noopMetrics struct{}

func (noopMetrics) RecordSubmission(string)                  {}
func (noopMetrics) RecordCompletion(string, time.Duration)   {}
func (noopMetrics) SetQueueDepth(int)                        {}
func (noopMetrics) SetWorkerCounts(map[agent.Status]int)     {}

// taskEntry 任务及其执行方式
type taskEntry struct {
	task *types.Task
	auto bool          // 分配后由调度器自行执行
	done chan struct{} // 终态时关闭
}

// assignment 一次新的分配
type assignment struct {
	taskID   string
	workerID string
	auto     bool
}

// Supervisor 任务调度器
// 注册、分配、完成均在 mu 内串行；Worker 执行体在锁外运行
type Supervisor struct {
	mu        sync.Mutex
	registry  *Registry
	tasks     map[string]*taskEntry
	taskOrder []string
	queue     []string

	config  Config
	pool    *pool.Pool
	ownPool bool
	store   persistence.CheckpointStore
	metrics Metrics
	logger  *zap.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	closed  bool
}

// Option 调度器选项
type Option func(*Supervisor)

// WithRegistry 使用外部目录
func WithRegistry(r *Registry) Option {
	return func(s *Supervisor) { s.registry = r }
}

// WithCheckpointStore 任务记录持久化
func WithCheckpointStore(store persistence.CheckpointStore) Option {
	return func(s *Supervisor) { s.store = store }
}

// WithMetrics 指标钩子
func WithMetrics(m Metrics) Option {
	return func(s *Supervisor) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithPool 使用外部执行池，Shutdown 不会关闭它
func WithPool(p *pool.Pool) Option {
	return func(s *Supervisor) { s.pool = p }
}

// NewSupervisor 创建调度器
func NewSupervisor(config Config, logger *zap.Logger, opts ...Option) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = DefaultConfig().TaskTimeout
	}

	s := &Supervisor{
		tasks:   make(map[string]*taskEntry),
		config:  config,
		metrics: noopMetrics{},
		logger:  logger.With(zap.String("component", "supervisor")),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = NewRegistry()
	}
	if s.pool == nil {
		s.pool = pool.New(pool.Config{
			MaxWorkers: config.DispatchWorkers,
			QueueSize:  config.DispatchQueue,
		}, logger)
		s.ownPool = true
	}
	s.baseCtx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Registry 返回 Worker 目录
func (s *Supervisor) Registry() *Registry { return s.registry }

// =============================================================================
// 🎯 注册
// =============================================================================

// Register 注册 Worker 记录（无执行体）
// 缺省 id 自动生成，缺省名称为 "Unknown"
func (s *Supervisor) Register(desc WorkerDescriptor) string {
	id := desc.ID
	if id == "" {
		id = uuid.NewString()
	}
	name := desc.Name
	if name == "" {
		name = "Unknown"
	}
	return s.add(agent.NewRecord(id, name, types.ParseCapabilities(desc.Capabilities...)), nil)
}

// RegisterWorker 注册带执行体的 Worker
func (s *Supervisor) RegisterWorker(w agent.Worker) string {
	id := w.ID()
	if id == "" {
		id = uuid.NewString()
	}
	name := w.Name()
	if name == "" {
		name = "Unknown"
	}
	return s.add(agent.NewRecord(id, name, w.Capabilities()), w)
}

func (s *Supervisor) add(rec *agent.Record, w agent.Worker) string {
	s.mu.Lock()
	replaced := s.registry.Add(rec, w)
	assigned := s.processQueueLocked()
	snapshots := s.snapshotsLocked(assigned)
	s.mu.Unlock()

	if replaced {
		s.logger.Warn("worker re-registered, runtime state kept", zap.String("worker_id", rec.ID))
	}
	s.logger.Info("worker registered",
		zap.String("worker_id", rec.ID),
		zap.String("name", rec.Name),
		zap.Strings("capabilities", rec.Capabilities.Strings()),
	)
	s.afterMutation(assigned, snapshots)
	return rec.ID
}

// Unregister 删除 Worker
// 不会重新分配其正在执行的任务
func (s *Supervisor) Unregister(workerID string) error {
	s.mu.Lock()
	rec, ok := s.registry.Remove(workerID)
	if !ok {
		s.mu.Unlock()
		return workerNotFound(workerID)
	}
	assigned := s.processQueueLocked()
	snapshots := s.snapshotsLocked(assigned)
	s.mu.Unlock()

	if rec.CurrentTaskID != "" {
		s.logger.Warn("worker unregistered while holding a task",
			zap.String("worker_id", workerID),
			zap.String("task_id", rec.CurrentTaskID),
		)
	}
	s.logger.Info("worker unregistered", zap.String("worker_id", workerID))
	s.afterMutation(assigned, snapshots)
	return nil
}

// =============================================================================
// 🎯 提交与完成
// =============================================================================

// SubmitTask 提交任务，由调用方执行并回报 CompleteTask
func (s *Supervisor) SubmitTask(ctx context.Context, desc types.TaskDescriptor) (AssignmentResult, error) {
	return s.submit(ctx, desc, runManual)
}

// Dispatch 提交任务并由调度器在执行池上运行绑定的执行体
// 排队的任务在分配时自动执行
func (s *Supervisor) Dispatch(ctx context.Context, desc types.TaskDescriptor) (AssignmentResult, error) {
	return s.submit(ctx, desc, runAsync)
}

// runMode 任务由谁执行
type runMode int

const (
	runManual runMode = iota // 调用方执行并回报
	runAsync                 // 调度器在执行池上执行
	runInline                // 立即分配时由调用方 goroutine 执行，排队后由执行池执行
)

func (s *Supervisor) submit(ctx context.Context, desc types.TaskDescriptor, mode runMode) (AssignmentResult, error) {
	if err := ctx.Err(); err != nil {
		return AssignmentResult{}, err
	}
	task, err := types.NewTask(desc)
	if err != nil {
		return AssignmentResult{}, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return AssignmentResult{}, ErrSchedulerClosed
	}
	if _, dup := s.tasks[task.ID]; dup {
		s.mu.Unlock()
		return AssignmentResult{}, types.NewError(types.ErrInvalidDescriptor,
			fmt.Sprintf("task %s already submitted", task.ID))
	}

	entry := &taskEntry{task: task, auto: mode != runManual, done: make(chan struct{})}
	s.tasks[task.ID] = entry
	s.taskOrder = append(s.taskOrder, task.ID)

	result := AssignmentResult{TaskID: task.ID}
	var assigned []assignment
	if workerID, ok := s.registry.claim(task.RequiredCapabilities, task.ID); ok {
		_ = task.Assign(workerID)
		result.Outcome = OutcomeAssigned
		result.WorkerID = workerID
		assigned = append(assigned, assignment{taskID: task.ID, workerID: workerID, auto: mode == runAsync})
	} else {
		s.queue = append(s.queue, task.ID)
		result.Outcome = OutcomeQueued
	}
	snapshots := []types.Task{*task.Clone()}
	s.mu.Unlock()

	s.metrics.RecordSubmission(string(result.Outcome))
	s.logger.Debug("task submitted",
		zap.String("task_id", task.ID),
		zap.String("outcome", string(result.Outcome)),
		zap.String("worker_id", result.WorkerID),
		zap.Strings("required", task.RequiredCapabilities.Strings()),
	)
	s.afterMutation(assigned, snapshots)
	return result, nil
}

// CompleteTask 回报任务结果
// execErr 为 nil 视为成功；Worker 未持有该任务时返回 ErrTaskMismatch
func (s *Supervisor) CompleteTask(taskID, workerID string, result map[string]any, execErr error, duration time.Duration) error {
	s.mu.Lock()
	entry, ok := s.tasks[taskID]
	if !ok {
		s.mu.Unlock()
		return taskNotFound(taskID)
	}

	success := execErr == nil
	err := s.registry.update(workerID, func(rec *agent.Record) error {
		if rec.Status != agent.StatusBusy || rec.CurrentTaskID != taskID {
			return taskMismatch(taskID, workerID, rec.CurrentTaskID)
		}
		return rec.CompleteTask(taskID, duration, success)
	})
	if err != nil {
		s.mu.Unlock()
		return err
	}

	if success {
		_ = entry.task.Complete(result)
	} else {
		_ = entry.task.Fail(execErr.Error())
	}
	close(entry.done)

	assigned := s.processQueueLocked()
	snapshots := append(s.snapshotsLocked(assigned), *entry.task.Clone())
	s.mu.Unlock()

	s.metrics.RecordCompletion(string(entry.task.Status), duration)
	if success {
		s.logger.Debug("task completed",
			zap.String("task_id", taskID),
			zap.String("worker_id", workerID),
			zap.Duration("duration", duration),
		)
	} else {
		s.logger.Warn("task failed",
			zap.String("task_id", taskID),
			zap.String("worker_id", workerID),
			zap.Error(execErr),
		)
	}
	s.afterMutation(assigned, snapshots)
	return nil
}

// processQueueLocked FIFO 扫描队列，为每个空闲 Worker 分配至多一个任务
func (s *Supervisor) processQueueLocked() []assignment {
	if len(s.queue) == 0 {
		return nil
	}

	var assigned []assignment
	remaining := s.queue[:0]
	for _, taskID := range s.queue {
		entry := s.tasks[taskID]
		workerID, ok := s.registry.claim(entry.task.RequiredCapabilities, taskID)
		if !ok {
			remaining = append(remaining, taskID)
			continue
		}
		_ = entry.task.Assign(workerID)
		assigned = append(assigned, assignment{taskID: taskID, workerID: workerID, auto: entry.auto})
	}
	s.queue = remaining
	return assigned
}

func (s *Supervisor) snapshotsLocked(assigned []assignment) []types.Task {
	out := make([]types.Task, 0, len(assigned))
	for _, a := range assigned {
		out = append(out, *s.tasks[a.taskID].task.Clone())
	}
	return out
}

// afterMutation 锁外的副作用：指标、持久化、启动自动执行
func (s *Supervisor) afterMutation(assigned []assignment, snapshots []types.Task) {
	s.metrics.SetQueueDepth(s.QueueLength())
	s.metrics.SetWorkerCounts(s.registry.StatusCounts())
	s.persist(snapshots)

	for _, a := range assigned {
		if a.auto {
			s.launch(a.taskID, a.workerID)
		}
	}
}

// persist 尽力写入，失败只记录日志
func (s *Supervisor) persist(tasks []types.Task) {
	if s.store == nil || !s.config.PersistTasks {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := range tasks {
		data, err := json.Marshal(&tasks[i])
		if err != nil {
			s.logger.Warn("failed to encode task", zap.String("task_id", tasks[i].ID), zap.Error(err))
			continue
		}
		if err := s.store.Save(ctx, "task:"+tasks[i].ID, data); err != nil {
			s.logger.Warn("failed to persist task", zap.String("task_id", tasks[i].ID), zap.Error(err))
		}
	}
}

// =============================================================================
// 🔧 Worker 生命周期控制
// =============================================================================

// SetWorkerError 标记 Worker 故障；其持有的任务以该错误失败
func (s *Supervisor) SetWorkerError(workerID, message string) error {
	s.mu.Lock()
	var held string
	err := s.registry.update(workerID, func(rec *agent.Record) error {
		held = rec.CurrentTaskID
		return rec.SetError(message)
	})
	if err != nil {
		s.mu.Unlock()
		return err
	}
	snapshots := s.failHeldLocked(held, "worker error: "+message)
	s.mu.Unlock()

	s.logger.Warn("worker marked as error", zap.String("worker_id", workerID), zap.String("message", message))
	s.afterMutation(nil, snapshots)
	return nil
}

// ResetWorkerError 故障恢复，随后重新处理队列
func (s *Supervisor) ResetWorkerError(workerID string) error {
	return s.reinstate(workerID, (*agent.Record).ResetError)
}

// SetWorkerOffline 标记离线；其持有的任务失败
func (s *Supervisor) SetWorkerOffline(workerID string) error {
	s.mu.Lock()
	var held string
	err := s.registry.update(workerID, func(rec *agent.Record) error {
		held = rec.CurrentTaskID
		return rec.SetOffline()
	})
	if err != nil {
		s.mu.Unlock()
		return err
	}
	snapshots := s.failHeldLocked(held, "worker went offline")
	s.mu.Unlock()

	s.logger.Warn("worker marked offline", zap.String("worker_id", workerID))
	s.afterMutation(nil, snapshots)
	return nil
}

// SetWorkerOnline 重新上线
func (s *Supervisor) SetWorkerOnline(workerID string) error {
	return s.reinstate(workerID, (*agent.Record).SetOnline)
}

func (s *Supervisor) reinstate(workerID string, fn func(*agent.Record) error) error {
	s.mu.Lock()
	if err := s.registry.update(workerID, fn); err != nil {
		s.mu.Unlock()
		return err
	}
	assigned := s.processQueueLocked()
	snapshots := s.snapshotsLocked(assigned)
	s.mu.Unlock()

	s.logger.Info("worker available again", zap.String("worker_id", workerID))
	s.afterMutation(assigned, snapshots)
	return nil
}

func (s *Supervisor) failHeldLocked(taskID, reason string) []types.Task {
	if taskID == "" {
		return nil
	}
	entry, ok := s.tasks[taskID]
	if !ok || entry.task.Status != types.TaskInProgress {
		return nil
	}
	_ = entry.task.Fail(reason)
	close(entry.done)
	return []types.Task{*entry.task.Clone()}
}

// CheckHealth 调用绑定执行体的 HealthCheck，不健康的 Worker 标记为 error
func (s *Supervisor) CheckHealth(ctx context.Context) map[string]bool {
	results := make(map[string]bool)
	for _, rec := range s.registry.List() {
		w, ok := s.registry.Worker(rec.ID)
		if !ok {
			results[rec.ID] = rec.Healthy()
			continue
		}
		healthy := w.HealthCheck(ctx)
		results[rec.ID] = healthy
		if !healthy && rec.Status != agent.StatusError && rec.Status != agent.StatusOffline {
			if err := s.SetWorkerError(rec.ID, "health check failed"); err != nil {
				s.logger.Warn("failed to mark unhealthy worker", zap.String("worker_id", rec.ID), zap.Error(err))
			}
		}
	}
	return results
}

// =============================================================================
// 📊 查询
// =============================================================================

// Task 返回任务快照
func (s *Supervisor) Task(taskID string) (types.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.tasks[taskID]
	if !ok {
		return types.Task{}, false
	}
	return *entry.task.Clone(), true
}

// Tasks 按提交顺序返回全部任务快照
func (s *Supervisor) Tasks() []types.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Task, 0, len(s.taskOrder))
	for _, id := range s.taskOrder {
		out = append(out, *s.tasks[id].task.Clone())
	}
	return out
}

// QueuedTaskIDs 队列中的任务（FIFO 顺序）
func (s *Supervisor) QueuedTaskIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queue...)
}

// QueueLength 队列长度
func (s *Supervisor) QueueLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Forget 删除终态任务记录，返回删除数量
func (s *Supervisor) Forget(olderThan time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	kept := s.taskOrder[:0]
	for _, id := range s.taskOrder {
		t := s.tasks[id].task
		if t.Status.IsTerminal() && t.CompletedAt.Before(olderThan) {
			delete(s.tasks, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	s.taskOrder = kept
	return removed
}

// Await 等待任务进入终态
func (s *Supervisor) Await(ctx context.Context, taskID string) (types.Task, error) {
	s.mu.Lock()
	entry, ok := s.tasks[taskID]
	s.mu.Unlock()
	if !ok {
		return types.Task{}, taskNotFound(taskID)
	}

	select {
	case <-entry.done:
		t, _ := s.Task(taskID)
		return t, nil
	case <-ctx.Done():
		return types.Task{}, ctx.Err()
	}
}

// Shutdown 拒绝新任务并等待执行中的任务结束；ctx 到期后取消剩余执行
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var err error
	if s.ownPool {
		err = s.pool.Shutdown(ctx)
	}
	s.cancel()
	if err != nil {
		s.logger.Warn("supervisor shutdown did not drain", zap.Error(err))
		return fmt.Errorf("drain dispatch pool: %w", err)
	}
	s.logger.Info("supervisor stopped")
	return nil
}
