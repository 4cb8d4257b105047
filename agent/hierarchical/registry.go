package hierarchical

import (
	"sync"

	"github.com/BaSui01/agentweaver/agent"
	"github.com/BaSui01/agentweaver/types"
)

// Registry Worker 目录
// 按注册顺序迭代，调度器与 FailureManager 共用同一份能力数据
type Registry struct {
	mu      sync.RWMutex
	order   []string
	records map[string]*agent.Record
	workers map[string]agent.Worker
}

// NewRegistry 创建空目录
func NewRegistry() *Registry {
	return &Registry{
		records: make(map[string]*agent.Record),
		workers: make(map[string]agent.Worker),
	}
}

// Add 添加或替换记录，返回是否替换了已有记录
// 替换只更新名称、能力与执行体；状态、持有的任务、统计与注册顺序沿用旧记录，
// 持有任务的 Worker 重新注册后仍是 busy，不会被再次分配
func (r *Registry) Add(rec *agent.Record, w agent.Worker) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, exists := r.records[rec.ID]
	if exists {
		rec.Status = old.Status
		rec.CurrentTaskID = old.CurrentTaskID
		rec.ErrorMessage = old.ErrorMessage
		rec.HealthPassed = old.HealthPassed
		rec.Performance = old.Performance
		rec.RegisteredAt = old.RegisteredAt
	} else {
		r.order = append(r.order, rec.ID)
	}
	r.records[rec.ID] = rec
	if w != nil {
		r.workers[rec.ID] = w
	} else {
		delete(r.workers, rec.ID)
	}
	return exists
}

// Remove 删除记录
func (r *Registry) Remove(id string) (agent.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return agent.Record{}, false
	}
	delete(r.records, id)
	delete(r.workers, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return rec.Snapshot(), true
}

// Get 返回记录快照
func (r *Registry) Get(id string) (agent.Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return agent.Record{}, false
	}
	return rec.Snapshot(), true
}

// Worker 返回绑定的执行体
func (r *Registry) Worker(id string) (agent.Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[id]
	return w, ok
}

// CapabilitiesOf 返回 Worker 声明的能力
func (r *Registry) CapabilitiesOf(id string) (types.CapabilitySet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, false
	}
	return rec.Capabilities.Clone(), true
}

// List 按注册顺序返回全部记录快照
func (r *Registry) List() []agent.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]agent.Record, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.records[id].Snapshot())
	}
	return out
}

// FindByCapability 按注册顺序返回声明了 c 的 Worker
func (r *Registry) FindByCapability(c types.Capability) []agent.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]agent.Record, 0)
	for _, id := range r.order {
		rec := r.records[id]
		if rec.Capabilities.Contains(c) {
			out = append(out, rec.Snapshot())
		}
	}
	return out
}

// FindAvailable 第一个 available 且能力满足 required 的 Worker
func (r *Registry) FindAvailable(required types.CapabilitySet) (agent.Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if rec := r.firstMatchLocked(required); rec != nil {
		return rec.Snapshot(), true
	}
	return agent.Record{}, false
}

// Len 已注册数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// StatusCounts 各状态数量
func (r *Registry) StatusCounts() map[agent.Status]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := map[agent.Status]int{
		agent.StatusAvailable: 0,
		agent.StatusBusy:      0,
		agent.StatusError:     0,
		agent.StatusOffline:   0,
	}
	for _, rec := range r.records {
		counts[rec.Status]++
	}
	return counts
}

func (r *Registry) firstMatchLocked(required types.CapabilitySet) *agent.Record {
	for _, id := range r.order {
		rec := r.records[id]
		if rec.Status.Schedulable() && rec.Capabilities.ContainsAll(required) {
			return rec
		}
	}
	return nil
}

// claim 原子地选中第一个匹配的 Worker 并标记 busy
func (r *Registry) claim(required types.CapabilitySet, taskID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.firstMatchLocked(required)
	if rec == nil {
		return "", false
	}
	if err := rec.StartTask(taskID); err != nil {
		return "", false
	}
	return rec.ID, true
}

// update 在目录锁内修改单条记录
func (r *Registry) update(id string, fn func(rec *agent.Record) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return workerNotFound(id)
	}
	return fn(rec)
}
