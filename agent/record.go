package agent

import (
	"time"

	"github.com/BaSui01/agentweaver/types"
)

// Performance Worker 运行统计
type Performance struct {
	TasksCompleted   int           `json:"tasks_completed"`
	TasksFailed      int           `json:"tasks_failed"`
	AvgExecutionTime time.Duration `json:"avg_execution_time"`
	SuccessRate      float64       `json:"success_rate"`
}

// Record 调度器视角的 Worker 实体
// 仅通过 StartTask / CompleteTask / SetError / ResetError 等转换修改，
// 并发保护由持有者（Registry）负责
type Record struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Capabilities  types.CapabilitySet `json:"capabilities"`
	Status        Status              `json:"status"`
	CurrentTaskID string              `json:"current_task_id,omitempty"`
	ErrorMessage  string              `json:"error_message,omitempty"`
	HealthPassed  bool                `json:"health_check_passed"`
	Performance   Performance         `json:"performance"`
	RegisteredAt  time.Time           `json:"registered_at"`
	LastUpdated   time.Time           `json:"last_updated"`
}

// NewRecord 创建 available 状态的记录
func NewRecord(id, name string, caps types.CapabilitySet) *Record {
	now := time.Now()
	return &Record{
		ID:           id,
		Name:         name,
		Capabilities: caps,
		Status:       StatusAvailable,
		HealthPassed: true,
		RegisteredAt: now,
		LastUpdated:  now,
	}
}

func (r *Record) transition(to Status) error {
	if !CanTransition(r.Status, to) {
		return ErrInvalidTransition{WorkerID: r.ID, From: r.Status, To: to}
	}
	r.Status = to
	r.LastUpdated = time.Now()
	return nil
}

// StartTask available -> busy
func (r *Record) StartTask(taskID string) error {
	if r.Status == StatusBusy {
		return ErrWorkerBusy
	}
	if err := r.transition(StatusBusy); err != nil {
		return err
	}
	r.CurrentTaskID = taskID
	return nil
}

// CompleteTask busy -> available，并更新统计
func (r *Record) CompleteTask(taskID string, duration time.Duration, success bool) error {
	if r.Status != StatusBusy || r.CurrentTaskID != taskID {
		return ErrTaskNotHeld
	}
	if err := r.transition(StatusAvailable); err != nil {
		return err
	}
	r.CurrentTaskID = ""
	r.recordOutcome(duration, success)
	return nil
}

// recordOutcome 更新计数与滚动平均执行时间
func (r *Record) recordOutcome(duration time.Duration, success bool) {
	p := &r.Performance
	if success {
		p.TasksCompleted++
	} else {
		p.TasksFailed++
	}
	n := p.TasksCompleted + p.TasksFailed
	p.AvgExecutionTime = (p.AvgExecutionTime*time.Duration(n-1) + duration) / time.Duration(n)
	p.SuccessRate = float64(p.TasksCompleted) / float64(n)
}

// SetError 任意状态 -> error，清除当前任务
func (r *Record) SetError(message string) error {
	if err := r.transition(StatusError); err != nil {
		return err
	}
	r.ErrorMessage = message
	r.CurrentTaskID = ""
	r.HealthPassed = false
	return nil
}

// ResetError error -> available
func (r *Record) ResetError() error {
	if r.Status != StatusError {
		return ErrInvalidTransition{WorkerID: r.ID, From: r.Status, To: StatusAvailable}
	}
	if err := r.transition(StatusAvailable); err != nil {
		return err
	}
	r.ErrorMessage = ""
	r.HealthPassed = true
	return nil
}

// SetOffline 任意状态 -> offline
func (r *Record) SetOffline() error {
	if r.Status == StatusOffline {
		return nil
	}
	if err := r.transition(StatusOffline); err != nil {
		return err
	}
	r.CurrentTaskID = ""
	return nil
}

// SetOnline offline -> available
func (r *Record) SetOnline() error {
	if r.Status != StatusOffline {
		return ErrInvalidTransition{WorkerID: r.ID, From: r.Status, To: StatusAvailable}
	}
	return r.transition(StatusAvailable)
}

// Healthy 对应健康检查：error / offline 为不健康
func (r *Record) Healthy() bool {
	return r.Status != StatusError && r.Status != StatusOffline
}

// Snapshot 返回副本
func (r *Record) Snapshot() Record {
	c := *r
	c.Capabilities = r.Capabilities.Clone()
	return c
}
