package agent

import "fmt"

// Status 定义 Worker 生命周期状态
type Status string

const (
	StatusAvailable Status = "available" // Idle, can take work
	StatusBusy      Status = "busy"      // Executing exactly one task
	StatusError     Status = "error"     // Faulted, excluded from scheduling
	StatusOffline   Status = "offline"   // Unreachable, excluded from scheduling
)

// validTransitions 定义合法的状态转换
var validTransitions = map[Status][]Status{
	StatusAvailable: {StatusBusy, StatusError, StatusOffline},
	StatusBusy:      {StatusAvailable, StatusError, StatusOffline},
	StatusError:     {StatusAvailable, StatusError, StatusOffline}, // 支持重置
	StatusOffline:   {StatusAvailable, StatusError},                // 重新上线
}

// CanTransition 检查状态转换是否合法
func CanTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Schedulable 是否可被调度器选中
func (s Status) Schedulable() bool {
	return s == StatusAvailable
}

// ErrInvalidTransition 非法状态转换错误
type ErrInvalidTransition struct {
	WorkerID string
	From     Status
	To       Status
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("worker %s: invalid state transition: %s -> %s", e.WorkerID, e.From, e.To)
}
