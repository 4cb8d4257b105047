package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Priority 任务优先级
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority 解析优先级，空串视为 medium
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PriorityMedium, nil
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return p, nil
	default:
		return "", NewError(ErrInvalidDescriptor, fmt.Sprintf("unknown priority %q", s))
	}
}

// Rank 数值越小越紧急
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

// TaskStatus 任务状态
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// IsTerminal 是否为终态
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// TaskDescriptor 任务提交描述符
// 缺省字段由 NewTask 填充
type TaskDescriptor struct {
	ID                   string         `json:"id,omitempty" yaml:"id"`
	Title                string         `json:"title,omitempty" yaml:"title"`
	Description          string         `json:"description,omitempty" yaml:"description"`
	RequiredCapabilities []string       `json:"required_capabilities,omitempty" yaml:"required_capabilities"`
	Priority             string         `json:"priority,omitempty" yaml:"priority"`
	Parameters           map[string]any `json:"parameters,omitempty" yaml:"parameters"`
	Dependencies         []string       `json:"dependencies,omitempty" yaml:"dependencies"`
	Blocks               []string       `json:"blocks,omitempty" yaml:"blocks"`
	ThreadID             string         `json:"thread_id,omitempty" yaml:"thread_id"`
}

// Task 任务记录
type Task struct {
	ID                   string         `json:"id"`
	Title                string         `json:"title"`
	Description          string         `json:"description"`
	RequiredCapabilities CapabilitySet  `json:"required_capabilities"`
	Priority             Priority       `json:"priority"`
	Status               TaskStatus     `json:"status"`
	AssignedWorkerID     string         `json:"assigned_worker_id,omitempty"`
	Parameters           map[string]any `json:"parameters,omitempty"`
	Result               map[string]any `json:"result,omitempty"`
	Error                string         `json:"error,omitempty"`
	Dependencies         []string       `json:"dependencies,omitempty"`
	Blocks               []string       `json:"blocks,omitempty"`
	ThreadID             string         `json:"thread_id,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	AssignedAt           time.Time      `json:"assigned_at,omitempty"`
	CompletedAt          time.Time      `json:"completed_at,omitempty"`
}

// NewTask 根据描述符创建 pending 任务
func NewTask(desc TaskDescriptor) (*Task, error) {
	priority, err := ParsePriority(desc.Priority)
	if err != nil {
		return nil, err
	}

	id := desc.ID
	if id == "" {
		id = uuid.NewString()
	}
	title := desc.Title
	if title == "" {
		title = "Untitled Task"
	}

	params := make(map[string]any, len(desc.Parameters))
	for k, v := range desc.Parameters {
		params[k] = v
	}

	return &Task{
		ID:                   id,
		Title:                title,
		Description:          desc.Description,
		RequiredCapabilities: ParseCapabilities(desc.RequiredCapabilities...),
		Priority:             priority,
		Status:               TaskPending,
		Parameters:           params,
		Dependencies:         append([]string(nil), desc.Dependencies...),
		Blocks:               append([]string(nil), desc.Blocks...),
		ThreadID:             desc.ThreadID,
		CreatedAt:            time.Now(),
	}, nil
}

// Assign pending -> in_progress
func (t *Task) Assign(workerID string) error {
	if t.Status != TaskPending {
		return t.transitionError(TaskInProgress)
	}
	t.Status = TaskInProgress
	t.AssignedWorkerID = workerID
	t.AssignedAt = time.Now()
	return nil
}

// Complete in_progress -> completed
func (t *Task) Complete(result map[string]any) error {
	if t.Status != TaskInProgress {
		return t.transitionError(TaskCompleted)
	}
	t.Status = TaskCompleted
	t.Result = result
	t.CompletedAt = time.Now()
	return nil
}

// Fail in_progress -> failed
func (t *Task) Fail(message string) error {
	if t.Status != TaskInProgress {
		return t.transitionError(TaskFailed)
	}
	t.Status = TaskFailed
	t.Error = message
	t.CompletedAt = time.Now()
	return nil
}

func (t *Task) transitionError(to TaskStatus) error {
	return NewError(ErrInvalidTransition,
		fmt.Sprintf("task %s: %s -> %s", t.ID, t.Status, to))
}

// Clone 返回浅拷贝（map 与切片复制一层）
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.RequiredCapabilities = t.RequiredCapabilities.Clone()
	c.Dependencies = append([]string(nil), t.Dependencies...)
	c.Blocks = append([]string(nil), t.Blocks...)
	if t.Parameters != nil {
		c.Parameters = make(map[string]any, len(t.Parameters))
		for k, v := range t.Parameters {
			c.Parameters[k] = v
		}
	}
	if t.Result != nil {
		c.Result = make(map[string]any, len(t.Result))
		for k, v := range t.Result {
			c.Result[k] = v
		}
	}
	return &c
}
