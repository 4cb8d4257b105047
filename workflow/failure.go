package workflow

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/agentweaver/agent"
	"github.com/BaSui01/agentweaver/types"
	"go.uber.org/zap"
)

// WorkerDirectory Worker 能力的唯一数据源
// hierarchical.Registry 实现该接口
type WorkerDirectory interface {
	CapabilitiesOf(id string) (types.CapabilitySet, bool)
	FindByCapability(c types.Capability) []agent.Record
}

// FailureManager 将 Worker 故障转换为结构化失败状态，并寻找替补
type FailureManager struct {
	dir        WorkerDirectory
	mu         sync.Mutex
	history    []FailureRecord
	historyMax int
	logger     *zap.Logger
}

// NewFailureManager 创建故障管理器，historyMax <= 0 表示不限
func NewFailureManager(dir WorkerDirectory, historyMax int, logger *zap.Logger) *FailureManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FailureManager{
		dir:        dir,
		historyMax: historyMax,
		logger:     logger.With(zap.String("component", "failure_manager")),
	}
}

// RecordFailure 标记故障并解析所需能力
// 能力从目录读取：Worker 具备当前节点所需能力时取该能力，否则取其第一个能力；
// 目录中不存在的 Worker 回退到节点所需能力
func (m *FailureManager) RecordFailure(state *WorkflowState, workerID string, err error) *WorkflowState {
	record := FailureRecord{
		Timestamp:      time.Now(),
		WorkerID:       workerID,
		Classification: classify(err),
		Message:        errorMessage(err),
		Step:           state.CurrentStep,
	}

	m.mu.Lock()
	m.history = append(m.history, record)
	if m.historyMax > 0 && len(m.history) > m.historyMax {
		m.history = append(m.history[:0:0], m.history[len(m.history)-m.historyMax:]...)
	}
	m.mu.Unlock()

	state.Error = ErrorInfo{
		Occurred:           true,
		Message:            fmt.Sprintf("Agent %s failed: %s", workerID, record.Message),
		Code:               types.GetErrorCode(err),
		Step:               state.CurrentStep,
		FailedWorkerID:     workerID,
		RequiredCapability: m.requiredCapability(workerID, state.CurrentStep),
		Details:            &record,
	}

	m.logger.Error("agent failure detected",
		zap.String("workflow_id", state.WorkflowID),
		zap.String("worker_id", workerID),
		zap.String("step", string(state.CurrentStep)),
		zap.String("required_capability", string(state.Error.RequiredCapability)),
		zap.Error(err),
	)
	return state
}

func (m *FailureManager) requiredCapability(workerID string, step Step) types.Capability {
	want := step.RequiredCapability()
	caps, ok := m.dir.CapabilitiesOf(workerID)
	if !ok {
		return want
	}
	if want != "" && caps.Contains(want) {
		return want
	}
	if first, ok := caps.First(); ok {
		return first
	}
	return want
}

// FindBackup 第一个具备所需能力、非故障 Worker、且未处于 error/offline 的 Worker
func (m *FailureManager) FindBackup(state *WorkflowState) (string, bool) {
	capability := state.Error.RequiredCapability
	if capability == "" {
		return "", false
	}

	for _, rec := range m.dir.FindByCapability(capability) {
		if rec.ID == state.Error.FailedWorkerID {
			continue
		}
		if rec.Status == agent.StatusError || rec.Status == agent.StatusOffline {
			continue
		}
		m.logger.Info("backup agent found",
			zap.String("backup_id", rec.ID),
			zap.String("capability", string(capability)),
		)
		return rec.ID, true
	}

	m.logger.Warn("no backup agent available", zap.String("capability", string(capability)))
	return "", false
}

// History 故障历史快照
func (m *FailureManager) History() []FailureRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]FailureRecord(nil), m.history...)
}

// HistoryLen 故障历史长度
func (m *FailureManager) HistoryLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history)
}

// Prune 删除早于 before 的记录，返回删除数量
func (m *FailureManager) Prune(before time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.history[:0]
	for _, r := range m.history {
		if !r.Timestamp.Before(before) {
			kept = append(kept, r)
		}
	}
	removed := len(m.history) - len(kept)
	m.history = kept
	return removed
}

// classify 错误分类：优先使用错误码，否则使用 Go 类型名
func classify(err error) string {
	if err == nil {
		return "unknown"
	}
	if code := types.GetErrorCode(err); code != "" {
		return string(code)
	}
	return fmt.Sprintf("%T", err)
}

func errorMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	var te *types.Error
	if errors.As(err, &te) {
		return te.Message
	}
	return err.Error()
}
