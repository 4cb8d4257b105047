package hierarchical

import (
	"time"

	"github.com/BaSui01/agentweaver/agent"
)

// WorkerDetail 单个 Worker 的健康信息
type WorkerDetail struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Status       agent.Status      `json:"status"`
	Capabilities []string          `json:"capabilities"`
	CurrentTask  string            `json:"current_task,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Performance  agent.Performance `json:"performance"`
	LastUpdated  time.Time         `json:"last_updated"`
}

// HealthReport 调度器快照
type HealthReport struct {
	TotalWorkers     int            `json:"total_workers"`
	AvailableWorkers int            `json:"available_workers"`
	BusyWorkers      int            `json:"busy_workers"`
	ErrorWorkers     int            `json:"error_workers"`
	OfflineWorkers   int            `json:"offline_workers"`
	QueuedTasks      int            `json:"queued_tasks"`
	TotalTasks       int            `json:"total_tasks"`
	Workers          []WorkerDetail `json:"workers"`
	GeneratedAt      time.Time      `json:"generated_at"`
}

// Healthy 至少一个 Worker 可用或正在工作
func (h HealthReport) Healthy() bool {
	return h.AvailableWorkers+h.BusyWorkers > 0
}

// HealthReport 生成只读快照，无副作用
func (s *Supervisor) HealthReport() HealthReport {
	s.mu.Lock()
	queued := len(s.queue)
	total := len(s.tasks)
	records := s.registry.List()
	s.mu.Unlock()

	report := HealthReport{
		TotalWorkers: len(records),
		QueuedTasks:  queued,
		TotalTasks:   total,
		Workers:      make([]WorkerDetail, 0, len(records)),
		GeneratedAt:  time.Now(),
	}
	for _, rec := range records {
		switch rec.Status {
		case agent.StatusAvailable:
			report.AvailableWorkers++
		case agent.StatusBusy:
			report.BusyWorkers++
		case agent.StatusError:
			report.ErrorWorkers++
		default:
			report.OfflineWorkers++
		}
		report.Workers = append(report.Workers, WorkerDetail{
			ID:           rec.ID,
			Name:         rec.Name,
			Status:       rec.Status,
			Capabilities: rec.Capabilities.Strings(),
			CurrentTask:  rec.CurrentTaskID,
			ErrorMessage: rec.ErrorMessage,
			Performance:  rec.Performance,
			LastUpdated:  rec.LastUpdated,
		})
	}
	return report
}
