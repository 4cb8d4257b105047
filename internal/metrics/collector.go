// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/BaSui01/agentweaver/agent"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
// 同时满足 hierarchical.Metrics、workflow.Metrics 与 collaboration.Metrics
type Collector struct {
	// 调度指标
	tasksSubmitted *prometheus.CounterVec
	tasksCompleted *prometheus.CounterVec
	taskDuration   *prometheus.HistogramVec
	queueDepth     prometheus.Gauge
	workers        *prometheus.GaugeVec

	// 工作流指标
	workflowRuns     *prometheus.CounterVec
	workflowDuration *prometheus.HistogramVec
	routingDecisions *prometheus.CounterVec
	reroutes         *prometheus.CounterVec

	// 消息指标
	messagesDelivered  *prometheus.CounterVec
	broadcastFanOut    prometheus.Histogram
	broadcastShortfall prometheus.Counter

	// 清理指标
	prunedRecords *prometheus.CounterVec

	// 数据库指标
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器并注册到 reg
// reg 为 nil 时使用 prometheus.DefaultRegisterer
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 调度指标
	c.tasksSubmitted = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_submitted_total",
			Help:      "Total number of submitted tasks by outcome",
		},
		[]string{"outcome"}, // assigned, queued, rejected
	)

	c.tasksCompleted = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_completed_total",
			Help:      "Total number of finished tasks by status",
		},
		[]string{"status"},
	)

	c.taskDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Task execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"status"},
	)

	c.queueDepth = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "task_queue_depth",
			Help:      "Number of tasks waiting for a capable worker",
		},
	)

	c.workers = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers",
			Help:      "Number of registered workers by status",
		},
		[]string{"status"},
	)

	// 工作流指标
	c.workflowRuns = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_runs_total",
			Help:      "Total number of workflow runs by terminal status",
		},
		[]string{"status"},
	)

	c.workflowDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_duration_seconds",
			Help:      "Workflow run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"status"},
	)

	c.routingDecisions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_decisions_total",
			Help:      "Total number of routing decisions by strategy and decision",
		},
		[]string{"strategy", "decision"},
	)

	c.reroutes = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reroutes_total",
			Help:      "Total number of failure reroutes to a backup worker",
		},
		[]string{"capability"},
	)

	// 消息指标
	c.messagesDelivered = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_delivered_total",
			Help:      "Total number of delivered messages by type",
		},
		[]string{"type"},
	)

	c.broadcastFanOut = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "broadcast_recipients",
			Help:      "Number of recipients per broadcast",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		},
	)

	c.broadcastShortfall = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_undelivered_total",
			Help:      "Total number of broadcast copies that could not be delivered",
		},
	)

	// 清理指标
	c.prunedRecords = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retention_pruned_total",
			Help:      "Total number of records removed by retention sweeps",
		},
		[]string{"pruner"},
	)

	// 数据库指标
	c.dbConnectionsOpen = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		},
		[]string{"database"},
	)

	c.dbConnectionsIdle = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
		[]string{"database"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎭 调度指标记录
// =============================================================================

// RecordSubmission 记录任务提交结果
func (c *Collector) RecordSubmission(outcome string) {
	c.tasksSubmitted.WithLabelValues(outcome).Inc()
}

// RecordCompletion 记录任务结束
func (c *Collector) RecordCompletion(status string, duration time.Duration) {
	c.tasksCompleted.WithLabelValues(status).Inc()
	c.taskDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// SetQueueDepth 更新队列深度
func (c *Collector) SetQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}

// SetWorkerCounts 更新各状态 Worker 数，缺失的状态记为 0
func (c *Collector) SetWorkerCounts(counts map[agent.Status]int) {
	for _, status := range []agent.Status{agent.StatusAvailable, agent.StatusBusy, agent.StatusError, agent.StatusOffline} {
		c.workers.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}

// =============================================================================
// 🔀 工作流指标记录
// =============================================================================

// RecordWorkflow 记录工作流运行
func (c *Collector) RecordWorkflow(status string, duration time.Duration) {
	c.workflowRuns.WithLabelValues(status).Inc()
	c.workflowDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordRoutingDecision 记录路由决策
func (c *Collector) RecordRoutingDecision(strategy, decision string) {
	c.routingDecisions.WithLabelValues(strategy, decision).Inc()
}

// RecordReroute 记录一次改派
func (c *Collector) RecordReroute(capability string) {
	c.reroutes.WithLabelValues(capability).Inc()
}

// =============================================================================
// ✉️ 消息指标记录
// =============================================================================

// RecordMessage 记录一条已投递消息
func (c *Collector) RecordMessage(msgType string) {
	c.messagesDelivered.WithLabelValues(msgType).Inc()
}

// RecordBroadcast 记录广播扇出
func (c *Collector) RecordBroadcast(recipients, delivered int) {
	c.broadcastFanOut.Observe(float64(recipients))
	if missed := recipients - delivered; missed > 0 {
		c.broadcastShortfall.Add(float64(missed))
	}
}

// =============================================================================
// 🧹 清理指标记录
// =============================================================================

// RecordPruned 记录清理条数
func (c *Collector) RecordPruned(pruner string, removed int) {
	c.prunedRecords.WithLabelValues(pruner).Add(float64(removed))
}

// =============================================================================
// 🗄️ 数据库指标记录
// =============================================================================

// RecordDBConnections 记录数据库连接数
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}
