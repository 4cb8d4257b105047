package metrics

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/agentweaver/agent"
	"github.com/BaSui01/agentweaver/agent/collaboration"
	"github.com/BaSui01/agentweaver/agent/hierarchical"
	"github.com/BaSui01/agentweaver/workflow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	_ hierarchical.Metrics  = (*Collector)(nil)
	_ workflow.Metrics      = (*Collector)(nil)
	_ collaboration.Metrics = (*Collector)(nil)
)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCollector("test", reg, zap.NewNop()), reg
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector, reg := newTestCollector(t)

	assert.NotNil(t, collector.tasksSubmitted)
	assert.NotNil(t, collector.workflowRuns)
	assert.NotNil(t, collector.messagesDelivered)

	// 同一 registry 重复注册会 panic
	assert.Panics(t, func() { NewCollector("test", reg, zap.NewNop()) })
}

func TestCollector_RecordSubmission(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.RecordSubmission("assigned")
	collector.RecordSubmission("assigned")
	collector.RecordSubmission("queued")

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.tasksSubmitted.WithLabelValues("assigned")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.tasksSubmitted.WithLabelValues("queued")))
}

func TestCollector_RecordCompletion(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.RecordCompletion("completed", 200*time.Millisecond)
	collector.RecordCompletion("failed", time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.tasksCompleted.WithLabelValues("completed")))
	assert.Equal(t, 2, testutil.CollectAndCount(collector.taskDuration))
}

func TestCollector_QueueAndWorkers(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.SetQueueDepth(4)
	collector.SetWorkerCounts(map[agent.Status]int{
		agent.StatusAvailable: 2,
		agent.StatusBusy:      1,
	})

	assert.Equal(t, 4.0, testutil.ToFloat64(collector.queueDepth))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.workers.WithLabelValues("available")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.workers.WithLabelValues("busy")))
	assert.Equal(t, 0.0, testutil.ToFloat64(collector.workers.WithLabelValues("error")))
	assert.Equal(t, 4, testutil.CollectAndCount(collector.workers))

	// 状态变化后旧值被覆盖
	collector.SetWorkerCounts(map[agent.Status]int{agent.StatusOffline: 3})
	assert.Equal(t, 0.0, testutil.ToFloat64(collector.workers.WithLabelValues("available")))
	assert.Equal(t, 3.0, testutil.ToFloat64(collector.workers.WithLabelValues("offline")))
}

func TestCollector_WorkflowMetrics(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.RecordWorkflow("completed", 2*time.Second)
	collector.RecordRoutingDecision("sentiment_based", "positive")
	collector.RecordRoutingDecision("sentiment_based", "positive")
	collector.RecordReroute("text_analysis")

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.workflowRuns.WithLabelValues("completed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.routingDecisions.WithLabelValues("sentiment_based", "positive")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.reroutes.WithLabelValues("text_analysis")))
}

func TestCollector_MessageMetrics(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.RecordMessage("request")
	collector.RecordBroadcast(4, 3)
	collector.RecordBroadcast(2, 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.messagesDelivered.WithLabelValues("request")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.broadcastShortfall))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.broadcastFanOut))
}

func TestCollector_RecordPruned(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.RecordPruned("messages", 5)
	collector.RecordPruned("messages", 2)

	assert.Equal(t, 7.0, testutil.ToFloat64(collector.prunedRecords.WithLabelValues("messages")))
}

func TestCollector_UpdateConnectionPool(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.RecordDBConnections("postgres", 10, 5)

	assert.Equal(t, 10.0, testutil.ToFloat64(collector.dbConnectionsOpen.WithLabelValues("postgres")))
	assert.Equal(t, 5.0, testutil.ToFloat64(collector.dbConnectionsIdle.WithLabelValues("postgres")))
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector, _ := newTestCollector(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.RecordSubmission("assigned")
			collector.RecordMessage("broadcast")
			collector.RecordWorkflow("failed", time.Millisecond)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10.0, testutil.ToFloat64(collector.tasksSubmitted.WithLabelValues("assigned")))
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.messagesDelivered.WithLabelValues("broadcast")))
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.workflowRuns.WithLabelValues("failed")))
}

func TestCollector_GatherFromRegistry(t *testing.T) {
	collector, reg := newTestCollector(t)

	collector.RecordSubmission("queued")
	collector.SetQueueDepth(1)

	expected := `
# HELP test_task_queue_depth Number of tasks waiting for a capable worker
# TYPE test_task_queue_depth gauge
test_task_queue_depth 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "test_task_queue_depth"))
}
