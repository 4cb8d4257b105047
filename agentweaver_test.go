package agentweaver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/BaSui01/agentweaver/agent/collaboration"
	"github.com/BaSui01/agentweaver/config"
	"github.com/BaSui01/agentweaver/internal/server"
	"github.com/BaSui01/agentweaver/testutil"
	"github.com/BaSui01/agentweaver/testutil/fixtures"
	"github.com/BaSui01/agentweaver/testutil/mocks"
	"github.com/BaSui01/agentweaver/types"
	"github.com/BaSui01/agentweaver/workflow"
	natsserver "github.com/nats-io/nats-server/v2/server"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Server.MetricsPort = 0
	cfg.Workflow.StepTimeout = time.Second
	cfg.Scheduler.TaskTimeout = time.Second
	return cfg
}

func newOrchestrator(t *testing.T, cfg *config.Config) *Orchestrator {
	t.Helper()
	o, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Shutdown(context.Background()) })
	return o
}

// registerPipeline 注册走正面路由所需的两个 Worker
func registerPipeline(o *Orchestrator) (analyzer, processor *mocks.MockWorker) {
	analyzer = mocks.NewMockWorker("text_analyzer", types.CapabilityTextAnalysis).
		WithResult(fixtures.PositiveAnalysis())
	processor = mocks.NewMockWorker("positive_processor", types.CapabilityDataProcessing).
		WithResult(map[string]any{"processed": true})
	o.RegisterWorker(analyzer)
	o.RegisterWorker(processor)
	return analyzer, processor
}

// --- 构建测试 ---

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Workflow.Strategy = "coin_flip"

	_, err := New(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestNew_NilConfigUsesDefaults(t *testing.T) {
	o, err := New(nil, nil)
	require.NoError(t, err)
	defer o.Shutdown(context.Background())

	assert.NotNil(t, o.Supervisor())
	assert.NotNil(t, o.Engine())
	assert.NotNil(t, o.Hub())
	assert.Equal(t, workflow.StrategySentiment, o.Engine().Status().Strategy)
}

func TestNew_FileStore(t *testing.T) {
	cfg := testConfig()
	cfg.Persistence.Type = "file"
	cfg.Persistence.BaseDir = filepath.Join(t.TempDir(), "checkpoints")
	o := newOrchestrator(t, cfg)
	registerPipeline(o)

	state := o.RunWorkflow(context.Background(), map[string]any{"text": "great"}, "file-thread")
	require.Equal(t, workflow.StatusCompleted, state.Status)

	loaded, err := o.Engine().Load(context.Background(), "file-thread")
	require.NoError(t, err)
	assert.Equal(t, state.WorkflowID, loaded.WorkflowID)
}

func TestNew_SQLiteStore(t *testing.T) {
	cfg := testConfig()
	cfg.Persistence.Type = "sql"
	cfg.Database.Driver = "sqlite"
	cfg.Database.Name = filepath.Join(t.TempDir(), "agentweaver.db")
	o := newOrchestrator(t, cfg)
	registerPipeline(o)

	state := o.RunWorkflow(context.Background(), map[string]any{"text": "great"}, "sql-thread")
	require.Equal(t, workflow.StatusCompleted, state.Status)

	report, healthy := o.Health(context.Background())
	assert.True(t, healthy)
	assert.Equal(t, "ok", report.(Health).Database)
}

// --- 业务入口测试 ---

func TestOrchestrator_RunWorkflow(t *testing.T) {
	o := newOrchestrator(t, testConfig())
	analyzer, processor := registerPipeline(o)

	state := o.RunWorkflow(testutil.TestContext(t), fixtures.WorkflowInput("This is great"), "t1")

	assert.Equal(t, workflow.StatusCompleted, state.Status)
	require.NotNil(t, state.FinalResult)
	assert.Equal(t, "positive", state.FinalResult.Route)
	assert.Equal(t, map[string]any{"processed": true}, state.FinalResult.Processing)
	assert.Equal(t, 1, analyzer.CallCount())
	require.Len(t, processor.Calls(), 1)
	assert.Equal(t, string(workflow.StepPositiveProcessor), processor.Calls()[0].Step)
	assert.Equal(t, state.WorkflowID, processor.Calls()[0].WorkflowID)
	assert.Equal(t, "t1", processor.Calls()[0].ThreadID)

	count, err := promtest.GatherAndCount(o.Registry(), "agentweaver_workflow_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestOrchestrator_ResumeCompletedWorkflow(t *testing.T) {
	o := newOrchestrator(t, testConfig())
	registerPipeline(o)

	first := o.RunWorkflow(context.Background(), map[string]any{"text": "great"}, "resume")
	resumed, err := o.ResumeWorkflow(context.Background(), "resume")
	require.NoError(t, err)
	assert.Equal(t, first.WorkflowID, resumed.WorkflowID)
	assert.Equal(t, workflow.StatusCompleted, resumed.Status)
}

func TestOrchestrator_SubmitTask(t *testing.T) {
	o := newOrchestrator(t, testConfig())
	_, processor := registerPipeline(o)

	res, err := o.SubmitTask(context.Background(), fixtures.ProcessingTask("process"), "thread-42")
	require.NoError(t, err)
	require.True(t, res.Assigned())
	assert.Equal(t, "positive_processor", res.WorkerID)

	task, err := o.Supervisor().Await(testutil.TestContextWithTimeout(t, 2*time.Second), res.TaskID)
	require.NoError(t, err)
	testutil.AssertTaskStatus(t, types.TaskCompleted, task)
	assert.Equal(t, "thread-42", task.ThreadID)
	assert.Equal(t, map[string]any{"processed": true}, task.Result)
	require.Len(t, processor.Calls(), 1)
	assert.Equal(t, "thread-42", processor.Calls()[0].ThreadID)
}

func TestOrchestrator_SubmitTaskQueuesWithoutWorker(t *testing.T) {
	o := newOrchestrator(t, testConfig())

	res, err := o.SubmitTask(context.Background(), fixtures.UnmatchableTask(), "")
	require.NoError(t, err)
	assert.False(t, res.Assigned())
	assert.Equal(t, 1, o.Supervisor().QueueLength())
}

func TestOrchestrator_RegisterOpensMailbox(t *testing.T) {
	o := newOrchestrator(t, testConfig())
	registerPipeline(o)

	assert.True(t, o.Hub().IsRegistered("text_analyzer"))

	msg := fixtures.Request("text_analyzer", "positive_processor", "hi")
	ok, err := o.SendMessage(context.Background(), msg)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, o.Hub().Inbox("positive_processor"), 1)

	require.NoError(t, o.UnregisterWorker("positive_processor"))
	assert.False(t, o.Hub().IsRegistered("positive_processor"))
	assert.Error(t, o.UnregisterWorker("positive_processor"))
}

func TestOrchestrator_Sweep(t *testing.T) {
	cfg := testConfig()
	cfg.Retention.MaxAge = time.Nanosecond
	o := newOrchestrator(t, cfg)
	registerPipeline(o)

	msg := fixtures.Request("text_analyzer", "positive_processor", "hi")
	_, err := o.SendMessage(context.Background(), msg)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	report := o.Sweep(context.Background())
	assert.Empty(t, report.Errors)
	assert.Equal(t, 1, report.Removed["messages"])
	assert.Equal(t, 1, report.Removed["message_log"])
	assert.Contains(t, report.Removed, "failure_history")
	assert.Contains(t, report.Removed, "tasks")
	assert.Empty(t, o.Hub().History())
}

func TestOrchestrator_SweepDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Retention.Enabled = false
	o := newOrchestrator(t, cfg)

	assert.Zero(t, o.Sweep(context.Background()).Total())
}

// --- 健康检查测试 ---

func TestOrchestrator_HealthHandler(t *testing.T) {
	o := newOrchestrator(t, testConfig())
	registerPipeline(o)

	srv := httptest.NewServer(server.NewHandler(o.Registry(), o.Health, zap.NewNop()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	scheduler := body["scheduler"].(map[string]any)
	assert.Equal(t, float64(2), scheduler["total_workers"])
}

func TestOrchestrator_UnhealthyAfterShutdown(t *testing.T) {
	o, err := New(testConfig(), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, o.Shutdown(context.Background()))

	report, healthy := o.Health(context.Background())
	assert.False(t, healthy)
	assert.Equal(t, "unhealthy", report.(Health).Status)
}

// --- 生命周期测试 ---

func TestOrchestrator_StartAndShutdown(t *testing.T) {
	cfg := testConfig()
	o, err := New(cfg, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, o.Start(context.Background()))
	require.NoError(t, o.Start(context.Background()))
	assert.Empty(t, o.MetricsAddr())

	require.NoError(t, o.Shutdown(context.Background()))
	require.NoError(t, o.Shutdown(context.Background()))
	assert.Error(t, o.Start(context.Background()))
}

func TestOrchestrator_StartServesMetrics(t *testing.T) {
	cfg := testConfig()
	cfg.Server.MetricsPort = 0
	o := newOrchestrator(t, cfg)

	// 端口 0 不启动服务，直接挂载到临时监听
	mgr := server.NewManager(server.NewHandler(o.Registry(), o.Health, nil), server.Config{Addr: "127.0.0.1:0"}, zap.NewNop())
	require.NoError(t, mgr.Start())
	defer mgr.Shutdown(context.Background())

	registerPipeline(o)
	o.RunWorkflow(context.Background(), map[string]any{"text": "great"}, "")

	resp, err := http.Get("http://" + mgr.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOrchestrator_NATSBridge(t *testing.T) {
	cfg := testConfig()
	cfg.Messaging.NATS.Enabled = true
	cfg.Messaging.NATS.Embedded = true
	cfg.Messaging.NATS.Port = natsserver.RANDOM_PORT
	o := newOrchestrator(t, cfg)
	require.NoError(t, o.Start(context.Background()))
	registerPipeline(o)

	bridge := o.Bridge()
	require.NotNil(t, bridge)

	received := make(chan collaboration.Message, 1)
	_, err := bridge.Subscribe("positive_processor", func(m collaboration.Message) { received <- m })
	require.NoError(t, err)
	require.NoError(t, bridge.Flush())

	msg := fixtures.Request("text_analyzer", "positive_processor", "hi")
	ok, err := o.SendMessage(context.Background(), msg)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, bridge.Flush())

	got, ok := testutil.WaitForChannel(received, 2*time.Second)
	require.True(t, ok, "timeout waiting for bridged message")
	assert.Equal(t, msg.ID, got.ID)
}
