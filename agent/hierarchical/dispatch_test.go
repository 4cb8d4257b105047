package hierarchical

import (
	"context"
	"testing"
	"time"

	"github.com/BaSui01/agentweaver/agent"
	"github.com/BaSui01/agentweaver/testutil"
	"github.com/BaSui01/agentweaver/testutil/fixtures"
	"github.com/BaSui01/agentweaver/testutil/mocks"
	"github.com/BaSui01/agentweaver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock Worker 执行测试 ---

func TestDispatch_MockWorkerFailsAfterQuota(t *testing.T) {
	s := newTestSupervisor(t)
	w := mocks.NewMockWorker("proc", types.CapabilityDataProcessing).
		WithResult(map[string]any{"ok": true}).
		FailAfter(1)
	s.RegisterWorker(w)
	ctx := testutil.TestContext(t)

	first, err := s.Execute(ctx, fixtures.ProcessingTask("first"))
	require.NoError(t, err)
	testutil.AssertTaskStatus(t, types.TaskCompleted, first)
	assert.Equal(t, map[string]any{"ok": true}, first.Result)

	second, err := s.Execute(ctx, fixtures.ProcessingTask("second"))
	require.NoError(t, err)
	testutil.AssertTaskStatus(t, types.TaskFailed, second)
	assert.Contains(t, second.Error, mocks.ErrMockFailure.Error())

	assert.Equal(t, 2, w.CallCount())
	rec, _ := s.Registry().Get("proc")
	assert.Equal(t, 1, rec.Performance.TasksCompleted)
	assert.Equal(t, 1, rec.Performance.TasksFailed)
}

func TestDispatch_SlowMockWorkerTimesOut(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TaskTimeout = 50 * time.Millisecond
	s := NewSupervisor(cfg, nil)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	s.RegisterWorker(mocks.NewMockWorker("slow", types.CapabilityTextAnalysis).WithDelay(time.Second))

	task, err := s.Execute(testutil.TestContext(t), fixtures.AnalysisTask("slow"))
	require.NoError(t, err)
	testutil.AssertTaskStatus(t, types.TaskFailed, task)

	rec, _ := s.Registry().Get("slow")
	assert.Equal(t, agent.StatusAvailable, rec.Status)
}

func TestDispatch_QueuedTaskRunsWhenWorkerArrives(t *testing.T) {
	s := newTestSupervisor(t)

	res, err := s.Dispatch(context.Background(), fixtures.AnalysisTask("later"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeQueued, res.Outcome)

	w := mocks.NewMockWorker("analyzer", types.CapabilityTextAnalysis).WithResult(fixtures.PositiveAnalysis())
	s.RegisterWorker(w)

	testutil.AssertEventuallyTrue(t, func() bool { return w.CallCount() == 1 }, 2*time.Second)
	task, err := s.Await(testutil.TestContextWithTimeout(t, 2*time.Second), res.TaskID)
	require.NoError(t, err)
	testutil.AssertTaskStatus(t, types.TaskCompleted, task)
	require.Len(t, w.Calls(), 1)
	assert.Equal(t, res.TaskID, w.Calls()[0].TaskID)
	assert.Equal(t, "The service was great", w.Calls()[0].Params["text"])
}

func TestDispatch_UnhealthyMockWorker(t *testing.T) {
	s := newTestSupervisor(t)
	s.RegisterWorker(mocks.NewMockWorker("sick").WithHealthy(false))

	assert.False(t, s.CheckHealth(context.Background())["sick"])
	rec, _ := s.Registry().Get("sick")
	assert.Equal(t, agent.StatusError, rec.Status)
}
