package hierarchical

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/agentweaver/agent"
	"github.com/BaSui01/agentweaver/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// launch 在执行池上运行已分配的任务
func (s *Supervisor) launch(taskID, workerID string) {
	err := s.pool.Submit(s.baseCtx, func(ctx context.Context) error {
		s.runTask(ctx, taskID, workerID)
		return nil
	})
	if err == nil {
		return
	}

	s.logger.Warn("dispatch rejected", zap.String("task_id", taskID), zap.Error(err))
	failure := types.NewError(types.ErrDispatchQueueFull, "dispatch pool rejected task").WithCause(err)
	if cerr := s.CompleteTask(taskID, workerID, nil, failure, 0); cerr != nil {
		s.logger.Debug("could not report rejected task", zap.String("task_id", taskID), zap.Error(cerr))
	}
}

// runTask 锁外执行任务体并回报结果
// 每次调用创建独立的 ExecutionContext，截止时间由 TaskTimeout 决定
func (s *Supervisor) runTask(ctx context.Context, taskID, workerID string) {
	task, ok := s.Task(taskID)
	if !ok {
		return
	}

	var (
		result map[string]any
		err    error
	)
	start := time.Now()

	w, bound := s.registry.Worker(workerID)
	if !bound {
		err = types.NewError(types.ErrExecutorNotBound, "no executor bound to worker").WithWorker(workerID)
	} else {
		execCtx := agent.NewExecutionContext(&task)
		tctx, cancel := context.WithTimeout(ctx, s.config.TaskTimeout)
		result, err = agent.SafeExecute(tctx, w, &task, execCtx)
		cancel()
	}

	if cerr := s.CompleteTask(taskID, workerID, result, err, time.Since(start)); cerr != nil {
		// Worker 在执行期间被标记为 error / offline 或被注销
		s.logger.Debug("completion discarded",
			zap.String("task_id", taskID),
			zap.String("worker_id", workerID),
			zap.Error(cerr),
		)
	}
}

// Execute 提交任务并同步等待其终态
// 已分配的任务在当前 goroutine 执行，排队的任务在分配后由执行池运行
func (s *Supervisor) Execute(ctx context.Context, desc types.TaskDescriptor) (types.Task, error) {
	res, err := s.submit(ctx, desc, runInline)
	if err != nil {
		return types.Task{}, err
	}

	if res.Assigned() {
		s.runTask(ctx, res.TaskID, res.WorkerID)
	}
	return s.Await(ctx, res.TaskID)
}

// FanOut 并发执行互不依赖的任务
// 并发度上限为已注册 Worker 的数量；返回顺序与输入一致
func (s *Supervisor) FanOut(ctx context.Context, descs []types.TaskDescriptor) ([]types.Task, error) {
	limit := s.registry.Len()
	if limit < 1 {
		limit = 1
	}

	results := make([]types.Task, len(descs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, desc := range descs {
		g.Go(func() error {
			t, err := s.Execute(gctx, desc)
			if err != nil {
				return err
			}
			results[i] = t
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return results, types.NewError(types.ErrTimeout, "fan-out interrupted").WithCause(err)
		}
		return results, err
	}
	return results, nil
}
