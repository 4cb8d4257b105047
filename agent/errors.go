package agent

import "errors"

var (
	// ErrWorkerBusy Worker 正在执行其他任务
	ErrWorkerBusy = errors.New("worker is busy")

	// ErrTaskNotHeld Worker 未持有该任务
	ErrTaskNotHeld = errors.New("worker does not hold task")

	// ErrWorkerPanicked Worker 执行体 panic
	ErrWorkerPanicked = errors.New("worker panicked")
)
