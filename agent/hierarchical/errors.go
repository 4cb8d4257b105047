package hierarchical

import (
	"fmt"

	"github.com/BaSui01/agentweaver/types"
)

// 哨兵错误，按错误码匹配：errors.Is(err, ErrWorkerNotFound)
var (
	ErrWorkerNotFound   = types.NewError(types.ErrWorkerNotFound, "worker not found")
	ErrTaskNotFound     = types.NewError(types.ErrTaskNotFound, "task not found")
	ErrTaskMismatch     = types.NewError(types.ErrTaskMismatch, "worker does not hold task")
	ErrSchedulerClosed  = types.NewError(types.ErrSchedulerClosed, "scheduler is closed")
	ErrExecutorNotBound = types.NewError(types.ErrExecutorNotBound, "no executor bound to worker")
)

func workerNotFound(id string) error {
	return types.NewError(types.ErrWorkerNotFound, fmt.Sprintf("worker %s not found", id)).WithWorker(id)
}

func taskNotFound(id string) error {
	return types.NewError(types.ErrTaskNotFound, fmt.Sprintf("task %s not found", id))
}

func taskMismatch(taskID, workerID, held string) error {
	msg := fmt.Sprintf("worker %s does not hold task %s", workerID, taskID)
	if held != "" {
		msg += fmt.Sprintf(" (holds %s)", held)
	}
	return types.NewError(types.ErrTaskMismatch, msg).WithWorker(workerID)
}
