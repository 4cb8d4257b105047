package ctxkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeys_RoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = WithTaskID(ctx, "t1")
	ctx = WithWorkerID(ctx, "w1")
	ctx = WithThreadID(ctx, "thread")
	ctx = WithWorkflowID(ctx, "wf")

	v, ok := TaskID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "t1", v)
	v, _ = WorkerID(ctx)
	assert.Equal(t, "w1", v)
	v, _ = ThreadID(ctx)
	assert.Equal(t, "thread", v)
	v, _ = WorkflowID(ctx)
	assert.Equal(t, "wf", v)
}

func TestKeys_EmptyValueIgnored(t *testing.T) {
	ctx := WithThreadID(context.Background(), "")
	_, ok := ThreadID(ctx)
	assert.False(t, ok)

	_, ok = TaskID(context.Background())
	assert.False(t, ok)
}
