package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPool_SubmitWait(t *testing.T) {
	p := New(Config{MaxWorkers: 2, QueueSize: 4}, zap.NewNop())
	defer p.Shutdown(context.Background())

	var ran atomic.Int32
	err := p.SubmitWait(context.Background(), func(context.Context) error {
		ran.Add(1)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), ran.Load())

	boom := errors.New("boom")
	err = p.SubmitWait(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestPool_PanicIsRecovered(t *testing.T) {
	p := New(Config{MaxWorkers: 1, QueueSize: 1}, zap.NewNop())
	defer p.Shutdown(context.Background())

	err := p.SubmitWait(context.Background(), func(context.Context) error { panic("bad") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestPool_ShutdownDrainsAndRejects(t *testing.T) {
	p := New(Config{MaxWorkers: 2, QueueSize: 8}, zap.NewNop())

	var done atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Submit(context.Background(), func(context.Context) error {
			time.Sleep(5 * time.Millisecond)
			done.Add(1)
			return nil
		}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))
	assert.Equal(t, int32(5), done.Load())

	assert.ErrorIs(t, p.Submit(context.Background(), func(context.Context) error { return nil }), ErrPoolClosed)
	assert.ErrorIs(t, p.SubmitWait(context.Background(), func(context.Context) error { return nil }), ErrPoolClosed)
	assert.NoError(t, p.Shutdown(ctx), "shutdown is idempotent")

	stats := p.Stats()
	assert.Equal(t, int64(5), stats.Completed)
}
