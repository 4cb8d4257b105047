// Package pool provides the bounded goroutine pool that runs worker bodies
// outside the scheduler's critical section.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	ErrPoolClosed = errors.New("pool is closed")
	ErrPoolFull   = errors.New("pool is full")
)

// Job represents a unit of work.
type Job func(ctx context.Context) error

// Config configures the pool.
type Config struct {
	MaxWorkers  int           `json:"max_workers" yaml:"max_workers"`
	QueueSize   int           `json:"queue_size" yaml:"queue_size"`
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxWorkers:  16,
		QueueSize:   256,
		IdleTimeout: 30 * time.Second,
	}
}

type envelope struct {
	job    Job
	ctx    context.Context
	result chan error
}

// Pool runs jobs on a bounded, lazily grown set of goroutines.
type Pool struct {
	cfg    Config
	queue  chan envelope
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	workers atomic.Int32
	active  atomic.Int32

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
}

// New creates a pool.
func New(cfg Config, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = DefaultConfig().MaxWorkers
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultConfig().IdleTimeout
	}
	return &Pool{
		cfg:    cfg,
		queue:  make(chan envelope, cfg.QueueSize),
		logger: logger.With(zap.String("component", "dispatch_pool")),
	}
}

// Submit enqueues a job without waiting for it.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	p.submitted.Add(1)
	env := envelope{job: job, ctx: ctx}

	select {
	case p.queue <- env:
		p.grow()
		return nil
	default:
	}

	// 队列已满时尝试扩容后再投递一次
	if p.grow() {
		select {
		case p.queue <- env:
			return nil
		case <-time.After(10 * time.Millisecond):
		}
	}
	p.rejected.Add(1)
	return ErrPoolFull
}

// SubmitWait enqueues a job and blocks until it finishes or ctx ends.
func (p *Pool) SubmitWait(ctx context.Context, job Job) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPoolClosed
	}

	p.submitted.Add(1)
	env := envelope{job: job, ctx: ctx, result: make(chan error, 1)}

	select {
	case p.queue <- env:
		p.grow()
		p.mu.RUnlock()
	case <-ctx.Done():
		p.mu.RUnlock()
		p.rejected.Add(1)
		return ctx.Err()
	}

	select {
	case err := <-env.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) grow() bool {
	for {
		current := p.workers.Load()
		if current >= int32(p.cfg.MaxWorkers) {
			return false
		}
		if p.workers.CompareAndSwap(current, current+1) {
			p.wg.Add(1)
			go p.loop()
			return true
		}
	}
}

func (p *Pool) loop() {
	defer p.wg.Done()
	defer p.workers.Add(-1)

	idle := time.NewTimer(p.cfg.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case env, ok := <-p.queue:
			if !ok {
				return
			}
			p.active.Add(1)
			err := p.run(env)
			p.active.Add(-1)

			if env.result != nil {
				env.result <- err
			}
			if err != nil {
				p.failed.Add(1)
			} else {
				p.completed.Add(1)
			}
			idle.Reset(p.cfg.IdleTimeout)

		case <-idle.C:
			if p.workers.Load() > 1 {
				return
			}
			idle.Reset(p.cfg.IdleTimeout)
		}
	}
}

func (p *Pool) run(env envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job panicked", zap.Any("panic", r))
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return env.job(env.ctx)
}

// Shutdown stops accepting jobs and waits for queued ones to drain.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns pool statistics.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   int(p.workers.Load()),
		Active:    int(p.active.Load()),
		Queued:    len(p.queue),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
	}
}

// Stats contains pool statistics.
type Stats struct {
	Workers   int   `json:"workers"`
	Active    int   `json:"active"`
	Queued    int   `json:"queued"`
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
}
