package retention

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/agentweaver/config"
	"github.com/adhocore/gronx"
	"go.uber.org/zap"
)

// =============================================================================
// 🧹 历史清理
// =============================================================================

// Pruner 删除早于 before 的记录，返回删除数量
type Pruner interface {
	Name() string
	Prune(ctx context.Context, before time.Time) (int, error)
}

// PruneFunc 函数形式的 Pruner
type PruneFunc func(ctx context.Context, before time.Time) (int, error)

type funcPruner struct {
	name string
	fn   PruneFunc
}

func (p funcPruner) Name() string { return p.name }

func (p funcPruner) Prune(ctx context.Context, before time.Time) (int, error) {
	return p.fn(ctx, before)
}

// NewPruner 包装函数为 Pruner
func NewPruner(name string, fn PruneFunc) Pruner {
	return funcPruner{name: name, fn: fn}
}

// InMemory 包装不会失败的内存清理函数，如 Hub.Prune
func InMemory(name string, fn func(before time.Time) int) Pruner {
	return NewPruner(name, func(_ context.Context, before time.Time) (int, error) {
		return fn(before), nil
	})
}

// Recorder 清理指标钩子
type Recorder interface {
	RecordPruned(pruner string, removed int)
}

// Report 一次清理的结果
type Report struct {
	Cutoff  time.Time         `json:"cutoff"`
	Removed map[string]int    `json:"removed"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// Total 删除总数
func (r Report) Total() int {
	total := 0
	for _, n := range r.Removed {
		total += n
	}
	return total
}

// Sweeper 按 cron 表达式周期性运行所有 Pruner
type Sweeper struct {
	schedule string
	maxAge   time.Duration
	cron     *gronx.Gronx
	now      func() time.Time
	recorder Recorder
	logger   *zap.Logger

	mu      sync.Mutex
	pruners []Pruner
}

// Option Sweeper 选项
type Option func(*Sweeper)

// WithRecorder 上报清理数量
func WithRecorder(r Recorder) Option {
	return func(s *Sweeper) { s.recorder = r }
}

// WithClock 替换时间来源
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// NewSweeper 创建清理器，cron 表达式非法或保留时长非正时返回错误
func NewSweeper(cfg config.RetentionConfig, logger *zap.Logger, opts ...Option) (*Sweeper, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cron := gronx.New()
	if !cron.IsValid(cfg.Schedule) {
		return nil, fmt.Errorf("invalid retention schedule %q", cfg.Schedule)
	}
	if cfg.MaxAge <= 0 {
		return nil, fmt.Errorf("retention max age must be positive, got %s", cfg.MaxAge)
	}
	s := &Sweeper{
		schedule: cfg.Schedule,
		maxAge:   cfg.MaxAge,
		cron:     cron,
		now:      time.Now,
		logger:   logger.With(zap.String("component", "retention")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register 注册 Pruner，按注册顺序执行
func (s *Sweeper) Register(pruners ...Pruner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruners = append(s.pruners, pruners...)
}

// NextRun 下一次执行时间
func (s *Sweeper) NextRun(after time.Time) (time.Time, error) {
	return gronx.NextTickAfter(s.schedule, after, false)
}

// SweepOnce 立即执行一次；单个 Pruner 失败不影响其余
func (s *Sweeper) SweepOnce(ctx context.Context) Report {
	s.mu.Lock()
	pruners := append([]Pruner(nil), s.pruners...)
	s.mu.Unlock()

	report := Report{
		Cutoff:  s.now().Add(-s.maxAge),
		Removed: make(map[string]int, len(pruners)),
	}
	for _, p := range pruners {
		if ctx.Err() != nil {
			break
		}
		removed, err := p.Prune(ctx, report.Cutoff)
		if err != nil {
			if report.Errors == nil {
				report.Errors = make(map[string]string)
			}
			report.Errors[p.Name()] = err.Error()
			s.logger.Warn("pruner failed", zap.String("pruner", p.Name()), zap.Error(err))
			continue
		}
		report.Removed[p.Name()] = removed
		if s.recorder != nil {
			s.recorder.RecordPruned(p.Name(), removed)
		}
	}

	s.logger.Debug("retention sweep finished",
		zap.Time("cutoff", report.Cutoff),
		zap.Int("removed", report.Total()),
		zap.Int("failed", len(report.Errors)),
	)
	return report
}

// Run 阻塞运行直到 ctx 取消
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("retention sweeper started",
		zap.String("schedule", s.schedule),
		zap.Duration("max_age", s.maxAge),
	)
	defer s.logger.Info("retention sweeper stopped")

	for {
		next, err := s.NextRun(s.now())
		if err != nil {
			s.logger.Error("failed to compute next retention run", zap.Error(err))
			return
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.SweepOnce(ctx)
		}
	}
}
