// Package agentweaver wires the scheduler, the workflow engine and the
// messaging hub into a single Orchestrator.
//
// Usage:
//
//	cfg := config.DefaultConfig()
//	o, err := agentweaver.New(cfg, logger)
//	o.RegisterWorker(myAnalyzer)
//	o.Start(ctx)
//	defer o.Shutdown(ctx)
//	state := o.RunWorkflow(ctx, map[string]any{"text": "..."}, "thread-1")
//
// Every component can also be used on its own; see agent/hierarchical,
// workflow and agent/collaboration.
package agentweaver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BaSui01/agentweaver/agent"
	"github.com/BaSui01/agentweaver/agent/collaboration"
	"github.com/BaSui01/agentweaver/agent/hierarchical"
	"github.com/BaSui01/agentweaver/agent/persistence"
	"github.com/BaSui01/agentweaver/config"
	"github.com/BaSui01/agentweaver/internal/database"
	"github.com/BaSui01/agentweaver/internal/metrics"
	"github.com/BaSui01/agentweaver/internal/retention"
	"github.com/BaSui01/agentweaver/internal/server"
	"github.com/BaSui01/agentweaver/types"
	"github.com/BaSui01/agentweaver/workflow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// metricsNamespace Prometheus 指标前缀
const metricsNamespace = "agentweaver"

// Orchestrator 组合调度器、工作流引擎与消息中心
type Orchestrator struct {
	cfg    *config.Config
	logger *zap.Logger

	registry  *prometheus.Registry
	collector *metrics.Collector

	db         *database.PoolManager
	store      persistence.CheckpointStore
	messageLog persistence.MessageLog

	supervisor *hierarchical.Supervisor
	engine     *workflow.Engine
	hub        *collaboration.Hub

	publisher  *bridgePublisher
	natsServer *collaboration.EmbeddedServer
	bridge     *collaboration.Bridge

	sweeper *retention.Sweeper
	http    *server.Manager

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option 配置 Orchestrator
type Option func(*options)

type options struct {
	registry *prometheus.Registry
	tracer   trace.Tracer
	db       *database.PoolManager
}

// WithPrometheusRegistry 使用外部指标注册表
func WithPrometheusRegistry(r *prometheus.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithTracer 为工作流节点启用链路追踪
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithDatabase 复用已打开的连接池（sql 存储）
// 连接池的所有权转移给 Orchestrator，Shutdown 时关闭
func WithDatabase(db *database.PoolManager) Option {
	return func(o *options) { o.db = db }
}

// bridgePublisher 在 NATS 桥接建立之前丢弃发布请求
type bridgePublisher struct {
	bridge atomic.Pointer[collaboration.Bridge]
}

func (p *bridgePublisher) Publish(ctx context.Context, msg collaboration.Message) error {
	b := p.bridge.Load()
	if b == nil {
		return nil
	}
	return b.Publish(ctx, msg)
}

// New 按配置构建 Orchestrator，不启动任何后台任务
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Orchestrator, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
		o.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	orc := &Orchestrator{
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "orchestrator")),
		registry:  o.registry,
		collector: metrics.NewCollector(metricsNamespace, o.registry, logger),
		db:        o.db,
		publisher: &bridgePublisher{},
	}

	if err := orc.openStores(); err != nil {
		orc.closeStores()
		return nil, err
	}

	orc.supervisor = hierarchical.NewSupervisor(cfg.Scheduler.ToScheduler(), logger,
		hierarchical.WithCheckpointStore(orc.store),
		hierarchical.WithMetrics(orc.collector),
	)

	engineOpts := []workflow.Option{
		workflow.WithCheckpointStore(orc.store),
		workflow.WithMetrics(orc.collector),
	}
	if o.tracer != nil {
		engineOpts = append(engineOpts, workflow.WithTracer(o.tracer))
	}
	orc.engine = workflow.NewEngine(cfg.Workflow.ToEngine(), orc.supervisor.Registry(), logger, engineOpts...)

	hubOpts := []collaboration.Option{
		collaboration.WithArchive(orc.messageLog),
		collaboration.WithMetrics(orc.collector),
	}
	if cfg.Messaging.NATS.Enabled {
		hubOpts = append(hubOpts, collaboration.WithPublisher(orc.publisher))
	}
	orc.hub = collaboration.NewHub(cfg.Messaging.ToHub(), logger, hubOpts...)

	if cfg.Retention.Enabled {
		sweeper, err := retention.NewSweeper(cfg.Retention, logger, retention.WithRecorder(orc.collector))
		if err != nil {
			orc.closeStores()
			return nil, err
		}
		sweeper.Register(
			retention.InMemory("failure_history", orc.engine.FailureManager().Prune),
			retention.InMemory("messages", orc.hub.Prune),
			retention.NewPruner("message_log", orc.messageLog.Prune),
			retention.InMemory("tasks", orc.supervisor.Forget),
		)
		orc.sweeper = sweeper
	}

	return orc, nil
}

func (o *Orchestrator) openStores() error {
	storeCfg := o.cfg.Persistence.ToStore()

	if storeCfg.Type == persistence.StoreTypeSQL && o.db == nil {
		db, err := database.Open(o.cfg.Database, o.logger,
			database.WithStatsRecorder(o.collector),
			database.WithName(o.cfg.Database.Name),
		)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		o.db = db
	}

	store, err := persistence.NewCheckpointStore(storeCfg, o.gormDB())
	if err != nil {
		return fmt.Errorf("create checkpoint store: %w", err)
	}
	o.store = store

	messageLog, err := persistence.NewMessageLog(storeCfg)
	if err != nil {
		return fmt.Errorf("create message log: %w", err)
	}
	o.messageLog = messageLog
	return nil
}

func (o *Orchestrator) closeStores() error {
	var errs []error
	if o.messageLog != nil {
		errs = append(errs, o.messageLog.Close())
	}
	if o.store != nil {
		errs = append(errs, o.store.Close())
	}
	if o.db != nil {
		errs = append(errs, o.db.Close())
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) gormDB() *gorm.DB {
	if o.db == nil {
		return nil
	}
	return o.db.DB()
}

// =============================================================================
// 🎯 组件访问
// =============================================================================

// Supervisor 返回任务调度器
func (o *Orchestrator) Supervisor() *hierarchical.Supervisor { return o.supervisor }

// Engine 返回工作流引擎
func (o *Orchestrator) Engine() *workflow.Engine { return o.engine }

// Hub 返回消息中心
func (o *Orchestrator) Hub() *collaboration.Hub { return o.hub }

// Registry 返回指标注册表
func (o *Orchestrator) Registry() *prometheus.Registry { return o.registry }

// =============================================================================
// 🎯 业务入口
// =============================================================================

// RegisterWorker 注册 Worker 并为其开通消息邮箱
func (o *Orchestrator) RegisterWorker(w agent.Worker) string {
	id := o.supervisor.RegisterWorker(w)
	o.hub.Register(id)
	return id
}

// UnregisterWorker 注销 Worker 并关闭其邮箱
func (o *Orchestrator) UnregisterWorker(id string) error {
	if err := o.supervisor.Unregister(id); err != nil {
		return err
	}
	o.hub.Unregister(id)
	return nil
}

// SubmitTask 提交任务并由调度器执行绑定的 Worker
// threadID 非空时覆盖描述符中的会话线程
func (o *Orchestrator) SubmitTask(ctx context.Context, desc types.TaskDescriptor, threadID string) (hierarchical.AssignmentResult, error) {
	if threadID != "" {
		desc.ThreadID = threadID
	}
	return o.supervisor.Dispatch(ctx, desc)
}

// RunWorkflow 运行完整工作流，返回终态（含 final_result）
func (o *Orchestrator) RunWorkflow(ctx context.Context, input map[string]any, threadID string) *workflow.WorkflowState {
	return o.engine.Execute(ctx, input, threadID)
}

// ResumeWorkflow 从检查点恢复中断的工作流
func (o *Orchestrator) ResumeWorkflow(ctx context.Context, threadID string) (*workflow.WorkflowState, error) {
	return o.engine.Resume(ctx, threadID)
}

// SendMessage 通过消息中心发送消息
func (o *Orchestrator) SendMessage(ctx context.Context, msg collaboration.Message) (bool, error) {
	return o.hub.Send(ctx, msg)
}

// Sweep 立即执行一次数据清理；未启用清理时返回空报告
func (o *Orchestrator) Sweep(ctx context.Context) retention.Report {
	if o.sweeper == nil {
		return retention.Report{}
	}
	return o.sweeper.SweepOnce(ctx)
}

// =============================================================================
// 🎯 健康检查
// =============================================================================

// Health 健康报告
type Health struct {
	Status    string                    `json:"status"`
	Store     string                    `json:"store"`
	Database  string                    `json:"database,omitempty"`
	Scheduler hierarchical.HealthReport `json:"scheduler"`
	Workflow  workflow.EngineStatus     `json:"workflow"`
	Messaging collaboration.Stats       `json:"messaging"`
}

// Health 汇总各组件状态；存储不可用时不健康
// 没有空闲 Worker 不影响进程健康，只体现在 scheduler 字段
func (o *Orchestrator) Health(ctx context.Context) (any, bool) {
	h := Health{
		Status:    "healthy",
		Store:     "ok",
		Scheduler: o.supervisor.HealthReport(),
		Workflow:  o.engine.Status(),
		Messaging: o.hub.Stats(),
	}
	healthy := true
	if err := o.store.Ping(ctx); err != nil {
		h.Store = err.Error()
		healthy = false
	}
	if o.db != nil {
		h.Database = "ok"
		if err := o.db.Ping(ctx); err != nil {
			h.Database = err.Error()
			healthy = false
		}
	}
	if !healthy {
		h.Status = "unhealthy"
	}
	return h, healthy
}

// =============================================================================
// 🎯 生命周期
// =============================================================================

// Start 启动指标服务、NATS 桥接与定时清理
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return errors.New("orchestrator is shut down")
	}
	if o.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	if o.cfg.Messaging.NATS.Enabled {
		if err := o.startBridge(runCtx); err != nil {
			cancel()
			return err
		}
	}

	if srvCfg, ok := server.FromServerConfig(o.cfg.Server); ok {
		ops := server.NewManager(server.NewHandler(o.registry, o.Health, o.logger), srvCfg, o.logger)
		if err := ops.Start(); err != nil {
			cancel()
			o.stopBridge()
			return fmt.Errorf("start metrics server: %w", err)
		}
		o.http = ops
	}

	if o.sweeper != nil {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.sweeper.Run(runCtx)
		}()
	}

	o.cancel = cancel
	o.started = true
	o.logger.Info("orchestrator started",
		zap.String("persistence", o.cfg.Persistence.Type),
		zap.Bool("nats", o.cfg.Messaging.NATS.Enabled),
		zap.Bool("retention", o.sweeper != nil),
	)
	return nil
}

func (o *Orchestrator) startBridge(ctx context.Context) error {
	natsCfg := o.cfg.Messaging.NATS.ToBridge()
	url := natsCfg.URL
	if natsCfg.Embedded {
		srv, err := collaboration.StartEmbeddedServer(natsCfg.Port)
		if err != nil {
			return fmt.Errorf("start embedded nats: %w", err)
		}
		o.natsServer = srv
		url = srv.ClientURL()
	}

	bridge, err := collaboration.NewBridge(url, natsCfg.SubjectPrefix, o.logger)
	if err != nil {
		o.stopBridge()
		return fmt.Errorf("connect nats: %w", err)
	}
	o.bridge = bridge
	if _, err := bridge.Relay(ctx, o.hub); err != nil {
		o.stopBridge()
		return fmt.Errorf("subscribe relay: %w", err)
	}
	o.publisher.bridge.Store(bridge)
	return nil
}

func (o *Orchestrator) stopBridge() {
	o.publisher.bridge.Store(nil)
	if o.bridge != nil {
		o.bridge.Close()
		o.bridge = nil
	}
	if o.natsServer != nil {
		o.natsServer.Close()
		o.natsServer = nil
	}
}

// MetricsAddr 指标服务实际监听地址；未启动时为空
func (o *Orchestrator) MetricsAddr() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.http == nil {
		return ""
	}
	return o.http.Addr()
}

// Bridge 返回 NATS 桥接；未启用或未启动时为 nil
func (o *Orchestrator) Bridge() *collaboration.Bridge {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.bridge
}

// Shutdown 停止后台任务并释放资源，可重复调用
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	cancel := o.cancel
	httpSrv := o.http
	o.mu.Unlock()

	start := time.Now()
	var errs []error

	if cancel != nil {
		cancel()
	}
	o.wg.Wait()

	if httpSrv != nil {
		errs = append(errs, httpSrv.Shutdown(ctx))
	}
	errs = append(errs, o.supervisor.Shutdown(ctx))

	o.mu.Lock()
	o.stopBridge()
	o.mu.Unlock()

	errs = append(errs, o.closeStores())

	err := errors.Join(errs...)
	if err != nil {
		o.logger.Warn("orchestrator shutdown with errors", zap.Error(err))
	} else {
		o.logger.Info("orchestrator stopped", zap.Duration("took", time.Since(start)))
	}
	return err
}
