package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BaSui01/agentweaver"
	"github.com/BaSui01/agentweaver/config"
	"github.com/BaSui01/agentweaver/internal/telemetry"
	"go.uber.org/zap"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 组合遥测与编排器的进程级生命周期
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	telemetry *telemetry.Providers
	orc       *agentweaver.Orchestrator
}

// NewServer 初始化遥测并构建编排器
// 遥测初始化失败只记录告警，服务照常运行
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
		providers = nil
	}

	var opts []agentweaver.Option
	if providers.Enabled() {
		opts = append(opts, agentweaver.WithTracer(providers.Tracer("agentweaver/workflow")))
	}

	orc, err := agentweaver.New(cfg, logger, opts...)
	if err != nil {
		_ = providers.Shutdown(context.Background())
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}

	return &Server{cfg: cfg, logger: logger, telemetry: providers, orc: orc}, nil
}

// Orchestrator 返回编排器，供嵌入方注册 Worker
func (s *Server) Orchestrator() *agentweaver.Orchestrator { return s.orc }

// =============================================================================
// 🚀 启动与关闭
// =============================================================================

// Start 启动编排器后台任务
func (s *Server) Start() error {
	if err := s.orc.Start(context.Background()); err != nil {
		return err
	}
	s.logger.Info("Server started",
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.String("persistence", s.cfg.Persistence.Type),
	)
	return nil
}

// WaitForShutdown 阻塞直到收到 SIGINT/SIGTERM，然后优雅关闭
func (s *Server) WaitForShutdown() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	s.logger.Info("Shutdown signal received")

	if err := s.Shutdown(); err != nil {
		s.logger.Error("Shutdown finished with errors", zap.Error(err))
	}
}

// Shutdown 在 ShutdownTimeout 内关闭编排器与遥测
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	return errors.Join(s.orc.Shutdown(ctx), s.telemetry.Shutdown(ctx))
}
