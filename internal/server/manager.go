package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/BaSui01/agentweaver/config"
	"go.uber.org/zap"
)

// =============================================================================
// 🌐 运维 HTTP 服务
// =============================================================================

var (
	// ErrAlreadyStarted Start 被重复调用
	ErrAlreadyStarted = errors.New("ops server already started")
	// ErrStopped 已关闭的服务不能再次启动
	ErrStopped = errors.New("ops server stopped")
)

// state 服务生命周期：idle -> running -> stopped，stopped 为终态
type state int

const (
	stateIdle state = iota
	stateRunning
	stateStopped
)

// Config 运维服务配置
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Addr:            ":9091",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// FromServerConfig 由应用配置的 server 段构建；端口 0 时返回 false
func FromServerConfig(c config.ServerConfig) (Config, bool) {
	if c.MetricsPort <= 0 {
		return Config{}, false
	}
	cfg := DefaultConfig()
	cfg.Addr = fmt.Sprintf(":%d", c.MetricsPort)
	if c.ReadTimeout > 0 {
		cfg.ReadTimeout = c.ReadTimeout
	}
	if c.WriteTimeout > 0 {
		cfg.WriteTimeout = c.WriteTimeout
	}
	if c.ShutdownTimeout > 0 {
		cfg.ShutdownTimeout = c.ShutdownTimeout
	}
	return cfg, true
}

// Manager 运维 HTTP 服务的生命周期管理
type Manager struct {
	config Config
	logger *zap.Logger
	srv    *http.Server
	errCh  chan error

	mu    sync.Mutex
	state state
	addr  net.Addr
}

// NewManager 创建服务，不监听端口
func NewManager(handler http.Handler, cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}
	return &Manager{
		config: cfg,
		logger: logger.With(zap.String("component", "ops_server")),
		srv: &http.Server{
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
		errCh: make(chan error, 1),
	}
}

// Start 监听并在后台 goroutine 中服务
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case stateRunning:
		return ErrAlreadyStarted
	case stateStopped:
		return ErrStopped
	}

	ln, err := net.Listen("tcp", m.config.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", m.config.Addr, err)
	}
	m.addr = ln.Addr()
	m.state = stateRunning
	m.logger.Info("ops server listening", zap.String("addr", m.addr.String()))

	go func() {
		err := m.srv.Serve(ln)
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return
		}
		m.logger.Error("ops server failed", zap.Error(err))
		select {
		case m.errCh <- err:
		default:
		}
	}()
	return nil
}

// Shutdown 在 ShutdownTimeout 内优雅关闭；未启动或已关闭时直接返回
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.state
	m.state = stateStopped
	if prev != stateRunning {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.config.ShutdownTimeout)
	defer cancel()
	if err := m.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown ops server: %w", err)
	}
	m.logger.Info("ops server stopped")
	return nil
}

// Errors 服务运行期间的异步错误
func (m *Manager) Errors() <-chan error { return m.errCh }

// Addr 实际监听地址；未启动时为配置地址
func (m *Manager) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addr != nil {
		return m.addr.String()
	}
	return m.config.Addr
}

// Running 是否正在服务
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == stateRunning
}
