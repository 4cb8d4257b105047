package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/BaSui01/agentweaver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// --- 日志初始化测试 ---

func TestInitLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := initLogger(config.LogConfig{Level: tt.level, Format: "json"})
			require.NotNil(t, logger)
			assert.True(t, logger.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, logger.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestInitLogger_ConsoleAndFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	logger := initLogger(config.LogConfig{Level: "info", Format: "console", OutputPaths: []string{path}})
	logger.Info("hello")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

// --- 配置加载测试 ---

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workflow:\n  strategy: confidence_based\n"), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "confidence_based", cfg.Workflow.Strategy)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("messaging:\n  broadcast_policy: shout\n"), 0o644))

	_, err := loadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

// --- 健康检查测试 ---

func TestCheckHealth(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	assert.NoError(t, checkHealth(srv.URL))

	healthy = false
	err := checkHealth(srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

// --- Server 测试 ---

func TestServer_StartAndShutdown(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.MetricsPort = 0

	srv, err := NewServer(cfg, initLogger(config.LogConfig{Level: "error"}))
	require.NoError(t, err)
	require.NotNil(t, srv.Orchestrator())

	require.NoError(t, srv.Start())
	assert.NoError(t, srv.Shutdown())
}

// --- migrate 命令测试 ---

func TestMigrate_SQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "weaver.db")
	flags := []string{"--db-type", "sqlite", "--db-url", dbPath}

	require.NoError(t, migrate("up", flags))
	require.NoError(t, migrate("status", flags))
	require.NoError(t, migrate("down", flags))
	require.NoError(t, migrate("version", flags))
}

func TestMigrate_Errors(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "weaver.db")
	flags := []string{"--db-type", "sqlite", "--db-url", dbPath}

	err := migrate("sideways", flags)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown migrate subcommand")

	err = migrate("goto", flags)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage")

	err = migrate("force", append(flags, "abc"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid version number")
}
