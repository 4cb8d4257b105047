// 配置加载器测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BaSui01/agentweaver/agent/collaboration"
	"github.com/BaSui01/agentweaver/agent/persistence"
	"github.com/BaSui01/agentweaver/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 9091, cfg.Server.MetricsPort)
	assert.Equal(t, 3, cfg.Workflow.MaxReroutes)
	assert.Equal(t, "memory", cfg.Persistence.Type)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  metrics_port: 9200
  shutdown_timeout: 5s

scheduler:
  task_timeout: 30s
  dispatch_workers: 4

workflow:
  max_reroutes: 1
  strategy: confidence_based
  roles:
    text_analyzer: analyzer-a
    processors:
      positive: happy-worker

messaging:
  broadcast_policy: all_or_nothing
  mailbox_capacity: 50
  nats:
    enabled: true
    embedded: false
    url: nats://bus:4222

persistence:
  type: redis
  redis:
    host: redis.example.com
    password: secret
    db: 1

retention:
  schedule: "0 * * * *"
  max_age: 2h

log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	assert.Equal(t, 9200, cfg.Server.MetricsPort)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, 30*time.Second, cfg.Scheduler.TaskTimeout)
	assert.Equal(t, 4, cfg.Scheduler.DispatchWorkers)
	// 未出现在 YAML 中的字段保留默认值
	assert.Equal(t, 256, cfg.Scheduler.DispatchQueue)

	assert.Equal(t, 1, cfg.Workflow.MaxReroutes)
	assert.Equal(t, "confidence_based", cfg.Workflow.Strategy)
	assert.Equal(t, "analyzer-a", cfg.Workflow.Roles.TextAnalyzer)
	assert.Equal(t, "happy-worker", cfg.Workflow.Roles.Processors["positive"])
	assert.Equal(t, "data_processor", cfg.Workflow.Roles.DefaultProcessor)

	assert.Equal(t, "all_or_nothing", cfg.Messaging.BroadcastPolicy)
	assert.Equal(t, 50, cfg.Messaging.MailboxCapacity)
	assert.True(t, cfg.Messaging.NATS.Enabled)
	assert.False(t, cfg.Messaging.NATS.Embedded)
	assert.Equal(t, "nats://bus:4222", cfg.Messaging.NATS.URL)

	assert.Equal(t, "redis", cfg.Persistence.Type)
	assert.Equal(t, "redis.example.com", cfg.Persistence.Redis.Host)
	assert.Equal(t, 6379, cfg.Persistence.Redis.Port)
	assert.Equal(t, 1, cfg.Persistence.Redis.DB)

	assert.Equal(t, "0 * * * *", cfg.Retention.Schedule)
	assert.Equal(t, 2*time.Hour, cfg.Retention.MaxAge)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("AGENTWEAVER_SERVER_METRICS_PORT", "7777")
	t.Setenv("AGENTWEAVER_SCHEDULER_TASK_TIMEOUT", "45s")
	t.Setenv("AGENTWEAVER_SCHEDULER_PERSIST_TASKS", "false")
	t.Setenv("AGENTWEAVER_WORKFLOW_MAX_REROUTES", "5")
	t.Setenv("AGENTWEAVER_WORKFLOW_ROLES_TEXT_ANALYZER", "env-analyzer")
	t.Setenv("AGENTWEAVER_MESSAGING_RATE_LIMIT_PER_SECOND", "2.5")
	t.Setenv("AGENTWEAVER_MESSAGING_NATS_SUBJECT_PREFIX", "team")
	t.Setenv("AGENTWEAVER_PERSISTENCE_REDIS_HOST", "env-redis")
	t.Setenv("AGENTWEAVER_LOG_OUTPUT_PATHS", "stdout, /var/log/agentweaver.log")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.MetricsPort)
	assert.Equal(t, 45*time.Second, cfg.Scheduler.TaskTimeout)
	assert.False(t, cfg.Scheduler.PersistTasks)
	assert.Equal(t, 5, cfg.Workflow.MaxReroutes)
	assert.Equal(t, "env-analyzer", cfg.Workflow.Roles.TextAnalyzer)
	assert.InDelta(t, 2.5, cfg.Messaging.RateLimitPerSecond, 0.0001)
	assert.Equal(t, "team", cfg.Messaging.NATS.SubjectPrefix)
	assert.Equal(t, "env-redis", cfg.Persistence.Redis.Host)
	assert.Equal(t, []string{"stdout", "/var/log/agentweaver.log"}, cfg.Log.OutputPaths)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
workflow:
  max_reroutes: 2
  step_timeout: 10s
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	t.Setenv("AGENTWEAVER_WORKFLOW_MAX_REROUTES", "7")

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Workflow.MaxReroutes)
	assert.Equal(t, 10*time.Second, cfg.Workflow.StepTimeout)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_SERVER_METRICS_PORT", "6666")
	t.Setenv("MYAPP_MESSAGING_BROADCAST_POLICY", "all_or_nothing")

	cfg, err := NewLoader().
		WithEnvPrefix("MYAPP").
		Load()
	require.NoError(t, err)

	assert.Equal(t, 6666, cfg.Server.MetricsPort)
	assert.Equal(t, "all_or_nothing", cfg.Messaging.BroadcastPolicy)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("AGENTWEAVER_SCHEDULER_TASK_TIMEOUT", "soon")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AGENTWEAVER_SCHEDULER_TASK_TIMEOUT")
}

func TestLoader_WithValidator(t *testing.T) {
	t.Setenv("AGENTWEAVER_WORKFLOW_STRATEGY", "coin_flip")

	_, err := NewLoader().
		WithValidator((*Config).Validate).
		Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workflow.strategy")
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().
		WithConfigPath("/non/existent/path/config.yaml").
		Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 9091, cfg.Server.MetricsPort)
}

func TestLoader_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
workflow:
  max_reroutes: [invalid
  this is not valid yaml
`
	require.NoError(t, os.WriteFile(configPath, []byte(invalidYAML), 0644))

	_, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	assert.Error(t, err)
}

// --- Config 方法测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid default config", modify: func(c *Config) {}},
		{name: "metrics port disabled", modify: func(c *Config) { c.Server.MetricsPort = 0 }},
		{name: "metrics port too large", modify: func(c *Config) { c.Server.MetricsPort = 70000 }, wantErr: true},
		{name: "zero task timeout", modify: func(c *Config) { c.Scheduler.TaskTimeout = 0 }, wantErr: true},
		{name: "no dispatch workers", modify: func(c *Config) { c.Scheduler.DispatchWorkers = 0 }, wantErr: true},
		{name: "negative reroutes", modify: func(c *Config) { c.Workflow.MaxReroutes = -1 }, wantErr: true},
		{name: "zero reroutes", modify: func(c *Config) { c.Workflow.MaxReroutes = 0 }},
		{name: "unknown strategy", modify: func(c *Config) { c.Workflow.Strategy = "random" }, wantErr: true},
		{name: "unknown broadcast policy", modify: func(c *Config) { c.Messaging.BroadcastPolicy = "some" }, wantErr: true},
		{name: "negative rate limit", modify: func(c *Config) { c.Messaging.RateLimitPerSecond = -1 }, wantErr: true},
		{
			name: "external nats without url",
			modify: func(c *Config) {
				c.Messaging.NATS.Enabled = true
				c.Messaging.NATS.Embedded = false
				c.Messaging.NATS.URL = ""
			},
			wantErr: true,
		},
		{name: "unknown persistence type", modify: func(c *Config) { c.Persistence.Type = "mongo" }, wantErr: true},
		{
			name: "file store without dir",
			modify: func(c *Config) {
				c.Persistence.Type = "file"
				c.Persistence.BaseDir = ""
			},
			wantErr: true,
		},
		{
			name: "sql store with unknown driver",
			modify: func(c *Config) {
				c.Persistence.Type = "sql"
				c.Database.Driver = "oracle"
			},
			wantErr: true,
		},
		{name: "bad cron schedule", modify: func(c *Config) { c.Retention.Schedule = "every minute" }, wantErr: true},
		{
			name: "bad cron ignored when retention disabled",
			modify: func(c *Config) {
				c.Retention.Enabled = false
				c.Retention.Schedule = "every minute"
			},
		},
		{name: "zero retention age", modify: func(c *Config) { c.Retention.MaxAge = 0 }, wantErr: true},
		{name: "sample rate above one", modify: func(c *Config) { c.Telemetry.SampleRate = 1.5 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name     string
		config   DatabaseConfig
		expected string
	}{
		{
			name: "postgres DSN",
			config: DatabaseConfig{
				Driver:   "postgres",
				Host:     "localhost",
				Port:     5432,
				User:     "user",
				Password: "pass",
				Name:     "dbname",
				SSLMode:  "disable",
			},
			expected: "host=localhost port=5432 user=user password=pass dbname=dbname sslmode=disable",
		},
		{
			name: "mysql DSN",
			config: DatabaseConfig{
				Driver:   "mysql",
				Host:     "localhost",
				Port:     3306,
				User:     "user",
				Password: "pass",
				Name:     "dbname",
			},
			expected: "user:pass@tcp(localhost:3306)/dbname?parseTime=true",
		},
		{
			name:     "sqlite DSN",
			config:   DatabaseConfig{Driver: "sqlite", Name: "/path/to/db.sqlite"},
			expected: "/path/to/db.sqlite",
		},
		{
			name:     "unknown driver",
			config:   DatabaseConfig{Driver: "unknown"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.DSN())
		})
	}
}

// --- 组件配置转换测试 ---

func TestWorkflowConfig_ToEngine(t *testing.T) {
	cfg := DefaultWorkflowConfig()
	cfg.Strategy = "content_type_based"

	engine := cfg.ToEngine()
	assert.Equal(t, workflow.StrategyContentType, engine.Strategy)
	assert.Equal(t, cfg.MaxReroutes, engine.MaxReroutes)
	assert.Equal(t, workflow.DefaultRoles(), engine.Roles)

	// 转换结果不与配置共享 map
	engine.Roles.Processors["positive"] = "other"
	assert.Equal(t, "positive_processor", cfg.Roles.Processors["positive"])
}

func TestDefaultsMatchComponentDefaults(t *testing.T) {
	assert.Equal(t, DefaultSchedulerConfig().ToScheduler(), hierarchicalDefaults())
	assert.Equal(t, workflow.DefaultConfig(), DefaultWorkflowConfig().ToEngine())
	assert.Equal(t, collaboration.DefaultConfig(), DefaultMessagingConfig().ToHub())
	assert.Equal(t, persistence.DefaultStoreConfig(), DefaultPersistenceConfig().ToStore())
}

func TestNATSConfig_ToBridge(t *testing.T) {
	bridge := DefaultMessagingConfig().NATS.ToBridge()
	assert.Equal(t, collaboration.DefaultSubjectPrefix, bridge.SubjectPrefix)
	assert.True(t, bridge.Embedded)
	assert.False(t, bridge.Enabled)
}

func TestRedisConfig_Addr(t *testing.T) {
	assert.Equal(t, "localhost:6379", DefaultPersistenceConfig().Redis.Addr())
}

// --- MustLoad 测试 ---

func TestMustLoad_Success(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  metrics_port: 9300\n"), 0644))

	assert.NotPanics(t, func() {
		cfg := MustLoad(configPath)
		assert.Equal(t, 9300, cfg.Server.MetricsPort)
	})
}

func TestMustLoad_InvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("invalid: [yaml"), 0644))

	assert.Panics(t, func() {
		MustLoad(configPath)
	})
}

func TestLoadFromEnv_Function(t *testing.T) {
	t.Setenv("AGENTWEAVER_PERSISTENCE_TYPE", "file")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.Persistence.Type)
}
