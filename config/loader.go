// =============================================================================
// 📦 AgentWeaver 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("AGENTWEAVER").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/BaSui01/agentweaver/agent/collaboration"
	"github.com/BaSui01/agentweaver/agent/persistence"
	"github.com/BaSui01/agentweaver/workflow"
	"github.com/adhocore/gronx"
	"gopkg.in/yaml.v3"
)

// DefaultEnvPrefix 环境变量默认前缀
const DefaultEnvPrefix = "AGENTWEAVER"

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 AgentWeaver 的完整配置结构
type Config struct {
	// Server 指标与健康检查服务
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Scheduler Supervisor 调度配置
	Scheduler SchedulerConfig `yaml:"scheduler" env:"SCHEDULER"`

	// Workflow 条件工作流配置
	Workflow WorkflowConfig `yaml:"workflow" env:"WORKFLOW"`

	// Messaging 点对点消息配置
	Messaging MessagingConfig `yaml:"messaging" env:"MESSAGING"`

	// Persistence 检查点与消息日志存储
	Persistence PersistenceConfig `yaml:"persistence" env:"PERSISTENCE"`

	// Database SQL 存储连接（persistence.type = sql 时使用）
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Retention 历史清理
	Retention RetentionConfig `yaml:"retention" env:"RETENTION"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// Metrics 端口，0 表示不启动 HTTP 服务
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// SchedulerConfig 调度配置
type SchedulerConfig struct {
	// 单任务执行截止时间
	TaskTimeout time.Duration `yaml:"task_timeout" env:"TASK_TIMEOUT"`
	// 异步执行 goroutine 上限
	DispatchWorkers int `yaml:"dispatch_workers" env:"DISPATCH_WORKERS"`
	// 异步执行队列长度
	DispatchQueue int `yaml:"dispatch_queue" env:"DISPATCH_QUEUE"`
	// 任务记录写入检查点存储
	PersistTasks bool `yaml:"persist_tasks" env:"PERSIST_TASKS"`
}

// WorkflowConfig 工作流配置
type WorkflowConfig struct {
	// 单次运行最多改派次数
	MaxReroutes int `yaml:"max_reroutes" env:"MAX_REROUTES"`
	// 单个节点调用 Worker 的超时
	StepTimeout time.Duration `yaml:"step_timeout" env:"STEP_TIMEOUT"`
	// 路由策略: sentiment_based / content_type_based / confidence_based
	Strategy string `yaml:"strategy" env:"STRATEGY"`
	// 路由历史上限
	RoutingHistoryMax int `yaml:"routing_history_max" env:"ROUTING_HISTORY_MAX"`
	// 失败历史上限
	FailureHistoryMax int `yaml:"failure_history_max" env:"FAILURE_HISTORY_MAX"`
	// 单次运行的节点上限
	MaxSteps int `yaml:"max_steps" env:"MAX_STEPS"`
	// 节点角色
	Roles RolesConfig `yaml:"roles" env:"ROLES"`
}

// RolesConfig 节点到主 Worker 的映射
type RolesConfig struct {
	TextAnalyzer     string `yaml:"text_analyzer" env:"TEXT_ANALYZER"`
	DefaultProcessor string `yaml:"default_processor" env:"DEFAULT_PROCESSOR"`
	// 路由标签 -> Worker id，仅支持 YAML
	Processors map[string]string `yaml:"processors" env:"-"`
}

// MessagingConfig 消息配置
type MessagingConfig struct {
	// 广播判定策略: best_effort / all_or_nothing
	BroadcastPolicy string `yaml:"broadcast_policy" env:"BROADCAST_POLICY"`
	// 全局历史上限，0 不限
	HistoryMax int `yaml:"history_max" env:"HISTORY_MAX"`
	// 单个收件箱未处理消息上限，0 不限
	MailboxCapacity int `yaml:"mailbox_capacity" env:"MAILBOX_CAPACITY"`
	// 每个发送者每秒消息数，0 不限
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second" env:"RATE_LIMIT_PER_SECOND"`
	Burst              int     `yaml:"burst" env:"BURST"`
	// NATS 桥接
	NATS NATSConfig `yaml:"nats" env:"NATS"`
}

// NATSConfig NATS 桥接配置
type NATSConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 进程内启动 NATS 服务器
	Embedded bool   `yaml:"embedded" env:"EMBEDDED"`
	URL      string `yaml:"url" env:"URL"`
	// 内嵌服务器端口，-1 随机
	Port          int    `yaml:"port" env:"PORT"`
	SubjectPrefix string `yaml:"subject_prefix" env:"SUBJECT_PREFIX"`
}

// PersistenceConfig 存储配置
type PersistenceConfig struct {
	// 后端类型: memory / file / redis / sql
	Type string `yaml:"type" env:"TYPE"`
	// 文件存储目录
	BaseDir string `yaml:"base_dir" env:"BASE_DIR"`
	// 每个 Agent 保留的消息日志条数，0 不限
	MessageLogMax int `yaml:"message_log_max" env:"MESSAGE_LOG_MAX"`
	// redis 消息日志过期时间，0 不过期
	MessageLogTTL time.Duration `yaml:"message_log_ttl" env:"MESSAGE_LOG_TTL"`
	// Redis 连接
	Redis RedisConfig `yaml:"redis" env:"REDIS"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host      string `yaml:"host" env:"HOST"`
	Port      int    `yaml:"port" env:"PORT"`
	Password  string `yaml:"password" env:"PASSWORD"`
	DB        int    `yaml:"db" env:"DB"`
	PoolSize  int    `yaml:"pool_size" env:"POOL_SIZE"`
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动: postgres / mysql / sqlite
	Driver string `yaml:"driver" env:"DRIVER"`
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 用户名
	User string `yaml:"user" env:"USER"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名，sqlite 时为文件路径
	Name string `yaml:"name" env:"NAME"`
	// SSL 模式
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接数
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// RetentionConfig 历史清理配置
type RetentionConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// cron 表达式
	Schedule string `yaml:"schedule" env:"SCHEDULE"`
	// 早于该时长的消息和失败记录会被清理
	MaxAge time.Duration `yaml:"max_age" env:"MAX_AGE"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	path       string
	envPrefix  string
	lookupEnv  func(string) (string, bool)
	validators []func(*Config) error
}

// NewLoader 默认读取进程环境变量，前缀为 DefaultEnvPrefix
func NewLoader() *Loader {
	return &Loader{
		envPrefix: DefaultEnvPrefix,
		lookupEnv: os.LookupEnv,
	}
}

// WithConfigPath 设置 YAML 文件路径，文件不存在时忽略
func (l *Loader) WithConfigPath(path string) *Loader {
	l.path = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithEnvLookup 替换环境变量来源
func (l *Loader) WithEnvLookup(lookup func(string) (string, bool)) *Loader {
	l.lookupEnv = lookup
	return l
}

// WithValidator 追加校验函数，按添加顺序执行
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 按 默认值 → YAML 文件 → 环境变量 的顺序叠加，最后执行校验
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := l.applyFile(cfg); err != nil {
		return nil, fmt.Errorf("load config file: %w", err)
	}
	if err := l.applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("load config env: %w", err)
	}

	for _, validate := range l.validators {
		if err := validate(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}
	return cfg, nil
}

func (l *Loader) applyFile(cfg *Config) error {
	if l.path == "" {
		return nil
	}
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", l.path, err)
	}
	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, "invalid metrics port")
	}

	if c.Scheduler.TaskTimeout <= 0 {
		errs = append(errs, "scheduler.task_timeout must be positive")
	}
	if c.Scheduler.DispatchWorkers <= 0 {
		errs = append(errs, "scheduler.dispatch_workers must be positive")
	}

	if c.Workflow.MaxReroutes < 0 {
		errs = append(errs, "workflow.max_reroutes must not be negative")
	}
	if c.Workflow.StepTimeout <= 0 {
		errs = append(errs, "workflow.step_timeout must be positive")
	}
	if !slices.Contains(workflow.Strategies(), workflow.RoutingStrategy(c.Workflow.Strategy)) {
		errs = append(errs, fmt.Sprintf("unknown workflow.strategy %q", c.Workflow.Strategy))
	}

	switch collaboration.BroadcastPolicy(c.Messaging.BroadcastPolicy) {
	case collaboration.BroadcastBestEffort, collaboration.BroadcastAllOrNothing:
	default:
		errs = append(errs, fmt.Sprintf("unknown messaging.broadcast_policy %q", c.Messaging.BroadcastPolicy))
	}
	if c.Messaging.RateLimitPerSecond < 0 {
		errs = append(errs, "messaging.rate_limit_per_second must not be negative")
	}
	if c.Messaging.NATS.Enabled && !c.Messaging.NATS.Embedded && c.Messaging.NATS.URL == "" {
		errs = append(errs, "messaging.nats.url is required unless embedded")
	}

	switch persistence.StoreType(c.Persistence.Type) {
	case persistence.StoreTypeMemory, persistence.StoreTypeFile, persistence.StoreTypeRedis, persistence.StoreTypeSQL:
	default:
		errs = append(errs, fmt.Sprintf("unknown persistence.type %q", c.Persistence.Type))
	}
	if c.Persistence.Type == "file" && c.Persistence.BaseDir == "" {
		errs = append(errs, "persistence.base_dir is required for file storage")
	}
	if c.Persistence.Type == "sql" && c.Database.DSN() == "" {
		errs = append(errs, fmt.Sprintf("unsupported database.driver %q", c.Database.Driver))
	}

	if c.Retention.Enabled {
		if !gronx.New().IsValid(c.Retention.Schedule) {
			errs = append(errs, fmt.Sprintf("invalid retention.schedule %q", c.Retention.Schedule))
		}
		if c.Retention.MaxAge <= 0 {
			errs = append(errs, "retention.max_age must be positive")
		}
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, "telemetry.sample_rate must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
