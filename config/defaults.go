// =============================================================================
// 📦 AgentWeaver 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:      DefaultServerConfig(),
		Scheduler:   DefaultSchedulerConfig(),
		Workflow:    DefaultWorkflowConfig(),
		Messaging:   DefaultMessagingConfig(),
		Persistence: DefaultPersistenceConfig(),
		Database:    DefaultDatabaseConfig(),
		Retention:   DefaultRetentionConfig(),
		Log:         DefaultLogConfig(),
		Telemetry:   DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// DefaultSchedulerConfig 返回默认调度配置
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		TaskTimeout:     5 * time.Minute,
		DispatchWorkers: 16,
		DispatchQueue:   256,
		PersistTasks:    true,
	}
}

// DefaultWorkflowConfig 返回默认工作流配置
func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		MaxReroutes:       3,
		StepTimeout:       2 * time.Minute,
		Strategy:          "sentiment_based",
		RoutingHistoryMax: 100,
		FailureHistoryMax: 1000,
		MaxSteps:          64,
		Roles: RolesConfig{
			TextAnalyzer:     "text_analyzer",
			DefaultProcessor: "data_processor",
			Processors: map[string]string{
				"positive": "positive_processor",
				"negative": "negative_processor",
				"neutral":  "neutral_processor",
			},
		},
	}
}

// DefaultMessagingConfig 返回默认消息配置
func DefaultMessagingConfig() MessagingConfig {
	return MessagingConfig{
		BroadcastPolicy: "best_effort",
		HistoryMax:      10000,
		NATS: NATSConfig{
			Enabled:       false,
			Embedded:      true,
			URL:           "nats://127.0.0.1:4222",
			Port:          4222,
			SubjectPrefix: "agent",
		},
	}
}

// DefaultPersistenceConfig 返回默认存储配置
func DefaultPersistenceConfig() PersistenceConfig {
	return PersistenceConfig{
		Type:          "memory",
		BaseDir:       "./data/checkpoints",
		MessageLogMax: 10000,
		Redis: RedisConfig{
			Host:      "localhost",
			Port:      6379,
			DB:        0,
			PoolSize:  10,
			KeyPrefix: "agentweaver:",
		},
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "agentweaver",
		Password:        "",
		Name:            "agentweaver",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultRetentionConfig 返回默认清理配置
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		Enabled:  true,
		Schedule: "*/15 * * * *",
		MaxAge:   24 * time.Hour,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "agentweaver",
		SampleRate:   0.1,
	}
}
