package config

import (
	"fmt"

	"github.com/BaSui01/agentweaver/agent/collaboration"
	"github.com/BaSui01/agentweaver/agent/hierarchical"
	"github.com/BaSui01/agentweaver/agent/persistence"
	"github.com/BaSui01/agentweaver/workflow"
)

// =============================================================================
// 🔄 组件配置转换
// =============================================================================

// ToScheduler 转换为 Supervisor 配置
func (c SchedulerConfig) ToScheduler() hierarchical.Config {
	return hierarchical.Config{
		TaskTimeout:     c.TaskTimeout,
		DispatchWorkers: c.DispatchWorkers,
		DispatchQueue:   c.DispatchQueue,
		PersistTasks:    c.PersistTasks,
	}
}

// ToEngine 转换为工作流引擎配置
func (c WorkflowConfig) ToEngine() workflow.Config {
	processors := make(map[string]string, len(c.Roles.Processors))
	for route, id := range c.Roles.Processors {
		processors[route] = id
	}
	return workflow.Config{
		MaxReroutes:       c.MaxReroutes,
		StepTimeout:       c.StepTimeout,
		Strategy:          workflow.RoutingStrategy(c.Strategy),
		RoutingHistoryMax: c.RoutingHistoryMax,
		FailureHistoryMax: c.FailureHistoryMax,
		MaxSteps:          c.MaxSteps,
		Roles: workflow.Roles{
			TextAnalyzer:     c.Roles.TextAnalyzer,
			Processors:       processors,
			DefaultProcessor: c.Roles.DefaultProcessor,
		},
	}
}

// ToHub 转换为消息中心配置
func (c MessagingConfig) ToHub() collaboration.Config {
	return collaboration.Config{
		BroadcastPolicy:    collaboration.BroadcastPolicy(c.BroadcastPolicy),
		HistoryMax:         c.HistoryMax,
		MailboxCapacity:    c.MailboxCapacity,
		RateLimitPerSecond: c.RateLimitPerSecond,
		Burst:              c.Burst,
	}
}

// ToBridge 转换为 NATS 桥接配置
func (c NATSConfig) ToBridge() collaboration.NATSConfig {
	return collaboration.NATSConfig{
		Enabled:       c.Enabled,
		Embedded:      c.Embedded,
		URL:           c.URL,
		Port:          c.Port,
		SubjectPrefix: c.SubjectPrefix,
	}
}

// ToStore 转换为存储配置
func (c PersistenceConfig) ToStore() persistence.StoreConfig {
	return persistence.StoreConfig{
		Type:    persistence.StoreType(c.Type),
		BaseDir: c.BaseDir,
		Redis: persistence.RedisStoreConfig{
			Host:      c.Redis.Host,
			Port:      c.Redis.Port,
			Password:  c.Redis.Password,
			DB:        c.Redis.DB,
			PoolSize:  c.Redis.PoolSize,
			KeyPrefix: c.Redis.KeyPrefix,
		},
		MessageLogMax: c.MessageLogMax,
		MessageLogTTL: c.MessageLogTTL,
	}
}

// Addr Redis 地址
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
