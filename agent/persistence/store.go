// Package persistence provides the checkpoint and message-log stores used by
// the orchestrator.
//
// The core never assumes synchronous durability: every caller treats a save
// as best-effort and keeps running on failure. The in-memory backend is the
// minimum viable implementation; durable backends are swapped in through
// configuration without touching orchestration logic.
//
// Supported backends:
// - Memory: For development and testing (default)
// - File: For single-node deployments
// - Redis: For distributed deployments
// - SQL: Postgres, MySQL or SQLite through gorm
package persistence

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrStoreClosed  = errors.New("store is closed")
	ErrInvalidInput = errors.New("invalid input")
)

// StoreType represents the type of storage backend
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeFile   StoreType = "file"
	StoreTypeRedis  StoreType = "redis"
	StoreTypeSQL    StoreType = "sql"
)

// StoreConfig is the base configuration for all store implementations
type StoreConfig struct {
	// Type is the storage backend type
	Type StoreType `json:"type" yaml:"type"`

	// BaseDir is the base directory for file-based storage
	BaseDir string `json:"base_dir" yaml:"base_dir"`

	// Redis configuration (only used when Type is "redis")
	Redis RedisStoreConfig `json:"redis" yaml:"redis"`

	// MessageLogMax caps entries kept per agent in the message log (0 = unbounded)
	MessageLogMax int `json:"message_log_max" yaml:"message_log_max"`

	// MessageLogTTL expires message-log entries on redis (0 = never)
	MessageLogTTL time.Duration `json:"message_log_ttl" yaml:"message_log_ttl"`
}

// RedisStoreConfig contains Redis-specific configuration
type RedisStoreConfig struct {
	Host      string `json:"host" yaml:"host"`
	Port      int    `json:"port" yaml:"port"`
	Password  string `json:"password" yaml:"password"`
	DB        int    `json:"db" yaml:"db"`
	PoolSize  int    `json:"pool_size" yaml:"pool_size"`
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
}

// DefaultStoreConfig returns the default store configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type:    StoreTypeMemory,
		BaseDir: "./data/checkpoints",
		Redis: RedisStoreConfig{
			Host:      "localhost",
			Port:      6379,
			DB:        0,
			PoolSize:  10,
			KeyPrefix: "agentweaver:",
		},
		MessageLogMax: 10000,
	}
}

// Store is the base interface for all persistent stores
type Store interface {
	// Close closes the store and releases resources
	Close() error

	// Ping checks if the store is healthy
	Ping(ctx context.Context) error
}

// CheckpointStore is an opaque key -> blob store.
// Keys are thread/workflow ids or "task:<id>" for scheduler records.
type CheckpointStore interface {
	Store

	// Save writes the blob for key, replacing any previous value
	Save(ctx context.Context, key string, data []byte) error

	// Load returns the blob for key or ErrNotFound
	Load(ctx context.Context, key string) ([]byte, error)

	// Delete removes key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error

	// List returns keys with the given prefix in ascending order
	List(ctx context.Context, prefix string) ([]string, error)
}
