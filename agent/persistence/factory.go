package persistence

import (
	"fmt"

	"gorm.io/gorm"
)

// NewCheckpointStore creates a CheckpointStore based on the configuration.
// db is only consulted for StoreTypeSQL.
func NewCheckpointStore(config StoreConfig, db *gorm.DB) (CheckpointStore, error) {
	switch config.Type {
	case StoreTypeMemory, "":
		return NewMemoryCheckpointStore(), nil
	case StoreTypeFile:
		return NewFileCheckpointStore(config)
	case StoreTypeRedis:
		return NewRedisCheckpointStore(config)
	case StoreTypeSQL:
		return NewSQLCheckpointStore(db)
	default:
		return nil, fmt.Errorf("unsupported checkpoint store type: %s", config.Type)
	}
}

// NewMessageLog creates a MessageLog based on the configuration.
// File and SQL deployments keep the message log in memory.
func NewMessageLog(config StoreConfig) (MessageLog, error) {
	switch config.Type {
	case StoreTypeRedis:
		return NewRedisMessageLog(config)
	case StoreTypeMemory, StoreTypeFile, StoreTypeSQL, "":
		return NewMemoryMessageLog(config.MessageLogMax), nil
	default:
		return nil, fmt.Errorf("unsupported message log type: %s", config.Type)
	}
}

// MustNewCheckpointStore creates a CheckpointStore or panics on error.
//
// WARNING: This function should ONLY be used during application initialization.
func MustNewCheckpointStore(config StoreConfig, db *gorm.DB) CheckpointStore {
	store, err := NewCheckpointStore(config, db)
	if err != nil {
		panic(fmt.Sprintf("failed to create checkpoint store: %v", err))
	}
	return store
}
