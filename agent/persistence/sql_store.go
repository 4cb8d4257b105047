package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// checkpointRecord 检查点表结构
type checkpointRecord struct {
	Key       string    `gorm:"column:checkpoint_key;primaryKey;size:255"`
	Data      []byte    `gorm:"column:data"`
	UpdatedAt time.Time `gorm:"column:updated_at;index"`
}

func (checkpointRecord) TableName() string { return "agentweaver_checkpoints" }

// SQLCheckpointStore 基于 gorm 的 CheckpointStore
// 连接由调用方持有（见 internal/database），Close 不关闭底层连接
type SQLCheckpointStore struct {
	db     *gorm.DB
	closed atomic.Bool
}

// NewSQLCheckpointStore 创建 SQL 存储并自动迁移表结构
func NewSQLCheckpointStore(db *gorm.DB) (*SQLCheckpointStore, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: db cannot be nil", ErrInvalidInput)
	}
	if err := db.AutoMigrate(&checkpointRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate checkpoint table: %w", err)
	}
	return &SQLCheckpointStore{db: db}, nil
}

// Close marks the store closed
func (s *SQLCheckpointStore) Close() error {
	s.closed.Store(true)
	return nil
}

// Ping 检查数据库连接
func (s *SQLCheckpointStore) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Save upsert
func (s *SQLCheckpointStore) Save(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return ErrInvalidInput
	}
	if s.closed.Load() {
		return ErrStoreClosed
	}
	rec := checkpointRecord{Key: key, Data: data, UpdatedAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "checkpoint_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Load 读取
func (s *SQLCheckpointStore) Load(ctx context.Context, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	var rec checkpointRecord
	err := s.db.WithContext(ctx).Where("checkpoint_key = ?", key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return rec.Data, nil
}

// Delete 删除
func (s *SQLCheckpointStore) Delete(ctx context.Context, key string) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	err := s.db.WithContext(ctx).Where("checkpoint_key = ?", key).Delete(&checkpointRecord{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// List 前缀查询
func (s *SQLCheckpointStore) List(ctx context.Context, prefix string) ([]string, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	var keys []string
	err := s.db.WithContext(ctx).Model(&checkpointRecord{}).
		Where("checkpoint_key LIKE ?", prefix+"%").
		Order("checkpoint_key ASC").
		Pluck("checkpoint_key", &keys).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	// LIKE 通配符可能误匹配，按字面前缀再过滤一次
	out := keys[:0]
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}
