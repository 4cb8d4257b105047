package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// LogEntry 消息归档条目
// Payload 为完整消息的 JSON 编码，其余字段用于索引
type LogEntry struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	SenderID       string          `json:"sender_id"`
	RecipientID    string          `json:"recipient_id"`
	Type           string          `json:"type"`
	Priority       string          `json:"priority"`
	Subject        string          `json:"subject,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// MessageLog 追加写的消息归档
type MessageLog interface {
	Store

	// Append 归档一条已投递的消息
	Append(ctx context.Context, entry LogEntry) error

	// List 返回某个 Agent 参与（发送或接收）的最近 limit 条，按时间升序；limit<=0 返回全部
	List(ctx context.Context, agentID string, limit int) ([]LogEntry, error)

	// Prune 删除 before 之前的条目，返回删除数量
	Prune(ctx context.Context, before time.Time) (int, error)
}

// =============================================================================
// Memory
// =============================================================================

// MemoryMessageLog is an in-memory MessageLog with an optional entry cap.
type MemoryMessageLog struct {
	entries []LogEntry
	max     int
	mu      sync.RWMutex
	closed  bool
}

// NewMemoryMessageLog creates an in-memory log; max<=0 disables the cap
func NewMemoryMessageLog(max int) *MemoryMessageLog {
	return &MemoryMessageLog{max: max}
}

// Close closes the log
func (l *MemoryMessageLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// Ping checks if the log is healthy
func (l *MemoryMessageLog) Ping(_ context.Context) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrStoreClosed
	}
	return nil
}

// Append adds an entry, evicting the oldest beyond the cap
func (l *MemoryMessageLog) Append(_ context.Context, entry LogEntry) error {
	if entry.ID == "" {
		return ErrInvalidInput
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrStoreClosed
	}
	l.entries = append(l.entries, entry)
	if l.max > 0 && len(l.entries) > l.max {
		l.entries = append([]LogEntry(nil), l.entries[len(l.entries)-l.max:]...)
	}
	return nil
}

// List returns entries involving agentID
func (l *MemoryMessageLog) List(_ context.Context, agentID string, limit int) ([]LogEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, ErrStoreClosed
	}
	out := make([]LogEntry, 0)
	for _, e := range l.entries {
		if e.SenderID == agentID || e.RecipientID == agentID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// Prune drops entries created before the cutoff
func (l *MemoryMessageLog) Prune(_ context.Context, before time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, ErrStoreClosed
	}
	kept := l.entries[:0]
	removed := 0
	for _, e := range l.entries {
		if e.CreatedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	l.entries = kept
	return removed, nil
}

// =============================================================================
// Redis
// =============================================================================

// RedisMessageLog stores one list per agent, trimmed to max entries.
type RedisMessageLog struct {
	client    *redis.Client
	keyPrefix string
	max       int
	ttl       time.Duration
}

// NewRedisMessageLog creates a Redis-backed log
func NewRedisMessageLog(config StoreConfig) (*RedisMessageLog, error) {
	client, err := newRedisClient(config)
	if err != nil {
		return nil, err
	}
	return NewRedisMessageLogWithClient(client, redisPrefix(config), config.MessageLogMax, config.MessageLogTTL), nil
}

// NewRedisMessageLogWithClient wraps an existing client
func NewRedisMessageLogWithClient(client *redis.Client, keyPrefix string, max int, ttl time.Duration) *RedisMessageLog {
	return &RedisMessageLog{client: client, keyPrefix: keyPrefix + "msglog:", max: max, ttl: ttl}
}

// Close closes the log
func (l *RedisMessageLog) Close() error {
	return l.client.Close()
}

// Ping checks if the log is healthy
func (l *RedisMessageLog) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func (l *RedisMessageLog) agentKey(agentID string) string {
	return l.keyPrefix + "agent:" + agentID
}

// Append pushes the entry to both the sender and recipient lists
func (l *RedisMessageLog) Append(ctx context.Context, entry LogEntry) error {
	if entry.ID == "" {
		return ErrInvalidInput
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}

	keys := []string{l.agentKey(entry.SenderID)}
	if entry.RecipientID != "" && entry.RecipientID != entry.SenderID {
		keys = append(keys, l.agentKey(entry.RecipientID))
	}

	pipe := l.client.TxPipeline()
	for _, key := range keys {
		pipe.RPush(ctx, key, data)
		if l.max > 0 {
			pipe.LTrim(ctx, key, int64(-l.max), -1)
		}
		if l.ttl > 0 {
			pipe.Expire(ctx, key, l.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append log entry: %w", err)
	}
	return nil
}

// List reads the tail of the agent's list
func (l *RedisMessageLog) List(ctx context.Context, agentID string, limit int) ([]LogEntry, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	raw, err := l.client.LRange(ctx, l.agentKey(agentID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list log entries: %w", err)
	}
	out := make([]LogEntry, 0, len(raw))
	for _, r := range raw {
		var e LogEntry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Prune trims the chronologically ordered head of every agent list.
func (l *RedisMessageLog) Prune(ctx context.Context, before time.Time) (int, error) {
	removed := 0
	iter := l.client.Scan(ctx, 0, l.keyPrefix+"agent:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if !strings.HasPrefix(key, l.keyPrefix) {
			continue
		}
		raw, err := l.client.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to read %s: %w", key, err)
		}
		stale := 0
		for _, r := range raw {
			var e LogEntry
			if err := json.Unmarshal([]byte(r), &e); err != nil || e.CreatedAt.Before(before) {
				stale++
				continue
			}
			break
		}
		if stale == 0 {
			continue
		}
		if err := l.client.LTrim(ctx, key, int64(stale), -1).Err(); err != nil {
			return removed, fmt.Errorf("failed to trim %s: %w", key, err)
		}
		removed += stale
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to scan message log: %w", err)
	}
	return removed, nil
}
