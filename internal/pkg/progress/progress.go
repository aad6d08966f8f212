package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "video_analysis_progress:"

// Snapshot 任务进度快照，整体覆盖写入，不做合并
type Snapshot struct {
	Progress int    `json:"progress"` // 0-100
	Stage    string `json:"stage"`
	Detail   string `json:"detail"`
}

// Cache 进度缓存，与持久化任务记录相互独立
// 缓存丢失只影响细粒度进度展示，不影响任务本身
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		client: client,
		ttl:    ttl,
	}
}

func key(analysisID int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, analysisID)
}

// Set 覆盖写入进度快照（last-writer-wins）
func (c *Cache) Set(ctx context.Context, analysisID int64, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return c.client.Set(ctx, key(analysisID), data, c.ttl).Err()
}

// Get 读取进度快照
// 键不存在或已过期返回 (nil, nil)，调用方必须区分「无数据」和「进度为 0」
func (c *Cache) Get(ctx context.Context, analysisID int64) (*Snapshot, error) {
	data, err := c.client.Get(ctx, key(analysisID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}
