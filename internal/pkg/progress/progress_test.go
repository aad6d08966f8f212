package progress

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestCache(t *testing.T, ttl time.Duration) (*Cache, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return NewCache(client, ttl), mr, cleanup
}

func TestCache_SetAndGet(t *testing.T) {
	cache, _, cleanup := setupTestCache(t, time.Hour)
	defer cleanup()

	ctx := context.Background()

	snap := &Snapshot{
		Progress: 60,
		Stage:    "ai_analysis",
		Detail:   "正在进行 AI 分析",
	}
	err := cache.Set(ctx, 100, snap)
	require.NoError(t, err)

	got, err := cache.Get(ctx, 100)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 60, got.Progress)
	assert.Equal(t, "ai_analysis", got.Stage)
	assert.Equal(t, "正在进行 AI 分析", got.Detail)
}

func TestCache_Get_Missing(t *testing.T) {
	cache, _, cleanup := setupTestCache(t, time.Hour)
	defer cleanup()

	// 键不存在返回 (nil, nil)，与「进度为 0」可区分
	got, err := cache.Get(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCache_Get_ZeroProgressIsNotMissing(t *testing.T) {
	cache, _, cleanup := setupTestCache(t, time.Hour)
	defer cleanup()

	ctx := context.Background()

	err := cache.Set(ctx, 1, &Snapshot{Progress: 0, Stage: "queued"})
	require.NoError(t, err)

	got, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 0, got.Progress)
}

func TestCache_Set_Overwrites(t *testing.T) {
	cache, _, cleanup := setupTestCache(t, time.Hour)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, 5, &Snapshot{Progress: 20, Stage: "transcoding"}))
	require.NoError(t, cache.Set(ctx, 5, &Snapshot{Progress: 85, Stage: "saving"}))

	got, err := cache.Get(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 85, got.Progress)
	assert.Equal(t, "saving", got.Stage)
}

func TestCache_TTLExpiry(t *testing.T) {
	cache, mr, cleanup := setupTestCache(t, time.Minute)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, 7, &Snapshot{Progress: 100, Stage: "completed"}))

	// 过期后读取行为与从未写入一致
	mr.FastForward(2 * time.Minute)

	got, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCache_KeysAreIsolatedPerAnalysis(t *testing.T) {
	cache, _, cleanup := setupTestCache(t, time.Hour)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, 1, &Snapshot{Progress: 20, Stage: "transcoding"}))
	require.NoError(t, cache.Set(ctx, 2, &Snapshot{Progress: 100, Stage: "completed"}))

	first, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 20, first.Progress)

	second, err := cache.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 100, second.Progress)
}
