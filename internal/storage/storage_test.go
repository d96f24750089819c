package storage

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cv-sidecar/internal/config"
	"cv-sidecar/internal/llm"
)

func TestParseObjectURI(t *testing.T) {
	testCases := []struct {
		uri        string
		wantBucket string
		wantKey    string
		wantErr    bool
	}{
		{"minio://cvs/2024/jane.pdf", "cvs", "2024/jane.pdf", false},
		{"minio:///cvs/jane.docx", "cvs", "jane.docx", false},
		{"minio://jane.pdf", "default", "jane.pdf", false},
		{"minio://cvs/", "", "", true},
		{"minio://", "", "", true},
		{"/tmp/jane.pdf", "", "", true},
	}

	for _, tc := range testCases {
		bucket, key, err := ParseObjectURI(tc.uri, "default")
		if tc.wantErr {
			assert.ErrorIs(t, err, ErrInvalidObjectURI, "uri %q", tc.uri)
			continue
		}
		require.NoError(t, err, "uri %q", tc.uri)
		assert.Equal(t, tc.wantBucket, bucket, "uri %q", tc.uri)
		assert.Equal(t, tc.wantKey, key, "uri %q", tc.uri)
	}
}

func TestLLMCacheKey(t *testing.T) {
	cache := NewLLMCache(&Redis{config: &config.RedisConfig{KeyPrefix: "cv-sidecar"}}, 0, zerolog.Nop())
	assert.Equal(t, DefaultCacheTTL, cache.ttl)

	key := llm.CacheKey{Model: "qwen2.5:7b", Prompt: llm.SkillsPrompt, Text: "Go, SQL", Temperature: 0}
	first := cache.CacheKey(key)
	assert.Equal(t, first, cache.CacheKey(key), "同样的输入得到同样的键")
	assert.True(t, strings.HasPrefix(first, "cv-sidecar:llm:"), "键带前缀: %s", first)

	key.Temperature = 0.3
	assert.NotEqual(t, first, cache.CacheKey(key), "温度不同键不同")
	key.Temperature = 0
	key.Text = "Go, Rust"
	assert.NotEqual(t, first, cache.CacheKey(key), "文本不同键不同")
}

func TestNewStorageDisabled(t *testing.T) {
	cfg := &config.Config{}
	cfg.LLM.Provider = "none"
	cfg.LLM.CacheEnabled = true

	s := NewStorage(context.Background(), cfg, zerolog.Nop())
	assert.Nil(t, s.Redis, "provider 为 none 时不连接 Redis")
	assert.Nil(t, s.MinIO)
	assert.NoError(t, s.Close())
}

// 需要本地 Redis，地址由 CV_SIDECAR_TEST_REDIS 指定
func TestLLMCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("CV_SIDECAR_TEST_REDIS")
	if addr == "" {
		t.Skip("未设置 CV_SIDECAR_TEST_REDIS，跳过 Redis 集成测试")
	}

	ctx := context.Background()
	r, err := NewRedisAdapter(ctx, &config.RedisConfig{Address: addr, KeyPrefix: "cv-sidecar-test"})
	if err != nil {
		t.Skipf("Redis 不可用: %v", err)
	}
	defer r.Close()

	cache := NewLLMCache(r, time.Minute, zerolog.Nop())
	key := llm.CacheKey{Model: "test-model", Prompt: "prompt", Text: time.Now().String()}

	_, ok := cache.Get(ctx, key)
	assert.False(t, ok, "新键未命中")

	cache.Set(ctx, key, `{"groups": []}`)
	got, ok := cache.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, `{"groups": []}`, got)

	require.NoError(t, r.Client.Del(ctx, cache.CacheKey(key)).Err())
}
