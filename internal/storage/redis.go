package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cv-sidecar/internal/config"
	"cv-sidecar/internal/constants"
	"cv-sidecar/internal/llm"
	"cv-sidecar/internal/tracing"
)

// ErrNotFound is returned when a key is not found in Redis.
// It wraps the underlying redis.Nil error for abstraction.
var ErrNotFound = redis.Nil

var redisTracer = tracing.Tracer("storage/redis")

// llmCacheNamespace 缓存键 UUIDv5 的命名空间
var llmCacheNamespace = uuid.Must(uuid.FromString(constants.LLMCacheNamespace))

// DefaultCacheTTL 未配置 llm.cache_ttl 时的过期时间
const DefaultCacheTTL = constants.LLMCacheDuration

// Redis wraps the Redis client
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter creates a new Redis client connection
func NewRedisAdapter(ctx context.Context, cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		// 连接池设置
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		// 超时设置
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,

		MaxRetries: cfg.MaxRetries,
	}

	client := redis.NewClient(opt)

	// 添加OpenTelemetry钩子, 记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := client.Ping(pingCtx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{
		Client: client,
		config: cfg,
	}, nil
}

// Close closes the Redis client connection
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping checks the Redis connection
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

// FormatKey 用配置的前缀拼接键
func (r *Redis) FormatKey(parts ...string) string {
	prefix := ""
	if r.config != nil {
		prefix = r.config.KeyPrefix
	}
	return joinKey(prefix, parts...)
}

func joinKey(prefix string, parts ...string) string {
	if prefix == "" {
		return strings.Join(parts, ":")
	}
	return prefix + ":" + strings.Join(parts, ":")
}

// Get 获取键的值，键不存在时返回 ErrNotFound
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	if r.Client == nil {
		return "", fmt.Errorf("redis客户端未初始化")
	}
	return r.Client.Get(ctx, key).Result()
}

// Set 设置键的值
func (r *Redis) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}
	return r.Client.Set(ctx, key, value, expiration).Err()
}

// LLMCache 把大模型原始回复缓存在 Redis 里，实现 llm.ResponseCache。
// 读写失败只记日志，按未命中处理。
type LLMCache struct {
	redis  *Redis
	ttl    time.Duration
	logger zerolog.Logger
}

var _ llm.ResponseCache = (*LLMCache)(nil)

// NewLLMCache 创建缓存，ttl <= 0 时使用 DefaultCacheTTL
func NewLLMCache(r *Redis, ttl time.Duration, logger zerolog.Logger) *LLMCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &LLMCache{redis: r, ttl: ttl, logger: logger}
}

// CacheKey 由模型、温度、提示词和文本生成确定的 UUIDv5 键
func (c *LLMCache) CacheKey(key llm.CacheKey) string {
	name := strings.Join([]string{
		key.Model,
		strconv.FormatFloat(key.Temperature, 'f', -1, 64),
		key.Prompt,
		key.Text,
	}, "\x00")
	return c.redis.FormatKey(constants.LLMModulePrefix, uuid.NewV5(llmCacheNamespace, name).String())
}

// Get 实现 llm.ResponseCache
func (c *LLMCache) Get(ctx context.Context, key llm.CacheKey) (string, bool) {
	redisKey := c.CacheKey(key)
	ctx, span := redisTracer.Start(ctx, "LLMCache.Get", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.redis.key", tracing.SafeRedisKey(redisKey)),
		attribute.String("llm.model", key.Model),
	)

	val, err := c.redis.Get(ctx, redisKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			span.SetAttributes(attribute.Bool("cache.hit", false))
			span.SetStatus(codes.Ok, "key not found")
			return "", false
		}
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		c.logger.Warn().Err(err).Msg("读取大模型缓存失败")
		return "", false
	}

	span.SetAttributes(attribute.Bool("cache.hit", true), attribute.Int("cache.value_length", len(val)))
	return val, true
}

// Set 实现 llm.ResponseCache
func (c *LLMCache) Set(ctx context.Context, key llm.CacheKey, response string) {
	redisKey := c.CacheKey(key)
	ctx, span := redisTracer.Start(ctx, "LLMCache.Set", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.redis.key", tracing.SafeRedisKey(redisKey)),
		attribute.Int64("db.redis.expiration_ms", c.ttl.Milliseconds()),
	)

	if err := c.redis.Set(ctx, redisKey, response, c.ttl); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		c.logger.Warn().Err(err).Msg("写入大模型缓存失败")
	}
}
