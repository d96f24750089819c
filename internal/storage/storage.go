// Package storage 外部存储适配：Redis 缓存大模型回复，MinIO 提供远程文档，RabbitMQ 承载 RPC 请求。
package storage

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"cv-sidecar/internal/config"
)

// Storage 存储管理器，聚合可选的存储依赖；未启用或连接失败的字段为 nil
type Storage struct {
	// 对象存储
	MinIO *MinIO

	// 大模型回复缓存
	Redis    *Redis
	LLMCache *LLMCache
}

// NewStorage 按配置初始化可选存储。
// 任何一项失败都只记警告并保持为 nil，边车在没有它们时照常工作。
func NewStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *Storage {
	s := &Storage{}
	if cfg == nil {
		return s
	}

	if cfg.LLM.CacheEnabled && cfg.LLM.Provider != "none" {
		r, err := NewRedisAdapter(ctx, &cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化Redis失败，大模型缓存不可用")
		} else {
			s.Redis = r
			s.LLMCache = NewLLMCache(r, config.GetDuration(cfg.LLM.CacheTTL, DefaultCacheTTL), logger)
		}
	}

	if cfg.MinIO.Enabled {
		m, err := NewMinIO(&cfg.MinIO, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化MinIO失败，minio:// 路径不可用")
		} else {
			s.MinIO = m
		}
	}

	return s
}

// Close 关闭所有已建立的连接
func (s *Storage) Close() error {
	var errs []error
	if s.Redis != nil {
		errs = append(errs, s.Redis.Close())
	}
	return errors.Join(errs...)
}
