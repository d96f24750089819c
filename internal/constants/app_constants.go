package constants

import "time"

const (
	// 协议中的状态字符串
	StatusModelLoaded  = "model_loaded"
	StatusProcessing   = "processing"
	StatusHealthy      = "healthy"
	StatusShuttingDown = "shutting_down"

	// LLMCacheDuration 未配置 llm.cache_ttl 时大模型回复的缓存时间
	LLMCacheDuration = 24 * time.Hour
)
