package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: {redis.key_prefix}:{module}:{unique_id}
const (
	// DefaultKeyPrefix 未配置 redis.key_prefix 时的前缀
	DefaultKeyPrefix = "cv-sidecar"

	// LLMModulePrefix 大模型回复缓存模块
	// 格式: {prefix}:llm:{uuidv5(model, temperature, prompt, text)}
	LLMModulePrefix = "llm"

	// LLMCacheNamespace 缓存键 UUIDv5 的命名空间
	LLMCacheNamespace = "6f1c2b8e-4d0a-5e4b-9a53-2f7d8c1e0b94"
)
