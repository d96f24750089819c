package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog"

	"cv-sidecar/internal/config"
	"cv-sidecar/pkg/ratelimit"
)

// NewFromConfig 按 provider 组装 StructuredExtractor：模型、探测器、限流和可选缓存。
// provider 为 none 时返回 Disabled。
func NewFromConfig(ctx context.Context, cfg config.LLMConfig, cache ResponseCache, logger zerolog.Logger) (StructuredExtractor, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" || provider == "none" {
		logger.Info().Msg("未启用大模型，全部字段使用正则提取")
		return Disabled{}, nil
	}

	callTimeout := config.GetDuration(cfg.Timeout, defaultCallTimeout)
	probeTimeout := config.GetDuration(cfg.ProbeTimeout, defaultProbeTimeout)
	probeClient := &http.Client{Timeout: probeTimeout}

	var chat model.ToolCallingChatModel
	var prober Prober

	switch provider {
	case "ollama":
		m, err := NewOpenAIChatModel(strings.TrimRight(cfg.BaseURL, "/")+"/v1/chat/completions", "", cfg.Model,
			WithJSONMode(),
			WithKeepAlive(cfg.KeepAlive),
			WithDefaults(cfg.Temperature, cfg.MaxTokens),
			WithModelLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("创建 Ollama 模型失败: %w", err)
		}
		chat = m
		prober = OllamaProber{BaseURL: cfg.BaseURL, Model: cfg.Model, HTTPClient: probeClient}

	case "openai":
		m, err := NewOpenAIChatModel(strings.TrimRight(cfg.BaseURL, "/")+"/chat/completions", cfg.APIKey, cfg.Model,
			WithJSONMode(),
			WithDefaults(cfg.Temperature, cfg.MaxTokens),
			WithModelLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("创建 OpenAI 模型失败: %w", err)
		}
		chat = m
		prober = OpenAIProber{BaseURL: cfg.BaseURL, APIKey: cfg.APIKey, HTTPClient: probeClient}

	case "gemini":
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			logger.Warn().Msg("未配置 GEMINI_API_KEY，大模型不可用")
			return Disabled{}, nil
		}
		m, err := NewGeminiChatModel(ctx, cfg.GeminiAPIKey, cfg.Model, cfg.Temperature, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		chat = m
		prober = GeminiProber{Client: m.Client(), Model: cfg.Model}

	default:
		return nil, fmt.Errorf("不支持的 llm.provider: %q", cfg.Provider)
	}

	chat = ratelimit.Throttle(chat, ratelimit.Policy{
		QPM:        cfg.QPM,
		MaxRetries: cfg.MaxRetries,
		RetryWait:  time.Duration(cfg.RetryWaitSeconds) * time.Second,
	})

	opts := []ChatExtractorOption{
		WithLogger(logger),
		WithCallTimeout(callTimeout),
		WithProbeTimeout(probeTimeout),
		WithRetry(cfg.MaxRetries, defaultRetryDelay),
	}
	if cfg.CacheEnabled && cache != nil {
		opts = append(opts, WithCache(cache))
	}

	logger.Info().
		Str("provider", provider).
		Str("model", cfg.Model).
		Int("qpm", cfg.QPM).
		Bool("cache", cfg.CacheEnabled && cache != nil).
		Msg("大模型提取器已创建")

	return NewChatExtractor(chat, prober, cfg.Model, opts...), nil
}
