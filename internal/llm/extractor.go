// Package llm 通过大模型把简历文本提取成结构化数据。
// 任何失败（后端不可用、超时、输出不是合法 JSON）都只返回 false，由调用方回退到正则提取。
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"cv-sidecar/internal/tracing"
)

var llmTracer = tracing.Tracer("llm")

// ErrCallTimeout 单次模型调用超时。超时不重试，本次请求后续字段直接走正则
var ErrCallTimeout = errors.New("大模型调用超时")

// StructuredExtractor 结构化提取接口
type StructuredExtractor interface {
	// IsAvailable 后端是否可用，结果在进程内缓存
	IsAvailable(ctx context.Context) bool
	// Extract 用 prompt 提取 text 并填充 out（指向输出结构的指针），成功返回 true
	Extract(ctx context.Context, text, prompt string, out any, temperature float64) bool
	// Reset 清除可用性缓存，下次调用重新探测
	Reset()
	// Model 模型名
	Model() string
}

// Prober 探测后端和模型是否就绪
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc 函数适配为 Prober
type ProberFunc func(ctx context.Context) error

// Probe 实现 Prober
func (f ProberFunc) Probe(ctx context.Context) error {
	return f(ctx)
}

// CacheKey 响应缓存的键
type CacheKey struct {
	Model       string
	Prompt      string
	Text        string
	Temperature float64
}

// ResponseCache 模型原始回复的缓存，实现方自行处理错误
type ResponseCache interface {
	Get(ctx context.Context, key CacheKey) (string, bool)
	Set(ctx context.Context, key CacheKey, response string)
}

const (
	defaultCallTimeout  = 60 * time.Second
	defaultProbeTimeout = 5 * time.Second
	defaultMaxRetries   = 2
	defaultRetryDelay   = 2 * time.Second
)

// ChatExtractor 基于 eino ChatModel 的 StructuredExtractor
type ChatExtractor struct {
	chatModel    model.ToolCallingChatModel
	prober       Prober
	modelName    string
	cache        ResponseCache
	logger       zerolog.Logger
	callTimeout  time.Duration
	probeTimeout time.Duration
	maxRetries   int
	retryDelay   time.Duration

	mu        sync.Mutex
	available *bool
}

var _ StructuredExtractor = (*ChatExtractor)(nil)

// ChatExtractorOption 选项
type ChatExtractorOption func(*ChatExtractor)

// WithLogger 设置日志
func WithLogger(logger zerolog.Logger) ChatExtractorOption {
	return func(e *ChatExtractor) {
		e.logger = logger
	}
}

// WithCache 设置响应缓存
func WithCache(cache ResponseCache) ChatExtractorOption {
	return func(e *ChatExtractor) {
		e.cache = cache
	}
}

// WithCallTimeout 单次模型调用超时
func WithCallTimeout(d time.Duration) ChatExtractorOption {
	return func(e *ChatExtractor) {
		if d > 0 {
			e.callTimeout = d
		}
	}
}

// WithProbeTimeout 可用性探测超时
func WithProbeTimeout(d time.Duration) ChatExtractorOption {
	return func(e *ChatExtractor) {
		if d > 0 {
			e.probeTimeout = d
		}
	}
}

// WithRetry 可重试错误的最大重试次数和首次等待时间（之后翻倍）
func WithRetry(maxRetries int, delay time.Duration) ChatExtractorOption {
	return func(e *ChatExtractor) {
		if maxRetries >= 0 {
			e.maxRetries = maxRetries
		}
		if delay > 0 {
			e.retryDelay = delay
		}
	}
}

// NewChatExtractor 创建提取器。prober 为 nil 时视为始终可用
func NewChatExtractor(chatModel model.ToolCallingChatModel, prober Prober, modelName string, opts ...ChatExtractorOption) *ChatExtractor {
	e := &ChatExtractor{
		chatModel:    chatModel,
		prober:       prober,
		modelName:    modelName,
		logger:       zerolog.Nop(),
		callTimeout:  defaultCallTimeout,
		probeTimeout: defaultProbeTimeout,
		maxRetries:   defaultMaxRetries,
		retryDelay:   defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Model 实现 StructuredExtractor
func (e *ChatExtractor) Model() string {
	return e.modelName
}

// IsAvailable 实现 StructuredExtractor。探测只做一次，结果一直保留到 Reset
func (e *ChatExtractor) IsAvailable(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.available != nil {
		return *e.available
	}

	available := e.chatModel != nil
	if available && e.prober != nil {
		probeCtx, cancel := context.WithTimeout(ctx, e.probeTimeout)
		err := e.prober.Probe(probeCtx)
		cancel()
		if err != nil {
			e.logger.Info().Err(err).Str("model", e.modelName).Msg("大模型不可用，使用正则提取")
			available = false
		}
	}
	if available {
		e.logger.Info().Str("model", e.modelName).Msg("大模型可用")
	}
	e.available = &available
	return available
}

// Reset 实现 StructuredExtractor
func (e *ChatExtractor) Reset() {
	e.mu.Lock()
	e.available = nil
	e.mu.Unlock()
}

// Extract 实现 StructuredExtractor
func (e *ChatExtractor) Extract(ctx context.Context, text, prompt string, out any, temperature float64) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	if TimedOut(ctx) {
		e.logger.Debug().Str("model", e.modelName).Msg("本次请求大模型已超时，跳过")
		return false
	}
	if !e.IsAvailable(ctx) {
		return false
	}

	ctx, span := llmTracer.Start(ctx, "llm.Extract",
		trace.WithAttributes(
			attribute.String("llm.model", e.modelName),
			attribute.Int("llm.input_chars", len(text)),
		))
	defer span.End()

	systemContent := prompt
	if d, ok := out.(schemaDescriber); ok {
		systemContent = prompt + "\n\nRespond with a single JSON object of this shape:\n" + d.SchemaDescription()
	}

	key := CacheKey{Model: e.modelName, Prompt: systemContent, Text: text, Temperature: temperature}
	if e.cache != nil {
		if cached, ok := e.cache.Get(ctx, key); ok {
			if err := decodeResponse(cached, out); err == nil {
				span.SetAttributes(attribute.Bool("llm.cache_hit", true))
				return true
			}
		}
	}

	start := time.Now()
	content, err := e.callLLM(ctx, systemContent, text, temperature)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		if errors.Is(err, ErrCallTimeout) {
			markTimedOut(ctx)
			e.logger.Warn().Err(err).Str("model", e.modelName).
				Dur("timeout", e.callTimeout).
				Msg("大模型调用超时，本次请求其余字段使用正则提取")
			return false
		}
		e.logger.Warn().Err(err).Str("model", e.modelName).Msg("大模型调用失败")
		return false
	}

	if err := decodeResponse(content, out); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		e.logger.Warn().Err(err).
			Str("response", tracing.TruncateString(content, 200)).
			Msg("大模型输出无法解析")
		return false
	}

	if e.cache != nil {
		e.cache.Set(ctx, key, content)
	}
	e.logger.Debug().Dur("elapsed", time.Since(start)).Str("model", e.modelName).Msg("大模型提取完成")
	return true
}

// callLLM 带超时和退避重试地调用模型
func (e *ChatExtractor) callLLM(ctx context.Context, systemContent, userContent string, temperature float64) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(systemContent),
		schema.UserMessage(userContent),
	}

	retryDelay := e.retryDelay
	var response *schema.Message
	var err error

	for retry := 0; retry <= e.maxRetries; retry++ {
		if retry > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("上下文已取消: %w", ctx.Err())
			case <-time.After(retryDelay):
				retryDelay *= 2
				e.logger.Debug().Int("retry", retry).Msg("重试大模型调用")
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
		response, err = e.chatModel.Generate(callCtx, messages, model.WithTemperature(float32(temperature)))
		expired := errors.Is(callCtx.Err(), context.DeadlineExceeded)
		cancel()

		if err == nil {
			break
		}
		if expired || isTimeoutError(err) {
			return "", fmt.Errorf("%w: %v", ErrCallTimeout, err)
		}
		if !isRetryableError(err) || retry >= e.maxRetries {
			return "", fmt.Errorf("LLM Generate failed: %w", err)
		}
	}

	if response == nil || strings.TrimSpace(response.Content) == "" {
		return "", fmt.Errorf("大模型返回空响应")
	}
	return response.Content, nil
}

// isTimeoutError 超时类错误，包括 HTTP 客户端自身的超时
func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded")
}

// isRetryableError 连接类的临时错误才重试，超时不在其中
func isRetryableError(err error) bool {
	if err == nil || isTimeoutError(err) {
		return false
	}

	errStr := err.Error()
	return strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host")
}

// Disabled 不使用大模型时的 StructuredExtractor，始终不可用
type Disabled struct{}

var _ StructuredExtractor = Disabled{}

// IsAvailable 实现 StructuredExtractor
func (Disabled) IsAvailable(context.Context) bool { return false }

// Extract 实现 StructuredExtractor
func (Disabled) Extract(context.Context, string, string, any, float64) bool { return false }

// Reset 实现 StructuredExtractor
func (Disabled) Reset() {}

// Model 实现 StructuredExtractor
func (Disabled) Model() string { return "" }
