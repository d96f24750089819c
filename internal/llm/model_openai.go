package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
)

// OpenAIChatModel 实现 model.ToolCallingChatModel，调用 OpenAI 兼容的 /chat/completions 接口。
// OpenAI 和 Ollama（/v1 兼容层）共用这一实现。
type OpenAIChatModel struct {
	apiKey      string
	modelName   string
	apiURL      string
	httpClient  *http.Client
	temperature float32
	maxTokens   int
	jsonMode    bool
	keepAlive   string
	tools       []openAITool
	logger      zerolog.Logger
}

var _ model.ToolCallingChatModel = (*OpenAIChatModel)(nil)

// OpenAIOption 选项
type OpenAIOption func(*OpenAIChatModel)

// WithJSONMode 要求模型输出 JSON 对象（response_format=json_object）
func WithJSONMode() OpenAIOption {
	return func(m *OpenAIChatModel) {
		m.jsonMode = true
	}
}

// WithKeepAlive 模型在 Ollama 中保持加载的时长，如 "5m"
func WithKeepAlive(keepAlive string) OpenAIOption {
	return func(m *OpenAIChatModel) {
		m.keepAlive = keepAlive
	}
}

// WithDefaults 调用未指定时使用的温度和最大 token 数
func WithDefaults(temperature float64, maxTokens int) OpenAIOption {
	return func(m *OpenAIChatModel) {
		m.temperature = float32(temperature)
		m.maxTokens = maxTokens
	}
}

// WithHTTPClient 替换 HTTP 客户端
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(m *OpenAIChatModel) {
		if client != nil {
			m.httpClient = client
		}
	}
}

// WithModelLogger 设置日志
func WithModelLogger(logger zerolog.Logger) OpenAIOption {
	return func(m *OpenAIChatModel) {
		m.logger = logger
	}
}

// NewOpenAIChatModel 创建模型。apiURL 是完整的 chat/completions 地址；apiKey 为空时不发送 Authorization
func NewOpenAIChatModel(apiURL, apiKey, modelName string, opts ...OpenAIOption) (*OpenAIChatModel, error) {
	if strings.TrimSpace(apiURL) == "" {
		return nil, fmt.Errorf("API 地址不能为空")
	}
	if strings.TrimSpace(modelName) == "" {
		return nil, fmt.Errorf("模型名不能为空")
	}

	m := &OpenAIChatModel{
		apiKey:     strings.TrimSpace(apiKey),
		modelName:  modelName,
		apiURL:     apiURL,
		httpClient: &http.Client{},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

type openAIToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type openAITool struct {
	Type     string             `json:"type"`
	Function openAIToolFunction `json:"function"`
}

type openAIRequestMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIChatRequest struct {
	Model          string                 `json:"model"`
	Messages       []openAIRequestMessage `json:"messages"`
	Temperature    *float32               `json:"temperature,omitempty"`
	MaxTokens      *int                   `json:"max_tokens,omitempty"`
	Stream         bool                   `json:"stream"`
	ResponseFormat *openAIResponseFormat  `json:"response_format,omitempty"`
	Tools          []openAITool           `json:"tools,omitempty"`
	KeepAlive      string                 `json:"keep_alive,omitempty"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Generate 实现 model.ChatModel
func (m *OpenAIChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{
		Temperature: &m.temperature,
		MaxTokens:   &m.maxTokens,
	}, opts...)

	req := openAIChatRequest{
		Model:     m.modelName,
		Messages:  make([]openAIRequestMessage, 0, len(messages)),
		KeepAlive: m.keepAlive,
		Tools:     m.tools,
	}
	for _, msg := range messages {
		req.Messages = append(req.Messages, openAIRequestMessage{Role: string(msg.Role), Content: msg.Content})
	}
	if options.Temperature != nil {
		req.Temperature = options.Temperature
	}
	if options.MaxTokens != nil && *options.MaxTokens > 0 {
		req.MaxTokens = options.MaxTokens
	}
	if m.jsonMode {
		req.ResponseFormat = &openAIResponseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	httpResp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("发送 HTTP 请求失败: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	m.logger.Debug().
		Str("model", m.modelName).
		Int("status", httpResp.StatusCode).
		Int("bytes", len(respBody)).
		Msg("收到模型响应")

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API 请求失败，状态 %s: %s", httpResp.Status, truncateBody(respBody))
	}

	var resp openAIChatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("反序列化 API 响应失败: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("API 响应中没有 choices")
	}

	content := ""
	if c := resp.Choices[0].Message.Content; c != nil {
		content = *c
	}
	return schema.AssistantMessage(content, nil), nil
}

// Stream 实现 model.ChatModel（未实现）
func (m *OpenAIChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("OpenAIChatModel 不支持 Stream")
}

// WithTools 实现 model.ToolCallingChatModel。工具只带名称和描述，参数 schema 为空对象
func (m *OpenAIChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	clone := *m
	clone.tools = make([]openAITool, 0, len(tools))
	for _, t := range tools {
		if t == nil {
			continue
		}
		clone.tools = append(clone.tools, openAITool{
			Type: "function",
			Function: openAIToolFunction{
				Name:        t.Name,
				Description: t.Desc,
				Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
			},
		})
	}
	return &clone, nil
}

func truncateBody(body []byte) string {
	const maxLen = 300
	if len(body) > maxLen {
		return string(body[:maxLen]) + "..."
	}
	return string(body)
}
