package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

const geminiRoleModel = "model"

// GeminiChatModel 实现 model.ToolCallingChatModel，调用 Gemini API 并要求输出 JSON
type GeminiChatModel struct {
	client      *genai.Client
	modelName   string
	temperature float32
	maxTokens   int
}

var _ model.ToolCallingChatModel = (*GeminiChatModel)(nil)

// NewGeminiChatModel 创建 Gemini 客户端
func NewGeminiChatModel(ctx context.Context, apiKey, modelName string, temperature float64, maxTokens int) (*GeminiChatModel, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiChatModel{
		client:      client,
		modelName:   strings.TrimSpace(modelName),
		temperature: float32(temperature),
		maxTokens:   maxTokens,
	}, nil
}

// Client 底层客户端，供探测使用
func (g *GeminiChatModel) Client() *genai.Client {
	return g.client
}

// Generate 实现 model.ChatModel。system 消息合并为 SystemInstruction
func (g *GeminiChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{
		Temperature: &g.temperature,
		MaxTokens:   &g.maxTokens,
	}, opts...)

	var system []string
	var contents []*genai.Content
	for _, msg := range messages {
		switch msg.Role {
		case schema.System:
			system = append(system, msg.Content)
		case schema.Assistant:
			contents = append(contents, &genai.Content{Role: geminiRoleModel, Parts: []*genai.Part{{Text: msg.Content}}})
		default:
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: msg.Content}}})
		}
	}
	if len(contents) == 0 {
		return nil, errors.New("gemini: no user content")
	}

	cfg := &genai.GenerateContentConfig{
		CandidateCount:   1,
		ResponseMIMEType: "application/json",
	}
	if len(system) > 0 {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: strings.Join(system, "\n\n")}}}
	}
	if options.Temperature != nil {
		cfg.Temperature = options.Temperature
	}
	if options.MaxTokens != nil && *options.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(*options.MaxTokens)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || strings.TrimSpace(part.Text) == "" {
				continue
			}
			builder.WriteString(part.Text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return nil, errors.New("gemini api returned empty response")
	}
	return schema.AssistantMessage(output, nil), nil
}

// Stream 实现 model.ChatModel（未实现）
func (g *GeminiChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("GeminiChatModel 不支持 Stream")
}

// WithTools 实现 model.ToolCallingChatModel。结构化提取不使用工具，原样返回
func (g *GeminiChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return g, nil
}
