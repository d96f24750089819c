package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// OpenAIProber 有 API key 且 GET {base}/models 返回 200 时可用
type OpenAIProber struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// Probe 实现 Prober
func (p OpenAIProber) Probe(ctx context.Context) error {
	if strings.TrimSpace(p.APIKey) == "" {
		return errors.New("未配置 OpenAI API key")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(p.BaseURL, "/")+"/models", nil)
	if err != nil {
		return fmt.Errorf("创建探测请求失败: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := httpClientOrDefault(p.HTTPClient).Do(req)
	if err != nil {
		return fmt.Errorf("探测请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("探测返回状态 %s", resp.Status)
	}
	return nil
}

// OllamaProber 服务在运行且已拉取模型时可用。
// 模型按基础名前缀匹配，qwen2.5:7b 可以匹配 qwen2.5:7b-instruct-q4_K_M。
type OllamaProber struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

type ollamaTagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// Probe 实现 Prober
func (p OllamaProber) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(p.BaseURL, "/")+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("创建探测请求失败: %w", err)
	}

	resp, err := httpClientOrDefault(p.HTTPClient).Do(req)
	if err != nil {
		return fmt.Errorf("Ollama 未运行: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("探测返回状态 %s", resp.Status)
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("解析模型列表失败: %w", err)
	}

	base, _, _ := strings.Cut(p.Model, ":")
	for _, m := range tags.Models {
		name := m.Model
		if name == "" {
			name = m.Name
		}
		if strings.HasPrefix(name, base) {
			return nil
		}
	}
	return fmt.Errorf("Ollama 中没有模型 %s", p.Model)
}

// GeminiProber 能查到模型信息时可用
type GeminiProber struct {
	Client *genai.Client
	Model  string
}

// Probe 实现 Prober
func (p GeminiProber) Probe(ctx context.Context) error {
	if p.Client == nil {
		return errors.New("gemini client is not initialized")
	}
	if _, err := p.Client.Models.Get(ctx, p.Model, nil); err != nil {
		return fmt.Errorf("get gemini model: %w", err)
	}
	return nil
}

func httpClientOrDefault(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return http.DefaultClient
}
