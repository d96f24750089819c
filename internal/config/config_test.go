package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearLLMEnv 清掉会影响结果的环境变量，避免开发机上的配置干扰测试
func clearLLMEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CV_SIDECAR_LLM_PROVIDER", "CV_SIDECAR_LLM_MODEL", "OPENAI_API_KEY",
		"GEMINI_API_KEY", "OLLAMA_HOST", "CV_SIDECAR_LOG_LEVEL", "CV_SIDECAR_TRACING",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644), "无法写入临时配置文件")
	return configPath
}

// TestLoadConfigMergesDefaults 验证 YAML 中缺省的字段保持默认值
func TestLoadConfigMergesDefaults(t *testing.T) {
	clearLLMEnv(t)
	configPath := writeConfig(t, `
parser:
  secondary_engine: tika
  min_chars_per_page: 80
llm:
  provider: ollama
  qpm: 30
amqp:
  request_queue: "q.custom"
`)

	config, err := LoadConfig(configPath)
	require.NoError(t, err, "加载合法配置不应返回错误")
	require.NotNil(t, config)

	assert.Equal(t, "tika", config.Parser.SecondaryEngine)
	assert.Equal(t, 80, config.Parser.MinCharsPerPage)
	assert.Equal(t, 100.0, config.Parser.ColumnGapThreshold, "未配置的字段应保留默认值")
	assert.Equal(t, 0.7, config.Parser.ColumnWidthRatio)
	assert.Equal(t, 30, config.LLM.QPM)
	assert.Equal(t, "qwen2.5:7b", config.LLM.Model)
	assert.Equal(t, "http://localhost:11434", config.LLM.BaseURL)
	assert.Equal(t, "q.custom", config.AMQP.RequestQueue)
	assert.Equal(t, 2000, config.NLP.ContextWindow)
}

// TestLoadConfigEnvOverrides 验证环境变量覆盖 provider 后模型和地址随之切换
func TestLoadConfigEnvOverrides(t *testing.T) {
	clearLLMEnv(t)
	t.Setenv("CV_SIDECAR_LLM_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	config, err := LoadConfig(writeConfig(t, "logger:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, "openai", config.LLM.Provider)
	assert.Equal(t, "sk-test", config.LLM.APIKey)
	assert.Equal(t, "gpt-4o-mini", config.LLM.Model)
	assert.Equal(t, "https://api.openai.com/v1", config.LLM.BaseURL)
	assert.Equal(t, "debug", config.Logger.Level)
}

func TestLoadConfigOllamaHost(t *testing.T) {
	clearLLMEnv(t)
	t.Setenv("OLLAMA_HOST", "gpu-box:11434")

	config, err := LoadConfig(writeConfig(t, "llm:\n  provider: ollama\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://gpu-box:11434", config.LLM.BaseURL)
}

func TestLoadConfigRejectsUnknownValues(t *testing.T) {
	clearLLMEnv(t)

	_, err := LoadConfig(writeConfig(t, "llm:\n  provider: mystery\n"))
	assert.Error(t, err, "未知 provider 应报错")

	_, err = LoadConfig(writeConfig(t, "parser:\n  secondary_engine: ocr\n"))
	assert.Error(t, err, "未知备用引擎应报错")

	_, err = LoadConfig(writeConfig(t, "parser:\n  column_width_ratio: 1.5\n"))
	assert.Error(t, err, "column_width_ratio 超出范围应报错")
}

func TestLoadConfigErrors(t *testing.T) {
	clearLLMEnv(t)

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "配置文件不存在应报错")

	_, err = LoadConfig(writeConfig(t, "parser: [unclosed\n"))
	assert.Error(t, err, "YAML 语法错误应报错")
}

func TestCreateSampleConfig(t *testing.T) {
	clearLLMEnv(t)
	path := filepath.Join(t.TempDir(), "sample.yaml")

	require.NoError(t, CreateSampleConfig(path))
	assert.Error(t, CreateSampleConfig(path), "已存在的文件不应被覆盖")

	config, err := LoadConfig(path)
	require.NoError(t, err, "示例配置应能被重新加载")
	assert.Equal(t, createDefaultConfig().Parser, config.Parser)
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, GetDuration("", 5*time.Second))
	assert.Equal(t, 5*time.Second, GetDuration("garbage", 5*time.Second))
	assert.Equal(t, 90*time.Second, GetDuration("1m30s", time.Second))
}
