package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"cv-sidecar/internal/config"
	"cv-sidecar/internal/extractor"
	"cv-sidecar/internal/llm"
	"cv-sidecar/internal/nlp"
	"cv-sidecar/internal/orchestrator"
	"cv-sidecar/internal/parser"
	"cv-sidecar/internal/types"
)

func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
}

// parseFile 解析文件，文档本身不可读时把说明当作错误返回
func parseFile(ctx context.Context, path string) (*types.ParseResult, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("无法获取文件的绝对路径: %w", err)
	}

	result, err := parser.New(parser.WithLogger(newLogger())).Parse(ctx, absPath)
	if err != nil {
		return nil, err
	}
	if result.Failed() {
		return nil, fmt.Errorf("%s", result.Error)
	}
	return result, nil
}

func handleParseCommand(path string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	fmt.Printf("准备处理文件: %s\n", path)
	startTime := time.Now()
	result, err := parseFile(ctx, path)
	if err != nil {
		return err
	}
	fmt.Printf("解析完成! 耗时: %v, 类型: %s, 页数: %d\n", time.Since(startTime), result.DocumentType, result.PageCount)

	text := result.RawText
	fmt.Printf("\n===== 提取的文本 (总计 %d 字符) =====\n", len([]rune(text)))
	displayText := text
	if *maxLen >= 0 && len([]rune(text)) > *maxLen {
		displayText = string([]rune(text)[:*maxLen]) + "...(已截断，使用 -maxlen 参数显示更多)"
	}
	fmt.Println(displayText)

	for _, w := range result.Warnings {
		fmt.Printf("警告: %s\n", w)
	}
	return save([]byte(text))
}

func handleSectionsCommand(path string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	result, err := parseFile(ctx, path)
	if err != nil {
		return err
	}

	sections := extractor.DetectSections(result.RawText)
	fmt.Printf("===== 检测到 %d 个章节 =====\n", len(sections))
	for _, s := range sections {
		body, _ := extractor.GetSectionText(result.RawText, sections, s.Name)
		fmt.Printf("  %-16s [%d, %d)  %d 字符\n", s.Name, s.Start, s.End, len([]rune(body)))
	}
	return nil
}

func handleExtractCommand(path, modeName string) error {
	m, err := orchestrator.ParseMode(modeName)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	logger := newLogger()

	backend := llm.StructuredExtractor(llm.Disabled{})
	cfg := &config.Config{}
	if m != orchestrator.ModeRegex {
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		if b, err := llm.NewFromConfig(ctx, cfg.LLM, nil, logger); err != nil {
			logger.Warn().Err(err).Msg("初始化大模型失败，仅使用正则提取")
		} else {
			backend = b
		}
	}

	regex := extractor.New(nlp.NewFromConfig(cfg.NLP, logger), extractor.WithLogger(logger))
	hybrid := orchestrator.NewHybrid(regex, backend,
		orchestrator.WithHybridLogger(logger),
		orchestrator.WithTemperature(cfg.LLM.Temperature),
	)
	pipeline := orchestrator.NewPipeline(parser.New(parser.WithLogger(logger)), hybrid, logger)

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("无法获取文件的绝对路径: %w", err)
	}
	cv, err := pipeline.ExtractCV(ctx, absPath, m)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(cv, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化结果失败: %w", err)
	}
	fmt.Println(string(data))
	return save(data)
}

func save(data []byte) error {
	if *saveFile == "" {
		return nil
	}
	if err := os.WriteFile(*saveFile, data, 0644); err != nil {
		return fmt.Errorf("保存到文件失败: %w", err)
	}
	fmt.Printf("结果已保存到: %s\n", *saveFile)
	return nil
}
