// Package parser 把 PDF/DOCX 简历解析成带版面信息的文本。
package parser

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"cv-sidecar/internal/config"
	"cv-sidecar/internal/logger"
	"cv-sidecar/internal/tracing"
	"cv-sidecar/internal/types"
)

var parserTracer = tracing.Tracer("parser")

// Parser 文档解析器，可并发使用
type Parser struct {
	logger          zerolog.Logger
	primary         primaryEngine
	secondary       SecondaryEngine
	secondaryTables bool
	columns         ColumnDetector
	minCharsPerPage int
	preClean        bool
	maxFileSize     int64
}

// Option 解析器选项
type Option func(*Parser)

// WithLogger 设置日志
func WithLogger(l zerolog.Logger) Option {
	return func(p *Parser) {
		p.logger = l
	}
}

// WithSecondaryEngine 设置备用引擎，nil 表示不使用
func WithSecondaryEngine(engine SecondaryEngine) Option {
	return func(p *Parser) {
		p.secondary = engine
	}
}

// WithSecondaryTables 备用引擎实现 TableExtractor 时是否用它提取表格
func WithSecondaryTables(enabled bool) Option {
	return func(p *Parser) {
		p.secondaryTables = enabled
	}
}

// WithColumnGapThreshold 分栏判定的最小间距(pt)
func WithColumnGapThreshold(gap float64) Option {
	return func(p *Parser) {
		if gap > 0 {
			p.columns.GapThreshold = gap
		}
	}
}

// WithColumnWidthRatio 分栏间距相对页宽的上限
func WithColumnWidthRatio(ratio float64) Option {
	return func(p *Parser) {
		if ratio > 0 && ratio <= 1 {
			p.columns.MaxWidthRatio = ratio
		}
	}
}

// WithMinCharsPerPage 主引擎每页最少字符数，低于它触发备用引擎
func WithMinCharsPerPage(n int) Option {
	return func(p *Parser) {
		if n >= 0 {
			p.minCharsPerPage = n
		}
	}
}

// WithPreClean 是否先用 pdfcpu 清理 PDF
func WithPreClean(enabled bool) Option {
	return func(p *Parser) {
		p.preClean = enabled
	}
}

// WithMaxFileSize 文件大小上限(字节)，0 表示不限制
func WithMaxFileSize(bytes int64) Option {
	return func(p *Parser) {
		p.maxFileSize = bytes
	}
}

func withPrimaryEngine(engine primaryEngine) Option {
	return func(p *Parser) {
		p.primary = engine
	}
}

// New 创建解析器。默认不带备用引擎。
func New(opts ...Option) *Parser {
	p := &Parser{
		logger:          logger.Logger.With().Str("component", "parser").Logger(),
		primary:         ledongthucEngine{},
		secondaryTables: true,
		columns:         DefaultColumnDetector(),
		minCharsPerPage: DefaultMinCharsPerPage,
		preClean:        true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewFromConfig 按配置创建解析器和备用引擎
func NewFromConfig(ctx context.Context, cfg config.ParserConfig, l zerolog.Logger) (*Parser, error) {
	secondary, err := NewSecondaryEngine(ctx, cfg.SecondaryEngine, SecondaryOptions{
		TikaServerURL: cfg.TikaServerURL,
		TikaTimeout:   cfg.TikaTimeoutSeconds,
		Logger:        l,
	})
	if err != nil {
		return nil, fmt.Errorf("创建备用引擎失败: %w", err)
	}

	return New(
		WithLogger(l),
		WithSecondaryEngine(secondary),
		WithSecondaryTables(cfg.ExtractTablesOnTika),
		WithColumnGapThreshold(cfg.ColumnGapThreshold),
		WithColumnWidthRatio(cfg.ColumnWidthRatio),
		WithMinCharsPerPage(cfg.MinCharsPerPage),
		WithPreClean(cfg.PreClean),
		WithMaxFileSize(int64(cfg.MaxFileSizeMB)*1024*1024),
	), nil
}

// Parse 解析单个文件。
// 文件不存在、旧版 .doc、不支持的扩展名返回 error；
// 加密、纯图片 PDF 和损坏的 DOCX 返回带 Error 字段的结果。
func (p *Parser) Parse(ctx context.Context, path string) (*types.ParseResult, error) {
	startTime := time.Now()
	ctx, span := parserTracer.Start(ctx, "parser.Parse",
		trace.WithAttributes(attribute.String("file.name", tracing.SafePath(path))))
	defer span.End()

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			p.logger.Debug().Err(err).Str("path", tracing.SafePath(path)).Msg("无法读取文件信息")
		}
		err = NewNotFoundError(path)
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	var docType types.DocumentType
	switch ext {
	case ".pdf":
		docType = types.DocumentPDF
	case ".docx":
		docType = types.DocumentDOCX
	case ".doc":
		err = NewLegacyFormatError(path)
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	default:
		err = NewUnsupportedFormatError(path, ext)
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}

	var result *types.ParseResult
	if p.maxFileSize > 0 && info.Size() > p.maxFileSize {
		result = newResult(docType)
		result.Error = fmt.Sprintf("File too large: %d bytes (limit %d bytes)", info.Size(), p.maxFileSize)
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeParse)
			return nil, fmt.Errorf("读取文件 %s 失败: %w", tracing.SafePath(path), err)
		}

		if docType == types.DocumentPDF {
			result = p.parsePDF(ctx, path, data)
		} else {
			var docErr error
			result, docErr = p.parseDOCX(path, data)
			if docErr != nil {
				p.logger.Warn().Err(docErr).Str("path", tracing.SafePath(path)).Msg("DOCX 无法打开")
				tracing.RecordError(span, docErr, tracing.ErrorTypeParse)
			}
		}
	}

	result.ParseTimeMS = time.Since(startTime).Milliseconds()
	span.SetAttributes(
		attribute.String("document.type", string(result.DocumentType)),
		attribute.Int("document.pages", result.PageCount),
		attribute.Int("document.chars", len(result.RawText)),
	)
	for _, w := range result.Warnings {
		tracing.RecordWarning(span, w)
	}
	if result.Failed() {
		span.SetAttributes(attribute.String("document.error", tracing.TruncateString(result.Error, tracing.DefaultMaxLength)))
	}

	p.logger.Debug().
		Str("path", tracing.SafePath(path)).
		Str("type", string(result.DocumentType)).
		Int("pages", result.PageCount).
		Int("chars", len(result.RawText)).
		Int("warnings", len(result.Warnings)).
		Int64("parse_time_ms", result.ParseTimeMS).
		Msg("文档解析完成")

	return result, nil
}

func newResult(docType types.DocumentType) *types.ParseResult {
	return &types.ParseResult{
		Blocks:       []types.TextBlock{},
		Tables:       []types.TableData{},
		Warnings:     []string{},
		DocumentType: docType,
	}
}
