package parser

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"code.sajari.com/docconv"
	"github.com/rs/zerolog"

	"cv-sidecar/internal/logger"
)

// DocconvPDFExtractor 通过 docconv（底层 pdftotext）提取纯文本
type DocconvPDFExtractor struct {
	logger zerolog.Logger
}

// DocconvOption docconv 引擎选项
type DocconvOption func(*DocconvPDFExtractor)

// WithDocconvLogger 配置日志
func WithDocconvLogger(l zerolog.Logger) DocconvOption {
	return func(e *DocconvPDFExtractor) {
		e.logger = l
	}
}

var _ SecondaryEngine = (*DocconvPDFExtractor)(nil)

// NewDocconvPDFExtractor 创建 docconv 备用引擎
func NewDocconvPDFExtractor(options ...DocconvOption) *DocconvPDFExtractor {
	e := &DocconvPDFExtractor{
		logger: logger.Logger.With().Str("engine", EngineDocconv).Logger(),
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// Name 引擎名称
func (e *DocconvPDFExtractor) Name() string { return EngineDocconv }

// ExtractText docconv 不支持 context，超时由外部命令自身控制
func (e *DocconvPDFExtractor) ExtractText(ctx context.Context, data []byte, uri string) (*SecondaryText, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	startTime := time.Now()

	body, meta, err := docconv.ConvertPDF(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("docconv convert %s: %w", uri, err)
	}

	pages := 0
	if v, ok := meta["Pages"]; ok {
		pages, _ = strconv.Atoi(strings.TrimSpace(v))
	}

	text := strings.TrimSpace(body)
	e.logger.Debug().
		Str("uri", uri).
		Int("pages", pages).
		Int("chars", len(text)).
		Dur("duration", time.Since(startTime)).
		Msg("docconv 提取完成")

	return &SecondaryText{Text: text, PageCount: pages}, nil
}
