package parser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"cv-sidecar/internal/types"
)

// 备用引擎名称，与配置 parser.secondary_engine 对应
const (
	EngineEino    = "eino"
	EngineTika    = "tika"
	EngineDocconv = "docconv"
	EngineNone    = "none"
)

// SecondaryText 备用引擎的纯文本结果
type SecondaryText struct {
	Text      string
	PageCount int
}

// SecondaryEngine 只能提取纯文本的备用 PDF 引擎。
// 主引擎崩溃或提取的文字过少时使用。
type SecondaryEngine interface {
	Name() string
	ExtractText(ctx context.Context, data []byte, uri string) (*SecondaryText, error)
}

// TableExtractor 能识别表格的备用引擎实现该接口，
// 否则表格由主引擎的版面行推断。pages 从1开始。
type TableExtractor interface {
	ExtractTables(ctx context.Context, data []byte, uri string, pages []int) ([]types.TableData, error)
}

// SecondaryOptions 构造备用引擎所需的参数
type SecondaryOptions struct {
	TikaServerURL string
	TikaTimeout   int // 秒
	Logger        zerolog.Logger
}

// NewSecondaryEngine 按名称构造备用引擎；"none" 或空字符串返回 nil
func NewSecondaryEngine(ctx context.Context, name string, opts SecondaryOptions) (SecondaryEngine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", EngineNone:
		return nil, nil
	case EngineEino:
		engine, err := NewEinoPDFTextExtractor(ctx, WithEinoLogger(opts.Logger))
		if err != nil {
			return nil, err
		}
		return engine, nil
	case EngineTika:
		tikaOpts := []TikaOption{WithTikaLogger(opts.Logger)}
		if opts.TikaTimeout > 0 {
			tikaOpts = append(tikaOpts, WithTimeout(time.Duration(opts.TikaTimeout)*time.Second))
		}
		return NewTikaPDFExtractor(opts.TikaServerURL, tikaOpts...), nil
	case EngineDocconv:
		return NewDocconvPDFExtractor(WithDocconvLogger(opts.Logger)), nil
	default:
		return nil, fmt.Errorf("%w: unknown secondary engine %q", ErrSecondaryEngine, name)
	}
}

// safeSecondaryText 调用备用引擎并把 panic 转成错误
func safeSecondaryText(ctx context.Context, engine SecondaryEngine, data []byte, uri string) (out *SecondaryText, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out, err = nil, fmt.Errorf("%w: %s panic: %v", ErrSecondaryEngine, engine.Name(), rec)
		}
	}()
	out, err = engine.ExtractText(ctx, data, uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSecondaryEngine, engine.Name(), err)
	}
	if out == nil {
		out = &SecondaryText{}
	}
	return out, nil
}
