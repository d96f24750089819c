package extractor

import (
	"context"
	"math"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"cv-sidecar/internal/nlp"
)

// DefaultContextWindow 联系人实体识别只看文本开头的字符数
const DefaultContextWindow = 2000

// Extractor 基于正则和实体识别的字段提取器，不依赖大模型
type Extractor struct {
	annotator     nlp.EntityAnnotator
	logger        zerolog.Logger
	contextWindow int
}

// Option 提取器选项
type Option func(*Extractor)

// WithLogger 设置日志
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// WithContextWindow 设置联系人实体识别的窗口大小（字符数）
func WithContextWindow(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.contextWindow = n
		}
	}
}

// New 创建提取器。annotator 为 nil 时不做实体识别
func New(annotator nlp.EntityAnnotator, opts ...Option) *Extractor {
	e := &Extractor{
		annotator:     annotator,
		logger:        zerolog.Nop(),
		contextWindow: DefaultContextWindow,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// entities 调用识别器；失败时记日志并当作没有实体
func (e *Extractor) entities(ctx context.Context, text string) []nlp.Entity {
	if e.annotator == nil || text == "" {
		return nil
	}
	entities, err := e.annotator.Annotate(ctx, text)
	if err != nil {
		e.logger.Warn().Err(err).Msg("实体识别失败，按无实体处理")
		return nil
	}
	return entities
}

// HeadChars 返回前 n 个字符（按 rune 截断）
func HeadChars(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
