package nlp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jdkato/prose/v2"
	"github.com/rs/zerolog"
)

// ProseAnnotator 基于 prose 的统计 NER，只产出 PERSON 和 GPE
type ProseAnnotator struct {
	logger zerolog.Logger
}

var _ EntityAnnotator = (*ProseAnnotator)(nil)

// ProseOption prose 识别器选项
type ProseOption func(*ProseAnnotator)

// WithProseLogger 设置日志
func WithProseLogger(logger zerolog.Logger) ProseOption {
	return func(p *ProseAnnotator) {
		p.logger = logger
	}
}

// NewProseAnnotator 创建 prose 识别器
func NewProseAnnotator(opts ...ProseOption) *ProseAnnotator {
	p := &ProseAnnotator{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Annotate 实现 EntityAnnotator。模型内部 panic 会被转成错误
func (p *ProseAnnotator) Annotate(ctx context.Context, text string) (entities []Entity, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	defer func() {
		if r := recover(); r != nil {
			entities, err = nil, fmt.Errorf("prose panic: %v", r)
		}
	}()

	start := time.Now()
	doc, err := prose.NewDocument(text, prose.WithSegmentation(false))
	if err != nil {
		return nil, fmt.Errorf("prose 分析失败: %w", err)
	}

	for _, ent := range doc.Entities() {
		switch ent.Label {
		case LabelPerson, LabelGPE:
			entities = append(entities, Entity{Text: strings.TrimSpace(ent.Text), Label: ent.Label})
		}
	}
	p.logger.Debug().
		Int("chars", len(text)).
		Int("entities", len(entities)).
		Dur("duration", time.Since(start)).
		Msg("prose 实体识别完成")
	return entities, nil
}
