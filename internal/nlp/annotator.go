// Package nlp 为字段提取提供命名实体识别。
// 统计模型（prose）负责人名和地名，规则表负责公司和院校。
package nlp

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"cv-sidecar/internal/config"
)

// 实体标签
const (
	LabelPerson = "PERSON"
	LabelOrg    = "ORG"
	LabelGPE    = "GPE"
)

// Entity 识别出的一个实体，按在文本中出现的顺序返回
type Entity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// EntityAnnotator 命名实体识别接口
type EntityAnnotator interface {
	Annotate(ctx context.Context, text string) ([]Entity, error)
}

// Filter 返回指定标签的实体文本，保持顺序
func Filter(entities []Entity, label string) []string {
	var out []string
	for _, e := range entities {
		if e.Label == label {
			out = append(out, e.Text)
		}
	}
	return out
}

// HasLabel 是否含有指定标签的实体
func HasLabel(entities []Entity, label string) bool {
	for _, e := range entities {
		if e.Label == label {
			return true
		}
	}
	return false
}

// CompositeAnnotator 依次调用多个识别器并合并结果。
// 单个识别器失败只记日志，(标签, 文本) 相同的实体只保留第一次出现。
type CompositeAnnotator struct {
	annotators []EntityAnnotator
	logger     zerolog.Logger
}

var _ EntityAnnotator = (*CompositeAnnotator)(nil)

// NewCompositeAnnotator 组合多个识别器
func NewCompositeAnnotator(logger zerolog.Logger, annotators ...EntityAnnotator) *CompositeAnnotator {
	return &CompositeAnnotator{annotators: annotators, logger: logger}
}

// Annotate 实现 EntityAnnotator
func (c *CompositeAnnotator) Annotate(ctx context.Context, text string) ([]Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seen := make(map[Entity]bool)
	var out []Entity
	for _, a := range c.annotators {
		entities, err := a.Annotate(ctx, text)
		if err != nil {
			c.logger.Warn().Err(err).Msg("实体识别失败，跳过该识别器")
			continue
		}
		for _, e := range entities {
			if !seen[e] {
				seen[e] = true
				out = append(out, e)
			}
		}
	}
	return out, nil
}

// StaticAnnotator 测试用：返回预置实体中出现在输入文本里的那些
type StaticAnnotator struct {
	Entities []Entity
	Err      error
	Calls    int
}

var _ EntityAnnotator = (*StaticAnnotator)(nil)

// Annotate 实现 EntityAnnotator
func (s *StaticAnnotator) Annotate(ctx context.Context, text string) ([]Entity, error) {
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}
	var out []Entity
	for _, e := range s.Entities {
		if strings.Contains(text, e.Text) {
			out = append(out, e)
		}
	}
	return out, nil
}

// NewFromConfig 按配置组装识别器；关闭统计模型时只用规则表
func NewFromConfig(cfg config.NLPConfig, logger zerolog.Logger) EntityAnnotator {
	rules := NewRuleAnnotator()
	if !cfg.Enabled {
		logger.Info().Msg("统计 NER 已关闭，仅使用规则识别机构")
		return rules
	}
	return NewCompositeAnnotator(logger, NewProseAnnotator(WithProseLogger(logger)), rules)
}

// ModelName health_check 中报告的实体识别模型名
func ModelName(cfg config.NLPConfig) string {
	if !cfg.Enabled {
		return "rules"
	}
	return "prose/v2+rules"
}
