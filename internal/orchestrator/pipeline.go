package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"cv-sidecar/internal/extractor"
	"cv-sidecar/internal/llm"
	"cv-sidecar/internal/normalizer"
	"cv-sidecar/internal/tracing"
	"cv-sidecar/internal/types"
)

var pipelineTracer = tracing.Tracer("orchestrator")

// ErrDocumentUnreadable 文档能打开但无法取出文本（加密、纯图片、损坏等）
var ErrDocumentUnreadable = errors.New("document unreadable")

// contactWindow 联系人只从文本开头这么多字符里找
const contactWindow = 2000

// Mode 提取模式
type Mode string

const (
	// ModeAuto 默认模式，等同于 per_field
	ModeAuto Mode = "auto"
	// ModeUnified 一次调用提取全部字段，失败时全部用正则
	ModeUnified Mode = "unified"
	// ModePerField 每个字段单独决定大模型或正则
	ModePerField Mode = "per_field"
	// ModeRegex 只用正则，不访问大模型
	ModeRegex Mode = "regex"
)

// ParseMode 解析请求里的 mode，空字符串为 auto
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeUnified, ModePerField, ModeRegex:
		return m, nil
	default:
		return "", fmt.Errorf("Unknown mode: %s", s)
	}
}

// DocumentParser 文档解析能力，*parser.Parser 实现它
type DocumentParser interface {
	Parse(ctx context.Context, path string) (*types.ParseResult, error)
}

// Pipeline 从文件路径到 ParsedCV 的完整流程
type Pipeline struct {
	parser DocumentParser
	hybrid *Hybrid
	logger zerolog.Logger
}

// NewPipeline 创建流程
func NewPipeline(p DocumentParser, h *Hybrid, logger zerolog.Logger) *Pipeline {
	return &Pipeline{parser: p, hybrid: h, logger: logger}
}

// Hybrid 返回字段编排器
func (p *Pipeline) Hybrid() *Hybrid {
	return p.hybrid
}

// Parse 只解析文档
func (p *Pipeline) Parse(ctx context.Context, path string) (*types.ParseResult, error) {
	return p.parser.Parse(ctx, path)
}

// ExtractCV 解析文档并提取结构化简历。
// 致命的解析错误原样返回；结果里带 Error 的文档返回包装了该信息的 ErrDocumentUnreadable。
func (p *Pipeline) ExtractCV(ctx context.Context, path string, mode Mode) (*types.ParsedCV, error) {
	start := time.Now()
	ctx, span := pipelineTracer.Start(ctx, "orchestrator.ExtractCV")
	defer span.End()
	span.SetAttributes(
		attribute.String("file.name", tracing.SafePath(path)),
		attribute.String("extract.mode", string(mode)),
	)

	result, err := p.parser.Parse(ctx, path)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeParse)
		return nil, err
	}
	if result.Failed() {
		err := fmt.Errorf("%w: %s", ErrDocumentUnreadable, result.Error)
		tracing.RecordError(span, err, tracing.ErrorTypeParse)
		return nil, err
	}

	cv := p.ExtractText(ctx, result.RawText, mode)
	cv.Warnings = append(cv.Warnings, result.Warnings...)
	cv.ExtractTimeMS = time.Since(start).Milliseconds()

	span.SetAttributes(
		attribute.Float64("cv.parse_confidence", cv.ParseConfidence),
		attribute.Int("cv.work_entries", len(cv.WorkHistory)),
		attribute.Int("cv.education_entries", len(cv.Education)),
	)
	p.logger.Debug().
		Str("path", tracing.SafePath(path)).
		Str("mode", string(mode)).
		Float64("parse_confidence", cv.ParseConfidence).
		Int64("extract_time_ms", cv.ExtractTimeMS).
		Msg("简历提取完成")
	return cv, nil
}

// ExtractText 对已解析出的原始文本做分节和字段提取。
// 同一次调用内大模型一旦超时，其余字段都直接用正则。
func (p *Pipeline) ExtractText(ctx context.Context, rawText string, mode Mode) *types.ParsedCV {
	ctx = llm.WithRequestScope(ctx)
	text := normalizer.NormalizeBullets(normalizer.NormalizeText(rawText))
	sections := extractor.DetectSections(text)

	cv := &types.ParsedCV{
		WorkHistory:    []types.WorkEntry{},
		Education:      []types.EducationEntry{},
		Skills:         []types.SkillGroup{},
		Certifications: []string{},
		Languages:      []string{},
		OtherSections:  map[string]string{},
		RawText:        text,
		SectionOrder:   extractor.GetSectionOrder(sections),
		Warnings:       []string{},
	}

	contactText := extractor.HeadChars(text, contactWindow)
	workText, hasWork := extractor.GetSectionText(text, sections, types.SectionExperience)
	eduText, hasEdu := extractor.GetSectionText(text, sections, types.SectionEducation)
	skillsText, hasSkills := extractor.GetSectionText(text, sections, types.SectionSkills)

	methods := types.ExtractionMethods{
		Contact:     types.MethodRegex,
		WorkHistory: types.MethodRegex,
		Education:   types.MethodRegex,
		Skills:      types.MethodRegex,
	}
	if mode != ModeRegex {
		methods.LLMAvailable = p.hybrid.LLMAvailable(ctx)
	}

	var contactConfidence float64
	unifiedDone := false

	if mode == ModeUnified {
		if u, ok := p.hybrid.ExtractUnified(ctx, text); ok {
			cv.Contact = u.Contact
			contactConfidence = LLMConfidence
			cv.WorkHistory = u.WorkHistory
			cv.Education = u.Education
			cv.Skills = u.Skills
			methods.Contact = types.MethodLLM
			methods.WorkHistory = types.MethodLLM
			methods.Education = types.MethodLLM
			methods.Skills = types.MethodLLM
			unifiedDone = true
		} else {
			p.logger.Debug().Msg("一次性提取失败，全部字段改用正则")
		}
	}

	if !unifiedDone {
		if mode == ModeRegex || mode == ModeUnified {
			cv.Contact, contactConfidence = p.hybrid.regex.Contact(ctx, contactText)
			if hasWork {
				cv.WorkHistory = p.hybrid.regex.WorkHistory(ctx, workText)
			}
			if hasEdu {
				cv.Education = p.hybrid.regex.Education(ctx, eduText)
			}
			if hasSkills {
				cv.Skills = extractor.Skills(skillsText)
			}
		} else {
			cv.Contact, contactConfidence, methods.Contact = p.hybrid.Contact(ctx, contactText)
			if hasWork {
				cv.WorkHistory, methods.WorkHistory = p.hybrid.WorkHistory(ctx, workText)
			}
			if hasEdu {
				cv.Education, methods.Education = p.hybrid.Education(ctx, eduText)
			}
			if hasSkills {
				cv.Skills, methods.Skills = p.hybrid.Skills(ctx, skillsText)
			}
		}
	}
	cv.ExtractionMethods = methods
	if llm.TimedOut(ctx) {
		cv.Warnings = append(cv.Warnings, "LLM call timed out; remaining fields extracted with regex")
	}

	if certText, ok := extractor.GetSectionText(text, sections, types.SectionCertifications); ok {
		cv.Certifications = nonNil(extractor.ListItems(certText))
	}
	if langText, ok := extractor.GetSectionText(text, sections, types.SectionLanguages); ok {
		cv.Languages = nonNil(extractor.ListItems(langText))
	}

	for _, s := range sections {
		switch s.Name {
		case types.SectionExperience, types.SectionEducation, types.SectionSkills,
			types.SectionCertifications, types.SectionLanguages:
			continue
		}
		if _, seen := cv.OtherSections[string(s.Name)]; seen {
			continue
		}
		if body, ok := extractor.GetSectionText(text, sections, s.Name); ok && body != "" {
			cv.OtherSections[string(s.Name)] = body
		}
	}

	cv.ParseConfidence = parseConfidence(cv, contactConfidence)
	return cv
}

// parseConfidence 对产出了结果的部分取平均：联系人置信度、工作和教育条目的平均置信度，
// 有技能时计 1.0。都没有时为 0，保留两位小数。
func parseConfidence(cv *types.ParsedCV, contactConfidence float64) float64 {
	var scores []float64
	if !cv.Contact.IsEmpty() {
		scores = append(scores, contactConfidence)
	}
	if len(cv.WorkHistory) > 0 {
		sum := 0.0
		for _, e := range cv.WorkHistory {
			sum += e.Confidence
		}
		scores = append(scores, sum/float64(len(cv.WorkHistory)))
	}
	if len(cv.Education) > 0 {
		sum := 0.0
		for _, e := range cv.Education {
			sum += e.Confidence
		}
		scores = append(scores, sum/float64(len(cv.Education)))
	}
	if len(cv.Skills) > 0 {
		scores = append(scores, 1.0)
	}
	if len(scores) == 0 {
		return 0
	}

	total := 0.0
	for _, s := range scores {
		total += s
	}
	return math.Round(total/float64(len(scores))*100) / 100
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
