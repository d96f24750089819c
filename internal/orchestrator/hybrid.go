// Package orchestrator 决定每个字段用大模型还是正则提取，并合并结果、记录来源。
package orchestrator

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"cv-sidecar/internal/extractor"
	"cv-sidecar/internal/llm"
	"cv-sidecar/internal/normalizer"
	"cv-sidecar/internal/types"
)

const (
	// LLMConfidence 大模型产出条目的置信度
	LLMConfidence = 0.85
	// HybridContactConfidence 正则结果被大模型补全后的联系人置信度
	HybridContactConfidence = 0.80
	// DefaultSkillCategory 大模型没有给分类时使用
	DefaultSkillCategory = "General"
)

// Hybrid 按字段在大模型和正则之间选择。
// 大模型的任何失败都静默回退到正则，不向上返回错误。
type Hybrid struct {
	regex       *extractor.Extractor
	llm         llm.StructuredExtractor
	logger      zerolog.Logger
	temperature float64
}

// HybridOption 选项
type HybridOption func(*Hybrid)

// WithHybridLogger 设置日志
func WithHybridLogger(logger zerolog.Logger) HybridOption {
	return func(h *Hybrid) {
		h.logger = logger
	}
}

// WithTemperature 提取时的采样温度，默认 0
func WithTemperature(t float64) HybridOption {
	return func(h *Hybrid) {
		if t >= 0 {
			h.temperature = t
		}
	}
}

// NewHybrid 创建编排器。backend 为 nil 时等同于大模型不可用
func NewHybrid(regex *extractor.Extractor, backend llm.StructuredExtractor, opts ...HybridOption) *Hybrid {
	if backend == nil {
		backend = llm.Disabled{}
	}
	if regex == nil {
		regex = extractor.New(nil)
	}
	h := &Hybrid{regex: regex, llm: backend, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// LLMAvailable 后端是否可用（结果已缓存）
func (h *Hybrid) LLMAvailable(ctx context.Context) bool {
	return h.llm.IsAvailable(ctx)
}

// ResetLLM 清除可用性缓存并立即重新探测
func (h *Hybrid) ResetLLM(ctx context.Context) bool {
	h.llm.Reset()
	return h.llm.IsAvailable(ctx)
}

// Model 后端模型名，未启用时为空
func (h *Hybrid) Model() string {
	return h.llm.Model()
}

// llmUsable 后端可用，且本次请求还没有调用超时
func (h *Hybrid) llmUsable(ctx context.Context) bool {
	return !llm.TimedOut(ctx) && h.llm.IsAvailable(ctx)
}

// Contact 先用正则；姓名、邮箱或电话缺失且后端可用时再问大模型，正则结果优先。
// 只有合并确实补上了字段才标为 hybrid，置信度取 0.80。
func (h *Hybrid) Contact(ctx context.Context, text string) (types.ContactInfo, float64, types.ExtractionMethod) {
	contact, confidence := h.regex.Contact(ctx, text)

	if contact.Name != "" && contact.Email != "" && contact.Phone != "" {
		return contact, confidence, types.MethodRegex
	}
	if !h.llmUsable(ctx) {
		return contact, confidence, types.MethodRegex
	}

	var out llm.Contact
	if !h.llm.Extract(ctx, text, llm.ContactPrompt, &out, h.temperature) {
		return contact, confidence, types.MethodRegex
	}

	merged, changed := mergeContact(contact, contactFromLLM(out))
	if !changed {
		return contact, confidence, types.MethodRegex
	}
	h.logger.Debug().Msg("联系人由大模型补全")
	return merged, HybridContactConfidence, types.MethodHybrid
}

// WorkHistory 大模型优先，结果为空或无效时回退到正则
func (h *Hybrid) WorkHistory(ctx context.Context, text string) ([]types.WorkEntry, types.ExtractionMethod) {
	if h.llmUsable(ctx) {
		var out llm.WorkHistory
		if h.llm.Extract(ctx, text, llm.WorkHistoryPrompt, &out, h.temperature) {
			if entries := workFromLLM(out.Entries); len(entries) > 0 {
				return entries, types.MethodLLM
			}
		}
	}
	return h.regex.WorkHistory(ctx, text), types.MethodRegex
}

// Education 大模型优先，结果为空或无效时回退到正则
func (h *Hybrid) Education(ctx context.Context, text string) ([]types.EducationEntry, types.ExtractionMethod) {
	if h.llmUsable(ctx) {
		var out llm.Education
		if h.llm.Extract(ctx, text, llm.EducationPrompt, &out, h.temperature) {
			if entries := educationFromLLM(out.Entries); len(entries) > 0 {
				return entries, types.MethodLLM
			}
		}
	}
	return h.regex.Education(ctx, text), types.MethodRegex
}

// Skills 大模型优先，结果为空或无效时回退到正则
func (h *Hybrid) Skills(ctx context.Context, text string) ([]types.SkillGroup, types.ExtractionMethod) {
	if h.llmUsable(ctx) {
		var out llm.Skills
		if h.llm.Extract(ctx, text, llm.SkillsPrompt, &out, h.temperature) {
			if groups := skillsFromLLM(out.Groups); len(groups) > 0 {
				return groups, types.MethodLLM
			}
		}
	}
	return extractor.Skills(text), types.MethodRegex
}

// Unified 一次调用提取全部四个字段的结果
type Unified struct {
	Contact     types.ContactInfo
	WorkHistory []types.WorkEntry
	Education   []types.EducationEntry
	Skills      []types.SkillGroup
}

// ExtractUnified 用一次调用提取全部字段。
// 后端不可用、调用失败或四个字段全空时返回 false，调用方整体回退到正则。
func (h *Hybrid) ExtractUnified(ctx context.Context, text string) (*Unified, bool) {
	if !h.llmUsable(ctx) {
		return nil, false
	}

	var out llm.FullExtraction
	if !h.llm.Extract(ctx, text, llm.FullExtractionPrompt, &out, h.temperature) || out.IsEmpty() {
		return nil, false
	}

	u := &Unified{
		Contact:     contactFromLLM(out.Contact),
		WorkHistory: workFromLLM(out.WorkHistory),
		Education:   educationFromLLM(out.Education),
		Skills:      skillsFromLLM(out.Skills),
	}
	if u.Contact.IsEmpty() && len(u.WorkHistory) == 0 && len(u.Education) == 0 && len(u.Skills) == 0 {
		return nil, false
	}
	return u, true
}

// mergeContact 用 extra 填补 base 的空字段，返回是否有变化
func mergeContact(base, extra types.ContactInfo) (types.ContactInfo, bool) {
	changed := false
	fill := func(dst *string, src string) {
		if *dst == "" && src != "" {
			*dst = src
			changed = true
		}
	}
	fill(&base.Name, extra.Name)
	fill(&base.Email, extra.Email)
	fill(&base.Phone, extra.Phone)
	fill(&base.Address, extra.Address)
	fill(&base.LinkedIn, extra.LinkedIn)
	fill(&base.GitHub, extra.GitHub)
	fill(&base.Portfolio, extra.Portfolio)
	return base, changed
}

func contactFromLLM(c llm.Contact) types.ContactInfo {
	return types.ContactInfo{
		Name:      strings.TrimSpace(c.Name),
		Email:     strings.TrimSpace(c.Email),
		Phone:     strings.TrimSpace(c.Phone),
		Address:   strings.TrimSpace(c.Address),
		LinkedIn:  strings.TrimSpace(c.LinkedIn),
		GitHub:    strings.TrimSpace(c.GitHub),
		Portfolio: strings.TrimSpace(c.Portfolio),
	}
}

// workFromLLM 丢弃公司和职位都为空的条目，日期规范化
func workFromLLM(entries []llm.WorkEntry) []types.WorkEntry {
	result := make([]types.WorkEntry, 0, len(entries))
	for _, e := range entries {
		company := strings.TrimSpace(e.Company)
		position := strings.TrimSpace(e.Position)
		if company == "" && position == "" {
			continue
		}
		result = append(result, types.WorkEntry{
			Company:     company,
			Position:    position,
			StartDate:   normalizer.NormalizeDate(e.StartDate),
			EndDate:     normalizer.NormalizeDate(e.EndDate),
			Description: strings.TrimSpace(e.Description),
			Highlights:  nonEmpty(e.Highlights),
			Confidence:  LLMConfidence,
		})
	}
	return result
}

// educationFromLLM 丢弃学校和学位都为空的条目
func educationFromLLM(entries []llm.EducationEntry) []types.EducationEntry {
	result := make([]types.EducationEntry, 0, len(entries))
	for _, e := range entries {
		institution := strings.TrimSpace(e.Institution)
		degree := strings.TrimSpace(e.Degree)
		if institution == "" && degree == "" {
			continue
		}
		result = append(result, types.EducationEntry{
			Institution:  institution,
			Degree:       degree,
			FieldOfStudy: strings.TrimSpace(e.FieldOfStudy),
			StartDate:    normalizer.NormalizeDate(e.StartDate),
			EndDate:      normalizer.NormalizeDate(e.EndDate),
			Grade:        strings.TrimSpace(e.Grade),
			Confidence:   LLMConfidence,
		})
	}
	return result
}

// skillsFromLLM 丢弃没有技能的分组
func skillsFromLLM(groups []llm.SkillGroup) []types.SkillGroup {
	result := make([]types.SkillGroup, 0, len(groups))
	for _, g := range groups {
		skills := nonEmpty(g.Skills)
		if len(skills) == 0 {
			continue
		}
		category := strings.TrimSpace(g.Category)
		if category == "" {
			category = DefaultSkillCategory
		}
		result = append(result, types.SkillGroup{Category: category, Skills: skills})
	}
	return result
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
