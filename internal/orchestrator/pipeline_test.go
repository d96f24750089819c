package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cv-sidecar/internal/extractor"
	"cv-sidecar/internal/llm"
	"cv-sidecar/internal/parser"
	"cv-sidecar/internal/types"
)

const fullCV = "Jane Doe\njane@example.com\n\n" +
	"PROFILE\nBackend engineer who likes boring technology.\n\n" +
	"WORK EXPERIENCE\nSenior Engineer at Acme Ltd\nJan 2020 - Present\n\n" +
	"EDUCATION\nBachelor of Science in Computer Science\nUniversity of Leeds\n2015 - 2019\n\n" +
	"SKILLS\nGo, Python, Docker\n\n" +
	"CERTIFICATIONS\n• AWS Certified Developer\n• CKA\n\n" +
	"LANGUAGES\nEnglish\nFrench\n\n" +
	"INTERESTS\nChess\n"

type stubParser struct {
	result *types.ParseResult
	err    error
}

func (s stubParser) Parse(ctx context.Context, path string) (*types.ParseResult, error) {
	return s.result, s.err
}

func newTestPipeline(p DocumentParser, backend llm.StructuredExtractor) *Pipeline {
	return NewPipeline(p, NewHybrid(extractor.New(nil), backend), zerolog.Nop())
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeAuto, "AUTO": ModeAuto, "unified": ModeUnified, " per_field ": ModePerField, "regex": ModeRegex} {
		got, err := ParseMode(in)
		require.NoError(t, err, "mode %q", in)
		assert.Equal(t, want, got, "mode %q", in)
	}
	_, err := ParseMode("fast")
	assert.EqualError(t, err, "Unknown mode: fast")
}

func TestExtractTextRegexMode(t *testing.T) {
	fake := newFakeLLM(true, nil)
	cv := newTestPipeline(nil, fake).ExtractText(context.Background(), fullCV, ModeRegex)

	assert.Zero(t, fake.totalCalls(), "regex 模式不访问大模型")
	assert.False(t, cv.ExtractionMethods.LLMAvailable)
	assert.Equal(t, types.MethodRegex, cv.ExtractionMethods.Contact)
	assert.Equal(t, types.MethodRegex, cv.ExtractionMethods.Skills)

	assert.Equal(t, "jane@example.com", cv.Contact.Email)
	require.Len(t, cv.WorkHistory, 1)
	assert.Equal(t, "Acme Ltd", cv.WorkHistory[0].Company)
	require.Len(t, cv.Education, 1)
	assert.Equal(t, "University of Leeds", cv.Education[0].Institution)
	require.Len(t, cv.Skills, 1)
	assert.Equal(t, []string{"Go", "Python", "Docker"}, cv.Skills[0].Skills)

	assert.Equal(t, []string{"AWS Certified Developer", "CKA"}, cv.Certifications)
	assert.Equal(t, []string{"English", "French"}, cv.Languages)
	assert.Equal(t, map[string]string{
		"summary":   "Backend engineer who likes boring technology.",
		"interests": "Chess",
	}, cv.OtherSections)
	assert.Equal(t, []string{"summary", "experience", "education", "skills", "certifications", "languages", "interests"}, cv.SectionOrder)

	assert.Greater(t, cv.ParseConfidence, 0.0)
	assert.LessOrEqual(t, cv.ParseConfidence, 1.0)
	assert.NotNil(t, cv.Warnings)
}

func TestExtractTextPerField(t *testing.T) {
	fake := newFakeLLM(true, map[string]string{
		llm.ContactPrompt:     `{"name": "Jane Doe", "phone": "07700 900123"}`,
		llm.WorkHistoryPrompt: `{"entries": [{"company": "Acme Ltd", "position": "Senior Engineer", "start_date": "Jan 2020", "end_date": "Present"}]}`,
		llm.EducationPrompt:   `{"entries": [{"institution": "University of Leeds", "degree": "Bachelor of Science"}]}`,
		llm.SkillsPrompt:      `{"groups": [{"category": "Languages", "skills": ["Go", "Python"]}]}`,
	})
	cv := newTestPipeline(nil, fake).ExtractText(context.Background(), fullCV, ModePerField)

	assert.True(t, cv.ExtractionMethods.LLMAvailable)
	assert.Equal(t, types.MethodHybrid, cv.ExtractionMethods.Contact)
	assert.Equal(t, types.MethodLLM, cv.ExtractionMethods.WorkHistory)
	assert.Equal(t, types.MethodLLM, cv.ExtractionMethods.Education)
	assert.Equal(t, types.MethodLLM, cv.ExtractionMethods.Skills)

	assert.Equal(t, "Jane Doe", cv.Contact.Name)
	assert.Equal(t, "jane@example.com", cv.Contact.Email)
	// (0.80 + 0.85 + 0.85 + 1.0) / 4
	assert.InDelta(t, 0.875, cv.ParseConfidence, 0.006)
}

func TestExtractTextAbsentSectionsStayEmpty(t *testing.T) {
	fake := newFakeLLM(true, map[string]string{
		llm.SkillsPrompt: `{"groups": [{"category": "Tools", "skills": ["Docker"]}]}`,
	})
	cv := newTestPipeline(nil, fake).ExtractText(context.Background(), "jane@example.com\nSenior Engineer at Acme Ltd\nJan 2020 - Present", ModeAuto)

	assert.Empty(t, cv.WorkHistory, "没有工作经历章节时不扫描全文")
	assert.NotNil(t, cv.WorkHistory)
	assert.Empty(t, cv.Skills)
	assert.Zero(t, fake.calls[llm.SkillsPrompt])
	assert.Zero(t, fake.calls[llm.WorkHistoryPrompt])
	assert.Empty(t, cv.Certifications)
	assert.NotNil(t, cv.OtherSections)
}

func TestExtractTextPerFieldTimeoutUsesRegex(t *testing.T) {
	hang := llm.NewHangingMockChatModel()
	backend := llm.NewChatExtractor(hang, nil, "slow-model",
		llm.WithCallTimeout(50*time.Millisecond),
		llm.WithRetry(2, 10*time.Millisecond),
	)

	start := time.Now()
	cv := newTestPipeline(nil, backend).ExtractText(context.Background(), fullCV, ModePerField)
	elapsed := time.Since(start)

	assert.Equal(t, 1, hang.Calls(), "超时只发生一次")
	assert.Less(t, elapsed, 500*time.Millisecond)
	assert.True(t, cv.ExtractionMethods.LLMAvailable)
	assert.Equal(t, types.MethodRegex, cv.ExtractionMethods.WorkHistory)
	assert.Equal(t, types.MethodRegex, cv.ExtractionMethods.Education)
	assert.Equal(t, types.MethodRegex, cv.ExtractionMethods.Skills)
	require.Len(t, cv.WorkHistory, 1)
	assert.Contains(t, cv.Warnings, "LLM call timed out; remaining fields extracted with regex")

	// 下一次请求重新尝试大模型
	newTestPipeline(nil, backend).ExtractText(context.Background(), "SKILLS\nGo", ModePerField)
	assert.Equal(t, 2, hang.Calls())
}

func TestExtractTextNormalizesBullets(t *testing.T) {
	text := "SKILLS\n– Kubernetes\n▪ Terraform\n\nCERTIFICATIONS\n— CKA\n"
	cv := newTestPipeline(nil, nil).ExtractText(context.Background(), text, ModeRegex)

	require.Len(t, cv.Skills, 1)
	assert.Equal(t, []string{"Kubernetes", "Terraform"}, cv.Skills[0].Skills, "各种项目符号统一后再切分")
	assert.Equal(t, []string{"CKA"}, cv.Certifications)
	assert.Contains(t, cv.RawText, "- Kubernetes")
}

func TestExtractTextUnified(t *testing.T) {
	fake := newFakeLLM(true, map[string]string{
		llm.FullExtractionPrompt: `{"contact": {"name": "Jane Doe", "email": "jane@example.com"},
			"work_history": [{"company": "Acme Ltd", "position": "Senior Engineer"}],
			"education": [], "skills": [{"category": "Tools", "skills": ["Docker"]}]}`,
	})
	cv := newTestPipeline(nil, fake).ExtractText(context.Background(), fullCV, ModeUnified)

	assert.Equal(t, 1, fake.totalCalls(), "只调用一次")
	assert.Equal(t, types.MethodLLM, cv.ExtractionMethods.Contact)
	assert.Equal(t, types.MethodLLM, cv.ExtractionMethods.Education)
	assert.Empty(t, cv.Education, "一次性结果整体采用，不和正则混合")
	require.Len(t, cv.WorkHistory, 1)
	assert.Equal(t, LLMConfidence, cv.WorkHistory[0].Confidence)
	assert.Equal(t, []string{"AWS Certified Developer", "CKA"}, cv.Certifications)
}

func TestExtractTextUnifiedFailureFallsBackToRegex(t *testing.T) {
	fake := newFakeLLM(true, map[string]string{llm.FullExtractionPrompt: `{"contact": {}, "work_history": [], "education": [], "skills": []}`})
	cv := newTestPipeline(nil, fake).ExtractText(context.Background(), fullCV, ModeUnified)

	assert.Equal(t, 1, fake.totalCalls(), "回退时不再逐字段调用")
	for _, m := range []types.ExtractionMethod{
		cv.ExtractionMethods.Contact, cv.ExtractionMethods.WorkHistory,
		cv.ExtractionMethods.Education, cv.ExtractionMethods.Skills,
	} {
		assert.Equal(t, types.MethodRegex, m)
	}
	assert.Equal(t, "jane@example.com", cv.Contact.Email)
	assert.Len(t, cv.WorkHistory, 1)
}

func TestExtractCV(t *testing.T) {
	ctx := context.Background()

	p := newTestPipeline(stubParser{result: &types.ParseResult{
		RawText:  "ﬁnance@example.com\n\nSKILLS\nExcel",
		Warnings: []string{"secondary engine used"},
	}}, nil)
	cv, err := p.ExtractCV(ctx, "cv.pdf", ModeAuto)
	require.NoError(t, err)
	assert.Equal(t, "finance@example.com", cv.Contact.Email, "连字经 NFKC 展开")
	assert.Equal(t, []string{"secondary engine used"}, cv.Warnings)
	assert.False(t, cv.ExtractionMethods.LLMAvailable)
	assert.GreaterOrEqual(t, cv.ExtractTimeMS, int64(0))

	p = newTestPipeline(stubParser{result: &types.ParseResult{Error: "PDF is encrypted - please provide an unlocked version"}}, nil)
	_, err = p.ExtractCV(ctx, "locked.pdf", ModeAuto)
	assert.ErrorIs(t, err, ErrDocumentUnreadable)
	assert.Contains(t, err.Error(), "PDF is encrypted")

	p = newTestPipeline(stubParser{err: parser.NewLegacyFormatError("old.doc")}, nil)
	_, err = p.ExtractCV(ctx, "old.doc", ModeAuto)
	assert.True(t, errors.Is(err, parser.ErrLegacyFormat))
}

func TestParseConfidence(t *testing.T) {
	assert.Zero(t, parseConfidence(&types.ParsedCV{}, 0))

	cv := &types.ParsedCV{
		Contact:     types.ContactInfo{Email: "a@b.co"},
		WorkHistory: []types.WorkEntry{{Confidence: 0.9}, {Confidence: 0.5}},
		Skills:      []types.SkillGroup{{Category: "Skills", Skills: []string{"Go"}}},
	}
	// (0.7 + 0.7 + 1.0) / 3
	assert.InDelta(t, 0.8, parseConfidence(cv, 0.7), 1e-9)
}
