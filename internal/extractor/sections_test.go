package extractor

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cv-sidecar/internal/types"
)

const sampleCV = "Jane Doe\njane@example.com\n\nWORK EXPERIENCE\nSenior Engineer at Acme Ltd\nJan 2020 - Present\n\nEDUCATION\nBSc Computer Science\nUniversity of Leeds\n2015 - 2018\n\nSKILLS\nGo, Python, Docker\n"

func TestDetectSections(t *testing.T) {
	sections := DetectSections(sampleCV)
	require.Len(t, sections, 3)
	assert.Equal(t, []string{"experience", "education", "skills"}, GetSectionOrder(sections))

	for i, s := range sections {
		assert.LessOrEqual(t, s.Start, s.End, "章节 %s 区间非法", s.Name)
		if i > 0 {
			assert.LessOrEqual(t, sections[i-1].End, s.Start, "章节不应重叠")
		}
	}
	assert.Equal(t, len(sampleCV), sections[2].End)

	work, ok := GetSectionText(sampleCV, sections, types.SectionExperience)
	require.True(t, ok)
	assert.Equal(t, "Senior Engineer at Acme Ltd\nJan 2020 - Present", work)

	skills, ok := GetSectionText(sampleCV, sections, types.SectionSkills)
	require.True(t, ok)
	assert.Equal(t, "Go, Python, Docker", skills)

	_, ok = GetSectionText(sampleCV, sections, types.SectionAwards)
	assert.False(t, ok, "不存在的章节")
}

func TestDetectSectionsUsesCharacterOffsets(t *testing.T) {
	text := "Résumé • Jane\nEXPERIENCE\nEngineer"
	sections := DetectSections(text)
	require.Len(t, sections, 1)
	assert.Equal(t, types.Section{Name: types.SectionExperience, Start: 25, End: 33}, sections[0], "区间按字符计")
	assert.Equal(t, utf8.RuneCountInString(text), sections[0].End, "结束位置不超过字符总数")

	body, ok := GetSectionText(text, sections, types.SectionExperience)
	require.True(t, ok)
	assert.Equal(t, "Engineer", body)

	text = "Zoë Müller\nSKILLS\nGo, Rust\nÉDUCATION\nEDUCATION\nMSc Physik"
	sections = DetectSections(text)
	require.Len(t, sections, 2)
	runes := []rune(text)
	for _, s := range sections {
		got, ok := GetSectionText(text, sections, s.Name)
		require.True(t, ok, "章节 %s", s.Name)
		assert.Equal(t, strings.TrimSpace(string(runes[s.Start:s.End])), got, "按字符切片应与 GetSectionText 一致")
	}
}

func TestDetectSectionsAllowsNumberedHeadings(t *testing.T) {
	text := "1. Education\nMSc Physics\n2. Skills\nPython"
	sections := DetectSections(text)
	assert.Equal(t, []string{"education", "skills"}, GetSectionOrder(sections))

	sections = DetectSections("My work experience spans ten years")
	assert.Empty(t, sections, "行中间的关键词不是标题")
}

func TestDetectSectionsEmpty(t *testing.T) {
	assert.Empty(t, DetectSections(""))
	assert.Empty(t, GetSectionOrder(nil))
}

func TestGetSectionTextOutOfRange(t *testing.T) {
	sections := []types.Section{{Name: types.SectionSkills, Start: 5, End: 100}}
	_, ok := GetSectionText("short", sections, types.SectionSkills)
	assert.False(t, ok, "越界的区间不应 panic")

	sections = []types.Section{{Name: types.SectionSkills, Start: 2, End: 4}}
	body, ok := GetSectionText("é•ab", sections, types.SectionSkills)
	require.True(t, ok)
	assert.Equal(t, "ab", body, "末尾区间按字符定位")

	sections = []types.Section{{Name: types.SectionSkills, Start: 3, End: 5}}
	_, ok = GetSectionText("é•ab", sections, types.SectionSkills)
	assert.False(t, ok, "按字节长度合法但按字符越界")
}

func TestListItems(t *testing.T) {
	items := ListItems("• AWS Certified Solutions Architect\n- PRINCE2\n\n  * Scrum Master  \n")
	assert.Equal(t, []string{"AWS Certified Solutions Architect", "PRINCE2", "Scrum Master"}, items)
	assert.Empty(t, ListItems("\n\n"))
}

func TestHeadChars(t *testing.T) {
	assert.Equal(t, "ab", HeadChars("abc", 2))
	assert.Equal(t, "abc", HeadChars("abc", 10))
	assert.Equal(t, "简历", HeadChars("简历解析", 2), "按字符而不是字节截断")
}
