package extractor

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cv-sidecar/internal/nlp"
	"cv-sidecar/internal/types"
)

func TestSkillsKeepsCandidateCategories(t *testing.T) {
	groups := Skills("Programming Languages: Go, Python, Rust\nFrameworks\n• Gin, Hertz\nTeamwork, Communication")
	require.Len(t, groups, 2)

	assert.Equal(t, "Programming Languages", groups[0].Category)
	assert.Equal(t, []string{"Go", "Python", "Rust"}, groups[0].Skills)
	assert.Equal(t, "Frameworks", groups[1].Category)
	assert.Equal(t, []string{"Gin", "Hertz", "Teamwork", "Communication"}, groups[1].Skills)
}

func TestSkillsWithoutHeadings(t *testing.T) {
	groups := Skills("Go, Python\n- Docker\n- Kubernetes")
	require.Len(t, groups, 1)
	assert.Equal(t, DefaultSkillCategory, groups[0].Category)
	assert.Equal(t, []string{"Go", "Python", "Docker", "Kubernetes"}, groups[0].Skills)
}

func TestSkillsAllCapsHeadingKeepsAcronyms(t *testing.T) {
	groups := Skills("CLOUD PLATFORMS\nAWS, GCP, Azure")
	require.Len(t, groups, 1)
	assert.Equal(t, "CLOUD PLATFORMS", groups[0].Category)
	assert.Equal(t, []string{"AWS", "GCP", "Azure"}, groups[0].Skills)
}

func TestSkillsBeforeFirstHeading(t *testing.T) {
	groups := Skills("Git, SQL\nCloud:\nAWS, GCP")
	require.Len(t, groups, 2)
	assert.Equal(t, types.SkillGroup{Category: DefaultSkillCategory, Skills: []string{"Git", "SQL"}}, groups[0], "标题前的行归入默认分组")
	assert.Equal(t, types.SkillGroup{Category: "Cloud", Skills: []string{"AWS", "GCP"}}, groups[1])
}

func TestSkillsEmpty(t *testing.T) {
	groups := Skills("   ")
	assert.NotNil(t, groups)
	assert.Empty(t, groups)

	assert.Empty(t, Skills("Technical Skills:\nTools:"), "只有标题没有技能")
}

func TestIsCategoryHeading(t *testing.T) {
	assert.True(t, isCategoryHeading("Technical Skills:"))
	assert.True(t, isCategoryHeading("Programming Languages"))
	assert.True(t, isCategoryHeading("Other:"))
	assert.True(t, isCategoryHeading("DEVOPS TOOLING"))
	assert.False(t, isCategoryHeading("Python is a programming language used worldwide"))
	assert.False(t, isCategoryHeading(""))
}

func TestMergeSkillGroups(t *testing.T) {
	groups := []types.SkillGroup{
		{Category: "Technical Skills", Skills: []string{"Python"}},
		{Category: "Programming Languages", Skills: []string{"python", "Go"}},
		{Category: "Spoken Languages", Skills: []string{"French"}},
		{Category: "Interpersonal", Skills: []string{"Mentoring"}},
		{Category: "Tools", Skills: []string{"Git"}},
	}

	merged := MergeSkillGroups(groups)
	require.Len(t, merged, 4)
	assert.Equal(t, types.SkillGroup{Category: "Technical Skills", Skills: []string{"Python", "Go"}}, merged[0], "不区分大小写去重")
	assert.Equal(t, "Languages", merged[1].Category)
	assert.Equal(t, "Soft Skills", merged[2].Category)
	assert.Equal(t, "Tools", merged[3].Category)

	assert.Equal(t, merged, MergeSkillGroups(merged), "再次合并结果不变")
	assert.Empty(t, MergeSkillGroups(nil))
}

// 对抗输入不能 panic，结果集合也不能是 nil
func TestExtractorsSurviveAdversarialInput(t *testing.T) {
	inputs := []string{
		"",
		"\x00\x01\x02",
		strings.Repeat("•", 500),
		strings.Repeat("a", 100000),
		"MSc\n\n\n\nMSc in\n\nBSc",
		"Jan 2020 - Present\n\nJan 2020 - Present",
		"İ" + strings.Repeat("ß", 50) + " BSc İİİ in ẞẞ",
		"\xff\xfe invalid utf8 \xc3\x28 @@@ ...com",
		strings.Repeat("Engineer at ", 200),
	}

	e := New(nlp.NewRuleAnnotator())
	ctx := context.Background()
	for _, in := range inputs {
		assert.NotPanics(t, func() {
			sections := DetectSections(in)
			_ = GetSectionOrder(sections)
			_, _ = e.Contact(ctx, in)
			assert.NotNil(t, e.WorkHistory(ctx, in))
			assert.NotNil(t, e.Education(ctx, in))
			assert.NotNil(t, Skills(in))
			_ = MergeSkillGroups(Skills(in))
			_ = ListItems(in)
		}, "输入 %q", HeadChars(in, 40))
	}
}
