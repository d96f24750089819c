// Package extractor 用正则和实体识别从简历文本中提取章节、联系方式、工作经历、教育经历和技能。
package extractor

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"cv-sidecar/internal/types"
)

type sectionPattern struct {
	name    types.SectionName
	pattern *regexp.Regexp
}

// sectionPatterns 章节标题，行首匹配、不区分大小写。
// 顺序决定同一位置命中多个章节时的先后。
var sectionPatterns = []sectionPattern{
	{types.SectionExperience, regexp.MustCompile(`(?im)^(?:work\s*)?(?:experience|employment|career|professional\s*background|work\s*history)s?\b`)},
	{types.SectionEducation, regexp.MustCompile(`(?im)^(?:education|academic|qualifications?|degrees?)\b`)},
	{types.SectionSkills, regexp.MustCompile(`(?im)^(?:skills?|technical\s*skills?|core\s*skills?|key\s*skills?|competenc(?:y|ies)|expertise)\b`)},
	{types.SectionCertifications, regexp.MustCompile(`(?im)^(?:certifications?|certificates?|professional\s*development|accreditations?|licenses?)\b`)},
	{types.SectionLanguages, regexp.MustCompile(`(?im)^(?:languages?|language\s*skills?)\b`)},
	{types.SectionPublications, regexp.MustCompile(`(?im)^(?:publications?|papers?|research|articles?)\b`)},
	{types.SectionVolunteer, regexp.MustCompile(`(?im)^(?:volunteer(?:ing)?|community|charitable|civic)\b`)},
	{types.SectionProjects, regexp.MustCompile(`(?im)^(?:projects?|personal\s*projects?|portfolio)\b`)},
	{types.SectionSummary, regexp.MustCompile(`(?im)^(?:summary|profile|objective|about(?:\s*me)?|personal\s*statement|career\s*objective|professional\s*summary)\b`)},
	{types.SectionInterests, regexp.MustCompile(`(?im)^(?:interests?|hobbies|activities|personal\s*interests?)\b`)},
	{types.SectionReferences, regexp.MustCompile(`(?im)^(?:references?|referees?)\b`)},
	{types.SectionAwards, regexp.MustCompile(`(?im)^(?:awards?|honors?|honours?|achievements?|recognition)\b`)},
}

// maxHeadingPrefix 标题前允许的编号或项目符号长度，如 "1."
const maxHeadingPrefix = 2

type sectionStart struct {
	name    types.SectionName
	heading int // 标题行起点
	start   int // 内容起点
}

// DetectSections 找出所有章节及其在 text 中的字符（rune）区间。
// 内容从标题行的下一行开始，到下一个章节的标题行之前（或文本末尾）结束；同名章节全部保留。
func DetectSections(text string) []types.Section {
	var starts []sectionStart

	for _, sp := range sectionPatterns {
		for _, loc := range sp.pattern.FindAllStringIndex(text, -1) {
			lineStart := strings.LastIndexByte(text[:loc[0]], '\n') + 1
			prefix := strings.TrimSpace(text[lineStart:loc[0]])
			if len(prefix) > maxHeadingPrefix {
				continue
			}

			contentStart := len(text)
			if lineEnd := strings.IndexByte(text[loc[1]:], '\n'); lineEnd >= 0 {
				contentStart = loc[1] + lineEnd + 1
			}
			starts = append(starts, sectionStart{name: sp.name, heading: lineStart, start: contentStart})
		}
	}

	sort.SliceStable(starts, func(i, j int) bool { return starts[i].start < starts[j].start })

	sections := make([]types.Section, 0, len(starts))
	for i, s := range starts {
		end := len(text)
		if i+1 < len(starts) {
			// 同一行命中两个章节时前一个为空区间
			end = max(starts[i+1].heading, s.start)
		}
		sections = append(sections, types.Section{Name: s.name, Start: runeOffset(text, s.start), End: runeOffset(text, end)})
	}
	return sections
}

// runeOffset 字节偏移换算成字符偏移
func runeOffset(text string, byteOff int) int {
	return utf8.RuneCountInString(text[:byteOff])
}

// byteOffset 字符偏移换算成字节偏移，超出文本长度时返回 -1
func byteOffset(text string, runeOff int) int {
	if runeOff < 0 {
		return -1
	}
	n := 0
	for i := range text {
		if n == runeOff {
			return i
		}
		n++
	}
	if n == runeOff {
		return len(text)
	}
	return -1
}

// GetSectionText 按字符区间返回第一个同名章节去掉首尾空白后的内容
func GetSectionText(text string, sections []types.Section, name types.SectionName) (string, bool) {
	for _, s := range sections {
		if s.Name != name {
			continue
		}
		start, end := byteOffset(text, s.Start), byteOffset(text, s.End)
		if start < 0 || end < 0 || start > end {
			return "", false
		}
		return strings.TrimSpace(text[start:end]), true
	}
	return "", false
}

// GetSectionOrder 按文档顺序返回章节名
func GetSectionOrder(sections []types.Section) []string {
	order := make([]string, 0, len(sections))
	for _, s := range sections {
		order = append(order, string(s.Name))
	}
	return order
}

// ListItems 把章节内容拆成条目：去掉项目符号，丢弃空行
func ListItems(text string) []string {
	var items []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(bulletPattern.ReplaceAllString(strings.TrimSpace(line), ""))
		if line != "" {
			items = append(items, line)
		}
	}
	return items
}
