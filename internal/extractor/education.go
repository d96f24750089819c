package extractor

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"cv-sidecar/internal/nlp"
	"cv-sidecar/internal/normalizer"
	"cv-sidecar/internal/types"
)

// degreeKeywords 学位全称、英美缩写和英国中学/职业资格
var degreeKeywords = []string{
	"bachelor", "bachelors", "master", "masters", "doctor", "doctorate", "phd", "ph.d",
	"diploma", "certificate", "associate", "foundation",
	"bsc", "ba", "beng", "bba", "bed", "bfa", "llb",
	"msc", "ma", "mba", "meng", "mphil", "med", "mfa", "llm",
	"dphil", "edd", "dba",
	"hnd", "hnc", "btec", "nvq", "gcse", "a-level", "a level",
	"bsc hons", "ba hons", "msc hons",
}

var (
	degreePattern = func() *regexp.Regexp {
		quoted := make([]string, len(degreeKeywords))
		for i, d := range degreeKeywords {
			quoted[i] = regexp.QuoteMeta(d)
		}
		return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\.?\b`)
	}()

	// gradePatterns 按顺序尝试：一等、2:1、2:2、三等、及格/良好/优秀、GPA
	gradePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:first\s*class|1st\s*class|first)\b`),
		regexp.MustCompile(`(?i)\b(?:2:1|2\.1|upper\s*second)\b`),
		regexp.MustCompile(`(?i)\b(?:2:2|2\.2|lower\s*second)\b`),
		regexp.MustCompile(`(?i)\b(?:third|3rd)\b`),
		regexp.MustCompile(`(?i)\b(?:pass|merit|distinction)\b`),
		regexp.MustCompile(`(?i)\b(?:\d\.\d{1,2})\s*(?:gpa|cgpa)?\b`),
		regexp.MustCompile(`(?i)\bgpa\s*(?:of\s*)?\d\.\d{1,2}\b`),
	}

	educationDatePattern = regexp.MustCompile(`(?i)(?:` +
		`(?:19|20)\d{2}\s*[-–—]\s*(?:(?:19|20)\d{2}|Present|Current|Ongoing)|` +
		monthPattern + `\s*(?:19|20)\d{2}\s*[-–—]\s*(?:` + monthPattern + `\s*(?:19|20)\d{2}|Present|Current|Ongoing)|` +
		`(?:graduated?\s*)?(?:19|20)\d{2}|` +
		`class\s*of\s*(?:19|20)\d{2}` +
		`)`)

	yearPattern = regexp.MustCompile(`(?:19|20)\d{2}`)

	degreeInSeparator = regexp.MustCompile(`(?i)[ \t]in[ \t]+`)

	// fieldAfterDegree 学位后同一行的 "in X" 或 "X"，到分隔符或行尾为止
	fieldAfterDegree = regexp.MustCompile(`(?i)^(?:[ \t]*in[ \t]+)?([\w \t&,]+?)(?:[ \t]*[-–—,|]|[ \t]*$)`)

	// fieldPatterns 按顺序尝试，先命中的优先
	fieldPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:computer|software|data)\s+(?:science|engineering)`),
		regexp.MustCompile(`(?i)\b(?:business|marketing|finance|accounting|economics)\b`),
		regexp.MustCompile(`(?i)(?:electrical|mechanical|civil|chemical)\s+engineering`),
		regexp.MustCompile(`(?i)\b(?:mathematics|physics|chemistry|biology)\b`),
		regexp.MustCompile(`(?i)\b(?:psychology|sociology|history|english|law)\b`),
		regexp.MustCompile(`\b(?:(?i:information\s+technology)|IT)\b`),
	}
)

const (
	degreeContextBefore = 20
	degreeContextAfter  = 50
)

// Education 提取教育经历。
// 以学位关键词为锚切块；没有学位关键词时按空行切块。院校和学位都为空的块被丢弃，(院校, 学位) 相同的只保留一条。
func (e *Extractor) Education(ctx context.Context, text string) []types.EducationEntry {
	entries := []types.EducationEntry{}
	if strings.TrimSpace(text) == "" {
		return entries
	}

	positions := degreePattern.FindAllStringIndex(text, -1)
	if len(positions) == 0 {
		for _, block := range blankLineSplit.Split(text, -1) {
			if entry, ok := e.parseEducationBlock(ctx, block); ok {
				entries = append(entries, entry)
			}
		}
		return entries
	}

	for i := range positions {
		start, end := educationBlockBounds(text, positions, i)
		entry, ok := e.parseEducationBlock(ctx, text[start:end])
		if !ok || containsEducation(entries, entry) {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// educationBlockBounds 第 i 个学位所在块的边界：前后各自找最近的空行，不越过相邻的学位
func educationBlockBounds(text string, positions [][]int, i int) (start, end int) {
	pos := positions[i][0]
	prevBlank := strings.LastIndex(text[:pos], "\n\n")

	switch {
	case i > 0:
		prevDegree := positions[i-1][0]
		if blank := strings.Index(text[prevDegree:], "\n\n"); blank >= 0 && prevDegree+blank < pos {
			start = prevDegree + blank + 2
		} else if prevBlank > prevDegree {
			start = prevBlank + 2
		} else {
			start = prevDegree
		}
	case prevBlank >= 0:
		start = prevBlank + 2
	}

	end = len(text)
	if i+1 < len(positions) {
		nextDegree := positions[i+1][0]
		end = nextDegree
		if blank := strings.LastIndex(text[:nextDegree], "\n\n"); blank > pos {
			end = blank
		}
	} else if blank := strings.Index(text[pos:], "\n\n"); blank >= 0 {
		end = pos + blank
	}

	if start > end {
		start = end
	}
	return start, end
}

func (e *Extractor) parseEducationBlock(ctx context.Context, block string) (types.EducationEntry, bool) {
	if strings.TrimSpace(block) == "" {
		return types.EducationEntry{}, false
	}

	var entry types.EducationEntry
	entry.Degree = extractDegree(block)
	entry.FieldOfStudy = extractFieldOfStudy(block, entry.Degree)

	if dateText := educationDatePattern.FindString(block); dateText != "" {
		if strings.ContainsAny(dateText, "-–—") {
			entry.StartDate, entry.EndDate = normalizer.ExtractDateRange(dateText)
		} else if year := yearPattern.FindString(dateText); year != "" {
			// 单独的年份视为毕业年份
			entry.EndDate = normalizer.NormalizeDate(year)
		}
	}

	entry.Grade = extractGrade(block)
	entry.Institution = e.findInstitution(ctx, block)

	score := 0.0
	if entry.Institution != "" {
		score += 0.3
	}
	if entry.Degree != "" {
		score += 0.3
	}
	if entry.StartDate != "" || entry.EndDate != "" {
		score += 0.2
	}
	if entry.FieldOfStudy != "" {
		score += 0.1
	}
	if entry.Grade != "" {
		score += 0.1
	}
	entry.Confidence = round2(min(score, 1.0))

	return entry, entry.Institution != "" || entry.Degree != ""
}

// extractDegree 学位关键词加上同一行内的 "in/of X"
func extractDegree(text string) string {
	loc := degreePattern.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	keyword := text[loc[0]:loc[1]]

	ctxStart := max(0, loc[0]-degreeContextBefore)
	ctxEnd := min(len(text), loc[1]+degreeContextAfter)
	window := text[ctxStart:ctxEnd]

	full := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(keyword) + `(?:[ \t]+(?:in|of)[ \t]+[\w \t&]+)?`)
	if m := full.FindString(window); m != "" {
		return strings.TrimSpace(m)
	}
	return strings.ToUpper(keyword)
}

// extractFieldOfStudy 优先取学位中 "in" 之后的部分，其次取学位后同一行的文字，最后用常见专业词兜底
func extractFieldOfStudy(text, degree string) string {
	if degree != "" {
		if locs := degreeInSeparator.FindAllStringIndex(degree, -1); len(locs) > 0 {
			if field := strings.TrimSpace(degree[locs[len(locs)-1][1]:]); validField(field) {
				return field
			}
		}

		if loc := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(degree)).FindStringIndex(text); loc != nil {
			rest := text[loc[1]:]
			if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
				rest = rest[:nl]
			}
			if m := fieldAfterDegree.FindStringSubmatch(strings.TrimSpace(rest)); m != nil {
				if field := strings.TrimSpace(m[1]); validField(field) {
					return field
				}
			}
		}
	}

	for _, p := range fieldPatterns {
		if m := p.FindString(text); m != "" {
			if m == strings.ToUpper(m) {
				return m
			}
			return titleCase(m)
		}
	}
	return ""
}

func validField(field string) bool {
	n := utf8.RuneCountInString(field)
	return n > 2 && n < 100
}

func extractGrade(text string) string {
	for _, p := range gradePatterns {
		if m := p.FindString(text); m != "" {
			return strings.TrimSpace(m)
		}
	}
	return ""
}

// findInstitution 优先含院校关键词的 ORG，其次第一个 ORG，最后看前两行是否含 university/college
func (e *Extractor) findInstitution(ctx context.Context, block string) string {
	orgs := nlp.Filter(e.entities(ctx, block), nlp.LabelOrg)
	for _, org := range orgs {
		if nlp.LooksLikeInstitution(org) {
			return strings.TrimSpace(org)
		}
	}
	if len(orgs) > 0 {
		return strings.TrimSpace(orgs[0])
	}

	lines := nonEmptyLines(block)
	if len(lines) > 2 {
		lines = lines[:2]
	}
	for _, line := range lines {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "university") || strings.Contains(lower, "college") {
			return line
		}
	}
	return ""
}

func containsEducation(entries []types.EducationEntry, entry types.EducationEntry) bool {
	for _, existing := range entries {
		if existing.Institution == entry.Institution && existing.Degree == entry.Degree {
			return true
		}
	}
	return false
}

// titleCase 每个单词首字母大写，其余小写
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = strings.ToUpper(string(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
