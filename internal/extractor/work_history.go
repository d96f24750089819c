package extractor

import (
	"context"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"cv-sidecar/internal/nlp"
	"cv-sidecar/internal/normalizer"
	"cv-sidecar/internal/types"
)

const monthPattern = `(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:tember)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)`

const openEnded = `Present|Current|Now|Ongoing`

var (
	// dateRangePattern 月份-年份、年份、MM/YYYY 三种区间写法
	dateRangePattern = regexp.MustCompile(`(?i)(?:` +
		monthPattern + `\s*\d{4}\s*[-–—]\s*(?:` + monthPattern + `\s*\d{4}|` + openEnded + `)|` +
		`\d{4}\s*[-–—]\s*(?:\d{4}|` + openEnded + `)|` +
		`\d{1,2}/\d{4}\s*[-–—]\s*(?:\d{1,2}/\d{4}|` + openEnded + `)` +
		`)`)

	bulletPattern = regexp.MustCompile(`^[•‣⁃⁌⁍∙▪▫●○◦\-\*]\s*`)

	blankLineSplit = regexp.MustCompile(`\n\s*\n`)
)

// jobTitleKeywords 常见职位关键词
var jobTitleKeywords = []string{
	"engineer", "developer", "manager", "director", "analyst",
	"consultant", "architect", "lead", "senior", "junior",
	"specialist", "coordinator", "administrator", "assistant",
	"executive", "officer", "head", "chief", "vice president", "vp",
	"associate", "intern", "trainee", "technician", "designer",
	"scientist", "researcher", "professor", "lecturer", "teacher",
	"accountant", "attorney", "lawyer", "nurse", "doctor", "therapist",
}

// maxDescriptionLines 描述最多保留的行数
const maxDescriptionLines = 5

// maxCompanyGuessLength 无法识别的短行按公司名处理的最大长度
const maxCompanyGuessLength = 50

// 工作经历置信度
const (
	workConfidenceFull     = 0.9 // 公司、职位、开始日期齐全
	workConfidencePair     = 0.7 // 公司和职位
	workConfidencePartial  = 0.5 // 只有其一
	workConfidenceFallback = 0.3
)

// WorkHistory 提取工作经历。
// 以日期区间为锚切块；没有日期区间时按空行切块。公司和职位都为空的块被丢弃。
func (e *Extractor) WorkHistory(ctx context.Context, text string) []types.WorkEntry {
	if strings.TrimSpace(text) == "" {
		return []types.WorkEntry{}
	}

	entries := []types.WorkEntry{}
	for _, block := range workBlocks(text) {
		if strings.TrimSpace(block) == "" {
			continue
		}
		if entry, ok := e.parseWorkBlock(ctx, block); ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

// workBlocks 每个日期区间向前扩展到上一个空行，向后到下一个区间所在段落之前
func workBlocks(text string) []string {
	matches := dateRangePattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return blankLineSplit.Split(text, -1)
	}

	blocks := make([]string, 0, len(matches))
	for i, m := range matches {
		start := 0
		if prevBlank := strings.LastIndex(text[:m[0]], "\n\n"); prevBlank >= 0 {
			start = prevBlank + 2
		}

		end := len(text)
		if i+1 < len(matches) {
			next := matches[i+1]
			end = next[0]
			if nextPrevBlank := strings.LastIndex(text[:next[0]], "\n\n"); nextPrevBlank > m[1] {
				end = nextPrevBlank
			}
		}
		if start > end {
			start = end
		}
		blocks = append(blocks, text[start:end])
	}
	return blocks
}

func (e *Extractor) parseWorkBlock(ctx context.Context, block string) (types.WorkEntry, bool) {
	lines := nonEmptyLines(block)
	if len(lines) == 0 {
		return types.WorkEntry{}, false
	}

	entry := types.WorkEntry{Highlights: []string{}}

	dateText := dateRangePattern.FindString(block)
	if dateText != "" {
		entry.StartDate, entry.EndDate = normalizer.ExtractDateRange(dateText)
	}
	isDateLine := func(line string) bool {
		return dateText != "" && strings.Contains(line, dateText)
	}

	header := lines
	if len(header) > 3 {
		header = header[:3]
	}
	consumed := make(map[string]bool)

	for _, line := range header {
		if isDateLine(line) {
			continue
		}

		// "Position at Company"
		if strings.Contains(strings.ToLower(line), " at ") {
			if position, company, ok := strings.Cut(line, " at "); ok && looksLikeJobTitle(position) {
				entry.Position = strings.TrimSpace(position)
				entry.Company = strings.TrimSpace(company)
				consumed[line] = true
				continue
			}
		}

		// "Company - Position" / "Position | Company"
		if sep := headerSeparator(line); sep != "" {
			left, right, _ := strings.Cut(line, sep)
			left, right = strings.TrimSpace(left), strings.TrimSpace(right)
			switch {
			case looksLikeJobTitle(left):
				entry.Position, entry.Company = left, right
			default:
				entry.Company, entry.Position = left, right
			}
			consumed[line] = true
			continue
		}

		switch {
		case entry.Position == "" && looksLikeJobTitle(line):
			entry.Position = line
		case entry.Company == "" && e.looksLikeCompany(ctx, line):
			entry.Company = line
		case entry.Company == "" && entry.Position == "":
			if utf8.RuneCountInString(line) < maxCompanyGuessLength && startsUpper(line) {
				entry.Company = line
			}
		}
	}

	var description []string
	for _, line := range lines {
		if bulletPattern.MatchString(line) {
			if item := strings.TrimSpace(bulletPattern.ReplaceAllString(line, "")); item != "" {
				entry.Highlights = append(entry.Highlights, item)
			}
			continue
		}
		if line == entry.Company || line == entry.Position || consumed[line] || isDateLine(line) {
			continue
		}
		description = append(description, line)
	}
	if len(description) > maxDescriptionLines {
		description = description[:maxDescriptionLines]
	}
	entry.Description = strings.Join(description, " ")

	entry.Confidence = workConfidence(entry)
	return entry, entry.Company != "" || entry.Position != ""
}

func workConfidence(entry types.WorkEntry) float64 {
	switch {
	case entry.Company != "" && entry.Position != "" && entry.StartDate != "":
		return workConfidenceFull
	case entry.Company != "" && entry.Position != "":
		return workConfidencePair
	case entry.Company != "" || entry.Position != "":
		return workConfidencePartial
	default:
		return workConfidenceFallback
	}
}

// headerSeparator " - " 优先于 " | "
func headerSeparator(line string) string {
	switch {
	case strings.Contains(line, " - "):
		return " - "
	case strings.Contains(line, " | "):
		return " | "
	default:
		return ""
	}
}

func (e *Extractor) looksLikeCompany(ctx context.Context, line string) bool {
	return nlp.HasLabel(e.entities(ctx, line), nlp.LabelOrg)
}

func looksLikeJobTitle(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range jobTitleKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func nonEmptyLines(block string) []string {
	var lines []string
	for _, line := range strings.Split(block, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func startsUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}
