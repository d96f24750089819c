package extractor

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"cv-sidecar/internal/types"
)

// categoryPatterns 常见技能分类标题
var categoryPatterns = []string{
	`(?:programming|coding)\s*(?:languages?)?`,
	`(?:technical|tech)\s*skills?`,
	`(?:software|tools?|technologies?)`,
	`(?:frameworks?|libraries?)`,
	`(?:databases?|data\s*(?:stores?|management))`,
	`(?:cloud|devops|infrastructure)`,
	`(?:operating\s*systems?|os)`,
	`(?:web\s*(?:development|technologies?))`,
	`(?:mobile\s*(?:development|platforms?))`,
	`(?:soft|interpersonal|personal)\s*skills?`,
	`(?:communication|leadership|management)\s*skills?`,
	`(?:spoken\s*)?languages?`,
	`(?:certifications?|qualifications?)`,
	`(?:methodologies|practices)`,
	`(?:core\s*)?competenc(?:y|ies)`,
	`(?:areas?\s*of\s*)?expertise`,
}

var (
	categoryRegex = regexp.MustCompile(`(?i)^(?:` + strings.Join(categoryPatterns, "|") + `)[\s:]*$`)

	// inlineCategory "Databases: PostgreSQL, Redis" 这种同一行的分类
	inlineCategory = regexp.MustCompile(`(?i)^(` + strings.Join(categoryPatterns, "|") + `)\s*:\s*(.+)$`)

	listSeparators = regexp.MustCompile(`[,•‣⁃∙▪●○◦|;]`)
	skillBullet    = regexp.MustCompile(`^[•‣⁃∙▪●○◦\-\*]\s*`)
	edgeDashes     = regexp.MustCompile(`^-+|-+$`)
)

const (
	// DefaultSkillCategory 没有分类标题时的组名
	DefaultSkillCategory = "Skills"

	maxColonHeadingLength = 40
	maxCapsHeadingLength  = 30
	maxSkillLength        = 100
)

// Skills 按候选人自己的分类提取技能。
// 标题行开启新分组。第一个标题之前的行也归入 "Skills" 分组，即使后面还有标题；
// 没有任何标题时整段是一个 "Skills" 分组。
// 行内切出的单个技能只按分类词表和结尾冒号过滤，不用全大写规则，AWS、SQL 这类缩写会保留。
func Skills(text string) []types.SkillGroup {
	groups := []types.SkillGroup{}
	if strings.TrimSpace(text) == "" {
		return groups
	}

	category := DefaultSkillCategory
	var current []string
	flush := func() {
		if len(current) > 0 {
			groups = append(groups, types.SkillGroup{Category: category, Skills: current})
		}
		current = nil
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if isCategoryHeading(trimmed) {
			flush()
			category = strings.TrimSpace(strings.TrimRight(trimmed, ":"))
			continue
		}
		if m := inlineCategory.FindStringSubmatch(skillBullet.ReplaceAllString(trimmed, "")); m != nil {
			flush()
			category = strings.TrimSpace(m[1])
			current = append(current, parseSkillLine(m[2])...)
			continue
		}
		current = append(current, parseSkillLine(trimmed)...)
	}
	flush()
	return groups
}

// parseSkillLine 去掉项目符号后按分隔符切分，丢弃过短、过长和分类名本身
func parseSkillLine(line string) []string {
	line = skillBullet.ReplaceAllString(strings.TrimSpace(line), "")

	var skills []string
	for _, part := range listSeparators.Split(line, -1) {
		skill := strings.TrimSpace(edgeDashes.ReplaceAllString(strings.TrimSpace(part), ""))
		n := utf8.RuneCountInString(skill)
		if n <= 1 || n >= maxSkillLength {
			continue
		}
		// 全大写规则不用于单个片段，否则 AWS、SQL 这类缩写会被当成标题丢掉
		if categoryRegex.MatchString(skill) || strings.HasSuffix(skill, ":") {
			continue
		}
		skills = append(skills, skill)
	}
	return skills
}

// isCategoryHeading 命中分类词表，或是以冒号结尾的短行，或是 1-4 个词的全大写短行
func isCategoryHeading(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if categoryRegex.MatchString(line) {
		return true
	}

	n := utf8.RuneCountInString(line)
	if n < maxColonHeadingLength && strings.HasSuffix(line, ":") {
		return true
	}
	if n < maxCapsHeadingLength && isUpper(line) {
		words := strings.Fields(strings.ReplaceAll(line, ":", ""))
		return len(words) >= 1 && len(words) <= 4
	}
	return false
}

// isUpper 至少有一个字母且没有小写字母
func isUpper(s string) bool {
	hasCased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			hasCased = true
		}
	}
	return hasCased
}

// MergeSkillGroups 合并同义分类并去重（不区分大小写），保持首次出现的顺序。
// technical/programming/coding 归为 "Technical Skills"，非编程的 language 归为 "Languages"，
// soft/interpersonal 归为 "Soft Skills"。对结果再次合并不会改变结果。
func MergeSkillGroups(groups []types.SkillGroup) []types.SkillGroup {
	var order []string
	merged := make(map[string]*types.SkillGroup)
	seen := make(map[string]map[string]bool)

	for _, g := range groups {
		key := canonicalCategory(g.Category)
		group, ok := merged[key]
		if !ok {
			group = &types.SkillGroup{Category: key, Skills: []string{}}
			merged[key] = group
			seen[key] = make(map[string]bool)
			order = append(order, key)
		}
		for _, skill := range g.Skills {
			lower := strings.ToLower(skill)
			if seen[key][lower] {
				continue
			}
			seen[key][lower] = true
			group.Skills = append(group.Skills, skill)
		}
	}

	out := make([]types.SkillGroup, 0, len(order))
	for _, key := range order {
		out = append(out, *merged[key])
	}
	return out
}

func canonicalCategory(category string) string {
	lower := strings.ToLower(category)
	switch {
	case strings.Contains(lower, "technical") || strings.Contains(lower, "programming") || strings.Contains(lower, "coding"):
		return "Technical Skills"
	case strings.Contains(lower, "language"):
		return "Languages"
	case strings.Contains(lower, "soft") || strings.Contains(lower, "interpersonal"):
		return "Soft Skills"
	default:
		return category
	}
}
