package normalizer

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Present 表示"至今"的规范写法
const Present = "Present"

// DateLayout 规范日期格式 dd/mm/yyyy
const DateLayout = "02/01/2006"

var presentWords = map[string]bool{
	"present": true,
	"current": true,
	"now":     true,
	"ongoing": true,
	"today":   true,
}

var monthIndex = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

const monthAlt = `(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sept?(?:ember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`

var (
	edgeJunk = regexp.MustCompile(`^[^\p{L}\p{N}_]+|[^\p{L}\p{N}_]+$`)

	isoDate       = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	compactDate   = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})$`)
	yearMonth     = regexp.MustCompile(`^(\d{4})[-/.](\d{1,2})$`)
	monthYear     = regexp.MustCompile(`^(\d{1,2})[-/.](\d{4})$`)
	dayMonthYear  = regexp.MustCompile(`^(\d{1,2})[-/.](\d{1,2})[-/.](\d{4})$`)
	dayMonthYY    = regexp.MustCompile(`^(\d{1,2})[-/.](\d{1,2})[-/.](\d{2})$`)
	yearOnly      = regexp.MustCompile(`^(\d{4})$`)
	namedMonthYr  = regexp.MustCompile(`(?i)^` + monthAlt + `\.?,?[\s-]*(\d{4})$`)
	yearNamedMon  = regexp.MustCompile(`(?i)^(\d{4})[\s-]+` + monthAlt + `\.?$`)
	dayNamedMonYr = regexp.MustCompile(`(?i)^(\d{1,2})(?:st|nd|rd|th)?[\s-]+` + monthAlt + `\.?,?[\s-]+(\d{4})$`)
	namedMonDayYr = regexp.MustCompile(`(?i)^` + monthAlt + `\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})$`)

	fuzzyMonthYear = regexp.MustCompile(`(?i)\b` + monthAlt + `\b\.?,?\s*((?:19|20)\d{2})\b`)
	fuzzyYear      = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)

	partialDate = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^` + monthAlt + `\.?,?\s+\d{4}$`),
		regexp.MustCompile(`^\d{4}$`),
		regexp.MustCompile(`^\d{4}[-/]\d{1,2}$`),
		regexp.MustCompile(`^\d{1,2}[-/]\d{4}$`),
	}

	// 日期区间的分隔符，按优先级排列
	rangeSeparators = []string{" - ", " to ", " until ", " through ", "-"}
	singleISOish    = regexp.MustCompile(`^\d{4}-\d{1,2}(?:-\d{1,2})?$`)
	allDigits       = regexp.MustCompile(`^\d+$`)
)

// NormalizeDate 把任意写法的日期规范成 dd/mm/yyyy。
// 空输入返回空字符串；"present/current/now/ongoing/today" 返回 Present；
// 只有年或年月时日取 01；纯数字日期按日在前解析；无法解析时原样返回去掉首尾空白后的输入。
func NormalizeDate(raw string) string {
	value, _ := normalizeDate(raw)
	return value
}

// normalizeDate 返回规范化结果以及是否真正被识别为日期
func normalizeDate(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	if presentWords[strings.ToLower(trimmed)] {
		return Present, true
	}

	cleaned := replaceDashes(trimmed)
	cleaned = strings.TrimSpace(edgeJunk.ReplaceAllString(cleaned, ""))
	if cleaned == "" {
		return trimmed, false
	}
	if presentWords[strings.ToLower(cleaned)] {
		return Present, true
	}

	if t, ok := parseDate(cleaned); ok {
		return t.Format(DateLayout), true
	}
	return trimmed, false
}

// IsPartialDate 判断日期字符串是否只有年或年月
func IsPartialDate(raw string) bool {
	s := strings.TrimSpace(raw)
	for _, re := range partialDate {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// ExtractDateRange 从 "Jan 2020 - Present" 这类文本中拆出规范化后的起止日期。
// 找不到区间时，若整段文本本身是一个日期则只返回开始日期；否则两个都为空。
func ExtractDateRange(text string) (start, end string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ""
	}
	cleaned := replaceDashes(trimmed)

	if !singleISOish.MatchString(cleaned) {
		lower := strings.ToLower(cleaned)
		for _, sep := range rangeSeparators {
			idx := strings.Index(lower, sep)
			if idx < 0 {
				continue
			}
			left := cleaned[:idx]
			right := cleaned[idx+len(sep):]
			return NormalizeDate(left), NormalizeDate(right)
		}
	}

	if single, ok := normalizeDate(cleaned); ok {
		return single, ""
	}
	return "", ""
}

func replaceDashes(s string) string {
	return strings.NewReplacer("–", "-", "—", "-").Replace(s)
}

// parseDate 依次尝试固定格式、模糊搜索，最后交给 dateparse
func parseDate(s string) (time.Time, bool) {
	if m := isoDate.FindStringSubmatch(s); m != nil {
		return makeDate(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}
	if m := compactDate.FindStringSubmatch(s); m != nil {
		return makeDate(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}
	if m := yearMonth.FindStringSubmatch(s); m != nil {
		return makeDate(atoi(m[1]), atoi(m[2]), 1)
	}
	if m := monthYear.FindStringSubmatch(s); m != nil {
		return makeDate(atoi(m[2]), atoi(m[1]), 1)
	}
	if m := dayMonthYear.FindStringSubmatch(s); m != nil {
		return dayFirst(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}
	if m := dayMonthYY.FindStringSubmatch(s); m != nil {
		return dayFirst(atoi(m[1]), atoi(m[2]), expandYear(atoi(m[3])))
	}
	if m := yearOnly.FindStringSubmatch(s); m != nil {
		return makeDate(atoi(m[1]), 1, 1)
	}
	if m := namedMonthYr.FindStringSubmatch(s); m != nil {
		return makeDate(atoi(m[2]), int(lookupMonth(m[1])), 1)
	}
	if m := yearNamedMon.FindStringSubmatch(s); m != nil {
		return makeDate(atoi(m[1]), int(lookupMonth(m[2])), 1)
	}
	if m := dayNamedMonYr.FindStringSubmatch(s); m != nil {
		return makeDate(atoi(m[3]), int(lookupMonth(m[2])), atoi(m[1]))
	}
	if m := namedMonDayYr.FindStringSubmatch(s); m != nil {
		return makeDate(atoi(m[3]), int(lookupMonth(m[1])), atoi(m[2]))
	}

	// 带星期、时间、时区等完整时间戳
	if t, ok := parseTimestamp(s); ok {
		return t, true
	}

	// 模糊匹配：在整句里找 "月份 年份" 或单独的年份
	if m := fuzzyMonthYear.FindStringSubmatch(s); m != nil {
		return makeDate(atoi(m[2]), int(lookupMonth(m[1])), 1)
	}
	if m := fuzzyYear.FindStringSubmatch(s); m != nil {
		return makeDate(atoi(m[1]), 1, 1)
	}
	return time.Time{}, false
}

// parseTimestamp 用 dateparse 兜底；纯数字串会被它当成 unix 时间戳，直接跳过
func parseTimestamp(s string) (t time.Time, ok bool) {
	if allDigits.MatchString(s) {
		return time.Time{}, false
	}
	defer func() {
		if r := recover(); r != nil {
			t, ok = time.Time{}, false
		}
	}()
	parsed, err := dateparse.ParseAny(s)
	if err != nil || parsed.Year() < 1000 || parsed.Year() > 9999 {
		return time.Time{}, false
	}
	return parsed, true
}

// dayFirst 纯数字日期按日在前解析，日不合法而月合法时交换
func dayFirst(day, month, year int) (time.Time, bool) {
	if t, ok := makeDate(year, month, day); ok {
		return t, true
	}
	return makeDate(year, day, month)
}

// expandYear 两位年份取离当前年份 50 年以内的世纪
func expandYear(yy int) int {
	year := 2000 + yy
	if year > time.Now().Year()+50 {
		year -= 100
	}
	return year
}

func makeDate(year, month, day int) (time.Time, bool) {
	if year < 1000 || year > 9999 || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date 会把 31/02 之类的日期滚到下个月
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

func lookupMonth(name string) time.Month {
	key := strings.ToLower(strings.TrimSuffix(name, "."))
	if m, ok := monthIndex[key]; ok {
		return m
	}
	if len(key) >= 3 {
		return monthIndex[key[:3]]
	}
	return 0
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
