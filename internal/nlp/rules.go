package nlp

import (
	"context"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// orgSuffixes 出现在公司名中的词
var orgSuffixes = map[string]bool{
	"ltd": true, "limited": true, "inc": true, "incorporated": true,
	"corp": true, "corporation": true, "llc": true, "llp": true, "plc": true,
	"gmbh": true, "ag": true, "bv": true, "co": true, "company": true,
	"group": true, "holdings": true, "partners": true, "consulting": true,
	"technologies": true, "solutions": true, "labs": true, "bank": true,
	"agency": true, "studios": true, "ventures": true, "trust": true, "council": true,
}

// institutionWords 院校
var institutionWords = map[string]bool{
	"university": true, "college": true, "school": true,
	"institute": true, "academy": true, "polytechnic": true,
}

// segmentSeparators 一行内常见的字段分隔
var segmentSeparators = regexp.MustCompile(`\s+[-–—|@]\s+|\s+at\s+|,\s*|\t+`)

const maxOrgLength = 80

// RuleAnnotator 基于词表识别 ORG：公司后缀或院校关键词
type RuleAnnotator struct{}

var _ EntityAnnotator = RuleAnnotator{}

// NewRuleAnnotator 创建规则识别器
func NewRuleAnnotator() RuleAnnotator {
	return RuleAnnotator{}
}

// Annotate 实现 EntityAnnotator
func (RuleAnnotator) Annotate(ctx context.Context, text string) ([]Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []Entity
	for _, line := range strings.Split(text, "\n") {
		for _, seg := range segmentSeparators.Split(line, -1) {
			seg = strings.Trim(seg, " \t\r•*-()")
			if isOrgSegment(seg) {
				out = append(out, Entity{Text: seg, Label: LabelOrg})
			}
		}
	}
	return out, nil
}

// LooksLikeInstitution 文本是否含院校关键词
func LooksLikeInstitution(text string) bool {
	for _, w := range words(text) {
		if institutionWords[w] {
			return true
		}
	}
	return false
}

func isOrgSegment(seg string) bool {
	n := utf8.RuneCountInString(seg)
	if n < 2 || n > maxOrgLength {
		return false
	}
	first, _ := utf8.DecodeRuneInString(seg)
	if !unicode.IsUpper(first) && !unicode.IsDigit(first) {
		return false
	}
	for _, w := range words(seg) {
		if orgSuffixes[w] || institutionWords[w] {
			return true
		}
	}
	return false
}

// words 小写并去掉标点后的单词
func words(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '&'
	})
	return fields
}
