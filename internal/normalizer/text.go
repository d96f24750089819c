// Package normalizer 把原始文本统一成后续正则可以稳定匹配的形式：Unicode、空白、项目符号和日期。
package normalizer

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var whitespaceRun = regexp.MustCompile(`[\s\p{Z}]+`)

// bulletGlyphs 行首会被替换成 "-" 的项目符号（含 en/em dash）
const bulletGlyphs = "•‣⁃⁌⁍∙▪▫●○◦–—*"

// NormalizeText 做 NFKC 归一化（连字、全角、上下标等）。
// 非法 UTF-8 字节会先被替换为 U+FFFD。
func NormalizeText(text string) string {
	if text == "" {
		return ""
	}
	return norm.NFKC.String(strings.ToValidUTF8(text, "�"))
}

// CleanWhitespace 把连续空白（包括换行）压成单个空格并去掉首尾空白
func CleanWhitespace(text string) string {
	if text == "" {
		return ""
	}
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

// ExtractLines 按换行切分并逐行去除首尾空白，空行保留为空字符串
func ExtractLines(text string) []string {
	if text == "" {
		return []string{}
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return lines
}

// NormalizeBullets 把各种行首项目符号统一替换为 "-"，保留原有缩进
func NormalizeBullets(text string) string {
	if text == "" {
		return ""
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		stripped := strings.TrimLeft(line, " \t\r\f\v")
		if stripped == "" {
			continue
		}
		first := []rune(stripped)[0]
		if strings.ContainsRune(bulletGlyphs, first) {
			indent := line[:len(line)-len(stripped)]
			lines[i] = indent + "-" + stripped[len(string(first)):]
		}
	}
	return strings.Join(lines, "\n")
}
