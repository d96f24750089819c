package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var fencedJSON = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")

// ErrNoJSON 响应中找不到 JSON 对象
var ErrNoJSON = errors.New("响应中没有 JSON 对象")

// decodeResponse 从模型回复中取出 JSON 并解析到 out。
// 直接解析失败时先修复字符串里未转义的双引号再试一次。
func decodeResponse(content string, out any) error {
	content = strings.TrimPrefix(content, "\uFEFF")

	jsonStr := extractJSON(content)
	if jsonStr == "" {
		return ErrNoJSON
	}
	if !utf8.ValidString(jsonStr) {
		jsonStr = strings.ToValidUTF8(jsonStr, "")
	}

	err := json.Unmarshal([]byte(jsonStr), out)
	if err == nil {
		return nil
	}
	if fixErr := json.Unmarshal([]byte(sanitizeJSON(jsonStr)), out); fixErr != nil {
		return fmt.Errorf("解析 JSON 失败: %w (修复后仍失败: %v)", err, fixErr)
	}
	return nil
}

// extractJSON 优先取 ```json 代码块，否则从第一个 { 开始按括号层级找到对应的 }
func extractJSON(text string) string {
	if matches := fencedJSON.FindStringSubmatch(text); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}

	level := 0
	inStr := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inStr:
			escaped = true
		case c == '"':
			inStr = !inStr
		case c == '{' && !inStr:
			level++
		case c == '}' && !inStr:
			level--
			if level == 0 {
				return strings.TrimSpace(text[start : i+1])
			}
		}
	}
	return ""
}

// sanitizeJSON 把字符串字面量内部未转义的 " 改写成 \"。
// 一个 " 之后的第一个非空白字符是 : , ] } 之一时才视为字符串结束。
func sanitizeJSON(src string) string {
	var b strings.Builder
	inStr := false
	escaped := false

	for i := 0; i < len(src); i++ {
		c := src[i]

		switch {
		case c == '"' && !escaped:
			if !inStr {
				inStr = true
				b.WriteByte(c)
				break
			}
			j := i + 1
			for j < len(src) && (src[j] == ' ' || src[j] == '\t' || src[j] == '\n' || src[j] == '\r') {
				j++
			}
			if j < len(src) && (src[j] == ':' || src[j] == ',' || src[j] == ']' || src[j] == '}') {
				inStr = false
				b.WriteByte(c)
			} else {
				b.WriteString(`\"`)
			}
			escaped = false
		case c == '\\' && !escaped:
			escaped = true
			b.WriteByte(c)
		default:
			b.WriteByte(c)
			escaped = false
		}
	}
	return b.String()
}
