package tracing

import (
	"path/filepath"
	"strings"
)

const (
	// DefaultMaxLength 默认最大属性长度
	DefaultMaxLength = 200

	// MaxRedisLength Redis键最大长度
	MaxRedisLength = 100

	// MaxDocumentLength 简历文本片段最大长度
	MaxDocumentLength = 150
)

// maskPIILookup 属性名包含这些关键字时值需要掩码
var maskPIILookup = map[string]bool{
	"email":     true,
	"phone":     true,
	"address":   true,
	"name":      true,
	"linkedin":  true,
	"github":    true,
	"portfolio": true,
	"secret":    true,
	"token":     true,
	"api_key":   true,
}

// SafeAttributeValue 确保属性值安全：
// 属性名命中敏感关键字时返回掩码值，否则截断到 maxLength。
func SafeAttributeValue(name string, value string, maxLength int) string {
	lowerName := strings.ToLower(name)
	for keyword := range maskPIILookup {
		if strings.Contains(lowerName, keyword) {
			return MaskPII(value)
		}
	}
	return TruncateString(value, maxLength)
}

// MaskPII 对个人敏感信息进行掩码处理
func MaskPII(value string) string {
	if value == "" {
		return ""
	}

	runes := []rune(value)
	length := len(runes)

	if length <= 1 {
		return "*"
	}
	if length <= 4 {
		if length == 2 {
			return string(runes[0:1]) + "*"
		}
		return string(runes[0:1]) + strings.Repeat("*", length-2) + string(runes[length-1:])
	}

	// "jane@example.com" -> "ja************om"
	return string(runes[0:2]) + strings.Repeat("*", length-4) + string(runes[length-2:])
}

// TruncateString 截断字符串，保留首尾，中间用省略号连接
func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}

	if maxLength <= 3 {
		return string(runes[:maxLength])
	}

	half := (maxLength - 3) / 2
	if half < 1 {
		half = 1
	}
	return string(runes[:half]) + "..." + string(runes[len(runes)-half:])
}

// SafeRedisKey 安全处理Redis键
func SafeRedisKey(key string) string {
	return TruncateString(key, MaxRedisLength)
}

// SafeDocumentText 安全处理简历文本
func SafeDocumentText(content string) string {
	return TruncateString(content, MaxDocumentLength)
}

// SafePath 只保留文件名，目录里可能有候选人姓名
func SafePath(path string) string {
	return TruncateString(filepath.Base(path), DefaultMaxLength)
}
