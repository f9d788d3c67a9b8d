// Package tracing 将自由文本的描红请求解析为结构化的描红规格。
package tracing

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	TypeLetter = "letter"
	TypeNumber = "number"
	TypeWord   = "word"
)

const (
	StyleUppercase = "uppercase"
	StyleLowercase = "lowercase"
	StyleCursive   = "cursive"
)

// Spec 是从用户输入推导出的描红规格。
type Spec struct {
	Type        string `json:"type"`
	Content     string `json:"content"`
	Style       string `json:"style"`
	Description string `json:"description"`
}

// 规则按声明顺序依次尝试，先匹配者生效。前面的规则比后面的更具体，
// 顺序不可调整。
var rules = []struct {
	name    string
	pattern *regexp.Regexp
	build   func(input string, match []string) Spec
}{
	{
		name:    "explicit letter",
		pattern: regexp.MustCompile(`(?i)(?:letter|alphabet)\s+([A-Za-z])`),
		build: func(input string, match []string) Spec {
			content := match[1]
			style := StyleUppercase
			lower := strings.ToLower(input)
			switch {
			case strings.Contains(lower, "cursive"):
				style = StyleCursive
			case strings.Contains(lower, "lowercase") || content == strings.ToLower(content):
				style = StyleLowercase
			}
			return Spec{Type: TypeLetter, Content: content, Style: style}
		},
	},
	{
		name:    "explicit number",
		pattern: regexp.MustCompile(`(?i)number\s+(\d+)`),
		build: func(_ string, match []string) Spec {
			// 数字没有大小写，style 只是为了结构统一
			return Spec{Type: TypeNumber, Content: match[1], Style: StyleUppercase}
		},
	},
	{
		name:    "word spelling",
		pattern: regexp.MustCompile(`(?i)(?:spelling|word)\s+of\s+([A-Za-z]+)`),
		build: func(_ string, match []string) Spec {
			return Spec{Type: TypeWord, Content: match[1], Style: StyleUppercase}
		},
	},
	{
		name:    "standalone letter",
		pattern: regexp.MustCompile(`\b([A-Za-z])\b`),
		build: func(_ string, match []string) Spec {
			content := match[1]
			style := StyleUppercase
			if content == strings.ToLower(content) {
				style = StyleLowercase
			}
			return Spec{Type: TypeLetter, Content: content, Style: style}
		},
	},
	{
		name:    "standalone number",
		pattern: regexp.MustCompile(`\b(\d+)\b`),
		build: func(_ string, match []string) Spec {
			return Spec{Type: TypeNumber, Content: match[1], Style: StyleUppercase}
		},
	},
}

// Classify 把自由文本解析为描红规格。纯函数，相同输入永远得到相同输出；
// 无法识别的输入退化为默认的大写字母 A，从不报错。
func Classify(input string) Spec {
	text := strings.TrimSpace(input)

	for _, rule := range rules {
		match := rule.pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		spec := rule.build(text, match)
		spec.Description = describe(spec)
		return spec
	}

	// 首个 token 是单个字母时按大写字母处理
	if fields := strings.Fields(text); len(fields) > 0 {
		first := fields[0]
		if len(first) == 1 && isAlpha(first[0]) {
			spec := Spec{Type: TypeLetter, Content: strings.ToUpper(first), Style: StyleUppercase}
			spec.Description = describe(spec)
			return spec
		}
	}

	spec := Spec{Type: TypeLetter, Content: "A", Style: StyleUppercase}
	spec.Description = describe(spec)
	return spec
}

func describe(s Spec) string {
	switch s.Type {
	case TypeNumber:
		return fmt.Sprintf("the number %s", s.Content)
	case TypeWord:
		return fmt.Sprintf("the word %q in uppercase letters", strings.ToLower(s.Content))
	default:
		return fmt.Sprintf("the %s letter %s", s.Style, strings.ToUpper(s.Content))
	}
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
