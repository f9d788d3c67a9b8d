package service

import (
	"fmt"
	"strings"

	"scribbly/internal/tracing"
)

// BuildColoringPrompt 把用户输入包装成适合生成着色页的完整提示词。
func BuildColoringPrompt(userPrompt string) string {
	subject := strings.TrimSpace(userPrompt)
	return fmt.Sprintf(
		"A simple black and white coloring page for young children: %s. "+
			"Clean bold outlines, no shading, no color fill, plain white background, "+
			"large printable shapes suitable for crayons.",
		subject,
	)
}

// BuildTracingPrompt 根据解析出的描红规格构造提示词。
func BuildTracingPrompt(spec tracing.Spec) string {
	var subject string
	switch spec.Type {
	case tracing.TypeNumber:
		subject = fmt.Sprintf("the number %s", spec.Content)
	case tracing.TypeWord:
		subject = fmt.Sprintf("the word \"%s\" in clear print letters", strings.ToLower(spec.Content))
	default:
		letter := spec.Content
		switch spec.Style {
		case tracing.StyleLowercase:
			subject = fmt.Sprintf("the lowercase letter %s", strings.ToLower(letter))
		case tracing.StyleCursive:
			subject = fmt.Sprintf("the letter %s in cursive script", strings.ToUpper(letter))
		default:
			subject = fmt.Sprintf("the uppercase letter %s", strings.ToUpper(letter))
		}
	}
	return fmt.Sprintf(
		"A black and white handwriting practice worksheet for children featuring %s. "+
			"Large dashed outlines to trace over, ruled guide lines, a solid example on the left, "+
			"plain white background, no color, printable.",
		subject,
	)
}
