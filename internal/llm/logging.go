package llm

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// 日志里只保留提示词和响应体的前缀，完整内容可能很长且含用户输入。
const logSnippetLimit = 120

func providerLogger(ctx context.Context, providerID, model string) *logrus.Entry {
	entry := logrus.WithField("provider", providerID)
	if model = strings.TrimSpace(model); model != "" {
		entry = entry.WithField("model", model)
	}
	if ctx != nil {
		entry = entry.WithContext(ctx)
	}
	return entry
}

func logSnippet(value string) string {
	value = strings.TrimSpace(value)
	if utf8.RuneCountInString(value) <= logSnippetLimit {
		return value
	}
	runes := []rune(value)
	return string(runes[:logSnippetLimit]) + "..."
}
