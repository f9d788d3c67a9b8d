package service

import (
	"strings"
	"testing"

	"scribbly/internal/tracing"
)

func TestBuildColoringPrompt(t *testing.T) {
	prompt := BuildColoringPrompt("  a happy dinosaur ")
	if !strings.Contains(prompt, "a happy dinosaur") {
		t.Errorf("prompt does not contain the subject: %q", prompt)
	}
	if !strings.Contains(prompt, "coloring page") {
		t.Errorf("prompt does not frame a coloring page: %q", prompt)
	}
}

func TestBuildTracingPrompt(t *testing.T) {
	tests := []struct {
		name string
		spec tracing.Spec
		want string
	}{
		{
			name: "大写字母",
			spec: tracing.Spec{Type: tracing.TypeLetter, Content: "b", Style: tracing.StyleUppercase},
			want: "the uppercase letter B",
		},
		{
			name: "小写字母",
			spec: tracing.Spec{Type: tracing.TypeLetter, Content: "B", Style: tracing.StyleLowercase},
			want: "the lowercase letter b",
		},
		{
			name: "连笔字母",
			spec: tracing.Spec{Type: tracing.TypeLetter, Content: "c", Style: tracing.StyleCursive},
			want: "the letter C in cursive script",
		},
		{
			name: "数字",
			spec: tracing.Spec{Type: tracing.TypeNumber, Content: "7", Style: tracing.StyleUppercase},
			want: "the number 7",
		},
		{
			name: "单词",
			spec: tracing.Spec{Type: tracing.TypeWord, Content: "CAT", Style: tracing.StyleUppercase},
			want: `the word "cat"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildTracingPrompt(tt.spec)
			if !strings.Contains(got, tt.want) {
				t.Errorf("BuildTracingPrompt(%+v) = %q, want substring %q", tt.spec, got, tt.want)
			}
			if !strings.Contains(got, "worksheet") {
				t.Errorf("prompt does not frame a worksheet: %q", got)
			}
		})
	}
}
