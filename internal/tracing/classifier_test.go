package tracing

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantType    string
		wantContent string
		wantStyle   string
	}{
		{"explicit lowercase letter", "trace the letter b in lowercase", TypeLetter, "b", StyleLowercase},
		{"explicit uppercase letter", "the letter B", TypeLetter, "B", StyleUppercase},
		{"lowercase inferred from character", "letter b", TypeLetter, "b", StyleLowercase},
		{"cursive wins over lowercase", "letter b in cursive", TypeLetter, "b", StyleCursive},
		{"cursive uppercase", "cursive alphabet M", TypeLetter, "M", StyleCursive},
		{"alphabet keyword", "alphabet Q", TypeLetter, "Q", StyleUppercase},
		{"explicit number", "number 7", TypeNumber, "7", StyleUppercase},
		{"multi digit number", "trace number 42", TypeNumber, "42", StyleUppercase},
		{"spelling of word", "spelling of cat", TypeWord, "cat", StyleUppercase},
		{"word of", "word of dog", TypeWord, "dog", StyleUppercase},
		{"standalone uppercase letter", "Z please", TypeLetter, "Z", StyleUppercase},
		{"standalone lowercase letter", "practice q", TypeLetter, "q", StyleLowercase},
		{"standalone digits", "give me 12", TypeNumber, "12", StyleUppercase},
		{"unrecognizable falls back to default", "xyz123", TypeLetter, "A", StyleUppercase},
		{"empty input falls back to default", "", TypeLetter, "A", StyleUppercase},
		{"whitespace only falls back to default", "   ", TypeLetter, "A", StyleUppercase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.input)
			if got.Type != tt.wantType {
				t.Fatalf("Classify(%q).Type = %q, want %q", tt.input, got.Type, tt.wantType)
			}
			if got.Content != tt.wantContent {
				t.Fatalf("Classify(%q).Content = %q, want %q", tt.input, got.Content, tt.wantContent)
			}
			if got.Style != tt.wantStyle {
				t.Fatalf("Classify(%q).Style = %q, want %q", tt.input, got.Style, tt.wantStyle)
			}
			if got.Description == "" {
				t.Fatalf("Classify(%q) returned empty description", tt.input)
			}
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	input := "trace the letter b in lowercase"
	first := Classify(input)
	for i := 0; i < 5; i++ {
		if got := Classify(input); got != first {
			t.Fatalf("Classify is not deterministic: %+v != %+v", got, first)
		}
	}
}
