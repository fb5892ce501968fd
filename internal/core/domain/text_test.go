package domain

import (
	"strings"
	"testing"
)

func TestContentSampleShortTextUnchanged(t *testing.T) {
	if got := ContentSample("  hello world  "); got != "hello world" {
		t.Fatalf("ContentSample() = %q", got)
	}
}

func TestContentSampleBoundsLongText(t *testing.T) {
	long := strings.Repeat("lorem ipsum ", 500)
	sample := ContentSample(long)
	if n := len([]rune(sample)); n > contentSampleRunes {
		t.Fatalf("sample = %d runes, want <= %d", n, contentSampleRunes)
	}
	if strings.HasSuffix(sample, "lor") || strings.HasSuffix(sample, "ips") {
		t.Fatalf("sample ends mid-word: %q", sample[len(sample)-10:])
	}
}

func TestContentSampleEmptyInput(t *testing.T) {
	if got := ContentSample("   \n\t "); got != "" {
		t.Fatalf("ContentSample() = %q, want empty", got)
	}
}

func TestTruncateWordsCapsAtLimit(t *testing.T) {
	text := strings.Repeat("word ", 3000)
	got := TruncateWords(text, MaxContentWords)
	if n := len(strings.Fields(got)); n != MaxContentWords {
		t.Fatalf("words = %d, want %d", n, MaxContentWords)
	}
}

func TestTruncateWordsShortTextUnchanged(t *testing.T) {
	if got := TruncateWords("a b c", 10); got != "a b c" {
		t.Fatalf("TruncateWords() = %q", got)
	}
}
