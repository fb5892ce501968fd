package domain

import "strings"

const (
	// contentSampleRunes bounds the classification prompt input.
	contentSampleRunes = 2000
	// MaxContentWords caps the extracted text persisted on the record.
	MaxContentWords = 2500
)

// ContentSample returns a bounded prefix of the extracted text, cut back to
// the last word boundary so the classifier never sees a torn token.
func ContentSample(text string) string {
	trimmed := strings.TrimSpace(text)
	runes := []rune(trimmed)
	if len(runes) <= contentSampleRunes {
		return trimmed
	}
	sample := string(runes[:contentSampleRunes])
	if i := strings.LastIndexAny(sample, " \t\n"); i > 0 {
		sample = sample[:i]
	}
	return strings.TrimSpace(sample)
}

// TruncateWords caps text at max whitespace-separated words.
func TruncateWords(text string, max int) string {
	fields := strings.Fields(text)
	if len(fields) <= max {
		return strings.TrimSpace(text)
	}
	return strings.Join(fields[:max], " ")
}
