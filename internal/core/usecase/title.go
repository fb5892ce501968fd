package usecase

import (
	"log/slog"
	"path"
	"strings"

	"github.com/velstad/vault-pipeline/internal/core/domain"
)

type titleVariant int

const (
	variantDocument titleVariant = iota
	variantImage
)

func (v titleVariant) defaultLabel() string {
	if v == variantImage {
		return "Image"
	}
	return "Document"
}

// titleKeywords is checked in order against the lowered content+summary;
// the first hit decides the label.
var titleKeywords = []struct {
	keyword string
	label   string
}{
	{"invoice", "Invoice"},
	{"receipt", "Receipt"},
	{"contract", "Contract"},
	{"agreement", "Contract"},
	{"report", "Report"},
}

const titleSummaryMaxRunes = 50

// fallbackTitle synthesizes a deterministic title when the classifier
// returns none. The event is logged so under-delivering classification
// stays auditable.
func fallbackTitle(variant titleVariant, fileName, content string, cls domain.Classification, logger *slog.Logger) string {
	lowered := strings.ToLower(content + " " + cls.Summary)
	label := variant.defaultLabel()
	for _, kw := range titleKeywords {
		if strings.Contains(lowered, kw.keyword) {
			label = kw.label
			break
		}
	}

	var b strings.Builder
	b.WriteString(label)

	if summary := strings.TrimSpace(cls.Summary); summary != "" {
		b.WriteString(" - ")
		b.WriteString(truncateRunes(summary, titleSummaryMaxRunes))
	} else if base := titleFromFileName(path.Base(fileName)); base != "" {
		b.WriteString(" - ")
		b.WriteString(base)
	}

	if date := strings.TrimSpace(cls.Date); date != "" {
		b.WriteString(" - ")
		b.WriteString(date)
	}

	title := b.String()
	logger.Info("classifier returned no title, synthesized fallback",
		"title", title,
		"fileName", fileName,
		"contentLength", len(content),
		"hasSummary", cls.Summary != "",
		"hasDate", cls.Date != "",
	)
	return title
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
