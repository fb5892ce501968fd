package domain

import "strings"

// Classification is the ephemeral result of a classifier call. Content is
// only populated for images (OCR/description text).
type Classification struct {
	Title    string   `json:"title"`
	Summary  string   `json:"summary"`
	Content  string   `json:"content,omitempty"`
	Date     string   `json:"date"`
	Language string   `json:"language"`
	Tags     []string `json:"tags"`
}

// EmbeddingBatch is the result of one batched embedding call.
type EmbeddingBatch struct {
	Vectors [][]float32
	Model   string
}

const defaultSearchLanguage = "english"

// searchLanguages maps ISO 639-1 codes onto the search index's supported
// language configurations.
var searchLanguages = map[string]string{
	"en": "english",
	"sv": "swedish",
	"de": "german",
	"fr": "french",
	"es": "spanish",
	"it": "italian",
	"pt": "portuguese",
	"nl": "dutch",
	"da": "danish",
	"no": "norwegian",
	"nb": "norwegian",
	"fi": "finnish",
	"ru": "russian",
	"tr": "turkish",
	"hu": "hungarian",
	"ro": "romanian",
}

// SearchLanguage maps a classifier language code into the search index's
// supported set; unrecognized codes fall back to the default.
func SearchLanguage(code string) string {
	c := strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(c, "-_"); i > 0 {
		c = c[:i]
	}
	if lang, ok := searchLanguages[c]; ok {
		return lang
	}
	return defaultSearchLanguage
}
