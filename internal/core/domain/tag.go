package domain

import (
	"strings"

	"github.com/gosimple/slug"
)

// Tag is a team-scoped label; (TeamID, Slug) is unique, the same slug in
// another team is a different tag.
type Tag struct {
	ID     string `json:"id"`
	TeamID string `json:"team_id"`
	Name   string `json:"name"`
	Slug   string `json:"slug"`
}

// TagSeed is a tag name with its deterministic slug, before persistence.
type TagSeed struct {
	Name string
	Slug string
}

// TagEmbedding is the global content-addressed cache row: one embedding per
// distinct slug regardless of team, created once and never updated in place.
type TagEmbedding struct {
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}

// Slugify derives a tag's stable identity key. Same input always yields the
// same slug; case and punctuation variants converge.
func Slugify(name string) string {
	return slug.Make(name)
}

// TagSeeds slugifies raw tag names, dropping empties and deduplicating by
// slug while preserving first-seen order.
func TagSeeds(names []string) []TagSeed {
	seen := make(map[string]struct{}, len(names))
	seeds := make([]TagSeed, 0, len(names))
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		s := Slugify(trimmed)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		seeds = append(seeds, TagSeed{Name: trimmed, Slug: s})
	}
	return seeds
}
