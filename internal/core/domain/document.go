package domain

import "time"

type ProcessingStatus string

const (
	// StatusPending is set by the upload path before any processor has run.
	StatusPending ProcessingStatus = "pending"
	// StatusClassified means classification persisted but tag embedding is
	// still outstanding, so the sweeper can tell "never started" from
	// "stuck after classification".
	StatusClassified ProcessingStatus = "classified"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Document is the pipeline's view of a vault record. Identity is the
// (TeamID, PathTokens) tuple; the pipeline never addresses a record by
// filename alone.
type Document struct {
	ID         string           `json:"id"`
	TeamID     string           `json:"team_id"`
	PathTokens []string         `json:"path_tokens"`
	Title      string           `json:"title,omitempty"`
	Summary    string           `json:"summary,omitempty"`
	Content    string           `json:"content,omitempty"`
	Date       string           `json:"date,omitempty"`
	Language   string           `json:"language,omitempty"`
	Status     ProcessingStatus `json:"processing_status"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// DocumentRef identifies a persisted row returned from a write.
type DocumentRef struct {
	ID string
}

// ClassificationUpdate is a narrow update keyed by (TeamID, PathTokens).
// Nil optional fields persist as NULL.
type ClassificationUpdate struct {
	TeamID     string
	PathTokens []string
	Title      *string
	Summary    *string
	Content    *string
	Date       *string
	Language   *string
	Status     ProcessingStatus
}
