package domain

// Job and queue names shared between the dispatching and consuming sides.
const (
	JobProcessDocument   = "process-document"
	JobClassifyDocument  = "classify-document"
	JobClassifyImage     = "classify-image"
	JobEmbedDocumentTags = "embed-document-tags"
	JobNotification      = "notification"

	QueueDocuments     = "documents"
	QueueNotifications = "notifications"
)

const (
	NotificationDocumentUploaded  = "document_uploaded"
	NotificationDocumentProcessed = "document_processed"
)

type ProcessDocumentPayload struct {
	Mimetype string   `json:"mimetype"`
	FilePath []string `json:"filePath"`
	TeamID   string   `json:"teamId"`
}

type ClassifyDocumentPayload struct {
	Content  string `json:"content"`
	FileName string `json:"fileName"`
	TeamID   string `json:"teamId"`
}

type ClassifyImagePayload struct {
	FileName string `json:"fileName"`
	TeamID   string `json:"teamId"`
}

type EmbedTagsPayload struct {
	DocumentID string   `json:"documentId"`
	TeamID     string   `json:"teamId"`
	Tags       []string `json:"tags"`
}

type NotificationPayload struct {
	Type     string   `json:"type"`
	TeamID   string   `json:"teamId"`
	FileName string   `json:"fileName"`
	FilePath []string `json:"filePath,omitempty"`
	MimeType string   `json:"mimeType,omitempty"`
}
