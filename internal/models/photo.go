package models

import "time"

type PhotoStatus string

const (
	PhotoStatusQueued     PhotoStatus = "queued"
	PhotoStatusProcessing PhotoStatus = "processing"
	PhotoStatusDone       PhotoStatus = "done"
	PhotoStatusFailed     PhotoStatus = "failed"
)

// LogEntry is one line of the human-readable processing log attached to a photo.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

type Photo struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	URL         string      `json:"url"`
	Status      PhotoStatus `json:"status"`
	Progress    int         `json:"progress"`
	UploadedAt  time.Time   `json:"uploaded_at"`
	ProcessedAt *time.Time  `json:"processed_at"`
	Error       *string     `json:"error"`
	Logs        []LogEntry  `json:"logs"`
	RetryCount  int         `json:"retry_count"`
}

// PhotoUpdate carries a partial update; nil fields are left untouched.
// ClearError sets the error column to NULL and wins over Error.
type PhotoUpdate struct {
	Status      *PhotoStatus
	Progress    *int
	ProcessedAt *time.Time
	Error       *string
	ClearError  bool
	Logs        []LogEntry
	RetryCount  *int
	URL         *string
}
