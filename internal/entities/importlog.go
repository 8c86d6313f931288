package entities

import (
	"time"
)

// ImporterAgent identifies who started a task.
type ImporterAgent string

const (
	AgentCLI  ImporterAgent = "CLI"
	AgentUser ImporterAgent = "USER"
)

// ImportMode is the requested operation for a whole file.
type ImportMode string

const (
	ModeImport        ImportMode = "IMPORT"
	ModeDelete        ImportMode = "DELETE"
	ModePreviewImport ImportMode = "PREVIEW_IMPORT"
	ModePreviewDelete ImportMode = "PREVIEW_DELETE"
)

// IsPreview reports whether the mode runs without committing.
func (m ImportMode) IsPreview() bool {
	return m == ModePreviewImport || m == ModePreviewDelete
}

// ImportTaskStatus transitions RUNNING -> {SUCCEEDED, FAILED, CANCELLED};
// the terminal states are final.
type ImportTaskStatus string

const (
	TaskStatusRunning   ImportTaskStatus = "RUNNING"
	TaskStatusSucceeded ImportTaskStatus = "SUCCEEDED"
	TaskStatusFailed    ImportTaskStatus = "FAILED"
	TaskStatusCancelled ImportTaskStatus = "CANCELLED"
)

// RecordAction is the per-record outcome bucket.
type RecordAction string

const (
	ActionCreate RecordAction = "create"
	ActionUpdate RecordAction = "update"
	ActionDelete RecordAction = "delete"
	ActionNone   RecordAction = "none"
	ActionError  RecordAction = "error"
)

// ImportTask is one row per ingested file.
type ImportTask struct {
	ID               uint             `gorm:"primaryKey" json:"id"`
	Agent            ImporterAgent    `gorm:"size:16" json:"agent"`
	Provider         string           `gorm:"size:32;index" json:"provider"`
	SourceType       string           `gorm:"size:16" json:"source_type"`
	Mode             ImportMode       `gorm:"size:16" json:"mode"`
	Status           ImportTaskStatus `gorm:"size:16;index;default:'RUNNING'" json:"status"`
	StartTime        time.Time        `json:"start_time"`
	EndTime          *time.Time       `json:"end_time,omitempty"`
	EntriesCount     *int             `json:"entries_count,omitempty"`
	Message          string           `gorm:"type:text" json:"message,omitempty"`
	OriginalFilename string           `gorm:"size:512" json:"original_filename"`
	SourcePath       string           `gorm:"size:1024" json:"-"`
}

// IsRunning reports whether the task has not reached a terminal state.
func (t *ImportTask) IsRunning() bool {
	return t.Status == TaskStatusRunning
}

// PartialMatch is one ambiguous or similar candidate surfaced for review.
type PartialMatch struct {
	PID  string `json:"pid"`
	Type string `json:"type"` // "ambiguous" or "similar"
}

const (
	PartialMatchAmbiguous = "ambiguous"
	PartialMatchSimilar   = "similar"
)

// EItemReport describes what the reconciler did for one record.
type EItemReport struct {
	Action      string         `json:"action,omitempty"` // create, update, replace, none, error
	PID         string         `json:"output_pid,omitempty"`
	EItem       *EItemMetadata `json:"eitem,omitempty"`
	DeletedPIDs []string       `json:"deleted_eitem_pids,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// SeriesReport describes what the series importer did for one descriptor.
type SeriesReport struct {
	Action     string          `json:"action,omitempty"` // create, update, error
	PID        string          `json:"output_pid,omitempty"`
	Series     *SeriesMetadata `json:"series,omitempty"`
	Duplicates []string        `json:"duplicates,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// ImportRecord is one row per input record of a task.
type ImportRecord struct {
	ID             uint              `gorm:"primaryKey" json:"id"`
	ImportID       uint              `gorm:"index:idx_import_entry;index" json:"import_id"`
	EntryIndex     int               `gorm:"index:idx_import_entry" json:"entry_index"`
	EntryRecID     string            `gorm:"size:64" json:"entry_recid,omitempty"`
	Action         *RecordAction     `gorm:"size:16" json:"action,omitempty"`
	OutputPID      string            `gorm:"column:output_pid;size:64" json:"output_pid,omitempty"`
	DocumentJSON   *DocumentMetadata `gorm:"serializer:json" json:"document_json,omitempty"`
	RawJSON        *DocumentMetadata `gorm:"serializer:json" json:"raw_json,omitempty"`
	PartialMatches []PartialMatch    `gorm:"serializer:json" json:"partial_matches,omitempty"`
	EItem          *EItemReport      `gorm:"serializer:json" json:"eitem,omitempty"`
	Series         []SeriesReport    `gorm:"serializer:json" json:"series,omitempty"`
	Error          string            `gorm:"type:text" json:"error,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}
