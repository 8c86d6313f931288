package entities

import (
	"time"

	"gorm.io/gorm"
)

// PID status values. A DELETED pid stays in the table so the value is never
// reused for another record.
type PIDStatus string

const (
	PIDStatusRegistered PIDStatus = "REGISTERED"
	PIDStatusDeleted    PIDStatus = "DELETED"
)

// PID type namespaces.
const (
	PIDTypeDocument = "docid"
	PIDTypeEItem    = "eitid"
	PIDTypeSeries   = "serid"
	// Legacy catalog namespaces, used while matching bulk migrations.
	PIDTypeLegacyDocument = "ldocid"
	PIDTypeLegacySeries   = "lserid"
)

// PersistentIdentifier maps (pid_type, pid_value) to the owning record UUID.
type PersistentIdentifier struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	PIDType    string    `gorm:"column:pid_type;size:16;uniqueIndex:idx_pid_type_value" json:"pid_type"`
	PIDValue   string    `gorm:"column:pid_value;size:64;uniqueIndex:idx_pid_type_value" json:"pid_value"`
	ObjectUUID string    `gorm:"size:36;index" json:"object_uuid"`
	Status     PIDStatus `gorm:"size:16;default:'REGISTERED'" json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PIDSequence backs pid minting, one row per pid type. Incremented inside
// the record's transaction so a rollback releases the value.
type PIDSequence struct {
	PIDType string `gorm:"column:pid_type;primaryKey;size:16"`
	Next    int64
}

type Document struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	PID       string           `gorm:"column:pid;uniqueIndex;size:64" json:"pid"`
	UUID      string           `gorm:"uniqueIndex;size:36" json:"uuid"`
	Metadata  DocumentMetadata `gorm:"serializer:json" json:"metadata"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	DeletedAt gorm.DeletedAt   `gorm:"index" json:"deleted_at,omitempty"`
}

type EItem struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	PID         string         `gorm:"column:pid;uniqueIndex;size:64" json:"pid"`
	UUID        string         `gorm:"uniqueIndex;size:36" json:"uuid"`
	DocumentPID string         `gorm:"column:document_pid;index;size:64" json:"document_pid"`
	Metadata    EItemMetadata  `gorm:"serializer:json" json:"metadata"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

type Series struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	PID       string         `gorm:"column:pid;uniqueIndex;size:64" json:"pid"`
	UUID      string         `gorm:"uniqueIndex;size:36" json:"uuid"`
	Metadata  SeriesMetadata `gorm:"serializer:json" json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// RelationType names the edge between two records.
type RelationType string

const (
	RelationSerial    RelationType = "SERIAL"
	RelationMultipart RelationType = "MULTIPART_MONOGRAPH"
	RelationEdition   RelationType = "EDITION"
	RelationOther     RelationType = "OTHER"
)

// Relation is a directed parent-child edge between two records, optionally
// carrying the child's volume within the parent.
type Relation struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	ParentPID string       `gorm:"column:parent_pid;index:idx_relation_parent;size:64" json:"parent_pid"`
	ChildPID  string       `gorm:"column:child_pid;index:idx_relation_child;size:64" json:"child_pid"`
	Type      RelationType `gorm:"size:32" json:"type"`
	Volume    string       `gorm:"size:32" json:"volume,omitempty"`
	Note      string       `gorm:"size:256" json:"note,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// DocumentSearchEntry is a denormalized search row for a document. One row
// per identifier plus one title row (Scheme == ""). Written only by the
// indexing step after commit, which is what gives the matcher its
// read-your-writes barrier between records of one file.
type DocumentSearchEntry struct {
	ID              uint   `gorm:"primaryKey"`
	DocumentPID     string `gorm:"column:document_pid;index;size:64"`
	Scheme          string `gorm:"index:idx_search_scheme_value;size:32"`
	Value           string `gorm:"index:idx_search_scheme_value;size:256"`
	NormalizedTitle string `gorm:"index;size:512"`
	Subtitle        string `gorm:"size:512"`
	AuthorsText     string `gorm:"size:1024"`
	IsSerialIssue   bool
}

// SeriesSearchEntry mirrors DocumentSearchEntry for series records.
type SeriesSearchEntry struct {
	ID              uint   `gorm:"primaryKey"`
	SeriesPID       string `gorm:"column:series_pid;index;size:64"`
	Scheme          string `gorm:"index:idx_series_search_scheme_value;size:32"`
	Value           string `gorm:"index:idx_series_search_scheme_value;size:256"`
	NormalizedTitle string `gorm:"index;size:512"`
	ModeOfIssuance  string `gorm:"size:32"`
	SeriesType      string `gorm:"size:32"`
}

// DocumentReference records a live external reference (loan, item, order,
// ILL, request) holding a document. Populated by the circulation side;
// consulted before a delete is allowed.
type DocumentReference struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	DocumentPID string    `gorm:"column:document_pid;index;size:64" json:"document_pid"`
	RefType     string    `gorm:"size:32" json:"ref_type"` // loan, item, order, ill, request
	RefID       string    `gorm:"size:64" json:"ref_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// VocabularyEntry is one controlled-vocabulary key, search-source backed.
type VocabularyEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Type      string    `gorm:"index:idx_vocab_type_key;size:64" json:"type"`
	Key       string    `gorm:"index:idx_vocab_type_key;size:128" json:"key"`
	Text      string    `gorm:"size:256" json:"text,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
