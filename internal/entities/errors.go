package entities

import (
	"fmt"
	"strings"
)

// Import errors are part of the task report contract: their messages are
// persisted verbatim on the import record rows, so they carry enough field
// context to triage a failed record without the source file at hand.

// LossyConversion reports source tags that no transformation rule consumed.
type LossyConversion struct {
	Missing []string
}

func (e *LossyConversion) Error() string {
	return fmt.Sprintf("lossy conversion: %s", strings.Join(e.Missing, ", "))
}

// FieldError carries the tag and subfield a transformation rule failed on.
type FieldError struct {
	Tag      string
	Subfield string
	Reason   string
}

func (e *FieldError) context() string {
	if e.Tag == "" && e.Subfield == "" {
		return ""
	}
	return fmt.Sprintf(" in <%s%s>", e.Tag, e.Subfield)
}

type UnexpectedValue struct {
	FieldError
}

func (e *UnexpectedValue) Error() string {
	msg := "[UNEXPECTED INPUT VALUE]"
	if e.Reason != "" {
		msg = e.Reason
	}
	return msg + e.context()
}

type MissingRequiredField struct {
	FieldError
}

func (e *MissingRequiredField) Error() string {
	msg := "[MISSING REQUIRED FIELD]"
	if e.Reason != "" {
		msg = e.Reason
	}
	return msg + e.context()
}

type ManualImportRequired struct {
	FieldError
}

func (e *ManualImportRequired) Error() string {
	msg := "[MANUAL IMPORT REQUIRED]"
	if e.Reason != "" {
		msg = e.Reason
	}
	return msg + e.context()
}

// UnrecognisedImportMediaType is raised when the record leader does not map
// to any known electronic media type.
type UnrecognisedImportMediaType struct {
	Leader string
}

func (e *UnrecognisedImportMediaType) Error() string {
	return fmt.Sprintf("record media type is not recognised: %q", e.Leader)
}

// RecordNotDeletable is raised on delete mode when the record itself does
// not carry the deletion marker.
type RecordNotDeletable struct{}

func (e *RecordNotDeletable) Error() string {
	return "record is not marked as deletable"
}

// ProviderNotAllowedDeletion is raised on delete mode for providers without
// deletion rights.
type ProviderNotAllowedDeletion struct {
	Provider string
}

func (e *ProviderNotAllowedDeletion) Error() string {
	return fmt.Sprintf("provider %s is not allowed to delete records", e.Provider)
}

type UnknownProvider struct {
	Provider string
}

func (e *UnknownProvider) Error() string {
	return fmt.Sprintf("unknown record provider: %s", e.Provider)
}

type InvalidProvider struct {
	Provider string
	Mode     string
}

func (e *InvalidProvider) Error() string {
	return fmt.Sprintf("invalid provider %s for mode %s", e.Provider, e.Mode)
}

type DocumentImportError struct {
	Message string
}

func (e *DocumentImportError) Error() string {
	return "document import error: " + e.Message
}

type SeriesImportError struct {
	Message string
}

func (e *SeriesImportError) Error() string {
	return "series import error: " + e.Message
}

// SimilarityMatchUnavailable signals that fuzzy matching could not be
// performed and the record has to be imported manually.
type SimilarityMatchUnavailable struct {
	Cause error
}

func (e *SimilarityMatchUnavailable) Error() string {
	return "title similarity matching cannot be performed for this record, import it manually"
}

func (e *SimilarityMatchUnavailable) Unwrap() error { return e.Cause }

// DocumentHasReferencesError blocks deletion of a document still referenced
// by loans, items, orders or interlibrary loans.
type DocumentHasReferencesError struct {
	PID     string
	RefType string
	RefIDs  []string
}

func (e *DocumentHasReferencesError) Error() string {
	return fmt.Sprintf(
		"document %s has %s references: %s",
		e.PID, e.RefType, strings.Join(e.RefIDs, ", "),
	)
}
