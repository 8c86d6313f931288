package tasks

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/openils/importer/internal/config"
	"github.com/openils/importer/internal/entities"
	"github.com/openils/importer/internal/marc"
	"github.com/openils/importer/internal/rdm"
)

// RecordImporter runs one record against the catalogue.
type RecordImporter interface {
	ImportRecord(ctx context.Context, raw *entities.DocumentMetadata, provider string) (*entities.ImportRecord, error)
	DeleteRecord(ctx context.Context, raw *entities.DocumentMetadata, provider string, deletable bool) (*entities.ImportRecord, error)
	PreviewImport(ctx context.Context, raw *entities.DocumentMetadata, provider string) (*entities.ImportRecord, error)
	PreviewDelete(ctx context.Context, raw *entities.DocumentMetadata, provider string, deletable bool) (*entities.ImportRecord, error)
}

// TaskLog is the task log surface the worker writes to.
type TaskLog interface {
	GetTask(id uint) (*entities.ImportTask, error)
	SetEntriesCount(task *entities.ImportTask, count int) error
	SetSucceeded(task *entities.ImportTask) error
	SetFailed(task *entities.ImportTask, cause error) error
	SetCancelled(task *entities.ImportTask) error
	IsCancelled(taskID uint) (bool, error)
	CreateRecord(record *entities.ImportRecord) error
	CreateFailure(importID uint, index int, recID string, raw *entities.DocumentMetadata, cause error) error
}

// ProcessImportFileTask runs all records of one uploaded file.
type ProcessImportFileTask struct {
	TaskID   uint                `json:"task_id"`
	FilePath string              `json:"file_path"`
	Provider string              `json:"provider"`
	Mode     entities.ImportMode `json:"mode"`
}

// Config returns the queue configuration for file import tasks. A
// half-processed file must never be replayed automatically, so attempts
// are capped at one; the task log keeps the failure.
func (t ProcessImportFileTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "process_import_file",
		MaxAttempts: 1,
		Timeout:     20 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// sourceRecord is one transformed entry of the file. A transformation
// failure is carried per record so the rest of the file still runs.
type sourceRecord struct {
	meta      *entities.DocumentMetadata
	recID     string
	deletable bool
	err       error
}

// ImportFileProcessor creates the processor running uploaded files record
// by record: records stay in source order, the cancellation flag is checked
// between records, and a single bad record never stops the file.
func ImportFileProcessor(logStore TaskLog, imp RecordImporter, cfg config.Importer) backlite.QueueProcessor[ProcessImportFileTask] {
	return func(ctx context.Context, task ProcessImportFileTask) error {
		taskLog, err := logStore.GetTask(task.TaskID)
		if err != nil {
			return fmt.Errorf("loading task log %d: %w", task.TaskID, err)
		}

		records, err := loadRecords(task, cfg)
		if err != nil {
			return logStore.SetFailed(taskLog, err)
		}
		if err := logStore.SetEntriesCount(taskLog, len(records)); err != nil {
			return err
		}

		for i, rec := range records {
			cancelled, err := logStore.IsCancelled(task.TaskID)
			if err != nil {
				return err
			}
			if cancelled {
				log.Printf("[TASK] Import task %d cancelled after %d records", task.TaskID, i)
				return nil
			}

			if rec.err != nil {
				if err := logStore.CreateFailure(task.TaskID, i, rec.recID, rec.meta, rec.err); err != nil {
					return err
				}
				continue
			}

			report, err := runRecord(ctx, imp, task, rec)
			if err != nil {
				// Storage failure: the file cannot continue.
				if logErr := logStore.CreateFailure(task.TaskID, i, rec.recID, rec.meta, err); logErr != nil {
					return logErr
				}
				return logStore.SetFailed(taskLog, err)
			}
			report.ImportID = task.TaskID
			report.EntryIndex = i
			if report.EntryRecID == "" {
				report.EntryRecID = rec.recID
			}
			if err := logStore.CreateRecord(report); err != nil {
				return err
			}
		}

		return logStore.SetSucceeded(taskLog)
	}
}

func runRecord(ctx context.Context, imp RecordImporter, task ProcessImportFileTask, rec sourceRecord) (*entities.ImportRecord, error) {
	switch task.Mode {
	case entities.ModeImport:
		return imp.ImportRecord(ctx, rec.meta, task.Provider)
	case entities.ModeDelete:
		return imp.DeleteRecord(ctx, rec.meta, task.Provider, rec.deletable)
	case entities.ModePreviewImport:
		return imp.PreviewImport(ctx, rec.meta, task.Provider)
	case entities.ModePreviewDelete:
		return imp.PreviewDelete(ctx, rec.meta, task.Provider, rec.deletable)
	default:
		return nil, fmt.Errorf("unsupported import mode %q", task.Mode)
	}
}

// loadRecords parses and transforms the whole file up front, so the entry
// count is known before the first record runs. Providers with a JSON
// content type ship research-data records; the rest ship MARCXML.
func loadRecords(task ProcessImportFileTask, cfg config.Importer) ([]sourceRecord, error) {
	f, err := os.Open(task.FilePath)
	if err != nil {
		return nil, fmt.Errorf("opening import file: %w", err)
	}
	defer f.Close()

	if strings.Contains(cfg.Providers[task.Provider].ContentType, "json") {
		parsed, err := rdm.ParseRecords(f)
		if err != nil {
			return nil, err
		}
		records := make([]sourceRecord, 0, len(parsed))
		for _, raw := range parsed {
			meta, err := rdm.Transform(raw)
			rec := sourceRecord{meta: meta, recID: raw.ID, err: err}
			if meta != nil && meta.ProviderRecID != "" {
				rec.recID = meta.ProviderRecID
			}
			records = append(records, rec)
		}
		return records, nil
	}

	if _, err := marc.ModelFor(task.Provider); err != nil {
		return nil, err
	}
	parsed, err := marc.ParseRecords(f)
	if err != nil {
		return nil, err
	}
	records := make([]sourceRecord, 0, len(parsed))
	for _, raw := range parsed {
		// Rule closures hold per-record state; every record gets its own
		// registry.
		model, err := marc.ModelFor(task.Provider)
		if err != nil {
			return nil, err
		}
		meta, deletable, err := model.Transform(raw, cfg.StrictRules)
		rec := sourceRecord{meta: meta, deletable: deletable, err: err}
		if meta != nil {
			rec.recID = meta.ProviderRecID
		}
		records = append(records, rec)
	}
	return records, nil
}

// NewImportFileQueue creates the backlite queue for file import tasks.
func NewImportFileQueue(logStore TaskLog, imp RecordImporter, cfg config.Importer) backlite.Queue {
	return backlite.NewQueue(ImportFileProcessor(logStore, imp, cfg))
}
