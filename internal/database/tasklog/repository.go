// Package tasklog persists import task runs and their per-record outcomes.
//
// Status transitions are single-writer and final: a task moves from RUNNING
// to exactly one of SUCCEEDED, FAILED or CANCELLED and never changes again.
package tasklog

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/openils/importer/internal/entities"
)

// FilterType selects a record bucket in the task detail view.
type FilterType string

const (
	FilterAll     FilterType = "all"
	FilterCreate  FilterType = "create"
	FilterUpdate  FilterType = "update"
	FilterDelete  FilterType = "delete"
	FilterError   FilterType = "error"
	FilterEItem   FilterType = "eitem"
	FilterSerial  FilterType = "serial"
	FilterPartial FilterType = "partial"
)

// Repository handles task and record log operations.
type Repository struct {
	db    *gorm.DB
	cache *detailCache
}

// NewRepository creates a new task log repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, cache: newDetailCache()}
}

// WithTx returns a repository bound to the given transaction. The cache is
// shared: it only ever holds serialized views of finished tasks.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx, cache: r.cache}
}

// CreateTask opens a new RUNNING task log.
func (r *Repository) CreateTask(task *entities.ImportTask) error {
	task.Status = entities.TaskStatusRunning
	task.StartTime = time.Now()
	return r.db.Create(task).Error
}

// GetTask retrieves a task by id.
func (r *Repository) GetTask(id uint) (*entities.ImportTask, error) {
	var task entities.ImportTask
	if err := r.db.First(&task, id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// ListTasks returns all tasks, newest first.
func (r *Repository) ListTasks() ([]entities.ImportTask, error) {
	var tasks []entities.ImportTask
	err := r.db.Order("id DESC").Find(&tasks).Error
	return tasks, err
}

// SetEntriesCount records the number of entries found in the source file.
func (r *Repository) SetEntriesCount(task *entities.ImportTask, count int) error {
	task.EntriesCount = &count
	return r.db.Model(task).Update("entries_count", count).Error
}

func (r *Repository) finalize(task *entities.ImportTask, status entities.ImportTaskStatus, message string) error {
	if !task.IsRunning() {
		return fmt.Errorf("task %d already finalized as %s", task.ID, task.Status)
	}
	now := time.Now()
	task.Status = status
	task.EndTime = &now
	task.Message = message
	return r.db.Model(task).Updates(map[string]any{
		"status":   status,
		"end_time": now,
		"message":  message,
	}).Error
}

// SetSucceeded marks a running task as complete.
func (r *Repository) SetSucceeded(task *entities.ImportTask) error {
	return r.finalize(task, entities.TaskStatusSucceeded, "")
}

// SetFailed marks a running task as failed with the causing error.
func (r *Repository) SetFailed(task *entities.ImportTask, cause error) error {
	message := ""
	if cause != nil {
		message = fmt.Sprintf("%T: %v", cause, cause)
	}
	return r.finalize(task, entities.TaskStatusFailed, message)
}

// SetCancelled marks a running task as cancelled.
func (r *Repository) SetCancelled(task *entities.ImportTask) error {
	return r.finalize(task, entities.TaskStatusCancelled, "")
}

// IsCancelled re-reads the task status; the worker checks this between
// records.
func (r *Repository) IsCancelled(taskID uint) (bool, error) {
	task, err := r.GetTask(taskID)
	if err != nil {
		return false, err
	}
	return task.Status == entities.TaskStatusCancelled, nil
}

// CreateRecord stores one per-record outcome row.
func (r *Repository) CreateRecord(record *entities.ImportRecord) error {
	return r.db.Create(record).Error
}

// CreateFailure stores an error outcome for one record.
func (r *Repository) CreateFailure(importID uint, index int, recID string, raw *entities.DocumentMetadata, cause error) error {
	action := entities.ActionError
	return r.CreateRecord(&entities.ImportRecord{
		ImportID:   importID,
		EntryIndex: index,
		EntryRecID: recID,
		Action:     &action,
		RawJSON:    raw,
		Error:      fmt.Sprintf("%T: %v", cause, cause),
	})
}

// Records returns all record rows of a task in source order.
func (r *Repository) Records(taskID uint) ([]entities.ImportRecord, error) {
	var records []entities.ImportRecord
	err := r.db.Where("import_id = ?", taskID).Order("entry_index ASC").Find(&records).Error
	return records, err
}

// PurgePreviewTasks deletes preview-mode tasks (and their records) older
// than the retention period. Returns the number of tasks removed.
func (r *Repository) PurgePreviewTasks(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	var stale []entities.ImportTask
	err := r.db.Where("mode IN ? AND start_time < ?",
		[]entities.ImportMode{entities.ModePreviewImport, entities.ModePreviewDelete}, cutoff).
		Find(&stale).Error
	if err != nil {
		return 0, err
	}
	for _, task := range stale {
		if err := r.db.Where("import_id = ?", task.ID).Delete(&entities.ImportRecord{}).Error; err != nil {
			return 0, err
		}
		if err := r.db.Delete(&task).Error; err != nil {
			return 0, err
		}
	}
	return int64(len(stale)), nil
}

func matchesFilter(record *entities.ImportRecord, filter FilterType) bool {
	action := entities.RecordAction("")
	if record.Action != nil {
		action = *record.Action
	}
	switch filter {
	case FilterAll, "":
		return true
	case FilterCreate, FilterUpdate, FilterDelete, FilterError:
		return string(action) == string(filter)
	case FilterEItem:
		return record.EItem != nil && record.EItem.Action != "" && record.EItem.Action != "none"
	case FilterSerial:
		return len(record.Series) > 0
	case FilterPartial:
		return len(record.PartialMatches) > 0
	default:
		return false
	}
}

// TaskDetails is the paginated, filterable detail view of one task.
type TaskDetails struct {
	Task       *entities.ImportTask    `json:"task"`
	Records    []entities.ImportRecord `json:"records"`
	Page       int                     `json:"page"`
	PageSize   int                     `json:"page_size"`
	TotalPages int                     `json:"total_pages"`
	FilterType FilterType              `json:"filter_type"`
	Counts     map[FilterType]int      `json:"counts"`
}

// Details loads a task with one page of its records filtered by bucket,
// plus per-bucket counts. Finished tasks are served from the last-viewed
// cache.
func (r *Repository) Details(taskID uint, page, pageSize int, filter FilterType) (*TaskDetails, error) {
	task, err := r.GetTask(taskID)
	if err != nil {
		return nil, err
	}

	records, ok := r.cache.get(taskID, task.Status)
	if !ok {
		records, err = r.Records(taskID)
		if err != nil {
			return nil, err
		}
		r.cache.put(taskID, task.Status, records)
	}

	counts := make(map[FilterType]int)
	buckets := []FilterType{FilterAll, FilterCreate, FilterUpdate, FilterDelete,
		FilterError, FilterEItem, FilterSerial, FilterPartial}
	var filtered []entities.ImportRecord
	for i := range records {
		for _, bucket := range buckets {
			if matchesFilter(&records[i], bucket) {
				counts[bucket]++
			}
		}
		if matchesFilter(&records[i], filter) {
			filtered = append(filtered, records[i])
		}
	}

	if pageSize <= 0 {
		pageSize = 20
	}
	if page <= 0 {
		page = 1
	}
	totalPages := (len(filtered) + pageSize - 1) / pageSize
	start := (page - 1) * pageSize
	if start > len(filtered) {
		start = len(filtered)
	}
	end := start + pageSize
	if end > len(filtered) {
		end = len(filtered)
	}

	return &TaskDetails{
		Task:       task,
		Records:    filtered[start:end],
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		FilterType: filter,
		Counts:     counts,
	}, nil
}
