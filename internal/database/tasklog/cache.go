package tasklog

import (
	"sync"

	"github.com/openils/importer/internal/entities"
)

// detailCache holds the record list of the last-viewed task. It exists only
// to keep the detail view responsive under frequent polling: the UI polls a
// RUNNING task every few seconds and then keeps the finished view open.
//
// Invalidation is by task id change or by the task still being RUNNING, in
// which case new record rows may still be arriving.
type detailCache struct {
	mu      sync.Mutex
	taskID  uint
	records []entities.ImportRecord
	valid   bool
}

func newDetailCache() *detailCache {
	return &detailCache{}
}

func (c *detailCache) get(taskID uint, status entities.ImportTaskStatus) ([]entities.ImportRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid || c.taskID != taskID || status == entities.TaskStatusRunning {
		return nil, false
	}
	return c.records, true
}

func (c *detailCache) put(taskID uint, status entities.ImportTaskStatus, records []entities.ImportRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if status == entities.TaskStatusRunning {
		c.valid = false
		return
	}
	c.taskID = taskID
	c.records = records
	c.valid = true
}
