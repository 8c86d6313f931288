package tasklog

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/openils/importer/internal/entities"
)

func setupRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.ImportTask{}, &entities.ImportRecord{}))
	return NewRepository(db)
}

func newRunningTask(t *testing.T, repo *Repository, mode entities.ImportMode) *entities.ImportTask {
	t.Helper()
	task := &entities.ImportTask{
		Agent:            entities.AgentUser,
		Provider:         "springer",
		SourceType:       "file",
		Mode:             mode,
		OriginalFilename: "delivery.xml",
	}
	require.NoError(t, repo.CreateTask(task))
	return task
}

func recordWith(importID uint, index int, action entities.RecordAction) *entities.ImportRecord {
	return &entities.ImportRecord{
		ImportID:   importID,
		EntryIndex: index,
		Action:     &action,
	}
}

func TestTaskLifecycle(t *testing.T) {
	repo := setupRepository(t)
	task := newRunningTask(t, repo, entities.ModeImport)

	assert.Equal(t, entities.TaskStatusRunning, task.Status)
	assert.False(t, task.StartTime.IsZero())

	require.NoError(t, repo.SetEntriesCount(task, 3))
	require.NoError(t, repo.SetSucceeded(task))

	reloaded, err := repo.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.TaskStatusSucceeded, reloaded.Status)
	require.NotNil(t, reloaded.EntriesCount)
	assert.Equal(t, 3, *reloaded.EntriesCount)
	assert.NotNil(t, reloaded.EndTime)

	// Terminal states are final.
	assert.Error(t, repo.SetFailed(reloaded, errors.New("too late")))
}

func TestSetFailed_KeepsCauseInMessage(t *testing.T) {
	repo := setupRepository(t)
	task := newRunningTask(t, repo, entities.ModeImport)

	require.NoError(t, repo.SetFailed(task, errors.New("disk full")))

	reloaded, err := repo.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.TaskStatusFailed, reloaded.Status)
	assert.Contains(t, reloaded.Message, "disk full")
}

func TestIsCancelled_ReflectsStoredStatus(t *testing.T) {
	repo := setupRepository(t)
	task := newRunningTask(t, repo, entities.ModeImport)

	cancelled, err := repo.IsCancelled(task.ID)
	require.NoError(t, err)
	assert.False(t, cancelled)

	require.NoError(t, repo.SetCancelled(task))
	cancelled, err = repo.IsCancelled(task.ID)
	require.NoError(t, err)
	assert.True(t, cancelled)
}

func TestDetails_BucketsAndPagination(t *testing.T) {
	repo := setupRepository(t)
	task := newRunningTask(t, repo, entities.ModeImport)

	require.NoError(t, repo.CreateRecord(recordWith(task.ID, 0, entities.ActionCreate)))
	update := recordWith(task.ID, 1, entities.ActionUpdate)
	update.EItem = &entities.EItemReport{Action: "update", PID: "eitemid-1"}
	update.Series = []entities.SeriesReport{{Action: "update", PID: "serid-1"}}
	require.NoError(t, repo.CreateRecord(update))
	none := recordWith(task.ID, 2, entities.ActionNone)
	none.PartialMatches = []entities.PartialMatch{{PID: "docid-9", Type: entities.PartialMatchAmbiguous}}
	require.NoError(t, repo.CreateRecord(none))
	require.NoError(t, repo.CreateFailure(task.ID, 3, "rec-4", nil, errors.New("bad record")))
	require.NoError(t, repo.SetSucceeded(task))

	details, err := repo.Details(task.ID, 1, 2, FilterAll)
	require.NoError(t, err)
	assert.Equal(t, 4, details.Counts[FilterAll])
	assert.Equal(t, 1, details.Counts[FilterCreate])
	assert.Equal(t, 1, details.Counts[FilterUpdate])
	assert.Equal(t, 1, details.Counts[FilterError])
	assert.Equal(t, 1, details.Counts[FilterEItem])
	assert.Equal(t, 1, details.Counts[FilterSerial])
	assert.Equal(t, 1, details.Counts[FilterPartial])
	assert.Len(t, details.Records, 2)
	assert.Equal(t, 2, details.TotalPages)

	page2, err := repo.Details(task.ID, 2, 2, FilterAll)
	require.NoError(t, err)
	assert.Len(t, page2.Records, 2)
	assert.Equal(t, 2, page2.Records[0].EntryIndex)

	errored, err := repo.Details(task.ID, 1, 20, FilterError)
	require.NoError(t, err)
	require.Len(t, errored.Records, 1)
	assert.Equal(t, "rec-4", errored.Records[0].EntryRecID)
	assert.Contains(t, errored.Records[0].Error, "bad record")
}

func TestDetails_CachesFinishedTaskOnly(t *testing.T) {
	repo := setupRepository(t)
	running := newRunningTask(t, repo, entities.ModeImport)
	require.NoError(t, repo.CreateRecord(recordWith(running.ID, 0, entities.ActionCreate)))

	// RUNNING tasks are never cached: rows arriving later must show up.
	_, err := repo.Details(running.ID, 1, 20, FilterAll)
	require.NoError(t, err)
	require.NoError(t, repo.CreateRecord(recordWith(running.ID, 1, entities.ActionCreate)))
	details, err := repo.Details(running.ID, 1, 20, FilterAll)
	require.NoError(t, err)
	assert.Len(t, details.Records, 2)

	require.NoError(t, repo.SetSucceeded(running))
	_, err = repo.Details(running.ID, 1, 20, FilterAll)
	require.NoError(t, err)

	// A row created after finishing is invisible through the cache. Nothing
	// writes records to finished tasks in practice; this pins the caching.
	require.NoError(t, repo.CreateRecord(recordWith(running.ID, 2, entities.ActionCreate)))
	cached, err := repo.Details(running.ID, 1, 20, FilterAll)
	require.NoError(t, err)
	assert.Len(t, cached.Records, 2)

	// Viewing another task evicts the cached one.
	other := newRunningTask(t, repo, entities.ModeImport)
	require.NoError(t, repo.SetSucceeded(other))
	_, err = repo.Details(other.ID, 1, 20, FilterAll)
	require.NoError(t, err)
	fresh, err := repo.Details(running.ID, 1, 20, FilterAll)
	require.NoError(t, err)
	assert.Len(t, fresh.Records, 3)
}

func TestPurgePreviewTasks(t *testing.T) {
	repo := setupRepository(t)

	stale := newRunningTask(t, repo, entities.ModePreviewImport)
	require.NoError(t, repo.CreateRecord(recordWith(stale.ID, 0, entities.ActionCreate)))
	require.NoError(t, repo.SetSucceeded(stale))
	require.NoError(t, repo.db.Model(stale).
		Update("start_time", time.Now().Add(-10*24*time.Hour)).Error)

	freshPreview := newRunningTask(t, repo, entities.ModePreviewDelete)
	require.NoError(t, repo.SetSucceeded(freshPreview))

	oldImport := newRunningTask(t, repo, entities.ModeImport)
	require.NoError(t, repo.SetSucceeded(oldImport))
	require.NoError(t, repo.db.Model(oldImport).
		Update("start_time", time.Now().Add(-10*24*time.Hour)).Error)

	deleted, err := repo.PurgePreviewTasks(7 * 24 * time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	_, err = repo.GetTask(stale.ID)
	assert.Error(t, err)
	records, err := repo.Records(stale.ID)
	require.NoError(t, err)
	assert.Empty(t, records)

	// Import task logs are permanent; recent previews survive too.
	_, err = repo.GetTask(freshPreview.ID)
	assert.NoError(t, err)
	_, err = repo.GetTask(oldImport.ID)
	assert.NoError(t, err)
}
