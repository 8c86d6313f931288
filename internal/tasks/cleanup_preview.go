package tasks

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/robfig/cron/v3"
)

// PreviewLogPurger deletes preview-mode task logs past their retention.
type PreviewLogPurger interface {
	PurgePreviewTasks(retention time.Duration) (int64, error)
}

// CleanupPreviewLogsTask removes stale preview task logs. Preview runs
// exist for operator inspection only and are not kept forever.
type CleanupPreviewLogsTask struct {
	RetentionHours int `json:"retention_hours"`
}

// Config returns the queue configuration for preview log cleanup.
func (t CleanupPreviewLogsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "cleanup_preview_logs",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// CleanupPreviewLogsProcessor creates a processor for preview log cleanup.
func CleanupPreviewLogsProcessor(purger PreviewLogPurger) backlite.QueueProcessor[CleanupPreviewLogsTask] {
	return func(ctx context.Context, task CleanupPreviewLogsTask) error {
		if purger == nil {
			return fmt.Errorf("preview log purger not configured")
		}

		hours := task.RetentionHours
		if hours <= 0 {
			hours = 7 * 24
		}
		deleted, err := purger.PurgePreviewTasks(time.Duration(hours) * time.Hour)
		if err != nil {
			return fmt.Errorf("cleanup preview logs: %w", err)
		}

		log.Printf("[TASK] Cleaned up %d preview task logs older than %dh", deleted, hours)
		return nil
	}
}

// NewCleanupPreviewLogsQueue creates the backlite queue for preview cleanup.
func NewCleanupPreviewLogsQueue(purger PreviewLogPurger) backlite.Queue {
	return backlite.NewQueue(CleanupPreviewLogsProcessor(purger))
}

// CleanupScheduler enqueues the preview cleanup task on a cron schedule.
type CleanupScheduler struct {
	client    *Client
	schedule  string
	retention time.Duration

	cron      *cron.Cron
	mu        sync.Mutex
	isRunning bool
}

// NewCleanupScheduler creates a scheduler with a minute-granularity cron
// expression, e.g. "0 3 * * *" for every night at 03:00.
func NewCleanupScheduler(client *Client, schedule string, retention time.Duration) *CleanupScheduler {
	return &CleanupScheduler{
		client:    client,
		schedule:  schedule,
		retention: retention,
		cron: cron.New(cron.WithParser(
			cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		)),
	}
}

// Start begins the schedule. Safe to call once.
func (s *CleanupScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}

	_, err := s.cron.AddFunc(s.schedule, func() {
		task := CleanupPreviewLogsTask{RetentionHours: int(s.retention.Hours())}
		if _, err := s.client.Add(task).Save(); err != nil {
			log.Printf("[TASK ERROR] enqueueing preview cleanup: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.isRunning = true
	log.Printf("Preview cleanup scheduled: %s (retention %s)", s.schedule, s.retention)
	return nil
}

// Stop halts the schedule and waits for a running enqueue to finish.
func (s *CleanupScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return
	}
	<-s.cron.Stop().Done()
	s.isRunning = false
}
