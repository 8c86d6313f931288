package tasks

import "time"

// Config holds the queue runtime settings.
type Config struct {
	// Workers is the number of concurrent queue workers. Files are
	// processed concurrently; records within a file stay serial.
	Workers int

	// ReleaseAfter is when stuck tasks are released back to the queue.
	ReleaseAfter time.Duration

	// CleanupInterval is how often completed queue entries are removed.
	CleanupInterval time.Duration

	// FileTimeout bounds the processing of a single import file.
	FileTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:         2,
		ReleaseAfter:    30 * time.Minute,
		CleanupInterval: 1 * time.Hour,
		FileTimeout:     20 * time.Minute,
	}
}
