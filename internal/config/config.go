package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultDatabasePath is used when no DATABASE_PATH is configured.
const DefaultDatabasePath = "./importer.db"

type (
	Config struct {
		HTTP
		Database
		Importer
		Tasks
		Global
	}

	HTTP struct {
		Port int32
		Host string
	}

	Database struct {
		Path string
	}

	// Provider describes one metadata supplier. Priority is a positive
	// integer, lower value = higher authority.
	Provider struct {
		Priority           int
		AgencyCode         string
		CanDelete          bool
		ContentType        string // selects this provider on JSON ingestion
		EItemOpenAccess    bool
		EItemLoginRequired bool
	}

	Importer struct {
		Providers         map[string]Provider
		UploadsPath       string
		AllowedExtensions []string
		RecordTag         string // XML element holding one record
		EZProxyTemplate   string // "{url}" placeholder
		PrioritySensitive bool
		StrictRules       bool
		PreviewRetention  time.Duration
		CleanupSchedule   string // cron format
	}

	Tasks struct {
		Enabled           bool
		Workers           int
		MaxRetries        int
		RetryDelay        time.Duration
		TaskTimeout       time.Duration
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}

	Global struct {
		ShutdownTimeoutInSeconds int
	}
)

// defaultProviders is the built-in supplier registry. Priorities follow the
// catalog's authority ordering; agency codes are the codes the suppliers
// stamp into their own payloads.
func defaultProviders() map[string]Provider {
	return map[string]Provider{
		"cds": {
			Priority:           1,
			AgencyCode:         "SzGeCERN",
			CanDelete:          true,
			EItemOpenAccess:    true,
			EItemLoginRequired: false,
		},
		"rdm": {
			Priority:           1,
			AgencyCode:         "SzGeCERN",
			ContentType:        "application/vnd.rdm.record+json",
			EItemOpenAccess:    true,
			EItemLoginRequired: false,
		},
		"springer": {
			Priority:           2,
			AgencyCode:         "DE-He213",
			EItemLoginRequired: true,
		},
		"ebl": {
			Priority:           3,
			AgencyCode:         "MiAaPQ",
			CanDelete:          true,
			EItemLoginRequired: true,
		},
		"safari": {
			Priority:           4,
			AgencyCode:         "OCoLC",
			CanDelete:          true,
			EItemLoginRequired: true,
		},
	}
}

// ProviderByContentType resolves the provider selected by a JSON ingestion
// Content-Type header. Returns "" when no provider claims the type.
func (i Importer) ProviderByContentType(contentType string) string {
	mediaType := strings.TrimSpace(strings.Split(contentType, ";")[0])
	for name, p := range i.Providers {
		if p.ContentType != "" && p.ContentType == mediaType {
			return name
		}
	}
	return ""
}

// AllowedExtension reports whether the filename carries an accepted
// extension.
func (i Importer) AllowedExtension(filename string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range i.AllowedExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)

	v.SetDefault("import_uploads_path", "/tmp/importer-uploads")
	v.SetDefault("importer_allowed_extensions", ".xml,.json")
	v.SetDefault("importer_record_tag", "record")
	v.SetDefault("ezproxy_url_template", "https://ezproxy.example.org/login?url={url}")
	v.SetDefault("provider_priority_sensitive", false)
	v.SetDefault("importer_strict_rules", true)
	v.SetDefault("importer_preview_retention", "168h") // 7 days
	v.SetDefault("importer_cleanup_schedule", "30 3 * * *")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_max_retries", 3)
	v.SetDefault("task_retry_delay", "1m")
	v.SetDefault("task_timeout", "30m")
	v.SetDefault("task_release_after", "45m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")

	extensions := strings.Split(v.GetString("IMPORTER_ALLOWED_EXTENSIONS"), ",")
	for i := range extensions {
		extensions[i] = strings.TrimSpace(extensions[i])
	}

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Importer: Importer{
			Providers:         defaultProviders(),
			UploadsPath:       v.GetString("IMPORT_UPLOADS_PATH"),
			AllowedExtensions: extensions,
			RecordTag:         v.GetString("IMPORTER_RECORD_TAG"),
			EZProxyTemplate:   v.GetString("EZPROXY_URL_TEMPLATE"),
			PrioritySensitive: v.GetBool("PROVIDER_PRIORITY_SENSITIVE"),
			StrictRules:       v.GetBool("IMPORTER_STRICT_RULES"),
			PreviewRetention:  v.GetDuration("IMPORTER_PREVIEW_RETENTION"),
			CleanupSchedule:   v.GetString("IMPORTER_CLEANUP_SCHEDULE"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			MaxRetries:        v.GetInt("TASK_MAX_RETRIES"),
			RetryDelay:        v.GetDuration("TASK_RETRY_DELAY"),
			TaskTimeout:       v.GetDuration("TASK_TIMEOUT"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
	}
}
