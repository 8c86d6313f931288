package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openils/importer/internal/config"
	"github.com/openils/importer/internal/database"
	"github.com/openils/importer/internal/database/tasklog"
	vocabdb "github.com/openils/importer/internal/database/vocabulary"
	http_controllers "github.com/openils/importer/internal/http"
	"github.com/openils/importer/internal/importer"
	"github.com/openils/importer/internal/tasks"
	"github.com/openils/importer/internal/vocabulary"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	log.Printf("Checking uploads directory: %s\n", cfg.Importer.UploadsPath)

	if cfg.Importer.UploadsPath == "" {
		log.Fatalf("Uploads directory is not set")
		return
	}

	if err := os.MkdirAll(cfg.Importer.UploadsPath, 0o755); err != nil {
		log.Fatalf("Could not create uploads directory %s: %v", cfg.Importer.UploadsPath, err)
		return
	}

	// Check the uploads dir is writable by touching and removing an empty file
	probe := filepath.Join(cfg.Importer.UploadsPath, ".importer")
	if _, err := os.Create(probe); err != nil {
		log.Fatalf("Uploads directory %s is not writable", cfg.Importer.UploadsPath)
		return
	}
	defer func() {
		if err := os.Remove(probe); err != nil {
			log.Printf("Could not remove the test file from the uploads directory %s", cfg.Importer.UploadsPath)
		}
	}()

	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		// service connections
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// Graceful shutdown: wait for SIGINT/SIGTERM, then give in-flight
	// requests and workers `timeout` to finish.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Call shutdown callback first (e.g., to stop task queue)
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting Importer v%s", version)

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	taskLogs := tasklog.NewRepository(db.DB)

	// Vocabulary validation uses the bundled JSON vocabularies plus the
	// search-backed store for the dynamic ones.
	vocabStore := vocabdb.NewRepository(db.DB)
	validator := vocabulary.NewValidator(vocabulary.DefaultFetchers(vocabStore))

	imp := importer.New(db.DB, cfg.Importer, validator)

	// Initialize the task queue if enabled
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskCfg := tasks.Config{
			Workers:         cfg.Tasks.Workers,
			ReleaseAfter:    cfg.Tasks.ReleaseAfter,
			CleanupInterval: cfg.Tasks.CleanupInterval,
			FileTimeout:     cfg.Tasks.TaskTimeout,
		}

		taskClient, err = tasks.NewClient(cfg.Database.Path, taskCfg)
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		// Register task queues
		taskClient.Register(
			tasks.NewImportFileQueue(taskLogs, imp, cfg.Importer),
			tasks.NewCleanupPreviewLogsQueue(taskLogs),
		)

		// Start task workers in background
		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
	}

	// Periodic purge of expired preview task logs
	var scheduler *tasks.CleanupScheduler
	if taskClient != nil && cfg.Importer.CleanupSchedule != "" {
		scheduler = tasks.NewCleanupScheduler(taskClient, cfg.Importer.CleanupSchedule, cfg.Importer.PreviewRetention)
		if err := scheduler.Start(); err != nil {
			log.Fatalf("Failed to start cleanup scheduler: %v", err)
		}
	}

	// Build router configuration with all dependencies
	routerCfg := http_controllers.RouterConfig{
		Config:   cfg.Importer,
		Database: db,
		TaskLogs: taskLogs,
		Queue:    taskClient,
		Version:  version,
	}

	router := http_controllers.NewRouter(routerCfg)

	// Shutdown callback for graceful cleanup
	onShutdown := func(ctx context.Context) {
		if scheduler != nil {
			scheduler.Stop()
		}
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	Serve(router, cfg, onShutdown)
}
