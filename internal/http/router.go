package http

import (
	"github.com/gin-gonic/gin"

	"github.com/openils/importer/internal/config"
	"github.com/openils/importer/internal/database"
	"github.com/openils/importer/internal/database/tasklog"
)

// RouterConfig carries the dependencies of the HTTP surface.
type RouterConfig struct {
	Config   config.Importer
	Database *database.Database
	TaskLogs *tasklog.Repository
	Queue    ImportQueue
	Version  string
}

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	health := NewHealthController(cfg.Database, cfg.Version)
	importer := NewImporterController(cfg.Config, cfg.TaskLogs, cfg.Queue)
	taskViews := NewTasksController(cfg.TaskLogs, cfg.Config.EZProxyTemplate)

	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	router.POST("/api/importer", importer.ImportFile)
	router.POST("/api/importer/json", importer.ImportJSON)
	router.GET("/api/importer/tasks", taskViews.ListTasks)
	router.GET("/api/importer/tasks/:id", taskViews.GetTask)
	router.POST("/api/importer/tasks/:id/cancel", taskViews.CancelTask)

	return router
}
