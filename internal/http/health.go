package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openils/importer/internal/database"
	"github.com/openils/importer/internal/entities"
)

type HealthResponse struct {
	Status         string            `json:"status"`
	Time           string            `json:"time"`
	Version        string            `json:"version,omitempty"`
	RunningImports int64             `json:"running_imports"`
	Checks         map[string]string `json:"checks"`
}

type HealthController struct {
	db      *database.Database
	version string
}

func NewHealthController(db *database.Database, version string) *HealthController {
	return &HealthController{db: db, version: version}
}

// Status reports catalogue database connectivity and the number of import
// tasks currently running.
func (h *HealthController) Status(c *gin.Context) {
	checks := make(map[string]string)
	status := "healthy"
	var running int64

	if h.db == nil {
		checks["database"] = "not configured"
	} else if sqlDB, err := h.db.DB.DB(); err != nil {
		checks["database"] = "error: " + err.Error()
		status = "unhealthy"
	} else if err := sqlDB.Ping(); err != nil {
		checks["database"] = "error: " + err.Error()
		status = "unhealthy"
	} else {
		checks["database"] = "ok"
		err := h.db.DB.Model(&entities.ImportTask{}).
			Where("status = ?", entities.TaskStatusRunning).
			Count(&running).Error
		if err != nil {
			checks["task_log"] = "error: " + err.Error()
			status = "unhealthy"
		} else {
			checks["task_log"] = "ok"
		}
	}

	statusCode := http.StatusOK
	if status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.IndentedJSON(statusCode, HealthResponse{
		Status:         status,
		Time:           time.Now().Format(time.RFC3339),
		Version:        h.version,
		RunningImports: running,
		Checks:         checks,
	})
}
