package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openils/importer/internal/config"
	"github.com/openils/importer/internal/database/tasklog"
	"github.com/openils/importer/internal/entities"
	"github.com/openils/importer/internal/tasks"
)

// ImportQueue enqueues file processing for the background workers.
type ImportQueue interface {
	EnqueueImportFile(task tasks.ProcessImportFileTask) error
}

// ImporterController accepts record files and JSON payloads for import.
type ImporterController struct {
	cfg   config.Importer
	logs  *tasklog.Repository
	queue ImportQueue
}

func NewImporterController(cfg config.Importer, logs *tasklog.Repository, queue ImportQueue) *ImporterController {
	return &ImporterController{cfg: cfg, logs: logs, queue: queue}
}

// ImportRequestResponse is the envelope for both ingestion endpoints.
type ImportRequestResponse struct {
	Success bool   `json:"success"`
	TaskID  uint   `json:"task_id,omitempty"`
	Message string `json:"message,omitempty"`
}

func parseMode(raw string) (entities.ImportMode, bool) {
	if raw == "" {
		return entities.ModeImport, true
	}
	mode := entities.ImportMode(strings.ToUpper(raw))
	switch mode {
	case entities.ModeImport, entities.ModeDelete,
		entities.ModePreviewImport, entities.ModePreviewDelete:
		return mode, true
	}
	return "", false
}

// ImportFile handles POST /api/importer: a multipart upload with fields
// "file", "provider" and "mode". The upload is stored under the uploads
// path with a generated name; the original filename survives only in the
// task log.
func (ic *ImporterController) ImportFile(c *gin.Context) {
	provider := c.PostForm("provider")
	if _, ok := ic.cfg.Providers[provider]; !ok {
		c.IndentedJSON(http.StatusBadRequest, ImportRequestResponse{
			Message: fmt.Sprintf("unknown provider %q", provider),
		})
		return
	}
	mode, ok := parseMode(c.PostForm("mode"))
	if !ok {
		c.IndentedJSON(http.StatusBadRequest, ImportRequestResponse{
			Message: fmt.Sprintf("unknown mode %q", c.PostForm("mode")),
		})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, ImportRequestResponse{
			Message: "no file provided",
		})
		return
	}
	if !ic.cfg.AllowedExtension(file.Filename) {
		c.IndentedJSON(http.StatusBadRequest, ImportRequestResponse{
			Message: fmt.Sprintf("file extension not allowed: %s", file.Filename),
		})
		return
	}

	storedName := uuid.NewString() + strings.ToLower(filepath.Ext(file.Filename))
	storedPath := filepath.Join(ic.cfg.UploadsPath, storedName)
	if err := os.MkdirAll(ic.cfg.UploadsPath, 0o755); err != nil {
		c.IndentedJSON(http.StatusInternalServerError, ImportRequestResponse{Message: err.Error()})
		return
	}
	if err := c.SaveUploadedFile(file, storedPath); err != nil {
		c.IndentedJSON(http.StatusInternalServerError, ImportRequestResponse{Message: err.Error()})
		return
	}

	ic.startTask(c, provider, mode, "file", file.Filename, storedPath)
}

// JSONImportRequest is the body of POST /api/importer/json. The provider is
// derived from the request Content-Type.
type JSONImportRequest struct {
	Mode string          `json:"mode"`
	Data json.RawMessage `json:"data"`
}

// ImportJSON handles POST /api/importer/json.
func (ic *ImporterController) ImportJSON(c *gin.Context) {
	provider := ic.cfg.ProviderByContentType(c.ContentType())
	if provider == "" {
		c.IndentedJSON(http.StatusBadRequest, ImportRequestResponse{
			Message: fmt.Sprintf("no provider accepts content type %q", c.ContentType()),
		})
		return
	}

	var req JSONImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, ImportRequestResponse{Message: err.Error()})
		return
	}
	mode, ok := parseMode(req.Mode)
	if !ok {
		c.IndentedJSON(http.StatusBadRequest, ImportRequestResponse{
			Message: fmt.Sprintf("unknown mode %q", req.Mode),
		})
		return
	}
	if len(req.Data) == 0 {
		c.IndentedJSON(http.StatusBadRequest, ImportRequestResponse{
			Message: "no records provided",
		})
		return
	}

	storedPath := filepath.Join(ic.cfg.UploadsPath, uuid.NewString()+".json")
	if err := os.MkdirAll(ic.cfg.UploadsPath, 0o755); err != nil {
		c.IndentedJSON(http.StatusInternalServerError, ImportRequestResponse{Message: err.Error()})
		return
	}
	if err := os.WriteFile(storedPath, req.Data, 0o644); err != nil {
		c.IndentedJSON(http.StatusInternalServerError, ImportRequestResponse{Message: err.Error()})
		return
	}

	ic.startTask(c, provider, mode, "json", "", storedPath)
}

// startTask opens the RUNNING task log, enqueues the worker task and
// answers with the task location.
func (ic *ImporterController) startTask(c *gin.Context, provider string, mode entities.ImportMode, sourceType, originalName, storedPath string) {
	task := &entities.ImportTask{
		Agent:            entities.AgentUser,
		Provider:         provider,
		SourceType:       sourceType,
		Mode:             mode,
		OriginalFilename: originalName,
		SourcePath:       storedPath,
	}
	if err := ic.logs.CreateTask(task); err != nil {
		c.IndentedJSON(http.StatusInternalServerError, ImportRequestResponse{Message: err.Error()})
		return
	}

	err := ic.queue.EnqueueImportFile(tasks.ProcessImportFileTask{
		TaskID:   task.ID,
		FilePath: storedPath,
		Provider: provider,
		Mode:     mode,
	})
	if err != nil {
		_ = ic.logs.SetFailed(task, err)
		c.IndentedJSON(http.StatusInternalServerError, ImportRequestResponse{Message: err.Error()})
		return
	}

	c.Header("Location", fmt.Sprintf("/api/importer/tasks/%d", task.ID))
	c.IndentedJSON(http.StatusOK, ImportRequestResponse{Success: true, TaskID: task.ID})
}
