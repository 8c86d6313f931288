package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/openils/importer/internal/database/tasklog"
	"github.com/openils/importer/internal/entities"
)

// TasksController serves the task log views and cancellation.
type TasksController struct {
	logs            *tasklog.Repository
	ezproxyTemplate string
}

func NewTasksController(logs *tasklog.Repository, ezproxyTemplate string) *TasksController {
	return &TasksController{logs: logs, ezproxyTemplate: ezproxyTemplate}
}

// ListTasks handles GET /api/importer/tasks.
func (tc *TasksController) ListTasks(c *gin.Context) {
	taskList, err := tc.logs.ListTasks()
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{
		"tasks": taskList,
		"count": len(taskList),
	})
}

// GetTask handles GET /api/importer/tasks/:id with page, page_size and
// filter_type query parameters.
func (tc *TasksController) GetTask(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"message": "invalid task id"})
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	filter := tasklog.FilterType(c.DefaultQuery("filter_type", string(tasklog.FilterAll)))

	details, err := tc.logs.Details(uint(id), page, pageSize, filter)
	if err != nil {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "task not found"})
		return
	}

	details.Records = rewriteLoginURLs(details.Records, tc.ezproxyTemplate)
	c.IndentedJSON(http.StatusOK, details)
}

// CancelTask handles POST /api/importer/tasks/:id/cancel. The worker
// observes the flag between records; records already imported stay.
func (tc *TasksController) CancelTask(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"message": "invalid task id"})
		return
	}
	task, err := tc.logs.GetTask(uint(id))
	if err != nil {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "task not found"})
		return
	}
	if !task.IsRunning() {
		c.IndentedJSON(http.StatusConflict, gin.H{
			"message": "task already finished as " + string(task.Status),
		})
		return
	}
	if err := tc.logs.SetCancelled(task); err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"success": true, "status": entities.TaskStatusCancelled})
}
