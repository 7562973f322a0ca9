package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zidanDirk/foodsafety/internal/service"
	"github.com/zidanDirk/foodsafety/internal/store"
	"github.com/zidanDirk/foodsafety/internal/utils"
)

// TaskController 任务控制器
type TaskController struct {
	taskService service.TaskService
}

// NewTaskController 创建任务控制器
func NewTaskController(taskService service.TaskService) *TaskController {
	return &TaskController{
		taskService: taskService,
	}
}

// validateTaskID 验证任务 ID 并返回错误响应（如果无效）
func (c *TaskController) validateTaskID(ctx *gin.Context, id string) bool {
	if err := utils.ValidateTaskID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid task ID", err.Error())
		return false
	}
	return true
}

// Upload 上传图片并创建分析任务
// 校验不通过时不会创建任务;创建成功后立即返回任务 ID,
// 处理进度通过状态接口轮询
func (c *TaskController) Upload(ctx *gin.Context) {
	fileHeader, err := ctx.FormFile("image")
	if err != nil {
		Error(ctx, http.StatusBadRequest, "missing image file", err.Error())
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		Error(ctx, http.StatusInternalServerError, "failed to read uploaded file", err.Error())
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		Error(ctx, http.StatusInternalServerError, "failed to read uploaded file", err.Error())
		return
	}

	req := &service.CreateTaskRequest{
		FileName: fileHeader.Filename,
		FileSize: fileHeader.Size,
		MIMEType: fileHeader.Header.Get("Content-Type"),
		Image:    image,
	}

	task, err := c.taskService.CreateTask(ctx.Request.Context(), req)
	if err != nil {
		var validationErr *utils.ValidationError
		if errors.As(err, &validationErr) {
			Error(ctx, http.StatusBadRequest, "invalid upload", validationErr.Message)
			return
		}
		Error(ctx, http.StatusInternalServerError, "failed to create task", err.Error())
		return
	}

	Success(ctx, gin.H{
		"taskId":  task.ID,
		"message": "文件上传成功,正在处理中...",
	})
}

// Status 查询任务状态
// 响应为轮询方约定的字面结构,不包装统一响应外壳
func (c *TaskController) Status(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateTaskID(ctx, id) {
		return
	}

	result, err := c.taskService.GetTaskResult(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			Error(ctx, http.StatusNotFound, "task not found", "no task with the given id")
			return
		}
		Error(ctx, http.StatusInternalServerError, "failed to query task", err.Error())
		return
	}

	ctx.JSON(http.StatusOK, result)
}

// Delete 删除任务
func (c *TaskController) Delete(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validateTaskID(ctx, id) {
		return
	}

	deleted, err := c.taskService.DeleteTask(ctx.Request.Context(), id)
	if err != nil {
		Error(ctx, http.StatusInternalServerError, "failed to delete task", err.Error())
		return
	}
	if !deleted {
		Error(ctx, http.StatusNotFound, "task not found", "no task with the given id")
		return
	}

	Success(ctx, nil)
}

// Stats 按状态统计任务数量
func (c *TaskController) Stats(ctx *gin.Context) {
	stats, err := c.taskService.Stats(ctx.Request.Context())
	if err != nil {
		Error(ctx, http.StatusInternalServerError, "failed to query task stats", err.Error())
		return
	}

	Success(ctx, stats)
}
