package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/zidanDirk/foodsafety/internal/config"
	"github.com/zidanDirk/foodsafety/internal/metrics"
	"github.com/zidanDirk/foodsafety/internal/model"
	"github.com/zidanDirk/foodsafety/internal/pipeline"
	"github.com/zidanDirk/foodsafety/internal/store"
	"github.com/zidanDirk/foodsafety/internal/utils"
)

// TaskService 任务服务接口
type TaskService interface {
	CreateTask(ctx context.Context, req *CreateTaskRequest) (*model.Task, error)
	GetTaskResult(ctx context.Context, id string) (*TaskResult, error)
	DeleteTask(ctx context.Context, id string) (bool, error)
	Stats(ctx context.Context) (map[string]int, error)
}

// CreateTaskRequest 创建任务请求
type CreateTaskRequest struct {
	FileName string // 上传文件名
	FileSize int64  // 文件体积,字节
	MIMEType string // 声明的图片类型
	Image    []byte // 图片内容
}

// TaskResult 任务状态响应
// 返回给轮询方的字面结构
type TaskResult struct {
	TaskID         string          `json:"taskId"`
	Status         string          `json:"status"`
	Progress       int             `json:"progress"`
	ProcessingStep string          `json:"processingStep"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	Error          string          `json:"error,omitempty"`
	CompletedAt    *time.Time      `json:"completedAt,omitempty"`
	Result         *TaskResultData `json:"result,omitempty"`
}

// TaskResultData 任务完成后的完整结果
type TaskResultData struct {
	OCRData        *model.OCRResult      `json:"ocrData"`
	HealthAnalysis *model.HealthAnalysis `json:"healthAnalysis"`
}

type taskService struct {
	store  store.TaskStore
	runner *pipeline.Runner
	upload config.UploadConfig
	logger *logrus.Logger
}

// NewTaskService 创建任务服务
func NewTaskService(taskStore store.TaskStore, runner *pipeline.Runner, upload config.UploadConfig, logger *logrus.Logger) TaskService {
	return &taskService{
		store:  taskStore,
		runner: runner,
		upload: upload,
		logger: logger,
	}
}

// CreateTask 创建任务并调度流水线
// 上传约束在创建任务之前校验,校验失败不会留下任何任务记录;
// 流水线为 fire-and-forget,本方法立即返回任务 ID 供轮询
func (s *taskService) CreateTask(ctx context.Context, req *CreateTaskRequest) (*model.Task, error) {
	if err := utils.ValidateUpload(req.FileSize, req.MIMEType, s.upload.MaxFileSize, s.upload.MIMETypes); err != nil {
		return nil, err
	}

	id := fmt.Sprintf("task_%s", uuid.NewString())
	info := model.FileInfo{
		Name: req.FileName,
		Size: req.FileSize,
		Type: req.MIMEType,
	}

	task, err := s.store.CreateTask(ctx, id, info)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	metrics.RecordTaskCreated()
	s.logger.WithFields(logrus.Fields{
		"task_id": id,
		"file":    req.FileName,
		"size":    utils.FormatFileSize(req.FileSize),
	}).Info("task created")

	s.runner.Dispatch(id, req.Image)
	return task, nil
}

// GetTaskResult 获取任务状态响应
// error 字段仅在 failed 时出现,completedAt 与 result 仅在 completed 时出现
func (s *taskService) GetTaskResult(ctx context.Context, id string) (*TaskResult, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &TaskResult{
		TaskID:         task.ID,
		Status:         task.Status,
		Progress:       task.Progress,
		ProcessingStep: task.ProcessingStep,
		CreatedAt:      task.CreatedAt,
		UpdatedAt:      task.UpdatedAt,
	}

	if task.Status == model.StatusFailed && task.ErrorMessage != "" {
		result.Error = task.ErrorMessage
	}

	if task.Status == model.StatusCompleted && task.OCRResult != nil && task.AIResult != nil {
		result.CompletedAt = task.CompletedAt
		result.Result = &TaskResultData{
			OCRData:        task.OCRResult,
			HealthAnalysis: task.AIResult,
		}
	}

	return result, nil
}

// DeleteTask 删除任务
func (s *taskService) DeleteTask(ctx context.Context, id string) (bool, error) {
	return s.store.DeleteTask(ctx, id)
}

// Stats 按状态统计任务数量
func (s *taskService) Stats(ctx context.Context) (map[string]int, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	metrics.SetTasksByStatus(stats)
	return stats, nil
}
