package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zidanDirk/foodsafety/internal/config"
	"github.com/zidanDirk/foodsafety/internal/model"
	"github.com/zidanDirk/foodsafety/internal/pipeline"
	"github.com/zidanDirk/foodsafety/internal/provider"
	"github.com/zidanDirk/foodsafety/internal/store"
	"github.com/zidanDirk/foodsafety/internal/utils"
)

// testLogger 测试用静默日志器
func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// newTestService 组装一个使用内存存储和降级提供方的任务服务
// 两个提供方都未配置凭据,流水线走确定性的降级路径
func newTestService(t *testing.T) (TaskService, *store.MemoryStore) {
	t.Helper()

	memStore := store.NewMemoryStore(testLogger())
	ocr := provider.NewOCRClient(config.OCRConfig{}, testLogger())
	ai := provider.NewAIClient(config.AIConfig{}, testLogger())
	orchestrator := pipeline.NewOrchestrator(memStore, ocr, ai, testLogger())

	runner, err := pipeline.NewRunner(orchestrator, 2, time.Minute, testLogger())
	require.NoError(t, err)
	t.Cleanup(runner.Release)

	upload := config.Default().Upload
	return NewTaskService(memStore, runner, upload, testLogger()), memStore
}

func validRequest() *CreateTaskRequest {
	return &CreateTaskRequest{
		FileName: "label.jpg",
		FileSize: 2048,
		MIMEType: "image/jpeg",
		Image:    []byte("fake image"),
	}
}

// TestCreateTaskValidation 测试校验失败时不创建任务
func TestCreateTaskValidation(t *testing.T) {
	svc, memStore := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  *CreateTaskRequest
		want *utils.ValidationError
	}{
		{"empty file", &CreateTaskRequest{FileName: "a.jpg", FileSize: 0, MIMEType: "image/jpeg"}, utils.ErrEmptyFile},
		{"oversized file", &CreateTaskRequest{FileName: "a.jpg", FileSize: 9 * 1024 * 1024, MIMEType: "image/jpeg"}, utils.ErrFileTooLarge},
		{"bad mime type", &CreateTaskRequest{FileName: "a.pdf", FileSize: 1024, MIMEType: "application/pdf"}, utils.ErrBadMIMEType},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateTask(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	// 校验失败不留下任何任务记录
	assert.Equal(t, 0, memStore.Len())
}

// TestCreateTaskEndToEnd 测试任务创建后异步完成
func TestCreateTaskEndToEnd(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, validRequest())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(task.ID, "task_"))
	assert.Equal(t, model.StatusPending, task.Status)

	// 降级提供方是确定性的,任务最终一定完成
	require.Eventually(t, func() bool {
		result, err := svc.GetTaskResult(ctx, task.ID)
		return err == nil && result.Status == model.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	result, err := svc.GetTaskResult(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, result.Progress)
	assert.Empty(t, result.Error)
	require.NotNil(t, result.CompletedAt)
	require.NotNil(t, result.Result)
	assert.NotNil(t, result.Result.OCRData)
	assert.NotNil(t, result.Result.HealthAnalysis)
	assert.GreaterOrEqual(t, result.Result.HealthAnalysis.OverallScore, 1)
	assert.LessOrEqual(t, result.Result.HealthAnalysis.OverallScore, 10)
}

// TestGetTaskResultShape 测试不同状态下响应字段的出现规则
func TestGetTaskResultShape(t *testing.T) {
	memStore := store.NewMemoryStore(testLogger())
	ocr := provider.NewOCRClient(config.OCRConfig{}, testLogger())
	ai := provider.NewAIClient(config.AIConfig{}, testLogger())
	orchestrator := pipeline.NewOrchestrator(memStore, ocr, ai, testLogger())
	runner, err := pipeline.NewRunner(orchestrator, 2, time.Minute, testLogger())
	require.NoError(t, err)
	t.Cleanup(runner.Release)
	svc := NewTaskService(memStore, runner, config.Default().Upload, testLogger())
	ctx := context.Background()

	// 处理中的任务:无 error、无 completedAt、无 result
	_, err = memStore.CreateTask(ctx, "task_pending", model.FileInfo{Name: "a.jpg", Size: 1, Type: "image/jpeg"})
	require.NoError(t, err)
	result, err := svc.GetTaskResult(ctx, "task_pending")
	require.NoError(t, err)
	assert.Empty(t, result.Error)
	assert.Nil(t, result.CompletedAt)
	assert.Nil(t, result.Result)

	// 失败的任务:仅 error 出现
	_, err = memStore.CreateTask(ctx, "task_failed", model.FileInfo{Name: "a.jpg", Size: 1, Type: "image/jpeg"})
	require.NoError(t, err)
	_, err = memStore.UpdateTask(ctx, "task_failed", store.TaskUpdate{
		Status: store.StringPtr(model.StatusProcessing),
	})
	require.NoError(t, err)
	_, err = memStore.UpdateTask(ctx, "task_failed", store.TaskUpdate{
		Status:       store.StringPtr(model.StatusFailed),
		ErrorMessage: store.StringPtr("OCR识别失败"),
	})
	require.NoError(t, err)

	result, err = svc.GetTaskResult(ctx, "task_failed")
	require.NoError(t, err)
	assert.Equal(t, "OCR识别失败", result.Error)
	assert.Nil(t, result.Result)

	// 不存在的任务
	_, err = svc.GetTaskResult(ctx, "task_missing")
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

// TestDeleteTask 测试删除语义透传
func TestDeleteTask(t *testing.T) {
	svc, memStore := newTestService(t)
	ctx := context.Background()

	_, err := memStore.CreateTask(ctx, "task_1", model.FileInfo{Name: "a.jpg", Size: 1, Type: "image/jpeg"})
	require.NoError(t, err)

	deleted, err := svc.DeleteTask(ctx, "task_1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = svc.DeleteTask(ctx, "task_1")
	require.NoError(t, err)
	assert.False(t, deleted)
}
