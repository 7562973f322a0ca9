package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zidanDirk/foodsafety/internal/config"
	"github.com/zidanDirk/foodsafety/internal/model"
	"github.com/zidanDirk/foodsafety/internal/pipeline"
	"github.com/zidanDirk/foodsafety/internal/provider"
	"github.com/zidanDirk/foodsafety/internal/service"
	"github.com/zidanDirk/foodsafety/internal/store"
)

// testLogger 测试用静默日志器
func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// setupTestRouter 组装一个纯内存模式的完整路由
func setupTestRouter(t *testing.T) (*gin.Engine, *store.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	logger := testLogger()

	memStore := store.NewMemoryStore(logger)
	taskStore := store.NewFailoverStore(nil, memStore, logger)
	ocr := provider.NewOCRClient(cfg.OCR, logger)
	ai := provider.NewAIClient(cfg.AI, logger)
	orchestrator := pipeline.NewOrchestrator(taskStore, ocr, ai, logger)

	runner, err := pipeline.NewRunner(orchestrator, 2, time.Minute, logger)
	require.NoError(t, err)
	t.Cleanup(runner.Release)

	taskService := service.NewTaskService(taskStore, runner, cfg.Upload, logger)
	healthController := NewHealthController(nil, taskStore, cfg)

	return SetupRoutes(cfg, logger, taskService, healthController), memStore
}

// uploadRequest 构造 multipart 上传请求
func uploadRequest(t *testing.T, field, filename, contentType string, data []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// TestUploadCreatesTask 测试上传接口创建任务并返回任务 ID
func TestUploadCreatesTask(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "image", "label.jpg", "image/jpeg", []byte("fake image data")))

	require.Equal(t, http.StatusOK, w.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Code)

	data := resp.Data.(map[string]any)
	taskID := data["taskId"].(string)
	assert.NotEmpty(t, taskID)
	assert.Contains(t, data["message"], "文件上传成功")
}

// TestUploadRejectsBadMIMEType 测试非图片类型被拒绝
func TestUploadRejectsBadMIMEType(t *testing.T) {
	router, memStore := setupTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "image", "doc.pdf", "application/pdf", []byte("%PDF-1.4")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	// 校验失败不留下任务记录
	assert.Equal(t, 0, memStore.Len())
}

// TestUploadRequiresImageField 测试缺少文件字段的请求
func TestUploadRequiresImageField(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "file", "label.jpg", "image/jpeg", []byte("fake")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestStatusEndpoint 测试状态查询返回字面结构
func TestStatusEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "image", "label.jpg", "image/jpeg", []byte("fake image")))
	require.Equal(t, http.StatusOK, w.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	taskID := resp.Data.(map[string]any)["taskId"].(string)

	// 轮询直到任务完成（降级提供方是确定性的）
	require.Eventually(t, func() bool {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/tasks/"+taskID, nil))
		if w.Code != http.StatusOK {
			return false
		}
		var result service.TaskResult
		if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
			return false
		}
		return result.Status == model.StatusCompleted
	}, 2*time.Second, 20*time.Millisecond)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/tasks/"+taskID, nil))

	var result service.TaskResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, taskID, result.TaskID)
	assert.Equal(t, 100, result.Progress)
	require.NotNil(t, result.Result)
	assert.NotNil(t, result.Result.OCRData)
	assert.NotNil(t, result.Result.HealthAnalysis)
}

// TestStatusNotFound 测试查询不存在的任务
func TestStatusNotFound(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/tasks/task_missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestStatusRejectsMalformedID 测试非法任务 ID 被拒绝
func TestStatusRejectsMalformedID(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/tasks/bad%20id", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestDeleteEndpoint 测试删除接口
func TestDeleteEndpoint(t *testing.T) {
	router, memStore := setupTestRouter(t)

	_, err := memStore.CreateTask(context.Background(), "task_1",
		model.FileInfo{Name: "a.jpg", Size: 1, Type: "image/jpeg"})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/tasks/task_1", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/tasks/task_1", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestStatsEndpoint 测试统计接口不与 :id 路由冲突
func TestStatsEndpoint(t *testing.T) {
	router, memStore := setupTestRouter(t)

	_, err := memStore.CreateTask(context.Background(), "task_1",
		model.FileInfo{Name: "a.jpg", Size: 1, Type: "image/jpeg"})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/tasks/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	stats := resp.Data.(map[string]any)
	assert.Equal(t, float64(1), stats[model.StatusPending])
}

// TestHealthEndpointMemoryMode 测试纯内存模式下的健康检查
func TestHealthEndpointMemoryMode(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	// 数据库未配置属于正常的内存模式,不算不健康
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "memory")
}

// TestNoRouteReturnsJSON 测试未匹配路由返回 JSON 404
func TestNoRouteReturnsJSON(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
}
