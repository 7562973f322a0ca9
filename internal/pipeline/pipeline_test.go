package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zidanDirk/foodsafety/internal/model"
	"github.com/zidanDirk/foodsafety/internal/provider"
	"github.com/zidanDirk/foodsafety/internal/store"
)

// testLogger 测试用静默日志器
func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// newTestTask 创建一个待处理任务
func newTestTask(t *testing.T, s store.TaskStore, id string) {
	t.Helper()
	_, err := s.CreateTask(context.Background(), id, model.FileInfo{
		Name: "label.jpg", Size: 1024, Type: "image/jpeg",
	})
	require.NoError(t, err)
}

// stubOCR 可编程的 OCR 桩
type stubOCR struct {
	result *model.OCRResult
	err    error
}

func (s *stubOCR) ProcessImage(ctx context.Context, image []byte) (*model.OCRResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

// stubAI 可编程的 AI 桩
type stubAI struct {
	analysis *model.HealthAnalysis
	err      error
}

func (s *stubAI) AnalyzeIngredients(ctx context.Context, ingredients []model.Ingredient) (*model.HealthAnalysis, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.analysis, nil
}

func ocrWithIngredients() *stubOCR {
	return &stubOCR{result: &model.OCRResult{
		RawText:    "配料：小麦粉、白砂糖、鸡蛋",
		Confidence: 0.9,
		ExtractedIngredients: model.IngredientList{
			Ingredients: []model.Ingredient{
				{Name: "小麦粉", Position: 1},
				{Name: "白砂糖", Position: 2},
				{Name: "鸡蛋", Position: 3},
			},
			HasIngredients:       true,
			ExtractionConfidence: 0.6,
		},
	}}
}

func healthAnalysis() *model.HealthAnalysis {
	return &model.HealthAnalysis{
		OverallScore: 6,
		IngredientScores: []model.IngredientScore{
			{Ingredient: "小麦粉", Score: 7},
			{Ingredient: "白砂糖", Score: 3},
			{Ingredient: "鸡蛋", Score: 8},
		},
		AnalysisReport:  "中等健康",
		Recommendations: "适量食用",
	}
}

// TestPipelineCompletes 测试完整的成功路径
func TestPipelineCompletes(t *testing.T) {
	s := store.NewMemoryStore(testLogger())
	newTestTask(t, s, "task_1")

	o := NewOrchestrator(s, ocrWithIngredients(), &stubAI{analysis: healthAnalysis()}, testLogger())
	o.Process(context.Background(), "task_1", []byte("image"))

	task, err := s.GetTask(context.Background(), "task_1")
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, task.Status)
	assert.Equal(t, 100, task.Progress)
	assert.Equal(t, "分析完成", task.ProcessingStep)
	require.NotNil(t, task.OCRResult)
	require.NotNil(t, task.AIResult)
	assert.Equal(t, 6, task.AIResult.OverallScore)
	assert.NotNil(t, task.CompletedAt)
}

// TestPipelineNoIngredients 测试未识别到配料时任务失败
func TestPipelineNoIngredients(t *testing.T) {
	s := store.NewMemoryStore(testLogger())
	newTestTask(t, s, "task_1")

	ocr := &stubOCR{result: &model.OCRResult{
		RawText:              "净含量：500克",
		Confidence:           0.9,
		ExtractedIngredients: model.IngredientList{Ingredients: []model.Ingredient{}},
	}}
	o := NewOrchestrator(s, ocr, &stubAI{analysis: healthAnalysis()}, testLogger())
	o.Process(context.Background(), "task_1", []byte("image"))

	task, err := s.GetTask(context.Background(), "task_1")
	require.NoError(t, err)

	assert.Equal(t, model.StatusFailed, task.Status)
	assert.Equal(t, 0, task.Progress)
	assert.Equal(t, "未能从图片中识别到配料信息,请确保图片清晰且包含配料表", task.ErrorMessage)
	// OCR 结果在失败前已经落库
	assert.NotNil(t, task.OCRResult)
	assert.Nil(t, task.AIResult)
}

// TestPipelineOCRError 测试 OCR 硬失败时任务失败
func TestPipelineOCRError(t *testing.T) {
	s := store.NewMemoryStore(testLogger())
	newTestTask(t, s, "task_1")

	o := NewOrchestrator(s, &stubOCR{err: errors.New("deadline exceeded")},
		&stubAI{analysis: healthAnalysis()}, testLogger())
	o.Process(context.Background(), "task_1", []byte("image"))

	task, err := s.GetTask(context.Background(), "task_1")
	require.NoError(t, err)

	assert.Equal(t, model.StatusFailed, task.Status)
	assert.Contains(t, task.ErrorMessage, "OCR识别失败")
}

// TestPipelineAIError 测试 AI 硬失败时任务失败
func TestPipelineAIError(t *testing.T) {
	s := store.NewMemoryStore(testLogger())
	newTestTask(t, s, "task_1")

	o := NewOrchestrator(s, ocrWithIngredients(),
		&stubAI{err: errors.New("deadline exceeded")}, testLogger())
	o.Process(context.Background(), "task_1", []byte("image"))

	task, err := s.GetTask(context.Background(), "task_1")
	require.NoError(t, err)

	assert.Equal(t, model.StatusFailed, task.Status)
	assert.Contains(t, task.ErrorMessage, "AI分析失败")
	// OCR 结果保留
	assert.NotNil(t, task.OCRResult)
}

// panicOCR 模拟未捕获异常
type panicOCR struct{}

func (panicOCR) ProcessImage(ctx context.Context, image []byte) (*model.OCRResult, error) {
	panic("unexpected")
}

// TestPipelinePanicRecovery 测试 panic 被兜底转为失败终态
func TestPipelinePanicRecovery(t *testing.T) {
	s := store.NewMemoryStore(testLogger())
	newTestTask(t, s, "task_1")

	o := NewOrchestrator(s, panicOCR{}, &stubAI{analysis: healthAnalysis()}, testLogger())
	require.NotPanics(t, func() {
		o.Process(context.Background(), "task_1", []byte("image"))
	})

	task, err := s.GetTask(context.Background(), "task_1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, task.Status)
}

// recordingStore 记录每次更新后的进度,用于校验进度单调递增
type recordingStore struct {
	store.TaskStore
	mu       sync.Mutex
	progress []int
}

func (r *recordingStore) UpdateTask(ctx context.Context, id string, update store.TaskUpdate) (*model.Task, error) {
	task, err := r.TaskStore.UpdateTask(ctx, id, update)
	if err == nil {
		r.mu.Lock()
		r.progress = append(r.progress, task.Progress)
		r.mu.Unlock()
	}
	return task, err
}

// TestPipelineProgressMonotonic 测试成功路径的进度检查点序列
func TestPipelineProgressMonotonic(t *testing.T) {
	inner := store.NewMemoryStore(testLogger())
	s := &recordingStore{TaskStore: inner}
	newTestTask(t, s, "task_1")

	o := NewOrchestrator(s, ocrWithIngredients(), &stubAI{analysis: healthAnalysis()}, testLogger())
	o.Process(context.Background(), "task_1", []byte("image"))

	assert.Equal(t, []int{10, 30, 60, 80, 100}, s.progress)
}

// TestRunnerDispatch 测试任务派发到工作池执行
func TestRunnerDispatch(t *testing.T) {
	s := store.NewMemoryStore(testLogger())
	newTestTask(t, s, "task_1")

	o := NewOrchestrator(s, ocrWithIngredients(), &stubAI{analysis: healthAnalysis()}, testLogger())
	runner, err := NewRunner(o, 4, time.Minute, testLogger())
	require.NoError(t, err)
	defer runner.Release()

	runner.Dispatch("task_1", []byte("image"))

	// 等待异步处理完成
	require.Eventually(t, func() bool {
		task, err := s.GetTask(context.Background(), "task_1")
		return err == nil && task.Status == model.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

var (
	_ provider.OCRProvider = (*stubOCR)(nil)
	_ provider.AIProvider  = (*stubAI)(nil)
)
