// Package pipeline 图片分析流水线编排器
// 驱动单个任务按序完成 OCR 提取、配料解析、健康度分析与落库,
// 每个阶段结束后写入一次进度检查点供客户端轮询
package pipeline

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/zidanDirk/foodsafety/internal/metrics"
	"github.com/zidanDirk/foodsafety/internal/model"
	"github.com/zidanDirk/foodsafety/internal/provider"
	"github.com/zidanDirk/foodsafety/internal/store"
)

// 各检查点的进度值与步骤描述
const (
	progressPreparing  = 10
	progressExtracting = 30
	progressExtracted  = 60
	progressAnalyzing  = 80
	progressCompleted  = 100

	stepPreparing  = "准备处理图片"
	stepExtracting = "OCR文字识别中"
	stepExtracted  = "OCR识别完成"
	stepAnalyzing  = "AI健康度分析中"
	stepCompleted  = "分析完成"
	stepFailed     = "处理失败"
)

// errNoIngredients 图片中未识别到配料信息
// 与提供方故障区分开,让调用方能分辨"看不到配料表"和"服务不可用"
const errNoIngredients = "未能从图片中识别到配料信息,请确保图片清晰且包含配料表"

// Orchestrator 流水线编排器
// 每个任务 ID 只会被调用一次,阶段内部不做整段重试
// （提供方适配器自带降级策略）
type Orchestrator struct {
	store  store.TaskStore
	ocr    provider.OCRProvider
	ai     provider.AIProvider
	logger *logrus.Logger
}

// NewOrchestrator 创建流水线编排器
func NewOrchestrator(taskStore store.TaskStore, ocr provider.OCRProvider, ai provider.AIProvider, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		store:  taskStore,
		ocr:    ocr,
		ai:     ai,
		logger: logger,
	}
}

// Process 执行单个任务的完整处理流程
// 任何阶段失败都会把任务转入 failed 终态,绝不把任务留在 processing
func (o *Orchestrator) Process(ctx context.Context, taskID string, image []byte) {
	log := o.logger.WithField("task_id", taskID)

	// 顶层兜底:未捕获的 panic 一律转为 failed 终态
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("pipeline panicked")
			o.fail(taskID, "处理失败")
		}
	}()

	log.Info("pipeline started")

	// 检查点 1:进入处理状态
	if err := o.checkpoint(ctx, taskID, store.TaskUpdate{
		Status:         store.StringPtr(model.StatusProcessing),
		Progress:       store.IntPtr(progressPreparing),
		ProcessingStep: store.StringPtr(stepPreparing),
	}); err != nil {
		log.WithError(err).Error("failed to mark task processing")
		o.fail(taskID, "处理失败")
		return
	}

	// 检查点 2:OCR 识别中
	if err := o.checkpoint(ctx, taskID, store.TaskUpdate{
		Progress:       store.IntPtr(progressExtracting),
		ProcessingStep: store.StringPtr(stepExtracting),
	}); err != nil {
		log.WithError(err).Error("failed to advance task to extracting")
		o.fail(taskID, "处理失败")
		return
	}

	ocrResult, err := o.ocr.ProcessImage(ctx, image)
	if err != nil {
		log.WithError(err).Warn("OCR extraction failed")
		o.fail(taskID, fmt.Sprintf("OCR识别失败: %v", err))
		return
	}

	// 检查点 3:保存 OCR 结果
	if err := o.checkpoint(ctx, taskID, store.TaskUpdate{
		Progress:       store.IntPtr(progressExtracted),
		ProcessingStep: store.StringPtr(stepExtracted),
		OCRResult:      ocrResult,
	}); err != nil {
		log.WithError(err).Error("failed to persist OCR result")
		o.fail(taskID, "处理失败")
		return
	}

	// 未提取到配料:领域性失败,与提供方故障使用不同的错误消息
	if !ocrResult.ExtractedIngredients.HasIngredients ||
		len(ocrResult.ExtractedIngredients.Ingredients) == 0 {
		log.Warn("no ingredients extracted from image")
		o.fail(taskID, errNoIngredients)
		return
	}

	// 检查点 4:AI 分析中
	if err := o.checkpoint(ctx, taskID, store.TaskUpdate{
		Progress:       store.IntPtr(progressAnalyzing),
		ProcessingStep: store.StringPtr(stepAnalyzing),
	}); err != nil {
		log.WithError(err).Error("failed to advance task to analyzing")
		o.fail(taskID, "处理失败")
		return
	}

	analysis, err := o.ai.AnalyzeIngredients(ctx, ocrResult.ExtractedIngredients.Ingredients)
	if err != nil {
		log.WithError(err).Warn("AI analysis failed")
		o.fail(taskID, fmt.Sprintf("AI分析失败: %v", err))
		return
	}

	// 检查点 5:完成
	if err := o.checkpoint(ctx, taskID, store.TaskUpdate{
		Status:         store.StringPtr(model.StatusCompleted),
		Progress:       store.IntPtr(progressCompleted),
		ProcessingStep: store.StringPtr(stepCompleted),
		AIResult:       analysis,
	}); err != nil {
		log.WithError(err).Error("failed to complete task")
		o.fail(taskID, "处理失败")
		return
	}

	metrics.RecordPipelineRun(model.StatusCompleted)
	log.Info("pipeline completed")
}

// checkpoint 写入一次进度检查点
func (o *Orchestrator) checkpoint(ctx context.Context, taskID string, update store.TaskUpdate) error {
	_, err := o.store.UpdateTask(ctx, taskID, update)
	return err
}

// fail 将任务转入 failed 终态
// 使用不受调用方取消影响的上下文,保证失败状态一定能落库
func (o *Orchestrator) fail(taskID string, message string) {
	_, err := o.store.UpdateTask(context.Background(), taskID, store.TaskUpdate{
		Status:         store.StringPtr(model.StatusFailed),
		Progress:       store.IntPtr(0),
		ProcessingStep: store.StringPtr(stepFailed),
		ErrorMessage:   store.StringPtr(message),
	})
	if err != nil && !store.IsDomainError(err) {
		o.logger.WithError(err).WithField("task_id", taskID).
			Error("failed to record task failure")
	}
	metrics.RecordPipelineRun(model.StatusFailed)
}
