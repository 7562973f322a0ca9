// Package store 任务存储层
// 提供统一的任务 CRUD 契约,由数据库后端与内存后端双实现,
// 外加一个自动降级的双后端门面
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zidanDirk/foodsafety/internal/model"
)

var (
	// ErrTaskNotFound 任务不存在
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskFinalized 任务已进入终态,拒绝后续变更
	ErrTaskFinalized = errors.New("task is in terminal state")
	// ErrInvalidTransition 非法的状态迁移
	ErrInvalidTransition = errors.New("invalid status transition")
)

// TaskStore 任务存储契约
type TaskStore interface {
	CreateTask(ctx context.Context, id string, info model.FileInfo) (*model.Task, error)
	UpdateTask(ctx context.Context, id string, update TaskUpdate) (*model.Task, error)
	GetTask(ctx context.Context, id string) (*model.Task, error)
	DeleteTask(ctx context.Context, id string) (bool, error)
	CleanupExpired(ctx context.Context) (int, error)
	Stats(ctx context.Context) (map[string]int, error)
}

// TaskUpdate 任务部分更新
// 仅非 nil 字段会被写入,其余字段保持原值
type TaskUpdate struct {
	Status         *string
	Progress       *int
	ProcessingStep *string
	OCRResult      *model.OCRResult
	AIResult       *model.HealthAnalysis
	ErrorMessage   *string
}

// String 便于日志输出
func (u TaskUpdate) String() string {
	s := "{"
	if u.Status != nil {
		s += fmt.Sprintf("status=%s ", *u.Status)
	}
	if u.Progress != nil {
		s += fmt.Sprintf("progress=%d ", *u.Progress)
	}
	if u.ProcessingStep != nil {
		s += fmt.Sprintf("step=%s ", *u.ProcessingStep)
	}
	return s + "}"
}

// applyUpdate 将部分更新合并到任务上
// 两个后端共用同一套合并规则,保证语义一致:
//   - 终态任务拒绝一切变更
//   - 状态迁移必须符合 pending -> processing -> {completed, failed}
//   - ocr_result / ai_result 只写一次,已有值不被替换
//   - completed 由服务端补记 completed_at 并强制 progress=100
//   - failed 强制 progress=0
//   - updated_at 每次变更都会刷新
func applyUpdate(task *model.Task, update TaskUpdate, now time.Time) error {
	if task.IsTerminal() {
		return ErrTaskFinalized
	}

	if update.Status != nil && *update.Status != task.Status {
		if !model.ValidStatus(*update.Status) {
			return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, *update.Status)
		}
		if !model.CanTransition(task.Status, *update.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, task.Status, *update.Status)
		}
		task.Status = *update.Status
	}

	if update.Progress != nil {
		task.Progress = *update.Progress
	}
	if update.ProcessingStep != nil {
		task.ProcessingStep = *update.ProcessingStep
	}
	if update.OCRResult != nil && task.OCRResult == nil {
		task.OCRResult = update.OCRResult
	}
	if update.AIResult != nil && task.AIResult == nil {
		task.AIResult = update.AIResult
	}
	if update.ErrorMessage != nil {
		task.ErrorMessage = *update.ErrorMessage
	}

	switch task.Status {
	case model.StatusCompleted:
		task.Progress = 100
		if task.CompletedAt == nil {
			ts := now
			task.CompletedAt = &ts
		}
	case model.StatusFailed:
		task.Progress = 0
	}

	task.UpdatedAt = now
	return nil
}

// IsDomainError 判断是否为领域错误（而非存储故障）
// 领域错误不触发后端降级
func IsDomainError(err error) bool {
	return errors.Is(err, ErrTaskNotFound) ||
		errors.Is(err, ErrTaskFinalized) ||
		errors.Is(err, ErrInvalidTransition)
}

// 辅助构造函数,便于组装部分更新

// StringPtr 返回字符串指针
func StringPtr(s string) *string { return &s }

// IntPtr 返回整型指针
func IntPtr(i int) *int { return &i }
