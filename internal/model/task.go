package model

import (
	"errors"
	"time"
)

// 任务状态常量
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Task 任务数据模型
// 一次图片分析作业的唯一持久化实体
type Task struct {
	ID             string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Status         string          `gorm:"type:varchar(32);not null;default:pending;index" json:"status"`
	Progress       int             `gorm:"type:int;not null;default:0" json:"progress"`
	ProcessingStep string          `gorm:"type:varchar(255);not null;default:created" json:"processing_step"`
	FileInfo       *FileInfo       `gorm:"type:jsonb" json:"file_info,omitempty"`
	OCRResult      *OCRResult      `gorm:"type:jsonb" json:"ocr_result,omitempty"`
	AIResult       *HealthAnalysis `gorm:"type:jsonb" json:"ai_result,omitempty"`
	ErrorMessage   string          `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt      time.Time       `gorm:"not null;index" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null" json:"updated_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

// TableName 指定表名
func (Task) TableName() string {
	return "tasks"
}

// IsTerminal 判断任务是否处于终态
// completed 和 failed 为终态,之后不允许任何字段变更
func (t *Task) IsTerminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// Validate 验证任务模型
func (t *Task) Validate() error {
	if t.ID == "" {
		return errors.New("task ID is required")
	}
	if !ValidStatus(t.Status) {
		return errors.New("invalid task status: " + t.Status)
	}
	if t.Progress < 0 || t.Progress > 100 {
		return errors.New("task progress must be between 0 and 100")
	}
	return nil
}

// ValidStatus 判断状态取值是否合法
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// CanTransition 判断状态迁移是否合法
// 状态机为无环有向图: pending -> processing -> {completed, failed}
func CanTransition(from, to string) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing || to == StatusFailed
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	}
	return false
}

// Clone 返回任务的深拷贝
// 内存后端对外返回拷贝,避免调用方改写存储内部状态
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	cp := *t
	if t.FileInfo != nil {
		fi := *t.FileInfo
		cp.FileInfo = &fi
	}
	if t.OCRResult != nil {
		ocr := *t.OCRResult
		ocr.ExtractedIngredients.Ingredients = append([]Ingredient(nil), t.OCRResult.ExtractedIngredients.Ingredients...)
		cp.OCRResult = &ocr
	}
	if t.AIResult != nil {
		ai := *t.AIResult
		ai.IngredientScores = append([]IngredientScore(nil), t.AIResult.IngredientScores...)
		cp.AIResult = &ai
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		cp.CompletedAt = &ts
	}
	return &cp
}
