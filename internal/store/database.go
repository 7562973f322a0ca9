package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zidanDirk/foodsafety/internal/model"
	"gorm.io/gorm"
)

// DatabaseTTL 数据库后端的任务存活时长
const DatabaseTTL = 24 * time.Hour

// DatabaseStore 数据库任务存储（持久化后端）
type DatabaseStore struct {
	db     *gorm.DB
	ttl    time.Duration
	now    func() time.Time
	logger *logrus.Logger
}

// DatabaseOption 数据库存储可选配置
type DatabaseOption func(*DatabaseStore)

// WithDatabaseClock 注入时钟,用于测试 TTL 过期
func WithDatabaseClock(now func() time.Time) DatabaseOption {
	return func(s *DatabaseStore) { s.now = now }
}

// WithDatabaseTTL 覆盖默认存活时长
func WithDatabaseTTL(ttl time.Duration) DatabaseOption {
	return func(s *DatabaseStore) { s.ttl = ttl }
}

// NewDatabaseStore 创建数据库任务存储
func NewDatabaseStore(db *gorm.DB, logger *logrus.Logger, opts ...DatabaseOption) *DatabaseStore {
	s := &DatabaseStore{
		db:     db,
		ttl:    DatabaseTTL,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTask 创建任务
func (s *DatabaseStore) CreateTask(ctx context.Context, id string, info model.FileInfo) (*model.Task, error) {
	now := s.now()
	task := &model.Task{
		ID:             id,
		Status:         model.StatusPending,
		Progress:       0,
		ProcessingStep: "created",
		FileInfo:       &info,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.db.WithContext(ctx).Create(task).Error; err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.logger.WithField("task_id", id).Debug("database store: task created")
	return task, nil
}

// UpdateTask 合并更新任务
// 读取-合并-写回在单个事务内完成,保证单任务内写入有序
func (s *DatabaseStore) UpdateTask(ctx context.Context, id string, update TaskUpdate) (*model.Task, error) {
	var task model.Task

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&task).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTaskNotFound
			}
			return fmt.Errorf("failed to load task: %w", err)
		}

		if err := applyUpdate(&task, update, s.now()); err != nil {
			return err
		}

		if err := tx.Save(&task).Error; err != nil {
			return fmt.Errorf("failed to save task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"task_id":  id,
		"status":   task.Status,
		"progress": task.Progress,
	}).Debug("database store: task updated")
	return &task, nil
}

// GetTask 按 ID 获取任务
func (s *DatabaseStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	return &task, nil
}

// DeleteTask 删除任务
func (s *DatabaseStore) DeleteTask(ctx context.Context, id string) (bool, error) {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Task{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete task: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// CleanupExpired 清理超过存活时长的任务
// 仅按创建时间淘汰,与任务状态无关
func (s *DatabaseStore) CleanupExpired(ctx context.Context) (int, error) {
	deadline := s.now().Add(-s.ttl)
	result := s.db.WithContext(ctx).Where("created_at < ?", deadline).Delete(&model.Task{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to cleanup expired tasks: %w", result.Error)
	}

	cleaned := int(result.RowsAffected)
	if cleaned > 0 {
		s.logger.WithField("count", cleaned).Info("database store: expired tasks cleaned")
	}
	return cleaned, nil
}

// Stats 按状态统计最近 24 小时内创建的任务数量
func (s *DatabaseStore) Stats(ctx context.Context) (map[string]int, error) {
	type row struct {
		Status string
		Count  int
	}

	var rows []row
	err := s.db.WithContext(ctx).
		Model(&model.Task{}).
		Select("status, count(*) as count").
		Where("created_at > ?", s.now().Add(-24*time.Hour)).
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query task stats: %w", err)
	}

	stats := make(map[string]int, len(rows))
	for _, r := range rows {
		stats[r.Status] = r.Count
	}
	return stats, nil
}

// Ping 探测数据库连通性
func (s *DatabaseStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}
