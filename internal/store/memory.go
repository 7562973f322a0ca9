package store

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zidanDirk/foodsafety/internal/model"
)

// MemoryTTL 内存后端的任务存活时长
const MemoryTTL = time.Hour

// MemoryStore 内存任务存储
// 互斥锁保护的 map,结构上永不失败（但仍可能返回 NotFound）
type MemoryStore struct {
	mu     sync.RWMutex
	tasks  map[string]*model.Task
	ttl    time.Duration
	now    func() time.Time
	logger *logrus.Logger
}

// MemoryOption 内存存储可选配置
type MemoryOption func(*MemoryStore)

// WithClock 注入时钟,用于测试 TTL 过期
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// WithTTL 覆盖默认存活时长
func WithTTL(ttl time.Duration) MemoryOption {
	return func(s *MemoryStore) { s.ttl = ttl }
}

// NewMemoryStore 创建内存任务存储
func NewMemoryStore(logger *logrus.Logger, opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		tasks:  make(map[string]*model.Task),
		ttl:    MemoryTTL,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTask 创建任务
func (s *MemoryStore) CreateTask(ctx context.Context, id string, info model.FileInfo) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

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
	s.tasks[id] = task

	s.logger.WithField("task_id", id).Debug("memory store: task created")
	return task.Clone(), nil
}

// UpdateTask 合并更新任务
func (s *MemoryStore) UpdateTask(ctx context.Context, id string, update TaskUpdate) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}

	if err := applyUpdate(task, update, s.now()); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"task_id":  id,
		"status":   task.Status,
		"progress": task.Progress,
	}).Debug("memory store: task updated")
	return task.Clone(), nil
}

// GetTask 按 ID 获取任务
func (s *MemoryStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return task.Clone(), nil
}

// DeleteTask 删除任务
func (s *MemoryStore) DeleteTask(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return false, nil
	}
	delete(s.tasks, id)
	return true, nil
}

// CleanupExpired 清理超过存活时长的任务
// 仅按创建时间淘汰,与任务状态无关
func (s *MemoryStore) CleanupExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline := s.now().Add(-s.ttl)
	cleaned := 0
	for id, task := range s.tasks {
		if task.CreatedAt.Before(deadline) {
			delete(s.tasks, id)
			cleaned++
		}
	}

	if cleaned > 0 {
		s.logger.WithField("count", cleaned).Info("memory store: expired tasks cleaned")
	}
	return cleaned, nil
}

// Stats 按状态统计任务数量
func (s *MemoryStore) Stats(ctx context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int)
	for _, task := range s.tasks {
		stats[task.Status]++
	}
	return stats, nil
}

// Len 当前任务数量（测试辅助）
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}
