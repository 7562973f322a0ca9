package store

import (
	"context"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/zidanDirk/foodsafety/internal/metrics"
	"github.com/zidanDirk/foodsafety/internal/model"
)

// FailoverStore 双后端任务存储门面
// 持久化后端可用时作为主后端;任一持久化操作发生存储故障时,
// 将同一逻辑操作重放到内存后端,并在进程剩余生命周期内固定使用
// 内存后端（不自动回切）。领域错误（NotFound、终态拒绝等）不触发降级。
type FailoverStore struct {
	primary   TaskStore
	secondary TaskStore
	demoted   atomic.Bool
	logger    *logrus.Logger
}

// NewFailoverStore 创建双后端门面
// primary 为 nil（数据库未配置或启动探测失败）时直接使用内存后端
func NewFailoverStore(primary TaskStore, secondary *MemoryStore, logger *logrus.Logger) *FailoverStore {
	s := &FailoverStore{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
	if primary == nil {
		s.demoted.Store(true)
		logger.Warn("durable backend not available, using in-memory store only")
	}
	return s
}

// UsingMemory 当前是否运行在内存后端上
func (s *FailoverStore) UsingMemory() bool {
	return s.demoted.Load()
}

// demote 降级到内存后端
func (s *FailoverStore) demote(op string, err error) {
	if s.demoted.CompareAndSwap(false, true) {
		s.logger.WithError(err).WithField("operation", op).
			Warn("durable backend failed, falling back to in-memory store for the rest of the process")
		metrics.RecordStoreFailover(op)
	}
}

// CreateTask 创建任务
func (s *FailoverStore) CreateTask(ctx context.Context, id string, info model.FileInfo) (*model.Task, error) {
	if !s.demoted.Load() {
		task, err := s.primary.CreateTask(ctx, id, info)
		if err == nil || IsDomainError(err) {
			return task, err
		}
		s.demote("create", err)
	}
	return s.secondary.CreateTask(ctx, id, info)
}

// UpdateTask 合并更新任务
func (s *FailoverStore) UpdateTask(ctx context.Context, id string, update TaskUpdate) (*model.Task, error) {
	if !s.demoted.Load() {
		task, err := s.primary.UpdateTask(ctx, id, update)
		if err == nil || IsDomainError(err) {
			return task, err
		}
		s.demote("update", err)
	}
	return s.secondary.UpdateTask(ctx, id, update)
}

// GetTask 按 ID 获取任务
func (s *FailoverStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	if !s.demoted.Load() {
		task, err := s.primary.GetTask(ctx, id)
		if err == nil || IsDomainError(err) {
			return task, err
		}
		s.demote("get", err)
	}
	return s.secondary.GetTask(ctx, id)
}

// DeleteTask 删除任务
func (s *FailoverStore) DeleteTask(ctx context.Context, id string) (bool, error) {
	if !s.demoted.Load() {
		deleted, err := s.primary.DeleteTask(ctx, id)
		if err == nil || IsDomainError(err) {
			return deleted, err
		}
		s.demote("delete", err)
	}
	return s.secondary.DeleteTask(ctx, id)
}

// CleanupExpired 清理当前活跃后端中的过期任务
func (s *FailoverStore) CleanupExpired(ctx context.Context) (int, error) {
	if !s.demoted.Load() {
		count, err := s.primary.CleanupExpired(ctx)
		if err == nil || IsDomainError(err) {
			return count, err
		}
		s.demote("cleanup", err)
	}
	return s.secondary.CleanupExpired(ctx)
}

// Stats 按状态统计当前活跃后端中的任务数量
func (s *FailoverStore) Stats(ctx context.Context) (map[string]int, error) {
	if !s.demoted.Load() {
		stats, err := s.primary.Stats(ctx)
		if err == nil || IsDomainError(err) {
			return stats, err
		}
		s.demote("stats", err)
	}
	return s.secondary.Stats(ctx)
}
