package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zidanDirk/foodsafety/internal/metrics"
	"github.com/zidanDirk/foodsafety/internal/store"
)

// DefaultCleanupInterval 默认清理扫描间隔
const DefaultCleanupInterval = 30 * time.Minute

// CleanupWorker 过期任务清理器
// 固定周期扫描当前活跃后端,删除超过存活时长的任务。
// 淘汰只看创建时间,与任务状态无关:一个卡死在 processing 的
// 旧任务同样会被回收
type CleanupWorker struct {
	store    store.TaskStore
	interval time.Duration
	logger   *logrus.Logger
}

// NewCleanupWorker 创建清理器
func NewCleanupWorker(taskStore store.TaskStore, interval time.Duration, logger *logrus.Logger) *CleanupWorker {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	return &CleanupWorker{
		store:    taskStore,
		interval: interval,
		logger:   logger,
	}
}

// Start 启动后台清理循环,直到上下文取消
func (w *CleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.WithField("interval", w.interval.String()).Info("cleanup worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce 执行一轮清理
func (w *CleanupWorker) RunOnce(ctx context.Context) int {
	count, err := w.store.CleanupExpired(ctx)
	if err != nil {
		w.logger.WithError(err).Error("cleanup sweep failed")
		return 0
	}

	if count > 0 {
		metrics.RecordTasksCleaned(count)
		w.logger.WithField("count", count).Info("expired tasks removed")
	}
	return count
}
