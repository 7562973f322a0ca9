package pipeline

import (
	"context"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout 单个任务的整体处理超时
const DefaultTimeout = 2 * time.Minute

// Runner 流水线调度器
// 用固定大小的协程池限制并发流水线数量;调用方发起处理后立即返回,
// 不等待流水线结束（fire-and-forget）
type Runner struct {
	orchestrator *Orchestrator
	pool         *ants.Pool
	timeout      time.Duration
	logger       *logrus.Logger
}

// NewRunner 创建流水线调度器
func NewRunner(orchestrator *Orchestrator, workers int, timeout time.Duration, logger *logrus.Logger) (*Runner, error) {
	if workers <= 0 {
		workers = 16
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	pool, err := ants.NewPool(workers, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}

	return &Runner{
		orchestrator: orchestrator,
		pool:         pool,
		timeout:      timeout,
		logger:       logger,
	}, nil
}

// Dispatch 调度一次流水线运行,立即返回
// 协程池满时退化为普通 goroutine,上传请求不因此阻塞
func (r *Runner) Dispatch(taskID string, image []byte) {
	job := func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		r.orchestrator.Process(ctx, taskID, image)
	}

	if err := r.pool.Submit(job); err != nil {
		r.logger.WithError(err).WithField("task_id", taskID).
			Warn("worker pool saturated, running pipeline in a plain goroutine")
		go job()
	}
}

// Release 释放协程池
func (r *Runner) Release() {
	r.pool.Release()
}
