package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 任务创建数
	tasksCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tasks_created_total",
			Help: "Total number of analysis tasks created",
		},
	)

	// 流水线完成数（按终态区分）
	pipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total number of pipeline runs by terminal status",
		},
		[]string{"status"}, // completed, failed
	)

	// 流水线阶段耗时
	pipelineStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"}, // ocr, parse, analyze
	)

	// 存储后端降级次数
	storeFailoverTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_failover_total",
			Help: "Total number of durable-store failovers to the in-memory backend",
		},
		[]string{"operation"},
	)

	// 提供方降级次数
	providerFallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_fallback_total",
			Help: "Total number of provider calls served by the deterministic fallback",
		},
		[]string{"provider", "reason"}, // provider: ocr, ai; reason: unconfigured, error
	)

	// 任务状态分布
	tasksByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tasks_by_status",
			Help: "Number of tasks by status",
		},
		[]string{"status"},
	)

	// 过期任务清理数
	tasksCleanedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tasks_cleaned_total",
			Help: "Total number of expired tasks removed by the cleanup worker",
		},
	)
)

var once sync.Once

func init() {
	// 注册指标
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(tasksCreatedTotal)
	prometheus.MustRegister(pipelineRunsTotal)
	prometheus.MustRegister(pipelineStageDuration)
	prometheus.MustRegister(storeFailoverTotal)
	prometheus.MustRegister(providerFallbackTotal)
	prometheus.MustRegister(tasksByStatus)
	prometheus.MustRegister(tasksCleanedTotal)

	// 注册 Go 运行时指标（只注册一次）
	once.Do(func() {
		// 尝试注册 Go 运行时指标,如果已注册则忽略错误
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordTaskCreated 记录任务创建
func RecordTaskCreated() {
	tasksCreatedTotal.Inc()
}

// RecordPipelineRun 记录流水线终态
func RecordPipelineRun(status string) {
	pipelineRunsTotal.WithLabelValues(status).Inc()
}

// RecordPipelineStage 记录流水线阶段耗时
func RecordPipelineStage(stage string, duration float64) {
	pipelineStageDuration.WithLabelValues(stage).Observe(duration)
}

// RecordStoreFailover 记录存储后端降级
func RecordStoreFailover(operation string) {
	storeFailoverTotal.WithLabelValues(operation).Inc()
}

// RecordProviderFallback 记录提供方降级
func RecordProviderFallback(provider, reason string) {
	providerFallbackTotal.WithLabelValues(provider, reason).Inc()
}

// SetTasksByStatus 更新任务状态分布
func SetTasksByStatus(stats map[string]int) {
	for status, count := range stats {
		tasksByStatus.WithLabelValues(status).Set(float64(count))
	}
}

// RecordTasksCleaned 记录清理的过期任务数
func RecordTasksCleaned(count int) {
	tasksCleanedTotal.Add(float64(count))
}
