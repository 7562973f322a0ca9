package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zidanDirk/foodsafety/internal/config"
	"github.com/zidanDirk/foodsafety/internal/database"
	"github.com/zidanDirk/foodsafety/internal/store"
	"gorm.io/gorm"
)

// HealthController 健康检查控制器
type HealthController struct {
	db        *gorm.DB
	taskStore *store.FailoverStore
	cfg       *config.Config
}

// NewHealthController 创建健康检查控制器
func NewHealthController(db *gorm.DB, taskStore *store.FailoverStore, cfg *config.Config) *HealthController {
	return &HealthController{
		db:        db,
		taskStore: taskStore,
		cfg:       cfg,
	}
}

// Check 健康检查
// 数据库未配置属于正常的内存模式,不判定为 unhealthy
func (c *HealthController) Check(ctx *gin.Context) {
	status := "healthy"
	checks := make(map[string]string)

	// 检查数据库连接
	if c.db != nil {
		if database.CheckHealth(c.db) {
			checks["database"] = "healthy"
		} else {
			status = "unhealthy"
			checks["database"] = "unhealthy"
		}
	} else {
		checks["database"] = "not configured"
	}

	// 存储当前运行模式
	if c.taskStore != nil && c.taskStore.UsingMemory() {
		checks["store"] = "memory"
	} else {
		checks["store"] = "database"
	}

	// 外部提供方只报告配置状态,不主动探测
	if c.cfg.OCR.IsConfigured() {
		checks["ocr"] = "configured"
	} else {
		checks["ocr"] = "not configured"
	}
	if c.cfg.AI.IsConfigured() {
		checks["ai"] = "configured"
	} else {
		checks["ai"] = "not configured"
	}

	httpStatus := http.StatusOK
	if status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	ctx.JSON(httpStatus, gin.H{
		"status":    status,
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	})
}
