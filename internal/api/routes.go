package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/zidanDirk/foodsafety/internal/config"
	"github.com/zidanDirk/foodsafety/internal/service"
)

// SetupRoutes 注册所有路由和中间件
func SetupRoutes(cfg *config.Config, logger *logrus.Logger, taskService service.TaskService, healthController *HealthController) *gin.Engine {
	if config.IsProduction(cfg) {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogMiddleware(logger))
	router.Use(CORSMiddleware(&cfg.CORS))

	// 超过限制的请求体直接拒绝,避免读入内存
	router.MaxMultipartMemory = cfg.Upload.MaxFileSize

	taskController := NewTaskController(taskService)

	router.GET("/health", healthController.Check)
	router.GET("/metrics", MetricsHandler)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/upload", RateLimitMiddleware(cfg.Upload.RateLimit, cfg.Upload.RateBurst), taskController.Upload)
		// 固定路径要注册在参数路径之前
		v1.GET("/tasks/stats", taskController.Stats)
		v1.GET("/tasks/:id", taskController.Status)
		v1.DELETE("/tasks/:id", taskController.Delete)
	}

	router.NoRoute(func(c *gin.Context) {
		Error(c, http.StatusNotFound, "route not found", c.Request.URL.Path)
	})

	return router
}
