package api

import (
	"github.com/gin-gonic/gin"
	"github.com/zidanDirk/foodsafety/internal/metrics"
)

// MetricsHandler Prometheus 指标端点
func MetricsHandler(c *gin.Context) {
	metrics.Handler().ServeHTTP(c.Writer, c.Request)
}
