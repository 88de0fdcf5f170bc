package controllers

import (
	"net/http"

	"github.com/ironroggers/ops-tracker/internal/middleware"
)

// HealthController 健康检查控制器
type HealthController struct {
	BaseController
	Manager *middleware.MiddlewareManager
}

// Health 进程存活
func (c *HealthController) Health() {
	c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready 必需依赖全部健康时返回 200，否则 503
func (c *HealthController) Ready() {
	if c.Manager == nil {
		c.JSON(http.StatusServiceUnavailable, map[string]interface{}{"ready": false})
		return
	}

	ready, health := c.Manager.Ready(c.Ctx.Request.Context())
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, map[string]interface{}{
		"ready":      ready,
		"components": health,
	})
}
