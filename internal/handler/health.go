package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"payroll-core/internal/handler/response"
)

var startedAt = time.Now()

// HealthCheck 存活检查，附带发款地址，便于确认加载的是哪个钱包
func (h *PayrollHandler) HealthCheck(c *gin.Context) {
	response.Success(c, gin.H{
		"status":  "UP",
		"service": "payroll-server",
		"sender":  h.svc.Sender().Hex(),
		"uptime":  time.Since(startedAt).Truncate(time.Second).String(),
	})
}
