package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"payroll-core/internal/handler"
	"payroll-core/internal/handler/response"
	"payroll-core/pkg/monitor"
	"payroll-core/pkg/validator"
)

// NewHTTPRouter 初始化并返回一个 Gin Engine
func NewHTTPRouter(payrollHandler *handler.PayrollHandler) *gin.Engine {
	// 0. 初始化监控指标与校验规则
	monitor.Init()
	validator.Init()

	// 1. 创建 Engine (使用默认中间件: Logger, Recovery)
	r := gin.Default()

	// 2. 注册通用中间件
	r.Use(monitor.PrometheusMiddleware())

	// 3. 注册基础路由
	r.GET("/health", payrollHandler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 4. 注册 API 路由组
	api := r.Group("/api/v1")
	{
		api.GET("/ping", func(c *gin.Context) {
			response.Success(c, gin.H{"pong": true})
		})

		payroll := api.Group("/payroll")
		payroll.POST("/runs/roster", payrollHandler.RunFromRoster)
		payroll.POST("/runs/payload", payrollHandler.RunFromPayload)
		payroll.GET("/ledger", payrollHandler.ListLedger)
		payroll.GET("/ledger/summary", payrollHandler.LedgerSummary)
	}

	return r
}
