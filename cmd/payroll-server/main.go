package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"payroll-core/internal/bootstrap"
	"payroll-core/internal/handler"
	"payroll-core/internal/model"
	"payroll-core/internal/server"
	"payroll-core/pkg/config"
	"payroll-core/pkg/logger"
	"payroll-core/pkg/monitor"
)

// @title Payroll Core API
// @version 1.0
// @description 批量发薪转账服务

// @host localhost:8080
// @BasePath /api/v1
func main() {
	// 0. 初始化 Config
	config.Init()

	// 1. 初始化 Logger 与监控指标 (引擎在构造时读取指标)
	logger.Init(config.Global.App.Env)
	defer logger.Sync()
	monitor.Init()

	// 2. 组装发薪服务
	components, err := bootstrap.Build(config.Global, logger.Named("payroll"))
	if err != nil {
		logger.Fatal("初始化发薪服务失败", zap.Error(err))
	}
	defer components.Close()

	// 3. 开发环境自动建表
	if components.DB != nil && config.Global.App.Env == "development" {
		logger.Info("开发环境: 自动迁移 Schema (GORM AutoMigrate)...")
		if err := components.DB.AutoMigrate(model.AllModels()...); err != nil {
			logger.Fatal("数据库自动迁移失败", zap.Error(err))
		}
	}

	// 4. HTTP Router + gRPC 健康检查
	// 批次只随服务退出而停止，不随客户端断开
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	r := server.NewHTTPRouter(handler.NewPayrollHandler(components.Service).WithLifecycle(ctx))
	grpcServer, healthServer := server.NewGRPCServer()

	app, err := server.New(server.Config{
		HttpPort:        config.Global.App.HttpPort,
		GrpcPort:        config.Global.App.GrpcPort,
		ShutdownTimeout: config.Global.Payroll.ConfirmationTimeout,
	}, r, grpcServer, healthServer)
	if err != nil {
		logger.Fatal("应用启动失败", zap.Error(err))
	}

	// 5. 运行 (阻塞直到收到退出信号)
	logger.Info("发薪服务启动", zap.String("sender", components.Sender.Hex()))
	if err := app.Run(ctx); err != nil {
		logger.Error("服务异常退出", zap.Error(err))
	}
	logger.Info("系统已退出")
}
