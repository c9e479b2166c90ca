package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"payroll-core/internal/bootstrap"
	"payroll-core/internal/service"
	"payroll-core/internal/service/mq"
	"payroll-core/pkg/config"
	"payroll-core/pkg/logger"
	"payroll-core/pkg/monitor"
)

// payroll-worker 消费 payroll_batch_requests，执行批次并发布 payroll_run_results
// 它持有发款私钥，是系统中最敏感的组件
func main() {
	// 1. 初始化配置与日志
	config.Init()
	logger.Init(config.Global.App.Env)
	defer logger.Sync()
	monitor.Init()

	logger.Info("启动发薪 Worker...", zap.String("env", config.Global.App.Env), zap.String("mq", config.Global.Redis.MQType))

	// 2. 组装发薪服务
	components, err := bootstrap.Build(config.Global, logger.Named("payroll"))
	if err != nil {
		logger.Fatal("初始化发薪服务失败", zap.Error(err))
	}
	defer components.Close()

	if components.Producer == nil {
		logger.Fatal("未配置消息队列 (redis.addr 或 redis.mq_type=kafka)")
	}

	// 3. 初始化 MQ Consumer
	hostname, _ := os.Hostname()
	consumer, err := bootstrap.NewConsumer(config.Global, components.Redis, "payroll-worker-group", fmt.Sprintf("%s-%d", hostname, os.Getpid()))
	if err != nil {
		logger.Fatal("初始化消费者失败", zap.Error(err))
	}
	defer consumer.Close()

	worker := service.NewBatchWorker(components.Service, components.Producer, logger.Named("worker"))

	// 4. 订阅，直到收到退出信号
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("开始监听发薪请求", zap.String("topic", mq.TopicBatchRequests), zap.String("sender", components.Sender.Hex()))
	if err := consumer.Subscribe(ctx, mq.TopicBatchRequests, worker.Handler(ctx)); err != nil {
		logger.Error("订阅失败", zap.Error(err))
	}
	logger.Info("发薪 Worker 已停止")
}
