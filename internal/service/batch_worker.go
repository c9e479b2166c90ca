package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"payroll-core/internal/payroll"
	"payroll-core/internal/service/mq"
)

// BatchRequestEvent payroll_batch_requests 主题的消息体
// employees_json 可以是数组，也可以是包含数组的字符串
type BatchRequestEvent struct {
	RequestID     string          `json:"request_id"`
	RpcUrl        string          `json:"rpc_url"`
	EmployeesJSON json.RawMessage `json:"employees_json"`
}

// RunResultEvent payroll_run_results 主题的消息体
type RunResultEvent struct {
	RequestID   string             `json:"request_id"`
	Status      string             `json:"status"` // completed, cancelled, rejected
	Error       string             `json:"error,omitempty"`
	Delivered   int                `json:"delivered"`
	Undelivered int                `json:"undelivered"`
	Result      *payroll.RunResult `json:"result,omitempty"`
	ProcessedAt time.Time          `json:"processed_at"`
}

type BatchRunner interface {
	RunBatchFromPayload(ctx context.Context, endpointURL string, payload []byte) (*payroll.RunResult, error)
}

// BatchWorker 消费发薪请求并发布结果
type BatchWorker struct {
	runner   BatchRunner
	producer mq.Producer
	log      *zap.Logger
}

func NewBatchWorker(runner BatchRunner, producer mq.Producer, log *zap.Logger) *BatchWorker {
	if log == nil {
		log = zap.NewNop()
	}
	return &BatchWorker{runner: runner, producer: producer, log: log}
}

// Handler 返回给 mq.Consumer 的回调。
// 只有同一发款地址正在运行时才返回错误 (消息不确认，稍后重新投递)；
// 批次一旦执行过，无论结果如何都确认消息，重复投递会导致重复发薪。
func (w *BatchWorker) Handler(ctx context.Context) func(msg *mq.Message) error {
	return func(msg *mq.Message) error {
		return w.handle(ctx, msg)
	}
}

func (w *BatchWorker) handle(ctx context.Context, msg *mq.Message) error {
	var ev BatchRequestEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		w.log.Error("发薪请求格式错误，丢弃", zap.String("msg_id", msg.ID), zap.Error(err))
		w.publish(ctx, RunResultEvent{RequestID: msg.ID, Status: "rejected", Error: fmt.Sprintf("%v: %v", payroll.ErrMalformedBatch, err)})
		return nil
	}
	if ev.RequestID == "" {
		ev.RequestID = msg.ID
	}
	log := w.log.With(zap.String("request_id", ev.RequestID))

	res, err := w.runner.RunBatchFromPayload(ctx, ev.RpcUrl, ev.EmployeesJSON)
	if errors.Is(err, payroll.ErrRunInProgress) {
		log.Warn("发款地址正在执行其他批次，稍后重试")
		return err
	}

	out := RunResultEvent{RequestID: ev.RequestID, Result: res, Status: "completed"}
	switch {
	case err != nil && res != nil:
		out.Status = "cancelled"
		out.Error = err.Error()
	case err != nil:
		out.Status = "rejected"
		out.Error = err.Error()
	}
	if res != nil {
		out.Delivered = len(res.Delivered())
		out.Undelivered = len(res.Undelivered())
	}
	log.Info("发薪请求处理完成", zap.String("status", out.Status), zap.Int("delivered", out.Delivered), zap.Int("undelivered", out.Undelivered))

	w.publish(ctx, out)
	return nil
}

func (w *BatchWorker) publish(ctx context.Context, ev RunResultEvent) {
	ev.ProcessedAt = time.Now().UTC()
	payload, err := json.Marshal(ev)
	if err != nil {
		w.log.Error("结果序列化失败", zap.String("request_id", ev.RequestID), zap.Error(err))
		return
	}
	if err := w.producer.Publish(context.WithoutCancel(ctx), mq.TopicRunResults, ev.RequestID, payload); err != nil {
		w.log.Error("结果投递失败", zap.String("request_id", ev.RequestID), zap.Error(err))
	}
}
