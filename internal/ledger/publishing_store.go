package ledger

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// TopicTransferRecords 流水写入后投递的主题，供对账、统计等下游消费
const TopicTransferRecords = "payroll_transfer_records"

// Publisher 与 mq.Producer 兼容
type Publisher interface {
	Publish(ctx context.Context, topic string, key string, payload []byte) error
}

// PublishingStore 在写入成功后把记录投递到 MQ
// 投递失败只记日志: 流水已经落盘，不能因为 MQ 故障而报告写入失败
type PublishingStore struct {
	Store
	publisher Publisher
	topic     string
	log       *zap.Logger
}

func NewPublishingStore(store Store, publisher Publisher, log *zap.Logger) *PublishingStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &PublishingStore{Store: store, publisher: publisher, topic: TopicTransferRecords, log: log}
}

func (p *PublishingStore) Append(ctx context.Context, r Record) error {
	if err := p.Store.Append(ctx, r); err != nil {
		return err
	}

	payload, err := json.Marshal(r)
	if err != nil {
		p.log.Warn("流水序列化失败", zap.String("tx_hash", r.TxHash), zap.Error(err))
		return nil
	}
	// Key 使用收款地址，同一员工的流水在 Kafka 分区内有序
	if err := p.publisher.Publish(ctx, p.topic, r.Recipient, payload); err != nil {
		p.log.Warn("流水投递失败", zap.String("tx_hash", r.TxHash), zap.Error(err))
	}
	return nil
}
