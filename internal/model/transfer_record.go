package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferRecord 发薪转账流水表 (append-only)
// 自增 ID 即写入顺序，记录写入后不更新、不删除
type TransferRecord struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TxHash    string          `gorm:"type:varchar(66);not null;index" json:"tx_hash"`
	Status    string          `gorm:"type:varchar(16);not null;index" json:"status"` // success, reverted, failed, unconfirmed
	Recipient string          `gorm:"type:varchar(42);not null;index" json:"recipient"`
	Amount    decimal.Decimal `gorm:"type:numeric(78,0);not null" json:"amount"` // wei
	Timestamp time.Time       `gorm:"not null" json:"timestamp"`
	CreatedAt time.Time       `json:"created_at"`
}

func (TransferRecord) TableName() string {
	return "transfer_records"
}
