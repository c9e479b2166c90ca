// Package ledger 持久化每一笔发薪转账的结果，只追加，不修改。
package ledger

import (
	"context"
	"errors"
	"time"
)

// TimestampLayout 流水时间格式 YYYY-MM-DD HH:MM:SS (UTC)
const TimestampLayout = "2006-01-02 15:04:05"

// Header CSV 表头，只在文件第一次创建时写入
var Header = []string{"tx_hash", "status", "recipient", "amount", "timestamp"}

var (
	ErrWrite = errors.New("ledger write failed")
	ErrRead  = errors.New("ledger read failed")
)

// Record 一笔转账尝试的流水
type Record struct {
	TxHash    string    `json:"tx_hash"`
	Status    string    `json:"status"`
	Recipient string    `json:"recipient"`
	Amount    string    `json:"amount"` // wei, 十进制字符串
	Timestamp time.Time `json:"timestamp"`
}

// Store 只追加的流水存储
type Store interface {
	// Append 同步、持久地写入一条记录，返回前数据已落盘
	Append(ctx context.Context, r Record) error
	// ReadAll 按写入顺序返回全部记录
	ReadAll(ctx context.Context) ([]Record, error)
}

func (r Record) row() []string {
	return []string{r.TxHash, r.Status, r.Recipient, r.Amount, r.Timestamp.UTC().Format(TimestampLayout)}
}
