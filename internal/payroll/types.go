package payroll

import (
	"encoding/json"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusSuccess     Status = "success"
	StatusReverted    Status = "reverted"
	StatusFailed      Status = "failed"
	StatusUnconfirmed Status = "unconfirmed"
	// StatusRejected 仅在 AllowPartial 模式下出现：记录无效，没有分配 nonce，也不写流水
	StatusRejected Status = "rejected"
)

// Delivered 只有链上确认成功才算到账
func (s Status) Delivered() bool {
	return s == StatusSuccess
}

// TransferRequest 批次中的一笔发薪
type TransferRequest struct {
	Index     int
	Recipient common.Address
	Amount    decimal.Decimal // ether
}

// TransactionDescriptor 待签名的交易参数
type TransactionDescriptor struct {
	Index     int
	To        common.Address
	Value     *big.Int // wei
	Nonce     uint64
	GasLimit  uint64
	GasTipCap *big.Int
	GasFeeCap *big.Int
	ChainID   *big.Int
}

type SignedTransaction struct {
	Hash  common.Hash
	Raw   []byte
	Nonce uint64
	Tx    *types.Transaction
}

// TransferOutcome 每笔转账的最终结果
type TransferOutcome struct {
	Index       int             `json:"index"`
	TxHash      string          `json:"tx_hash,omitempty"`
	Nonce       uint64          `json:"nonce"`
	Status      Status          `json:"status"`
	Recipient   string          `json:"recipient"`
	Amount      decimal.Decimal `json:"amount"`
	AmountWei   string          `json:"amount_wei,omitempty"`
	BlockNumber uint64          `json:"block_number,omitempty"`
	GasUsed     uint64          `json:"gas_used,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Err         error           `json:"-"`
	LedgerErr   error           `json:"-"`

	// 节点明确拒绝且 nonce 未被占用，用于 nonce 回收
	nonceUnconsumed bool
}

func (o TransferOutcome) MarshalJSON() ([]byte, error) {
	type alias TransferOutcome
	out := struct {
		alias
		Error       string `json:"error,omitempty"`
		LedgerError string `json:"ledger_error,omitempty"`
	}{alias: alias(o)}
	if o.Err != nil {
		out.Error = o.Err.Error()
	}
	if o.LedgerErr != nil {
		out.LedgerError = o.LedgerErr.Error()
	}
	return json.Marshal(out)
}
