package payroll

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const DefaultGasLimit uint64 = 21000

// FeePolicy 固定的 EIP-1559 费用参数，不做竞价
type FeePolicy struct {
	GasLimit  uint64
	GasTipCap *big.Int
	GasFeeCap *big.Int
}

// DefaultFeePolicy 21000 gas, 2 gwei tip, 50 gwei cap
func DefaultFeePolicy() FeePolicy {
	return FeePolicy{
		GasLimit:  DefaultGasLimit,
		GasTipCap: big.NewInt(2_000_000_000),
		GasFeeCap: big.NewInt(50_000_000_000),
	}
}

// NewFeePolicy 由配置构造 (gwei 字符串)
func NewFeePolicy(gasLimit uint64, tipGwei, feeCapGwei string) (FeePolicy, error) {
	tip, err := GweiToWei(tipGwei)
	if err != nil {
		return FeePolicy{}, fmt.Errorf("priority fee: %w", err)
	}
	feeCap, err := GweiToWei(feeCapGwei)
	if err != nil {
		return FeePolicy{}, fmt.Errorf("max fee: %w", err)
	}
	p := FeePolicy{GasLimit: gasLimit, GasTipCap: tip, GasFeeCap: feeCap}
	return p, p.Validate()
}

func (p FeePolicy) Validate() error {
	switch {
	case p.GasLimit == 0:
		return errors.New("fee policy: gas limit must be positive")
	case p.GasTipCap == nil || p.GasFeeCap == nil:
		return errors.New("fee policy: fee caps are required")
	case p.GasTipCap.Sign() < 0 || p.GasFeeCap.Sign() < 0:
		return errors.New("fee policy: negative fee")
	case p.GasTipCap.Cmp(p.GasFeeCap) > 0:
		return fmt.Errorf("fee policy: tip cap %s exceeds fee cap %s", p.GasTipCap, p.GasFeeCap)
	}
	return nil
}

// Plan 一次运行的 nonce 与交易参数
type Plan struct {
	ChainID     *big.Int
	BaseNonce   uint64
	Descriptors []TransactionDescriptor
}

// Plan 查询 chain id 和 pending nonce 各一次，第 i 笔交易使用 base+i
func (p FeePolicy) Plan(ctx context.Context, client ChainClient, sender common.Address, requests []TransferRequest) (*Plan, error) {
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: chain id: %v", ErrEndpointUnreachable, err)
	}
	base, err := client.PendingNonceAt(ctx, sender)
	if err != nil {
		return nil, fmt.Errorf("%w: pending nonce: %v", ErrEndpointUnreachable, err)
	}

	plan := &Plan{
		ChainID:     chainID,
		BaseNonce:   base,
		Descriptors: make([]TransactionDescriptor, 0, len(requests)),
	}
	for i, req := range requests {
		value, err := EtherToWei(req.Amount)
		if err != nil {
			return nil, &RecipientError{Index: req.Index, Recipient: req.Recipient.Hex(), Reason: err.Error()}
		}
		plan.Descriptors = append(plan.Descriptors, TransactionDescriptor{
			Index:     req.Index,
			To:        req.Recipient,
			Value:     value,
			Nonce:     base + uint64(i),
			GasLimit:  p.GasLimit,
			GasTipCap: new(big.Int).Set(p.GasTipCap),
			GasFeeCap: new(big.Int).Set(p.GasFeeCap),
			ChainID:   chainID,
		})
	}
	return plan, nil
}

// Reclaim 第 pos 笔交易被节点明确拒绝后，把它之后的 nonce 依次前移一位，
// 避免留下空洞导致后续交易全部卡在 mempool
func (pl *Plan) Reclaim(pos int) {
	for j := pos + 1; j < len(pl.Descriptors); j++ {
		pl.Descriptors[j].Nonce--
	}
}
