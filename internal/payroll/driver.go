package payroll

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// ChainClient 引擎用到的 JSON-RPC 子集，*ethclient.Client 直接满足
type ChainClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type DriverConfig struct {
	SubmitTimeout       time.Duration // 单次 RPC 调用超时 (广播、查询回执)
	ConfirmationTimeout time.Duration
	PollInterval        time.Duration
}

func DefaultDriverConfig() DriverConfig {
	return DriverConfig{
		SubmitTimeout:       30 * time.Second,
		ConfirmationTimeout: 2 * time.Minute,
		PollInterval:        2 * time.Second,
	}
}

// Driver 广播单笔交易并等待回执
// Pending -> Submitted -> success | reverted，广播失败为 failed，等待超时为 unconfirmed
type Driver struct {
	client ChainClient
	cfg    DriverConfig
	clock  clockwork.Clock
	log    *zap.Logger
}

func NewDriver(client ChainClient, cfg DriverConfig, clock clockwork.Clock, log *zap.Logger) *Driver {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Driver{client: client, cfg: cfg, clock: clock, log: log}
}

// Deliver 只广播一次，不重试，任何错误都体现在返回的结果里
func (d *Driver) Deliver(ctx context.Context, signed *SignedTransaction, req TransferRequest) TransferOutcome {
	out := TransferOutcome{
		Index:     req.Index,
		TxHash:    signed.Hash.Hex(),
		Nonce:     signed.Nonce,
		Recipient: req.Recipient.Hex(),
		Amount:    req.Amount,
		AmountWei: signed.Tx.Value().String(),
	}
	// 已经开始处理的交易不受取消影响，只受超时约束
	ctx = context.WithoutCancel(ctx)
	log := d.log.With(zap.Int("index", req.Index), zap.Uint64("nonce", signed.Nonce), zap.String("tx_hash", out.TxHash))

	if err := d.submit(ctx, signed); err != nil {
		out.Status = StatusFailed
		out.Err = fmt.Errorf("%w: %w", ErrSubmission, err)
		out.nonceUnconsumed = nonceUnconsumed(err)
		out.Timestamp = d.clock.Now().UTC()
		log.Error("交易广播失败", zap.Bool("nonce_unconsumed", out.nonceUnconsumed), zap.Error(err))
		return out
	}
	log.Info("交易已广播", zap.String("to", out.Recipient), zap.String("amount", req.Amount.String()))

	receipt, err := d.waitReceipt(ctx, signed.Hash, log)
	out.Timestamp = d.clock.Now().UTC()
	if err != nil {
		out.Status = StatusUnconfirmed
		out.Err = err
		log.Warn("交易未在超时时间内确认", zap.Duration("timeout", d.cfg.ConfirmationTimeout))
		return out
	}

	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}
	out.GasUsed = receipt.GasUsed
	if receipt.Status == types.ReceiptStatusSuccessful {
		out.Status = StatusSuccess
		log.Info("交易已确认", zap.Uint64("block", out.BlockNumber))
	} else {
		out.Status = StatusReverted
		log.Error("交易执行失败 (reverted)", zap.Uint64("block", out.BlockNumber))
	}
	return out
}

func (d *Driver) submit(ctx context.Context, signed *SignedTransaction) error {
	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SubmitTimeout)
	defer cancel()

	err := d.client.SendTransaction(sendCtx, signed.Tx)
	if err != nil && isAlreadyKnown(err) {
		// 节点已经有这笔交易，按已广播处理
		return nil
	}
	return err
}

func (d *Driver) waitReceipt(ctx context.Context, hash common.Hash, log *zap.Logger) (*types.Receipt, error) {
	deadline := d.clock.After(d.cfg.ConfirmationTimeout)
	ticker := d.clock.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := d.receipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			log.Debug("查询回执失败，继续轮询", zap.Error(err))
		}

		select {
		case <-deadline:
			return nil, fmt.Errorf("%w: %s not mined within %s", ErrConfirmationTimeout, hash.Hex(), d.cfg.ConfirmationTimeout)
		case <-ticker.Chan():
		}
	}
}

func (d *Driver) receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.cfg.SubmitTimeout)
	defer cancel()
	return d.client.TransactionReceipt(callCtx, hash)
}

// nonceUnconsumed 节点用 JSON-RPC 错误明确拒绝了交易，并且拒绝原因说明该 nonce 没有被占用，
// 可以让后续交易顺延使用。网络层错误无法确定，nonce too low / replacement 说明 nonce 已被占用，都不算。
func nonceUnconsumed(err error) bool {
	var rpcErr rpc.Error
	if !errors.As(err, &rpcErr) {
		return false
	}
	msg := strings.ToLower(rpcErr.Error())
	for _, taken := range nonceTakenReasons {
		if strings.Contains(msg, taken) {
			return false
		}
	}
	for _, reason := range nonceFreeReasons {
		if strings.Contains(msg, reason) {
			return true
		}
	}
	return false
}

// 节点 (geth txpool 校验) 返回的错误信息片段
var (
	nonceTakenReasons = []string{
		"nonce too low",
		"nonce too high",
		"replacement transaction underpriced",
		"already known",
		"known transaction",
	}
	nonceFreeReasons = []string{
		"insufficient funds",
		"intrinsic gas too low",
		"less than block base fee",
		"max priority fee per gas higher than max fee per gas",
		"transaction underpriced",
		"exceeds block gas limit",
		"exceeds the configured cap",
		"oversized data",
	}
)

func isAlreadyKnown(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already known") || strings.Contains(msg, "known transaction")
}
