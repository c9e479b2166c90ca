// Package payroll 批量发薪转账引擎：校验批次、分配 nonce、签名、逐笔广播确认并写入流水。
package payroll

import (
	"context"
	"fmt"
	"math/big"
	"net/url"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"payroll-core/internal/ledger"
	"payroll-core/pkg/monitor"
)

// Dialer 为一次运行建立 RPC 连接，连接归这次运行所有
type Dialer func(ctx context.Context, endpointURL string) (ChainClient, error)

// DialEthereum 默认 Dialer
func DialEthereum(ctx context.Context, endpointURL string) (ChainClient, error) {
	client, err := ethclient.DialContext(ctx, endpointURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

type Config struct {
	Fees                  FeePolicy
	Driver                DriverConfig
	DialTimeout           time.Duration
	ReclaimRejectedNonces bool
}

func DefaultConfig() Config {
	return Config{
		Fees:        DefaultFeePolicy(),
		Driver:      DefaultDriverConfig(),
		DialTimeout: 30 * time.Second,
	}
}

type Option func(*Engine)

func WithDialer(d Dialer) Option {
	return func(e *Engine) { e.dial = d }
}

func WithClock(c clockwork.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithMetrics(m *monitor.BusinessMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine 串行执行批量转账，一个 Engine 对应一个发款私钥
type Engine struct {
	signer  *Signer
	ledger  ledger.Store
	cfg     Config
	dial    Dialer
	clock   clockwork.Clock
	log     *zap.Logger
	metrics *monitor.BusinessMetrics
}

func NewEngine(signer *Signer, store ledger.Store, cfg Config, opts ...Option) (*Engine, error) {
	if signer == nil {
		return nil, fmt.Errorf("%w: missing signer", ErrSigning)
	}
	if store == nil {
		return nil, fmt.Errorf("payroll: missing ledger store")
	}
	if err := cfg.Fees.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		signer:  signer,
		ledger:  store,
		cfg:     cfg,
		dial:    DialEthereum,
		clock:   clockwork.NewRealClock(),
		log:     zap.NewNop(),
		metrics: monitor.Business,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With(zap.Stringer("signer", e.signer))
	return e, nil
}

func (e *Engine) Sender() common.Address {
	return e.signer.Address()
}

// RunContext 单次运行的状态，运行结束后关闭连接
type RunContext struct {
	Client   ChainClient
	Sender   common.Address
	Plan     *Plan
	Signed   []*SignedTransaction
	Outcomes []TransferOutcome
}

func (rc *RunContext) Close() {
	if c, ok := rc.Client.(interface{ Close() }); ok {
		c.Close()
	}
}

// RunResult 一次运行的汇总
type RunResult struct {
	Sender     common.Address    `json:"sender"`
	ChainID    *big.Int          `json:"chain_id,omitempty"`
	BaseNonce  uint64            `json:"base_nonce"`
	Digest     string            `json:"digest"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Outcomes   []TransferOutcome `json:"outcomes"`
}

// Delivered 链上确认成功的转账
func (r *RunResult) Delivered() []TransferOutcome {
	var out []TransferOutcome
	for _, o := range r.Outcomes {
		if o.Status.Delivered() {
			out = append(out, o)
		}
	}
	return out
}

// Undelivered 其余所有状态 (reverted, failed, unconfirmed, rejected)
func (r *RunResult) Undelivered() []TransferOutcome {
	var out []TransferOutcome
	for _, o := range r.Outcomes {
		if !o.Status.Delivered() {
			out = append(out, o)
		}
	}
	return out
}

func (r *RunResult) Counts() map[Status]int {
	counts := make(map[Status]int)
	for _, o := range r.Outcomes {
		counts[o.Status]++
	}
	return counts
}

// Run 执行一个批次。
// 致命错误 (连接失败、签名失败) 返回 nil 结果，此时没有任何交易被广播、没有写任何流水；
// 单笔交易的失败只体现在对应的结果里。ctx 只在两笔交易之间检查。
func (e *Engine) Run(ctx context.Context, endpointURL string, batch Batch) (*RunResult, error) {
	result := &RunResult{
		Sender:    e.Sender(),
		Digest:    batch.Digest(),
		StartedAt: e.clock.Now().UTC(),
	}
	log := e.log.With(zap.String("digest", result.Digest), zap.String("endpoint", endpointHost(endpointURL)))

	if len(batch.Requests) == 0 {
		result.Outcomes = e.rejectedOutcomes(batch)
		result.FinishedAt = e.clock.Now().UTC()
		log.Info("批次中没有可执行的转账", zap.Int("rejected", len(batch.Rejected)))
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRunCancelled, err)
	}

	rc, err := e.prepare(ctx, endpointURL, batch.Requests)
	if err != nil {
		e.metrics.ObserveRun("aborted")
		log.Error("批次执行中止", zap.Error(err))
		return nil, err
	}
	defer rc.Close()

	result.ChainID = rc.Plan.ChainID
	result.BaseNonce = rc.Plan.BaseNonce
	log.Info("开始执行批次",
		zap.Int("transfers", len(batch.Requests)),
		zap.String("chain_id", rc.Plan.ChainID.String()),
		zap.Uint64("base_nonce", rc.Plan.BaseNonce),
	)

	runErr := e.execute(ctx, rc, batch.Requests, log)

	result.Outcomes = append(rc.Outcomes, e.rejectedOutcomes(batch)...)
	sort.SliceStable(result.Outcomes, func(i, j int) bool {
		return result.Outcomes[i].Index < result.Outcomes[j].Index
	})
	result.FinishedAt = e.clock.Now().UTC()

	counts := result.Counts()
	fields := []zap.Field{
		zap.Int(string(StatusSuccess), counts[StatusSuccess]),
		zap.Int(string(StatusReverted), counts[StatusReverted]),
		zap.Int(string(StatusFailed), counts[StatusFailed]),
		zap.Int(string(StatusUnconfirmed), counts[StatusUnconfirmed]),
		zap.Int(string(StatusRejected), counts[StatusRejected]),
	}
	if runErr != nil {
		e.metrics.ObserveRun("cancelled")
		log.Warn("批次未执行完", append(fields, zap.Error(runErr))...)
		return result, runErr
	}
	e.metrics.ObserveRun("completed")
	log.Info("批次执行完成", fields...)
	return result, nil
}

// prepare 连接节点、分配 nonce、签好全部交易；任何一步失败都不会有交易被广播
func (e *Engine) prepare(ctx context.Context, endpointURL string, requests []TransferRequest) (*RunContext, error) {
	dialCtx, cancel := context.WithTimeout(ctx, e.cfg.DialTimeout)
	defer cancel()

	client, err := e.dial(dialCtx, endpointURL)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrEndpointUnreachable, endpointHost(endpointURL), err)
	}
	rc := &RunContext{Client: client, Sender: e.Sender()}

	queryCtx, cancelQuery := context.WithTimeout(ctx, e.cfg.Driver.SubmitTimeout)
	defer cancelQuery()
	plan, err := e.cfg.Fees.Plan(queryCtx, client, rc.Sender, requests)
	if err != nil {
		rc.Close()
		return nil, err
	}
	rc.Plan = plan

	rc.Signed = make([]*SignedTransaction, len(plan.Descriptors))
	for i, d := range plan.Descriptors {
		signed, err := e.signer.Sign(d)
		if err != nil {
			rc.Close()
			return nil, err
		}
		rc.Signed[i] = signed
	}
	return rc, nil
}

func (e *Engine) execute(ctx context.Context, rc *RunContext, requests []TransferRequest, log *zap.Logger) error {
	driver := NewDriver(rc.Client, e.cfg.Driver, e.clock, e.log)

	for i, req := range requests {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w after %d of %d transfers: %v", ErrRunCancelled, i, len(requests), err)
		}

		started := e.clock.Now()
		out := driver.Deliver(ctx, rc.Signed[i], req)
		e.record(ctx, &out)
		rc.Outcomes = append(rc.Outcomes, out)

		amount, _ := out.Amount.Float64()
		e.metrics.ObserveTransfer(string(out.Status), amount, out.Status.Delivered(), e.clock.Since(started))

		if out.nonceUnconsumed && e.cfg.ReclaimRejectedNonces && i+1 < len(requests) {
			if err := e.reclaim(rc, i); err != nil {
				return err
			}
			log.Warn("交易被节点拒绝，后续 nonce 前移", zap.Int("index", req.Index), zap.Uint64("nonce", out.Nonce))
		}
	}
	return nil
}

// reclaim 回收被拒绝交易的 nonce，并重新签名其后的交易
func (e *Engine) reclaim(rc *RunContext, pos int) error {
	rc.Plan.Reclaim(pos)
	for j := pos + 1; j < len(rc.Plan.Descriptors); j++ {
		signed, err := e.signer.Sign(rc.Plan.Descriptors[j])
		if err != nil {
			return err
		}
		rc.Signed[j] = signed
	}
	return nil
}

// record 写流水；写失败只记录在结果上，不影响已经上链的转账
func (e *Engine) record(ctx context.Context, out *TransferOutcome) {
	rec := ledger.Record{
		TxHash:    out.TxHash,
		Status:    string(out.Status),
		Recipient: out.Recipient,
		Amount:    out.AmountWei,
		Timestamp: out.Timestamp,
	}
	if err := e.ledger.Append(context.WithoutCancel(ctx), rec); err != nil {
		out.LedgerErr = fmt.Errorf("%w: %w", ErrLedgerWrite, err)
		e.metrics.ObserveLedgerFailure()
		e.log.Error("写入流水失败", zap.String("tx_hash", out.TxHash), zap.Error(err))
	}
}

func (e *Engine) rejectedOutcomes(batch Batch) []TransferOutcome {
	outcomes := make([]TransferOutcome, 0, len(batch.Rejected))
	now := e.clock.Now().UTC()
	for _, r := range batch.Rejected {
		outcomes = append(outcomes, TransferOutcome{
			Index:     r.Index,
			Status:    StatusRejected,
			Recipient: r.Recipient,
			Timestamp: now,
			Err:       r,
		})
		e.metrics.ObserveTransfer(string(StatusRejected), 0, false, 0)
	}
	return outcomes
}

// endpointHost 日志里只保留主机名，URL 路径里经常带有 API key
func endpointHost(endpointURL string) string {
	u, err := url.Parse(endpointURL)
	if err != nil || u.Host == "" {
		return "invalid-endpoint"
	}
	return u.Host
}
