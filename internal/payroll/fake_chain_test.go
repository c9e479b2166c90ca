package payroll

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"payroll-core/internal/ledger"
)

// fakeChain 按脚本返回结果的 ChainClient
type fakeChain struct {
	mu sync.Mutex

	chainID  *big.Int
	nonce    uint64
	nonceErr error

	sendErrs  map[common.Address]error // 按收款地址
	reverted  map[common.Address]bool
	neverMine map[common.Address]bool
	onSend    func(tx *types.Transaction)
	usedBelow uint64 // 小于该值的 nonce 已被其他交易占用

	nonceCalls int
	sent       []*types.Transaction
	closed     bool
}

func newFakeChain(base uint64) *fakeChain {
	return &fakeChain{
		chainID:   big.NewInt(57054),
		nonce:     base,
		sendErrs:  map[common.Address]error{},
		reverted:  map[common.Address]bool{},
		neverMine: map[common.Address]bool{},
	}
}

func (f *fakeChain) ChainID(context.Context) (*big.Int, error) {
	return f.chainID, nil
}

func (f *fakeChain) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonceCalls++
	return f.nonce, f.nonceErr
}

func (f *fakeChain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	hook := f.onSend
	err := f.sendErrs[*tx.To()]
	if err == nil && tx.Nonce() < f.usedBelow {
		err = jsonRPCError{code: -32000, msg: fmt.Sprintf("nonce too low: next nonce %d, tx nonce %d", f.usedBelow, tx.Nonce())}
	}
	if err == nil {
		f.sent = append(f.sent, tx)
	}
	f.mu.Unlock()

	if hook != nil {
		hook(tx)
	}
	return err
}

func (f *fakeChain) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, tx := range f.sent {
		if tx.Hash() != hash {
			continue
		}
		if f.neverMine[*tx.To()] {
			return nil, ethereum.NotFound
		}
		status := types.ReceiptStatusSuccessful
		if f.reverted[*tx.To()] {
			status = types.ReceiptStatusFailed
		}
		return &types.Receipt{
			Status:      status,
			TxHash:      hash,
			GasUsed:     21000,
			BlockNumber: big.NewInt(int64(100 + i)),
		}, nil
	}
	return nil, ethereum.NotFound
}

func (f *fakeChain) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeChain) sentNonces() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	nonces := make([]uint64, 0, len(f.sent))
	for _, tx := range f.sent {
		nonces = append(nonces, tx.Nonce())
	}
	return nonces
}

// jsonRPCError 模拟节点返回的 JSON-RPC 错误
type jsonRPCError struct {
	code int
	msg  string
}

func (e jsonRPCError) Error() string  { return e.msg }
func (e jsonRPCError) ErrorCode() int { return e.code }

type failingStore struct{}

func (failingStore) Append(context.Context, ledger.Record) error {
	return errors.New("disk full")
}

func (failingStore) ReadAll(context.Context) ([]ledger.Record, error) {
	return nil, nil
}

func big57054() *big.Int {
	return big.NewInt(57054)
}
