package payroll

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFeePolicy(t *testing.T) {
	p, err := NewFeePolicy(21000, "2", "50")
	require.NoError(t, err)
	assert.Equal(t, uint64(21000), p.GasLimit)
	assert.Equal(t, "2000000000", p.GasTipCap.String())
	assert.Equal(t, "50000000000", p.GasFeeCap.String())

	_, err = NewFeePolicy(21000, "60", "50")
	assert.Error(t, err, "tip above cap")

	_, err = NewFeePolicy(0, "1", "2")
	assert.Error(t, err)

	_, err = NewFeePolicy(21000, "abc", "2")
	assert.Error(t, err)
}

func TestPlanAndReclaim(t *testing.T) {
	chain := newFakeChain(40)
	reqs := batchOf(alice, "1", bob, "0.25", carol, "3").Requests

	plan, err := DefaultFeePolicy().Plan(context.Background(), chain, common.Address{}, reqs)
	require.NoError(t, err)
	assert.Equal(t, 1, chain.nonceCalls)
	assert.Equal(t, big.NewInt(57054), plan.ChainID)

	var nonces []uint64
	for _, d := range plan.Descriptors {
		nonces = append(nonces, d.Nonce)
		assert.Equal(t, uint64(21000), d.GasLimit)
	}
	assert.Equal(t, []uint64{40, 41, 42}, nonces)
	assert.Equal(t, "250000000000000000", plan.Descriptors[1].Value.String())

	plan.Reclaim(0)
	assert.Equal(t, uint64(40), plan.Descriptors[0].Nonce)
	assert.Equal(t, uint64(40), plan.Descriptors[1].Nonce)
	assert.Equal(t, uint64(41), plan.Descriptors[2].Nonce)
}

func TestUnits(t *testing.T) {
	fee, err := GweiToWei("2")
	require.NoError(t, err)
	assert.Equal(t, "2000000000", fee.String())

	wei, _ := new(big.Int).SetString("1500000000000000000", 10)
	assert.Equal(t, "1.5", WeiToEther(wei).String())
}
