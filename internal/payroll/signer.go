package payroll

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer 持有发款账户私钥，私钥不会出现在任何日志或字符串输出中
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func NewSigner(key *ecdsa.PrivateKey) (*Signer, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: missing private key", ErrSigning)
	}
	return &Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// ParsePrivateKey 解析 hex 私钥，允许 0x 前缀
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, fmt.Errorf("%w: empty private key", ErrSigning)
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		// 不把输入带进错误信息
		return nil, fmt.Errorf("%w: malformed private key", ErrSigning)
	}
	return key, nil
}

func (s *Signer) Address() common.Address {
	return s.address
}

func (s *Signer) String() string {
	return "Signer(" + s.address.Hex() + ")"
}

func (s *Signer) GoString() string {
	return s.String()
}

// Sign 构造 EIP-1559 交易并签名，相同输入得到相同结果
func (s *Signer) Sign(d TransactionDescriptor) (*SignedTransaction, error) {
	if d.ChainID == nil || d.Value == nil || d.GasTipCap == nil || d.GasFeeCap == nil {
		return nil, fmt.Errorf("%w: incomplete descriptor for nonce %d", ErrSigning, d.Nonce)
	}

	to := d.To
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   d.ChainID,
		Nonce:     d.Nonce,
		GasTipCap: d.GasTipCap,
		GasFeeCap: d.GasFeeCap,
		Gas:       d.GasLimit,
		To:        &to,
		Value:     d.Value,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(d.ChainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("%w: nonce %d: %v", ErrSigning, d.Nonce, err)
	}

	// Serialize (typed envelope)
	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: encode nonce %d: %v", ErrSigning, d.Nonce, err)
	}

	return &SignedTransaction{
		Hash:  signed.Hash(),
		Raw:   raw,
		Nonce: d.Nonce,
		Tx:    signed,
	}, nil
}
