package payroll

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	weiPerEther = decimal.New(1, 18)
	weiPerGwei  = decimal.New(1, 9)
)

var errSubWei = errors.New("amount has more than 18 decimal places")

// EtherToWei 1.5 -> 1500000000000000000，不允许出现小于 1 wei 的精度
func EtherToWei(amount decimal.Decimal) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("negative amount %s", amount)
	}
	wei := amount.Mul(weiPerEther)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, errSubWei
	}
	return wei.BigInt(), nil
}

func WeiToEther(wei *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(wei, -18)
}

// GweiToWei 解析配置中的 gwei 字符串
func GweiToWei(gwei string) (*big.Int, error) {
	d, err := decimal.NewFromString(gwei)
	if err != nil {
		return nil, fmt.Errorf("parse gwei %q: %w", gwei, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("negative gwei %q", gwei)
	}
	return d.Mul(weiPerGwei).Truncate(0).BigInt(), nil
}
