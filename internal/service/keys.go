package service

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"strings"

	"payroll-core/internal/payroll"
	"payroll-core/pkg/config"
	"payroll-core/pkg/hdwallet"
	"payroll-core/pkg/keystore"
)

var ErrNoSenderKey = errors.New("no sender key configured (keystore, PRIVATE_KEY or mnemonic)")

// KeySource 私钥来源，只用于日志
type KeySource string

const (
	KeySourceKeystore   KeySource = "keystore"
	KeySourcePrivateKey KeySource = "private_key"
	KeySourceMnemonic   KeySource = "mnemonic"
)

// LoadSenderKey 按 Keystore > PRIVATE_KEY > 助记词 的顺序加载发款私钥。
// keystore 文件不存在时跳过；存在但解密失败直接报错，不会退回到其他来源。
func LoadSenderKey(cfg config.WalletConfig) (*ecdsa.PrivateKey, KeySource, error) {
	if cfg.KeystorePath != "" {
		if _, err := os.Stat(cfg.KeystorePath); err == nil {
			key, err := keyFromKeystore(cfg)
			return key, KeySourceKeystore, err
		}
	}

	if strings.TrimSpace(cfg.PrivateKey) != "" {
		key, err := payroll.ParsePrivateKey(cfg.PrivateKey)
		return key, KeySourcePrivateKey, err
	}

	if strings.TrimSpace(cfg.Mnemonic) != "" {
		key, err := keyFromMnemonic(cfg.Mnemonic, cfg.DerivationPath)
		return key, KeySourceMnemonic, err
	}

	return nil, "", fmt.Errorf("%w: %w", payroll.ErrSigning, ErrNoSenderKey)
}

func keyFromKeystore(cfg config.WalletConfig) (*ecdsa.PrivateKey, error) {
	if cfg.Password == "" {
		return nil, fmt.Errorf("%w: keystore %s requires WALLET_PASSWORD", payroll.ErrSigning, cfg.KeystorePath)
	}
	encrypted, err := keystore.LoadFromFile(cfg.KeystorePath)
	if err != nil {
		return nil, fmt.Errorf("%w: load keystore: %v", payroll.ErrSigning, err)
	}
	secret, err := keystore.Decrypt(encrypted, cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: decrypt keystore: %v", payroll.ErrSigning, err)
	}

	// keystore 里可以是私钥 hex，也可以是助记词
	if strings.Contains(strings.TrimSpace(secret), " ") {
		return keyFromMnemonic(secret, cfg.DerivationPath)
	}
	return payroll.ParsePrivateKey(secret)
}

func keyFromMnemonic(mnemonic, path string) (*ecdsa.PrivateKey, error) {
	if path == "" {
		path = hdwallet.DefaultPath
	}
	key, err := hdwallet.DeriveKey(mnemonic, "", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payroll.ErrSigning, err)
	}
	return key, nil
}
