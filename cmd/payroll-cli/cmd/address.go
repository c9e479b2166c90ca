package cmd

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"payroll-core/internal/service"
	"payroll-core/pkg/config"
)

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "显示发款地址",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureKeystorePassword(); err != nil {
			return err
		}
		key, source, err := service.LoadSenderKey(config.Global.Wallet)
		if err != nil {
			return err
		}
		fmt.Printf("发款地址: %s\n", crypto.PubkeyToAddress(key.PublicKey).Hex())
		fmt.Printf("私钥来源: %s\n", source)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addressCmd)
}

// ensureKeystorePassword keystore 存在但没有配置 WALLET_PASSWORD 时从终端读取
func ensureKeystorePassword() error {
	w := &config.Global.Wallet
	if w.KeystorePath == "" || w.Password != "" {
		return nil
	}
	if _, err := os.Stat(w.KeystorePath); err != nil {
		return nil
	}
	pw, err := readSecret(fmt.Sprintf("请输入 %s 的密码: ", w.KeystorePath))
	if err != nil {
		return err
	}
	w.Password = pw
	return nil
}
