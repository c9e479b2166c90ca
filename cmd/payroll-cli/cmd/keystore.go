package cmd

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"payroll-core/internal/payroll"
	"payroll-core/pkg/config"
	"payroll-core/pkg/keystore"
)

var keystoreCmd = &cobra.Command{
	Use:   "keystore",
	Short: "加密保存发款私钥",
	Long:  `从终端读取发款私钥 (不回显)，使用密码通过 scrypt + AES-256-GCM 加密后写入 keystore 文件。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		light, _ := cmd.Flags().GetBool("light")
		if out == "" {
			out = config.Global.Wallet.KeystorePath
		}
		if _, err := os.Stat(out); err == nil {
			return fmt.Errorf("%s 已存在，拒绝覆盖", out)
		}

		secret, err := readSecret("请输入发款私钥 (hex): ")
		if err != nil {
			return err
		}
		key, err := payroll.ParsePrivateKey(secret)
		if err != nil {
			return err
		}
		password, err := readNewPassword()
		if err != nil {
			return err
		}

		fmt.Println("正在加密 (scrypt)...")
		encrypt := keystore.Encrypt
		if light {
			encrypt = keystore.EncryptLight
		}
		encrypted, err := encrypt(secret, password)
		if err != nil {
			return fmt.Errorf("加密失败: %w", err)
		}
		address := crypto.PubkeyToAddress(key.PublicKey)
		encrypted.Address = address.Hex()

		if err := encrypted.SaveToFile(out); err != nil {
			return fmt.Errorf("保存 keystore 失败: %w", err)
		}
		fmt.Printf("✅ 已保存到 %s\n", out)
		fmt.Printf("发款地址: %s\n", address.Hex())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keystoreCmd)
	keystoreCmd.Flags().StringP("out", "o", "", "keystore 输出路径 (默认 wallet.keystore_path)")
	keystoreCmd.Flags().Bool("light", false, "使用较低的 scrypt 成本 (仅限测试网)")
}
