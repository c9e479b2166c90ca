package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"payroll-core/pkg/config"
	"payroll-core/pkg/logger"
)

var configDir string

// rootCmd 代表基础命令，没有子命令时直接调用
var rootCmd = &cobra.Command{
	Use:   "payroll-cli",
	Short: "批量发薪命令行工具",
	Long: `向以太坊兼容链上的员工钱包批量发放工资，并记录每笔转账的流水。
私钥来源依次为 keystore 文件、PRIVATE_KEY 环境变量、助记词。`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var paths []string
		if configDir != "" {
			paths = append(paths, configDir)
		}
		cfg, err := config.Load(paths...)
		if err != nil {
			return err
		}
		config.Global = cfg
		logger.Init(cfg.App.Env)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

// Execute 将所有子命令添加到根命令并设置标志
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config", "c", "", "config.yaml 所在目录 (默认 . 和 ./config)")
}
