package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"payroll-core/internal/roster"
	"payroll-core/pkg/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "生成演示花名册和流水文件",
	Long:  `写入演示用的员工花名册，并在流水文件不存在时写入表头。已有的流水不会被修改。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		rosterPath := config.Global.Roster.Path
		ledgerPath := config.Global.Ledger.CSVPath
		if err := roster.Seed(rosterPath, ledgerPath, force); err != nil {
			return err
		}

		fmt.Printf("花名册: %s\n", rosterPath)
		fmt.Printf("流水:   %s\n", ledgerPath)
		fmt.Println("✅ 初始化完成")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolP("force", "f", false, "覆盖已有的花名册")
}
