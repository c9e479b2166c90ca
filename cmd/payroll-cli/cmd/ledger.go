package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"payroll-core/internal/ledger"
	"payroll-core/internal/payroll"
	"payroll-core/pkg/config"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "查看转账流水与统计",
	RunE: func(cmd *cobra.Command, args []string) error {
		summaryOnly, _ := cmd.Flags().GetBool("summary")

		store := ledger.NewCSVStore(config.Global.Ledger.CSVPath)
		records, err := store.ReadAll(context.Background())
		if err != nil {
			return err
		}

		if !summaryOnly {
			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TIMESTAMP\tSTATUS\tRECIPIENT\tAMOUNT (wei)\tTX HASH")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Timestamp.Format(ledger.TimestampLayout), r.Status, r.Recipient, r.Amount, r.TxHash)
			}
			_ = tw.Flush()
			fmt.Println()
		}

		out, _ := json.MarshalIndent(payroll.Summarize(records), "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.Flags().Bool("summary", false, "只输出统计")
}
