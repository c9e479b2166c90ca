package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"payroll-core/internal/bootstrap"
	"payroll-core/internal/payroll"
	"payroll-core/pkg/config"
	"payroll-core/pkg/logger"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "执行一次批量发薪",
	Long: `默认按花名册发薪；指定 --payload 时读取 JSON 数组 [{"accountId": "0x..", "salary": "1.5"}]，
"-" 表示从标准输入读取。Ctrl+C 会在当前这笔转账完成后停止。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rpcURL, _ := cmd.Flags().GetString("rpc-url")
		payloadPath, _ := cmd.Flags().GetString("payload")
		asJSON, _ := cmd.Flags().GetBool("json")
		if cmd.Flags().Changed("allow-partial") {
			config.Global.Payroll.AllowPartial, _ = cmd.Flags().GetBool("allow-partial")
		}

		if err := ensureKeystorePassword(); err != nil {
			return err
		}
		components, err := bootstrap.Build(config.Global, logger.Named("payroll"))
		if err != nil {
			return err
		}
		defer components.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var res *payroll.RunResult
		if payloadPath == "" {
			res, err = components.Service.RunBatchFromRoster(ctx, rpcURL)
		} else {
			var payload []byte
			payload, err = readPayload(payloadPath)
			if err != nil {
				return err
			}
			res, err = components.Service.RunBatchFromPayload(ctx, rpcURL, payload)
		}
		if res != nil {
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				_ = enc.Encode(res)
			} else {
				printOutcomes(os.Stdout, res)
			}
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("rpc-url", "", "RPC 节点地址 (默认 payroll.rpc_url)")
	runCmd.Flags().StringP("payload", "p", "", "JSON 批次文件，- 表示标准输入")
	runCmd.Flags().Bool("allow-partial", false, "跳过无效记录而不是终止整个批次")
	runCmd.Flags().Bool("json", false, "以 JSON 输出结果")
}

func readPayload(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func printOutcomes(w io.Writer, res *payroll.RunResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSTATUS\tRECIPIENT\tAMOUNT\tNONCE\tTX HASH\tERROR")
	for _, o := range res.Outcomes {
		msg := ""
		if o.Err != nil {
			msg = o.Err.Error()
		}
		if o.LedgerErr != nil {
			msg += " [ledger: " + o.LedgerErr.Error() + "]"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n", o.Index, o.Status, o.Recipient, o.Amount, o.Nonce, o.TxHash, msg)
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "\n发款地址: %s  批次摘要: %s\n", res.Sender.Hex(), res.Digest)
	fmt.Fprintf(w, "到账 %d 笔，未到账 %d 笔\n", len(res.Delivered()), len(res.Undelivered()))
}
