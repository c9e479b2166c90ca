package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"payroll-core/internal/ledger"
)

// DemoEmployees 演示数据，钱包地址为 hardhat 测试账户
var DemoEmployees = []Employee{
	{Name: "Alice", Address: "123 Main St", AccountID: "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", Salary: "0.8", WorkHours: "40"},
	{Name: "Bob", Address: "456 Elm St", AccountID: "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC", Salary: "0.5", WorkHours: "35"},
	{Name: "Charlie", Address: "789 Oak St", AccountID: "0x90F79bf6EB2c4f870365E785982E1f101E93b906", Salary: "0.6", WorkHours: "38"},
}

// Seed 写入演示花名册，并在流水文件不存在时写入表头。
// 已存在的花名册只有 overwrite 为 true 时才覆盖，流水文件永远不会被截断。
func Seed(rosterPath, ledgerPath string, overwrite bool) error {
	if err := writeRoster(rosterPath, DemoEmployees, overwrite); err != nil {
		return err
	}
	return ensureLedgerHeader(ledgerPath)
}

func writeRoster(path string, employees []Employee, overwrite bool) error {
	if _, err := os.Stat(path); err == nil && !overwrite {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create roster dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create roster: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	_ = w.Write(Columns)
	for _, e := range employees {
		_ = w.Write([]string{e.Name, e.Address, e.AccountID, e.Salary, e.WorkHours})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write roster: %w", err)
	}
	return f.Sync()
}

func ensureLedgerHeader(path string) error {
	info, err := os.Stat(path)
	if err == nil && info.Size() > 0 {
		return nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat ledger: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("create ledger: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	_ = w.Write(ledger.Header)
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write ledger header: %w", err)
	}
	return f.Sync()
}
