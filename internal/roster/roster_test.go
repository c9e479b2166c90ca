package roster

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payroll-core/internal/ledger"
	"payroll-core/internal/payroll"
)

func TestRead(t *testing.T) {
	data := "salary,accountId,name,extra\n1.5,0x70997970C51812dc3A010C7d01b50e0d17dc79C8,Alice,x\n 2 ,0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC,Bob,y\n"
	employees, err := Read(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, employees, 2)
	assert.Equal(t, "Alice", employees[0].Name)
	assert.Equal(t, "2", employees[1].Salary)
	assert.Empty(t, employees[0].WorkHours)

	records := Records(employees)
	assert.Equal(t, payroll.Record{AccountID: "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", Salary: "1.5"}, records[0])
}

func TestReadMissingColumns(t *testing.T) {
	_, err := Read(strings.NewReader("name,address,salary,work_hours\nAlice,123 Main St,0.8,40\n"))
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = Load(filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSeed(t *testing.T) {
	dir := t.TempDir()
	rosterPath := filepath.Join(dir, "data", "company_employees.csv")
	ledgerPath := filepath.Join(dir, "data", "bulk_transfer_log.csv")

	require.NoError(t, Seed(rosterPath, ledgerPath, false))

	employees, err := Load(rosterPath)
	require.NoError(t, err)
	assert.Equal(t, DemoEmployees, employees)

	batch, err := payroll.LoadRecords(Records(employees), payroll.LoadOptions{})
	require.NoError(t, err)
	assert.Len(t, batch.Requests, 3)

	// 流水已有数据时再次初始化不会截断
	store := ledger.NewCSVStore(ledgerPath)
	require.NoError(t, store.Append(context.Background(), ledger.Record{TxHash: "0x1", Status: "success", Recipient: employees[0].AccountID, Amount: "1"}))
	require.NoError(t, Seed(rosterPath, ledgerPath, true))

	records, err := store.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)

	raw, _ := os.ReadFile(ledgerPath)
	assert.Equal(t, 1, strings.Count(string(raw), "tx_hash,status"))
}
