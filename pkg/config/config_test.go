package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, uint64(21000), cfg.Payroll.GasLimit)
	assert.Equal(t, "2", cfg.Payroll.PriorityFeeGwei)
	assert.Equal(t, "50", cfg.Payroll.MaxFeeGwei)
	assert.Equal(t, 2*time.Minute, cfg.Payroll.ConfirmationTimeout)
	assert.Equal(t, "csv", cfg.Ledger.Driver)
	assert.Equal(t, "data/bulk_transfer_log.csv", cfg.Ledger.CSVPath)
	assert.Equal(t, "m/44'/60'/0'/0/0", cfg.Wallet.DerivationPath)
	assert.False(t, cfg.Payroll.AllowPartial)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
app:
  env: production
payroll:
  confirmation_timeout: 45s
  max_fee_gwei: "80"
ledger:
  driver: both
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("PRIVATE_KEY", "0xabc")
	t.Setenv("PAYROLL_GAS_LIMIT", "30000")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.App.Env)
	assert.Equal(t, 45*time.Second, cfg.Payroll.ConfirmationTimeout)
	assert.Equal(t, "80", cfg.Payroll.MaxFeeGwei)
	assert.Equal(t, "both", cfg.Ledger.Driver)
	assert.Equal(t, "0xabc", cfg.Wallet.PrivateKey)
	assert.Equal(t, uint64(30000), cfg.Payroll.GasLimit)
}

func TestDBConfigDSN(t *testing.T) {
	c := DBConfig{Host: "db", Port: "5432", User: "u", Password: "p", Name: "payroll"}
	assert.Equal(t, "host=db user=u password=p dbname=payroll port=5432 sslmode=disable TimeZone=UTC", c.DSN())
	assert.Equal(t, "postgres://u:p@db:5432/payroll?sslmode=disable", c.URL())
}
