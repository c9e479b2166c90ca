package payroll

import (
	"time"

	"github.com/shopspring/decimal"

	"payroll-core/internal/ledger"
)

// Summary 流水统计
type Summary struct {
	Total            int             `json:"total"`
	ByStatus         map[string]int  `json:"by_status"`
	DeliveredWei     string          `json:"delivered_wei"`
	DeliveredEther   decimal.Decimal `json:"delivered_ether"`
	UndeliveredWei   string          `json:"undelivered_wei"`
	FirstTransaction *time.Time      `json:"first_transaction,omitempty"`
	LastTransaction  *time.Time      `json:"last_transaction,omitempty"`
}

// Summarize 汇总流水记录，无法解析的金额计为 0
func Summarize(records []ledger.Record) Summary {
	s := Summary{Total: len(records), ByStatus: make(map[string]int)}
	delivered, undelivered := decimal.Zero, decimal.Zero

	for _, r := range records {
		s.ByStatus[r.Status]++

		amount, err := decimal.NewFromString(r.Amount)
		if err != nil {
			amount = decimal.Zero
		}
		if Status(r.Status).Delivered() {
			delivered = delivered.Add(amount)
		} else {
			undelivered = undelivered.Add(amount)
		}

		ts := r.Timestamp
		if s.FirstTransaction == nil || ts.Before(*s.FirstTransaction) {
			s.FirstTransaction = &ts
		}
		if s.LastTransaction == nil || ts.After(*s.LastTransaction) {
			last := ts
			s.LastTransaction = &last
		}
	}

	s.DeliveredWei = delivered.String()
	s.DeliveredEther = delivered.Shift(-18)
	s.UndeliveredWei = undelivered.String()
	return s
}
