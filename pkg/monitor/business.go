package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics 定义发薪业务监控指标
type BusinessMetrics struct {
	TransfersTotal            *prometheus.CounterVec
	TransferAmountTotal       *prometheus.CounterVec
	TransferUndelivered       *prometheus.CounterVec
	ConfirmationDuration      prometheus.Histogram
	RunsTotal                 *prometheus.CounterVec
	LedgerWriteFailures       prometheus.Counter
	SenderLockContentionTotal prometheus.Counter
}

// Global Metrics Instance
// 未初始化时为 nil，所有方法都是 nil-safe 的
var Business *BusinessMetrics

// InitBusinessMetrics 初始化业务指标
func InitBusinessMetrics() {
	Business = NewBusinessMetrics(prometheus.DefaultRegisterer)
}

// NewBusinessMetrics 在指定的 Registerer 上创建指标 (测试使用独立的 Registry)
func NewBusinessMetrics(reg prometheus.Registerer) *BusinessMetrics {
	f := promauto.With(reg)
	return &BusinessMetrics{
		TransfersTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "payroll_transfers_total",
			Help: "Number of attempted payroll transfers by final status",
		}, []string{"status"}),
		TransferAmountTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "payroll_transfer_amount_total",
			Help: "Native-unit amount of attempted payroll transfers by final status",
		}, []string{"status"}),
		TransferUndelivered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "payroll_transfer_undelivered_total",
			Help: "Transfers whose funds were not confirmed as delivered (alerting)",
		}, []string{"status"}),
		ConfirmationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "payroll_confirmation_duration_seconds",
			Help:    "Time from submission to receipt",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		}),
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "payroll_runs_total",
			Help: "Payroll runs by result",
		}, []string{"result"}),
		LedgerWriteFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "payroll_ledger_write_failures_total",
			Help: "Ledger appends that failed after a transfer attempt",
		}),
		SenderLockContentionTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "payroll_sender_lock_contention_total",
			Help: "Runs refused because another run held the sender lock",
		}),
	}
}

// ObserveTransfer 记录一笔转账的最终状态
func (m *BusinessMetrics) ObserveTransfer(status string, amount float64, delivered bool, confirmWait time.Duration) {
	if m == nil {
		return
	}
	m.TransfersTotal.WithLabelValues(status).Inc()
	m.TransferAmountTotal.WithLabelValues(status).Add(amount)
	if !delivered {
		m.TransferUndelivered.WithLabelValues(status).Inc()
	}
	if confirmWait > 0 {
		m.ConfirmationDuration.Observe(confirmWait.Seconds())
	}
}

// ObserveRun 记录一次批量发薪的结果: ok, partial, fatal, cancelled
func (m *BusinessMetrics) ObserveRun(result string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(result).Inc()
}

func (m *BusinessMetrics) ObserveLedgerFailure() {
	if m == nil {
		return
	}
	m.LedgerWriteFailures.Inc()
}

func (m *BusinessMetrics) ObserveLockContention() {
	if m == nil {
		return
	}
	m.SenderLockContentionTotal.Inc()
}
