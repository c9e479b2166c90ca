package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"payroll-core/internal/ledger"
	"payroll-core/internal/payroll"
	"payroll-core/internal/roster"
	"payroll-core/pkg/monitor"
	"payroll-core/pkg/utils/lock"
)

type PayrollServiceConfig struct {
	RosterPath    string
	DefaultRpcUrl string // 请求未指定 rpc_url 时使用
	LockTTL       time.Duration
	AllowPartial  bool
}

// PayrollService 对外的两个发薪操作，同一发款地址同时只允许一个批次
type PayrollService struct {
	engine  *payroll.Engine
	store   ledger.Store
	locker  lock.DistributedLock
	cfg     PayrollServiceConfig
	metrics *monitor.BusinessMetrics
	log     *zap.Logger
}

func NewPayrollService(engine *payroll.Engine, store ledger.Store, locker lock.DistributedLock, cfg PayrollServiceConfig, log *zap.Logger) *PayrollService {
	if locker == nil {
		locker = lock.NewLocalLock()
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PayrollService{
		engine:  engine,
		store:   store,
		locker:  locker,
		cfg:     cfg,
		metrics: monitor.Business,
		log:     log,
	}
}

func (s *PayrollService) Sender() common.Address {
	return s.engine.Sender()
}

// RunBatchFromRoster 按花名册发薪
func (s *PayrollService) RunBatchFromRoster(ctx context.Context, endpointURL string) (*payroll.RunResult, error) {
	employees, err := roster.Load(s.cfg.RosterPath)
	if err != nil {
		return nil, err
	}
	batch, err := payroll.LoadRecords(roster.Records(employees), s.loadOptions())
	if err != nil {
		return nil, err
	}
	return s.run(ctx, endpointURL, batch)
}

// RunBatchFromPayload 按调用方提供的 JSON 批次发薪
func (s *PayrollService) RunBatchFromPayload(ctx context.Context, endpointURL string, payload []byte) (*payroll.RunResult, error) {
	batch, err := payroll.ParsePayload(payload, s.loadOptions())
	if err != nil {
		return nil, err
	}
	return s.run(ctx, endpointURL, batch)
}

func (s *PayrollService) Ledger(ctx context.Context) ([]ledger.Record, error) {
	return s.store.ReadAll(ctx)
}

func (s *PayrollService) Summary(ctx context.Context) (payroll.Summary, error) {
	records, err := s.store.ReadAll(ctx)
	if err != nil {
		return payroll.Summary{}, err
	}
	return payroll.Summarize(records), nil
}

func (s *PayrollService) loadOptions() payroll.LoadOptions {
	return payroll.LoadOptions{AllowPartial: s.cfg.AllowPartial}
}

func (s *PayrollService) run(ctx context.Context, endpointURL string, batch payroll.Batch) (*payroll.RunResult, error) {
	if strings.TrimSpace(endpointURL) == "" {
		endpointURL = s.cfg.DefaultRpcUrl
	}

	key := lockKey(s.Sender())
	token, ok, err := s.locker.Acquire(ctx, key, s.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire sender lock: %w", err)
	}
	if !ok {
		s.metrics.ObserveLockContention()
		return nil, fmt.Errorf("%w: %s", payroll.ErrRunInProgress, s.Sender().Hex())
	}

	// 锁丢失时在两笔转账之间停下，避免另一个批次拿到相同的 nonce
	runCtx, lost := context.WithCancel(ctx)
	defer lost()
	stop := s.keepLock(key, token, lost)
	defer func() {
		stop()
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.Warn("释放发款锁失败", zap.String("key", key), zap.Error(err))
		}
	}()

	return s.engine.Run(runCtx, endpointURL, batch)
}

// keepLock 在批次执行期间按 TTL/3 续期，返回的函数停止续期并等待 goroutine 退出
func (s *PayrollService) keepLock(key, token string, lost context.CancelFunc) func() {
	interval := s.cfg.LockTTL / 3
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
			}

			ctx, cancel := context.WithTimeout(context.Background(), interval)
			ok, err := s.locker.Refresh(ctx, key, token, s.cfg.LockTTL)
			cancel()
			if err != nil {
				s.log.Warn("发款锁续期失败，稍后重试", zap.String("key", key), zap.Error(err))
				continue
			}
			if !ok {
				s.log.Error("发款锁已丢失，停止后续转账", zap.String("key", key))
				lost()
				return
			}
		}
	}()

	return func() {
		close(done)
		<-finished
	}
}

func lockKey(sender common.Address) string {
	return "payroll:sender:" + strings.ToLower(sender.Hex())
}
