// Package bootstrap 按配置组装发薪服务的各个组件，供 server、worker、cli 共用。
package bootstrap

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"payroll-core/internal/ledger"
	"payroll-core/internal/payroll"
	"payroll-core/internal/service"
	"payroll-core/internal/service/mq"
	"payroll-core/pkg/config"
	"payroll-core/pkg/database"
	"payroll-core/pkg/monitor"
	"payroll-core/pkg/utils/lock"
)

// streamMaxLen Redis Stream 近似保留条数
const streamMaxLen = 100000

type Components struct {
	Sender   common.Address
	Engine   *payroll.Engine
	Store    ledger.Store
	Service  *service.PayrollService
	Redis    *redis.Client
	DB       *gorm.DB
	Producer mq.Producer

	closers []func() error
}

// EngineConfig payroll.* 配置 -> 引擎配置
func EngineConfig(c config.PayrollConfig) (payroll.Config, error) {
	fees, err := payroll.NewFeePolicy(c.GasLimit, c.PriorityFeeGwei, c.MaxFeeGwei)
	if err != nil {
		return payroll.Config{}, err
	}
	cfg := payroll.DefaultConfig()
	cfg.Fees = fees
	cfg.ReclaimRejectedNonces = c.ReclaimRejectedNonces
	if c.SubmitTimeout > 0 {
		cfg.Driver.SubmitTimeout = c.SubmitTimeout
		cfg.DialTimeout = c.SubmitTimeout
	}
	if c.ConfirmationTimeout > 0 {
		cfg.Driver.ConfirmationTimeout = c.ConfirmationTimeout
	}
	if c.PollInterval > 0 {
		cfg.Driver.PollInterval = c.PollInterval
	}
	return cfg, nil
}

// Build 加载私钥、连接依赖并组装 PayrollService
func Build(cfg config.Config, log *zap.Logger) (*Components, error) {
	c := &Components{}
	if err := c.build(cfg, log); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Components) build(cfg config.Config, log *zap.Logger) error {
	key, source, err := service.LoadSenderKey(cfg.Wallet)
	if err != nil {
		return err
	}
	signer, err := payroll.NewSigner(key)
	if err != nil {
		return err
	}
	c.Sender = signer.Address()
	log.Info("发款私钥加载成功", zap.String("source", string(source)), zap.String("sender", c.Sender.Hex()))

	if cfg.Redis.Addr != "" {
		c.Redis, err = database.ConnectRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		c.closers = append(c.closers, c.Redis.Close)
	}
	c.Producer = NewProducer(cfg, c.Redis)
	if c.Producer != nil {
		c.closers = append(c.closers, c.Producer.Close)
	}

	c.Store, err = c.ledgerStore(cfg, log)
	if err != nil {
		return err
	}

	engineCfg, err := EngineConfig(cfg.Payroll)
	if err != nil {
		return err
	}
	c.Engine, err = payroll.NewEngine(signer, c.Store, engineCfg,
		payroll.WithLogger(log.Named("engine")),
		payroll.WithMetrics(monitor.Business),
	)
	if err != nil {
		return err
	}

	var locker lock.DistributedLock = lock.NewLocalLock()
	if c.Redis != nil {
		locker = lock.NewRedisLock(c.Redis)
	}
	c.Service = service.NewPayrollService(c.Engine, c.Store, locker, service.PayrollServiceConfig{
		RosterPath:    cfg.Roster.Path,
		DefaultRpcUrl: cfg.Payroll.RpcUrl,
		LockTTL:       cfg.Payroll.LockTTL,
		AllowPartial:  cfg.Payroll.AllowPartial,
	}, log.Named("service"))
	return nil
}

func (c *Components) ledgerStore(cfg config.Config, log *zap.Logger) (ledger.Store, error) {
	var store ledger.Store
	switch cfg.Ledger.Driver {
	case "", "csv":
		store = ledger.NewCSVStore(cfg.Ledger.CSVPath)
	case "postgres", "both":
		if err := c.connectDB(cfg); err != nil {
			return nil, err
		}
		gormStore := ledger.NewGormStore(c.DB, cfg.Ledger.AutoMigrate)
		if cfg.Ledger.Driver == "both" {
			// CSV 为主，读取走本地文件
			store = ledger.NewTee(ledger.NewCSVStore(cfg.Ledger.CSVPath), gormStore)
		} else {
			store = gormStore
		}
	default:
		return nil, fmt.Errorf("unknown ledger driver %q (csv, postgres, both)", cfg.Ledger.Driver)
	}

	if cfg.Ledger.Publish {
		if c.Producer == nil {
			return nil, errors.New("ledger.publish requires redis.addr or redis.mq_type=kafka")
		}
		store = ledger.NewPublishingStore(store, c.Producer, log.Named("ledger"))
	}
	return store, nil
}

func (c *Components) connectDB(cfg config.Config) error {
	db, err := database.ConnectPostgres(cfg.DB.DSN())
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	c.DB = db
	c.closers = append(c.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	return nil
}

// NewProducer redis.mq_type=kafka 时使用 Kafka，否则在配置了 Redis 时使用 Redis Streams
func NewProducer(cfg config.Config, rdb *redis.Client) mq.Producer {
	if cfg.Redis.MQType == "kafka" {
		return mq.NewKafkaProducer(cfg.Kafka.Brokers)
	}
	if rdb != nil {
		return mq.NewRedisProducer(rdb, streamMaxLen)
	}
	return nil
}

// NewConsumer 与 NewProducer 选择相同的 MQ
func NewConsumer(cfg config.Config, rdb *redis.Client, group, name string) (mq.Consumer, error) {
	if cfg.Redis.MQType == "kafka" {
		return mq.NewKafkaConsumer(cfg.Kafka.Brokers, group), nil
	}
	if rdb != nil {
		return mq.NewRedisConsumer(rdb, group, name), nil
	}
	return nil, errors.New("no message queue configured: set redis.addr or redis.mq_type=kafka")
}

// Close 逆序释放资源
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i]()
	}
	c.closers = nil
}
