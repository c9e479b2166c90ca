package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	DB      DBConfig      `mapstructure:"db"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Wallet  WalletConfig  `mapstructure:"wallet"`
	Payroll PayrollConfig `mapstructure:"payroll"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
	Roster  RosterConfig  `mapstructure:"roster"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	HttpPort string `mapstructure:"http_port"`
	GrpcPort string `mapstructure:"grpc_port"`
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

// DSN 构造 gorm 使用的 Postgres 连接串
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		c.Host, c.User, c.Password, c.Name, c.Port)
}

// URL 构造 golang-migrate 使用的连接串
func (c DBConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"` // 为空表示不使用 Redis (单机锁 + 无 MQ)
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	MQType   string `mapstructure:"mq_type"` // "redis" or "kafka"
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

// WalletConfig 发款账户的私钥来源，按 Keystore > PrivateKey > Mnemonic 的顺序选用
type WalletConfig struct {
	PrivateKey     string `mapstructure:"private_key"`     // hex, 通常通过环境变量 PRIVATE_KEY 传入
	KeystorePath   string `mapstructure:"keystore_path"`   // 加密后的私钥文件
	Password       string `mapstructure:"password"`        // Keystore 密码 (WALLET_PASSWORD)
	Mnemonic       string `mapstructure:"mnemonic"`        // 开发环境 fallback
	DerivationPath string `mapstructure:"derivation_path"` // 默认 m/44'/60'/0'/0/0
}

type PayrollConfig struct {
	RpcUrl                string        `mapstructure:"rpc_url"` // 调用方未指定时使用
	GasLimit              uint64        `mapstructure:"gas_limit"`
	PriorityFeeGwei       string        `mapstructure:"priority_fee_gwei"`
	MaxFeeGwei            string        `mapstructure:"max_fee_gwei"`
	SubmitTimeout         time.Duration `mapstructure:"submit_timeout"`
	ConfirmationTimeout   time.Duration `mapstructure:"confirmation_timeout"`
	PollInterval          time.Duration `mapstructure:"poll_interval"`
	AllowPartial          bool          `mapstructure:"allow_partial"`
	ReclaimRejectedNonces bool          `mapstructure:"reclaim_rejected_nonces"`
	LockTTL               time.Duration `mapstructure:"lock_ttl"`
}

type LedgerConfig struct {
	Driver      string `mapstructure:"driver"` // csv, postgres, both
	CSVPath     string `mapstructure:"csv_path"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
	Publish     bool   `mapstructure:"publish"` // 每条记录写入后投递到 MQ
}

type RosterConfig struct {
	Path string `mapstructure:"path"`
}

var Global Config

// Init 加载配置到 Global，失败直接退出
func Init() {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("Fatal error config file: %s \n", err)
	}
	Global = cfg
	log.Printf("Configuration loaded successfully. Env: %s", Global.App.Env)
}

// Load 读取 .env、config.yaml 与环境变量，返回合并后的配置
func Load(paths ...string) (Config, error) {
	// .env 不存在不算错误
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, relying on environment variables")
	}

	v := viper.New()
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name
	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// 环境变量设置
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// 兼容旧的 .env 写法
	_ = v.BindEnv("wallet.private_key", "WALLET_PRIVATE_KEY", "PRIVATE_KEY")
	_ = v.BindEnv("wallet.password", "WALLET_PASSWORD")

	// 设置默认值
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Printf("Warning: Config file not found, using defaults and environment variables")
		} else {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.http_port", "8080")
	v.SetDefault("app.grpc_port", "50051")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "payroll_user")
	v.SetDefault("db.password", "payroll_password")
	v.SetDefault("db.name", "payroll_db")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.mq_type", "redis")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})

	v.SetDefault("wallet.keystore_path", "sender.json")
	v.SetDefault("wallet.derivation_path", "m/44'/60'/0'/0/0")

	v.SetDefault("payroll.rpc_url", "https://rpc.blaze.soniclabs.com/")
	v.SetDefault("payroll.gas_limit", 21000)
	v.SetDefault("payroll.priority_fee_gwei", "2")
	v.SetDefault("payroll.max_fee_gwei", "50")
	v.SetDefault("payroll.submit_timeout", 30*time.Second)
	v.SetDefault("payroll.confirmation_timeout", 2*time.Minute)
	v.SetDefault("payroll.poll_interval", 2*time.Second)
	v.SetDefault("payroll.allow_partial", false)
	v.SetDefault("payroll.reclaim_rejected_nonces", false)
	v.SetDefault("payroll.lock_ttl", 30*time.Minute)

	v.SetDefault("ledger.driver", "csv")
	v.SetDefault("ledger.csv_path", "data/bulk_transfer_log.csv")
	v.SetDefault("ledger.auto_migrate", false)
	v.SetDefault("ledger.publish", false)

	v.SetDefault("roster.path", "data/company_employees.csv")
}
