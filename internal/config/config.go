package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Storage  StorageConfig  `mapstructure:"storage"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	NodeID          int64         `mapstructure:"node_id"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

// StorageConfig driver: mysql | postgres | memory
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type PostgresConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db"`
	PoolSize       int           `mapstructure:"pool_size"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	ConnectRetries int           `mapstructure:"connect_retries"`
	LockTTL        time.Duration `mapstructure:"lock_ttl"`
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	Ledger     string `mapstructure:"ledger"`
	Project    string `mapstructure:"project"`
	Withdrawal string `mapstructure:"withdrawal"`
}

type AuthConfig struct {
	JWTSecret      string               `mapstructure:"jwt_secret"`
	TokenTTL       time.Duration        `mapstructure:"token_ttl"`
	BootstrapAdmin BootstrapAdminConfig `mapstructure:"bootstrap_admin"`
}

// BootstrapAdminConfig 启动时确保存在的管理员账号，username 为空时跳过
type BootstrapAdminConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	FullName string `mapstructure:"full_name"`
	Gender   string `mapstructure:"gender"`
}

type BusinessConfig struct {
	WithdrawalMin         decimal.Decimal `mapstructure:"withdrawal_min"`
	WithdrawalMax         decimal.Decimal `mapstructure:"withdrawal_max"`
	TDSRate               decimal.Decimal `mapstructure:"tds_rate"`
	MaxPendingWithdrawals int             `mapstructure:"max_pending_withdrawals"`
	LockTimeout           time.Duration   `mapstructure:"lock_timeout"`
	DeadlineSweepInterval time.Duration   `mapstructure:"deadline_sweep_interval"`
	DeadlineSweepBatch    int             `mapstructure:"deadline_sweep_batch"`
	DefaultProjectHours   int             `mapstructure:"default_project_hours"`
	EmployeeCodeStart     int64           `mapstructure:"employee_code_start"`
	LedgerHistoryLimit    int             `mapstructure:"ledger_history_limit"`
	OutboxInterval        time.Duration   `mapstructure:"outbox_interval"`
	OutboxMaxRetry        int             `mapstructure:"outbox_max_retry"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.node_id", 1)
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("storage.driver", "mysql")
	v.SetDefault("mysql.max_open_conns", 50)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("postgres.max_open_conns", 50)
	v.SetDefault("postgres.max_idle_conns", 10)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.dial_timeout", "3s")
	v.SetDefault("redis.connect_retries", 3)
	v.SetDefault("redis.lock_ttl", "30s")
	v.SetDefault("kafka.topic.ledger", "wallet-ledger")
	v.SetDefault("kafka.topic.project", "project-events")
	v.SetDefault("kafka.topic.withdrawal", "withdrawal-events")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("auth.bootstrap_admin.username", "")
	v.SetDefault("auth.bootstrap_admin.password", "")
	v.SetDefault("auth.bootstrap_admin.full_name", "Administrator")
	v.SetDefault("auth.bootstrap_admin.gender", "O")
	v.SetDefault("business.withdrawal_min", "100")
	v.SetDefault("business.withdrawal_max", "50000")
	v.SetDefault("business.tds_rate", "0.10")
	v.SetDefault("business.max_pending_withdrawals", 3)
	v.SetDefault("business.lock_timeout", "5s")
	v.SetDefault("business.deadline_sweep_interval", "60s")
	v.SetDefault("business.deadline_sweep_batch", 200)
	v.SetDefault("business.default_project_hours", 48)
	v.SetDefault("business.employee_code_start", 8851)
	v.SetDefault("business.ledger_history_limit", 100)
	v.SetDefault("business.outbox_interval", "500ms")
	v.SetDefault("business.outbox_max_retry", 5)
}

// LoadConfig 加载配置文件，环境变量 PAYOUT_<SECTION>_<KEY> 可以覆盖文件配置
func LoadConfig(configPath string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("PAYOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验业务参数
func (c *Config) Validate() error {
	b := c.Business
	switch {
	case !b.WithdrawalMin.IsPositive():
		return errors.New("business.withdrawal_min 必须大于0")
	case b.WithdrawalMax.LessThan(b.WithdrawalMin):
		return errors.New("business.withdrawal_max 不能小于 withdrawal_min")
	case b.TDSRate.IsNegative() || b.TDSRate.GreaterThanOrEqual(decimal.NewFromInt(1)):
		return errors.New("business.tds_rate 必须在 [0, 1) 之间")
	case b.MaxPendingWithdrawals <= 0:
		return errors.New("business.max_pending_withdrawals 必须大于0")
	case b.LockTimeout <= 0:
		return errors.New("business.lock_timeout 必须大于0")
	case b.DeadlineSweepInterval <= 0:
		return errors.New("business.deadline_sweep_interval 必须大于0")
	case b.LedgerHistoryLimit <= 0:
		return errors.New("business.ledger_history_limit 必须大于0")
	}

	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret 不能为空")
	}
	if admin := c.Auth.BootstrapAdmin; admin.Username != "" && admin.Password == "" {
		return errors.New("auth.bootstrap_admin.password 不能为空")
	}

	switch c.Storage.Driver {
	case "mysql", "postgres", "memory":
	default:
		return fmt.Errorf("storage.driver 不支持: %s", c.Storage.Driver)
	}
	return nil
}
