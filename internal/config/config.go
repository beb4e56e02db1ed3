package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const DefaultAccrualSchedule = "@hourly"

type Config struct {
	RunAddress    string `env:"RUN_ADDRESS"`
	DatabaseDSN   string `env:"DATABASE_URI"`
	MigrationsDir string `env:"MIGRATIONS_DIR"`
	JWTSecret     string `env:"JWT_SECRET"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	KafkaBrokers           []string `env:"KAFKA_BROKERS"            envSeparator:","`
	KafkaNotificationTopic string   `env:"KAFKA_NOTIFICATION_TOPIC"`
	KafkaEmailTopic        string   `env:"KAFKA_EMAIL_TOPIC"`

	AccrualSchedule string `env:"ACCRUAL_SCHEDULE"`

	RequireTxHash               bool            `env:"REQUIRE_TX_HASH"`
	RequireWithdrawVerification bool            `env:"REQUIRE_WITHDRAW_VERIFICATION"`
	MinWithdrawal               decimal.Decimal `env:"MIN_WITHDRAWAL"`
}

// LoadConfig собирает конфигурацию из .env файла (если он есть), переменных окружения и флагов командной
// строки. Переменные окружения приоритетнее флагов.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return load(os.Args[1:])
}

func MustLoadConfig() *Config {
	config, err := LoadConfig()
	if err != nil {
		panic(err)
	}
	return config
}

func load(args []string) (*Config, error) {
	var flagsConfig, envConfig Config

	if envParseErr := env.Parse(&envConfig); envParseErr != nil {
		return nil, fmt.Errorf("parse env config: %w", envParseErr)
	}

	if flagsErr := loadFlags(&flagsConfig, args); flagsErr != nil {
		return nil, flagsErr
	}

	conf := mergeConfig(&envConfig, &flagsConfig)
	if conf.DatabaseDSN == "" {
		return nil, errors.New("database DSN is not set")
	}
	if conf.JWTSecret == "" {
		return nil, errors.New("jwt secret is not set")
	}
	if conf.MinWithdrawal.IsNegative() {
		return nil, errors.New("min withdrawal must not be negative")
	}
	return conf, nil
}

func loadFlags(flagConfig *Config, args []string) error {
	fs := flag.NewFlagSet("invest", flag.ContinueOnError)

	var brokers string
	fs.StringVar(&flagConfig.RunAddress, "a", "localhost:8080", "Run address in format host:port")
	fs.StringVar(&flagConfig.DatabaseDSN, "d", "", "Database DSN")
	fs.StringVar(&flagConfig.MigrationsDir, "m", "internal/db/migrations", "Database migrations directory")
	fs.StringVar(&flagConfig.JWTSecret, "j", "", "JWT secret key")
	fs.StringVar(&flagConfig.RedisAddr, "r", "localhost:6379", "Redis address in format host:port")
	fs.StringVar(&brokers, "k", "localhost:9092", "Comma separated kafka brokers")
	fs.StringVar(&flagConfig.KafkaNotificationTopic, "notification-topic", "invest.notifications", "Kafka topic")
	fs.StringVar(&flagConfig.KafkaEmailTopic, "email-topic", "invest.emails", "Kafka topic for emails")
	fs.StringVar(&flagConfig.AccrualSchedule, "s", DefaultAccrualSchedule, "Accrual engine cron schedule")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	flagConfig.KafkaBrokers = splitList(brokers)
	return nil
}

func mergeConfig(envConfig, flagsConfig *Config) *Config {
	brokers := envConfig.KafkaBrokers
	if len(brokers) == 0 {
		brokers = flagsConfig.KafkaBrokers
	}
	return &Config{
		RunAddress:    defaultIfBlank(envConfig.RunAddress, flagsConfig.RunAddress),
		DatabaseDSN:   defaultIfBlank(envConfig.DatabaseDSN, flagsConfig.DatabaseDSN),
		MigrationsDir: defaultIfBlank(envConfig.MigrationsDir, flagsConfig.MigrationsDir),
		JWTSecret:     defaultIfBlank(envConfig.JWTSecret, flagsConfig.JWTSecret),

		RedisAddr:     defaultIfBlank(envConfig.RedisAddr, flagsConfig.RedisAddr),
		RedisPassword: envConfig.RedisPassword,

		KafkaBrokers:           brokers,
		KafkaNotificationTopic: defaultIfBlank(envConfig.KafkaNotificationTopic, flagsConfig.KafkaNotificationTopic),
		KafkaEmailTopic:        defaultIfBlank(envConfig.KafkaEmailTopic, flagsConfig.KafkaEmailTopic),

		AccrualSchedule: defaultIfBlank(envConfig.AccrualSchedule, flagsConfig.AccrualSchedule),

		// только из окружения.
		RequireTxHash:               envConfig.RequireTxHash,
		RequireWithdrawVerification: envConfig.RequireWithdrawVerification,
		MinWithdrawal:               envConfig.MinWithdrawal,
	}
}

func defaultIfBlank(value string, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
