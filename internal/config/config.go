// Package config предоставляет структуры и функции для загрузки конфига
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

var (
	// ErrBotTokenMissing — не задан токен бота, проверять initData нечем.
	ErrBotTokenMissing = errors.New("telegram bot token is not set")
	// ErrJWTSecretMissing — не задан ключ подписи JWT.
	ErrJWTSecretMissing = errors.New("jwt secret key is not set")
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string        `yaml:"env" env:"ENV" env-default:"local"`
	GRPCAddress             string        `yaml:"grpc_address" env:"GRPC_ADDRESS" env-default:":50051"`
	StorageConnectionString string        `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string        `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	RabbitMQURL             string        `yaml:"rabbitmq_url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries      int           `yaml:"rabbitmq_max_retries" env-default:"5"`
	RabbitMQRetryDelay      time.Duration `yaml:"rabbitmq_retry_delay" env-default:"3s"`
	Telegram                `yaml:"telegram"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	Subscription            `yaml:"subscription"`
}

// Telegram настройки проверки initData
type Telegram struct {
	BotToken          string `yaml:"bot_token" env:"TELEGRAM_TOKEN"`
	InitDataTTLSecond int    `yaml:"init_data_ttl_seconds" env:"INIT_DATA_TTL_SECONDS" env-default:"86400"`
}

// InitDataTTL возвращает окно свежести initData. Ноль и отрицательные значения отключают проверку.
func (t Telegram) InitDataTTL() time.Duration {
	return time.Duration(t.InitDataTTLSecond) * time.Second
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
	ProfileTTL   time.Duration `yaml:"profile_ttl" env-default:"5m"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey    string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env-default:"15m"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env-default:"720h"`
}

// Subscription настройки пробного периода и фонового воркера
type Subscription struct {
	TrialDays     int           `yaml:"trial_days" env-default:"3"`
	SweepInterval time.Duration `yaml:"sweep_interval" env-default:"1m"`
	PremiumQueue  string        `yaml:"premium_queue" env-default:"billing.premium"`
}

// Load читает конфиг из файла path, применяет переменные окружения и проверяет обязательные поля.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// Validate проверяет, что секреты заданы.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return ErrBotTokenMissing
	}
	if c.JWTSecretKey == "" {
		return ErrJWTSecretMissing
	}
	return nil
}

// MustLoad загружает конфиг по пути из CONFIG_PATH и завершает процесс при ошибке.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// String печатает конфиг без секретов.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"GRPCAddress: %s\n"+
			"MigrationsPath: %s\n"+
			"Telegram:\n"+
			"  BotToken: %s\n"+
			"  InitDataTTL: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"  ProfileTTL: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"JWTToken:\n"+
			"  AccessTokenTTL: %s\n"+
			"  RefreshTokenTTL: %s\n"+
			"Subscription:\n"+
			"  TrialDays: %d\n"+
			"  SweepInterval: %s\n",
		c.Env,
		c.GRPCAddress,
		c.MigrationsPath,
		mask(c.BotToken),
		c.InitDataTTL(),
		c.AddressRedis,
		c.DB,
		c.ProfileTTL,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.AccessTokenTTL,
		c.RefreshTokenTTL,
		c.TrialDays,
		c.SweepInterval,
	)
}

func mask(secret string) string {
	if secret == "" {
		return "<unset>"
	}
	return "***"
}
