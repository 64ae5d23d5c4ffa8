// Package config предоставляет структуры и функции для загрузки конфигурации клиентского ядра
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string   `yaml:"env" env:"ENV" env-default:"local"`
	LogLevel                string   `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Supabase                Supabase `yaml:"supabase"`
	Storage                 Storage  `yaml:"storage"`
	Catalog                 Catalog  `yaml:"catalog"`
	StorageConnectionString string   `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	RabbitMQ                RabbitMQ `yaml:"rabbitmq"`
}

// Supabase — адрес и публичный ключ хостингового бэкенда. Без них ядро не запускается.
type Supabase struct {
	URL        string        `yaml:"url" env:"SUPABASE_URL" env-required:"true"`
	AnonKey    string        `yaml:"anon_key" env:"SUPABASE_ANON_KEY" env-required:"true"`
	Timeout    time.Duration `yaml:"timeout" env:"SUPABASE_TIMEOUT" env-default:"15s"`
	RedirectTo string        `yaml:"redirect_to" env:"SUPABASE_REDIRECT_TO"`
}

// Storage — локальное хранилище состояния сессии.
type Storage struct {
	Dir     string `yaml:"dir" env:"STORAGE_DIR"`
	Encrypt bool   `yaml:"encrypt" env:"STORAGE_ENCRYPT" env-default:"true"`
}

// Catalog — политика кеширования и повторов каталога комнат.
type Catalog struct {
	StaleTime      time.Duration `yaml:"stale_time" env-default:"5m"`
	CacheTTL       time.Duration `yaml:"cache_ttl" env-default:"30m"`
	CacheSize      int           `yaml:"cache_size" env-default:"128"`
	PageSize       int           `yaml:"page_size" env-default:"20"`
	ReadAttempts   int           `yaml:"read_attempts" env-default:"3"`
	WriteAttempts  int           `yaml:"write_attempts" env-default:"2"`
	BackoffInitial time.Duration `yaml:"backoff_initial" env-default:"1s"`
	BackoffMax     time.Duration `yaml:"backoff_max" env-default:"30s"`
}

// HTTPServer структура для настройки локального моста
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:"127.0.0.1:8787"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	RateLimit   float64       `yaml:"rate_limit" env-default:"20"`
	RateBurst   int           `yaml:"rate_burst" env-default:"40"`
}

// RedisConnection структура для настройки подключения к redis. Пустой адрес отключает redis.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// RabbitMQ — ретрансляция событий аутентификации. Пустой URL отключает ретрансляцию.
type RabbitMQ struct {
	URL       string `yaml:"url" env:"RABBITMQ_URL"`
	Exchange  string `yaml:"exchange" env-default:"auth.events"`
	DeviceKey string `yaml:"device_key" env:"RABBITMQ_DEVICE_KEY" env-default:"device"`
	RemoteKey string `yaml:"remote_key" env-default:"remote"`
	Queue     string `yaml:"queue"`
}

// Load читает конфигурацию из YAML-файла path, поверх которого применяются
// переменные окружения. Пустой path означает «только окружение».
func Load(path string) (*Config, error) {
	var cfg Config
	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("cannot read config from env: %w", err)
		}
		return &cfg, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("file: %s - does not exist", path)
	}
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	return &cfg, nil
}

// MustLoad загружает .env (если есть) и конфиг из CONFIG_PATH; завершает процесс при ошибке.
func MustLoad() *Config {
	return MustLoadPath(os.Getenv("CONFIG_PATH"))
}

// MustLoadPath — MustLoad с явным путём.
func MustLoadPath(path string) *Config {
	cfg, err := LoadPath(path)
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}

// LoadPath загружает .env (если есть) и конфиг из path, а при пустом path из CONFIG_PATH.
func LoadPath(path string) (*Config, error) {
	_ = godotenv.Load()
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	return Load(path)
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"LogLevel: %s\n"+
			"Supabase:\n"+
			"  URL: %s\n"+
			"  AnonKey: %s\n"+
			"  Timeout: %s\n"+
			"Storage:\n"+
			"  Dir: %s\n"+
			"  Encrypt: %t\n"+
			"Catalog:\n"+
			"  StaleTime: %s\n"+
			"  CacheTTL: %s\n"+
			"  PageSize: %d\n"+
			"StorageConnectionString: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"RabbitMQ:\n"+
			"  URL: %s\n",
		c.Env,
		c.LogLevel,
		c.Supabase.URL,
		redact(c.Supabase.AnonKey),
		c.Supabase.Timeout,
		c.Storage.Dir,
		c.Storage.Encrypt,
		c.Catalog.StaleTime,
		c.Catalog.CacheTTL,
		c.Catalog.PageSize,
		redact(c.StorageConnectionString),
		c.AddressRedis,
		c.DB,
		c.AddressHTTP,
		c.TimeoutHTTP,
		redact(c.RabbitMQ.URL),
	)
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
