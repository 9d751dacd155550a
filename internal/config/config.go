package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StorageBolt     = "bolt"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type AppConfig struct {
	Port      string `yaml:"port"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

type APIConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
	RetryMax int           `yaml:"retry_max"`
}

type StorageConfig struct {
	Driver   string `yaml:"driver"`
	BoltPath string `yaml:"bolt_path"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"dbname"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type DeliveryConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

type MockConfig struct {
	Port         string `yaml:"port"`
	RequireToken bool   `yaml:"require_token"`
}

type Config struct {
	App      AppConfig      `yaml:"app"`
	API      APIConfig      `yaml:"api"`
	Storage  StorageConfig  `yaml:"storage"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Delivery DeliveryConfig `yaml:"delivery"`
	Mock     MockConfig     `yaml:"mock"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Port:      "8080",
			LogLevel:  "info",
			LogFormat: "console",
		},
		API: APIConfig{
			Timeout:  10 * time.Second,
			RetryMax: 3,
		},
		Storage: StorageConfig{
			Driver:   StorageBolt,
			BoltPath: "storefront.db",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Postgres: PostgresConfig{
			Port:            "5432",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Delivery: DeliveryConfig{
			PollInterval: 30 * time.Second,
		},
		Mock: MockConfig{
			Port: "8081",
		},
	}
}

// Load reads an optional .env file at path, then an optional YAML file named by CONFIG_FILE, then
// applies environment overrides on top.
func Load(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadMock loads the same sources as Load but skips validation: the fake backend only needs its
// port and logging settings.
func LoadMock(path string) (*Config, error) {
	return read(path)
}

func read(path string) (*Config, error) {
	if path != "" {
		err := godotenv.Load(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	cfg := Default()

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		if err := loadYAML(file, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed open config file: %w", err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("invalid config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.App.Port, "APP_PORT")
	setString(&cfg.App.LogLevel, "LOG_LEVEL")
	setString(&cfg.App.LogFormat, "LOG_FORMAT")

	setString(&cfg.API.BaseURL, "API_BASE_URL")
	if err := setDuration(&cfg.API.Timeout, "API_TIMEOUT"); err != nil {
		return err
	}
	if err := setInt(&cfg.API.RetryMax, "API_RETRY_MAX"); err != nil {
		return err
	}

	setString(&cfg.Storage.Driver, "STORAGE_DRIVER")
	setString(&cfg.Storage.BoltPath, "BOLT_PATH")

	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	if err := setInt(&cfg.Redis.DB, "REDIS_DB"); err != nil {
		return err
	}

	setString(&cfg.Postgres.Host, "DB_HOST")
	setString(&cfg.Postgres.Port, "DB_PORT")
	setString(&cfg.Postgres.User, "DB_USER")
	setString(&cfg.Postgres.Password, "DB_PASSWORD")
	setString(&cfg.Postgres.DBName, "DB_NAME")
	setString(&cfg.Postgres.SSLMode, "DB_SSLMODE")

	if err := setDuration(&cfg.Delivery.PollInterval, "POLL_INTERVAL"); err != nil {
		return err
	}

	setString(&cfg.Mock.Port, "MOCK_PORT")
	return setBool(&cfg.Mock.RequireToken, "MOCK_REQUIRE_TOKEN")
}

// Validate checks the fields the selected storage driver needs.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("API_BASE_URL is required")
	}
	if c.API.RetryMax < 0 {
		return fmt.Errorf("API_RETRY_MAX must be non-negative, got %d", c.API.RetryMax)
	}

	switch c.Storage.Driver {
	case StorageBolt:
		if c.Storage.BoltPath == "" {
			return errors.New("BOLT_PATH is required for the bolt storage driver")
		}
	case StorageRedis:
		if c.Redis.Addr == "" {
			return errors.New("REDIS_ADDR is required for the redis storage driver")
		}
	case StoragePostgres:
		var missing []string
		for name, v := range map[string]string{
			"DB_HOST":     c.Postgres.Host,
			"DB_USER":     c.Postgres.User,
			"DB_PASSWORD": c.Postgres.Password,
			"DB_NAME":     c.Postgres.DBName,
		} {
			if v == "" {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			slices.Sort(missing)
			return fmt.Errorf("postgres storage driver requires %s", strings.Join(missing, ", "))
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}

	if c.Delivery.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.Delivery.PollInterval)
	}
	return nil
}

// DSN builds the postgres connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s must be an integer: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s must be a duration: %w", key, err)
	}
	*dst = d
	return nil
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	*dst = b
	return nil
}
