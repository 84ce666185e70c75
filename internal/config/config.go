// Package config loads service configuration from an optional YAML file,
// an optional .env file and environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Draft store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config holds all configuration for the service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	AdminAPI AdminAPIConfig `yaml:"admin_api"`
	Drafts   DraftConfig    `yaml:"drafts"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	LogLevel string         `yaml:"log_level"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           string        `yaml:"port"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

// AdminAPIConfig holds the remote admin API settings.
type AdminAPIConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Token        string        `yaml:"token"`
	TokenURL     string        `yaml:"token_url"`
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
}

// DraftConfig selects where composer drafts are kept.
type DraftConfig struct {
	Store string        `yaml:"store"`
	TTL   time.Duration `yaml:"ttl"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN builds a libpq-compatible connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         "8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		AdminAPI: AdminAPIConfig{
			Timeout:    30 * time.Second,
			MaxRetries: 2,
		},
		Drafts: DraftConfig{
			Store: StoreMemory,
			TTL:   24 * time.Hour,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    "5432",
			User:    "postgres",
			DBName:  "backoffice",
			SSLMode: "disable",
		},
		Redis:    RedisConfig{Addr: "localhost:6379"},
		LogLevel: "info",
	}
}

// Load reads configuration. A missing .env file is not an error; a missing
// CONFIG_FILE is.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}

	c.AdminAPI.BaseURL = getEnv("ADMIN_API_URL", c.AdminAPI.BaseURL)
	c.AdminAPI.Token = getEnv("ADMIN_API_TOKEN", c.AdminAPI.Token)
	c.AdminAPI.TokenURL = getEnv("ADMIN_API_TOKEN_URL", c.AdminAPI.TokenURL)
	c.AdminAPI.ClientID = getEnv("ADMIN_API_CLIENT_ID", c.AdminAPI.ClientID)
	c.AdminAPI.ClientSecret = getEnv("ADMIN_API_CLIENT_SECRET", c.AdminAPI.ClientSecret)

	c.Drafts.Store = getEnv("DRAFT_STORE", c.Drafts.Store)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.DBName = getEnv("DB_NAME", c.Database.DBName)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	var err error
	if c.AdminAPI.Timeout, err = getDuration("ADMIN_API_TIMEOUT", c.AdminAPI.Timeout); err != nil {
		return err
	}
	if c.Drafts.TTL, err = getDuration("DRAFT_TTL", c.Drafts.TTL); err != nil {
		return err
	}
	if c.AdminAPI.MaxRetries, err = getInt("ADMIN_API_MAX_RETRIES", c.AdminAPI.MaxRetries); err != nil {
		return err
	}
	if c.Redis.DB, err = getInt("REDIS_DB", c.Redis.DB); err != nil {
		return err
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.AdminAPI.BaseURL == "" {
		return errors.New("config: ADMIN_API_URL is required")
	}
	if c.AdminAPI.ClientID != "" && c.AdminAPI.TokenURL == "" {
		return errors.New("config: ADMIN_API_TOKEN_URL is required with ADMIN_API_CLIENT_ID")
	}
	if c.AdminAPI.MaxRetries < 0 {
		return errors.New("config: ADMIN_API_MAX_RETRIES must not be negative")
	}
	switch c.Drafts.Store {
	case StoreMemory, StorePostgres, StoreRedis:
	default:
		return fmt.Errorf("config: unknown DRAFT_STORE %q", c.Drafts.Store)
	}
	if c.Drafts.TTL <= 0 {
		return errors.New("config: DRAFT_TTL must be positive")
	}
	return nil
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
