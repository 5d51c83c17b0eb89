/*
Package config loads service settings.

Order of precedence (highest first):
  1. environment variables (STORE_DRIVER, REDIS_ADDR, ...)
  2. a .env file in the working directory, if present
  3. the defaults below
*/
package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Engine   EngineConfig
	Reactor  ReactorConfig
	Sweep    SweepConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	JWT      JWTConfig
	Postgres PostgresConfig
}

type ServerConfig struct {
	Port        string
	CORSOrigins []string
}

type StoreConfig struct {
	Driver     string // memory, sqlite or postgres
	SQLitePath string
}

type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type EngineConfig struct {
	PageSize          int
	UserPageSize      int
	Timezone          string
	InvocationTimeout time.Duration
}

type ReactorConfig struct {
	Mode     string // recompute or delta
	Debounce time.Duration
}

type SweepConfig struct {
	Interval   time.Duration
	RunOnStart bool
}

// RedisConfig enables the shared account lock when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

// KafkaConfig enables the notification consumer when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// JWTConfig protects the admin routes when SecretKey is set.
type JWTConfig struct {
	SecretKey string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.cors_origins", "*")

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "ledger.db")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.name", "ledger")
	v.SetDefault("postgres.ssl_mode", "disable")

	v.SetDefault("engine.page_size", 500)
	v.SetDefault("engine.user_page_size", 100)
	v.SetDefault("engine.timezone", "Local")
	v.SetDefault("engine.invocation_timeout", "30s")

	v.SetDefault("reactor.mode", "recompute")
	v.SetDefault("reactor.debounce", "0s")

	v.SetDefault("sweep.interval", "24h")
	v.SetDefault("sweep.run_on_start", false)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", "30s")

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "ledger.transactions.changed")
	v.SetDefault("kafka.group_id", "ledger-sync")

	v.SetDefault("jwt.secret_key", "")
}

// Load reads .env (if any) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("[Config] No .env file loaded: %v", err)
	}
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// FromViper decodes and validates settings from v.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        v.GetString("server.port"),
			CORSOrigins: splitList(v.GetString("server.cors_origins")),
		},
		Store: StoreConfig{
			Driver:     strings.ToLower(v.GetString("store.driver")),
			SQLitePath: v.GetString("store.sqlite_path"),
		},
		Postgres: PostgresConfig{
			Host:     v.GetString("postgres.host"),
			Port:     v.GetString("postgres.port"),
			User:     v.GetString("postgres.user"),
			Password: v.GetString("postgres.password"),
			Name:     v.GetString("postgres.name"),
			SSLMode:  v.GetString("postgres.ssl_mode"),
		},
		Engine: EngineConfig{
			PageSize:          v.GetInt("engine.page_size"),
			UserPageSize:      v.GetInt("engine.user_page_size"),
			Timezone:          v.GetString("engine.timezone"),
			InvocationTimeout: v.GetDuration("engine.invocation_timeout"),
		},
		Reactor: ReactorConfig{
			Mode:     strings.ToLower(v.GetString("reactor.mode")),
			Debounce: v.GetDuration("reactor.debounce"),
		},
		Sweep: SweepConfig{
			Interval:   v.GetDuration("sweep.interval"),
			RunOnStart: v.GetBool("sweep.run_on_start"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			LockTTL:  v.GetDuration("redis.lock_ttl"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("kafka.brokers")),
			Topic:   v.GetString("kafka.topic"),
			GroupID: v.GetString("kafka.group_id"),
		},
		JWT: JWTConfig{
			SecretKey: v.GetString("jwt.secret_key"),
		},
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Reactor.Mode {
	case "recompute", "delta":
	default:
		return fmt.Errorf("unknown reactor mode %q", c.Reactor.Mode)
	}
	if c.Sweep.Interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", c.Sweep.Interval)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the engine timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Engine.Timezone == "" || c.Engine.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Engine.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid engine timezone %q: %w", c.Engine.Timezone, err)
	}
	return loc, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
