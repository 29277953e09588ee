package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreBadger   = "badger"
	StorePostgres = "postgres"
)

// Clock sources.
const (
	ClockSystem = "system"
	ClockChain  = "chain"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	Store          string
	PGDSN          string
	BadgerPath     string
	RPCURL         string
	Clock          string
	AMQPURL        string
	Exchange       string
	Journal        string
	Listen         string
	AllowedOrigins []string
	ProgramID      string
	MaxRetries     int
	RetryBackoff   time.Duration
	LogLevel       string
}

// Load merges config file, environment variables, and flags into Config.
// Environment variables use the LAUNCHPAD_ prefix with dashes as underscores.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LAUNCHPAD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("store", StoreBadger)
	v.SetDefault("badger-path", "./data/launchpad")
	v.SetDefault("clock", ClockSystem)
	v.SetDefault("exchange", "launchpad_events")
	v.SetDefault("journal", "./data/events.jsonl")
	v.SetDefault("listen", ":8080")
	v.SetDefault("allowed-origins", []string{"https://*", "http://*"})
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		Store:          strings.ToLower(v.GetString("store")),
		PGDSN:          v.GetString("pg-dsn"),
		BadgerPath:     v.GetString("badger-path"),
		RPCURL:         v.GetString("rpc"),
		Clock:          strings.ToLower(v.GetString("clock")),
		AMQPURL:        v.GetString("amqp-url"),
		Exchange:       v.GetString("exchange"),
		Journal:        v.GetString("journal"),
		Listen:         v.GetString("listen"),
		AllowedOrigins: getStringSlice(v, "allowed-origins"),
		ProgramID:      v.GetString("program-id"),
		MaxRetries:     v.GetInt("max-retries"),
		RetryBackoff:   v.GetDuration("retry-backoff"),
		LogLevel:       v.GetString("log-level"),
	}

	return cfg, cfg.Validate()
}

// Validate checks that the selected backends have what they need.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreBadger:
		if c.Store == StoreBadger && c.BadgerPath == "" {
			return fmt.Errorf("badger-path is required for the badger store")
		}
	case StorePostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("pg-dsn is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store %q (want memory, badger or postgres)", c.Store)
	}

	switch c.Clock {
	case ClockSystem:
	case ClockChain:
		if c.RPCURL == "" {
			return fmt.Errorf("rpc is required for the chain clock")
		}
	default:
		return fmt.Errorf("unknown clock %q (want system or chain)", c.Clock)
	}
	return nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
