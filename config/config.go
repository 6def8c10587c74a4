package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Oracle     OracleConfig     `mapstructure:"oracle"`
	Derivation DerivationConfig `mapstructure:"derivation"`
	Exchange   ExchangeConfig   `mapstructure:"exchange"`
	Dedup      DedupConfig      `mapstructure:"dedup"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type OracleConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DerivationConfig carries the process-wide secret salt for address
// derivation. Initialized once at startup, read-only thereafter.
type DerivationConfig struct {
	SaltHex string `mapstructure:"salt_hex"`
}

// Salt decodes the hex-encoded derivation salt.
func (d DerivationConfig) Salt() ([]byte, error) {
	salt, err := hex.DecodeString(d.SaltHex)
	if err != nil {
		return nil, fmt.Errorf("decoding derivation salt: %w", err)
	}
	if len(salt) < 16 {
		return nil, fmt.Errorf("derivation salt must be at least 16 bytes, got %d", len(salt))
	}
	return salt, nil
}

type ExchangeConfig struct {
	QuoteTTL              time.Duration `mapstructure:"quote_ttl"`
	SlippageTolerancePct  string        `mapstructure:"slippage_tolerance_pct"`
	ConfirmationThreshold int           `mapstructure:"confirmation_threshold"`
	ExpirySweepBatch      int           `mapstructure:"expiry_sweep_batch"`
	ExpirySweepSpec       string        `mapstructure:"expiry_sweep_spec"`
}

// SlippageTolerance parses the configured tolerance percentage.
func (e ExchangeConfig) SlippageTolerance() (decimal.Decimal, error) {
	tol, err := decimal.NewFromString(e.SlippageTolerancePct)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing slippage tolerance: %w", err)
	}
	if tol.IsNegative() {
		return decimal.Zero, fmt.Errorf("slippage tolerance must not be negative")
	}
	return tol, nil
}

type DedupConfig struct {
	CronSpec    string        `mapstructure:"cron_spec"`
	MaxRetries  int           `mapstructure:"max_retries"`
	BaseBackoff time.Duration `mapstructure:"base_backoff"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: CCS_ (Crypto Card Service).
// Nested keys use underscore: CCS_DATABASE_HOST, CCS_DERIVATION_SALT_HEX, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "crypto_card")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("oracle.base_url", "")
	v.SetDefault("oracle.timeout", "5s")
	v.SetDefault("derivation.salt_hex", "")
	v.SetDefault("exchange.quote_ttl", "60s")
	v.SetDefault("exchange.slippage_tolerance_pct", "1")
	v.SetDefault("exchange.confirmation_threshold", 3)
	v.SetDefault("exchange.expiry_sweep_batch", 100)
	v.SetDefault("exchange.expiry_sweep_spec", "@every 1m")
	v.SetDefault("dedup.cron_spec", "0 3 * * *")
	v.SetDefault("dedup.max_retries", 3)
	v.SetDefault("dedup.base_backoff", "100ms")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "crypto-card-service")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: CCS_DATABASE_HOST -> database.host
	v.SetEnvPrefix("CCS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required — env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
