// Package config defines the top-level configuration for the lplens service
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by LPLENS_* environment variables.
type Config struct {
	Wallet   WalletConfig   `toml:"wallet"`
	Oracle   OracleConfig   `toml:"oracle"`
	Solana   SolanaConfig   `toml:"solana"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Snapshot SnapshotConfig `toml:"snapshot"`
	Scan     ScanConfig     `toml:"scan"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// WalletConfig names the default wallet tracked in monitor and scan modes.
// In serve mode wallets arrive with each request and this is optional.
type WalletConfig struct {
	Address string `toml:"address"`
}

// OracleConfig holds price service parameters.
type OracleConfig struct {
	Host     string   `toml:"host"`
	CacheTTL duration `toml:"cache_ttl"`
}

// SolanaConfig holds RPC parameters for the transaction history source.
type SolanaConfig struct {
	RPCEndpoint string `toml:"rpc_endpoint"`
	// ProgramIDs restricts the historical scan to transactions touching
	// these market-maker programs. Empty disables the filter.
	ProgramIDs []string `toml:"program_ids"`
}

// DatabaseConfig holds PostgreSQL connection parameters for the ledger
// substrate. When DSN and Host are both empty the ledger falls back to Redis
// (or memory when Redis is also absent).
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for ledger archives.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// SnapshotConfig controls the periodic valuation recorder.
type SnapshotConfig struct {
	Interval duration `toml:"interval"`
	// Cap bounds each position's snapshot sequence (FIFO eviction).
	Cap int `toml:"cap"`
}

// ScanConfig bounds the historical transaction scan.
type ScanConfig struct {
	WindowDays           int      `toml:"window_days"`
	MaxTransactions      int      `toml:"max_transactions"`
	BatchSize            int      `toml:"batch_size"`
	BatchDelay           duration `toml:"batch_delay"`
	MaxConsecutiveErrors int      `toml:"max_consecutive_errors"`
}

// ArchiveConfig controls periodic ledger exports to blob storage.
type ArchiveConfig struct {
	Enabled  bool     `toml:"enabled"`
	Prefix   string   `toml:"prefix"`
	Interval duration `toml:"interval"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Oracle: OracleConfig{
			Host:     "https://lite-api.jup.ag",
			CacheTTL: duration{10 * time.Minute},
		},
		Solana: SolanaConfig{
			RPCEndpoint: "https://api.mainnet-beta.solana.com",
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "lplens",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    true,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "lplens-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Snapshot: SnapshotConfig{
			Interval: duration{time.Hour},
			Cap:      2160,
		},
		Scan: ScanConfig{
			WindowDays:           60,
			MaxTransactions:      200,
			BatchSize:            10,
			BatchDelay:           duration{time.Second},
			MaxConsecutiveErrors: 5,
		},
		Archive: ArchiveConfig{
			Enabled:  false,
			Prefix:   "ledger",
			Interval: duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"position_closed", "scan_completed", "backfill_completed", "error"},
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve":   true,
	"monitor": true,
	"scan":    true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, monitor, scan, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Scan mode targets one wallet and cannot run without it.
	if mode == "scan" && c.Wallet.Address == "" {
		errs = append(errs, "wallet: address is required for scan mode")
	}

	// Oracle
	if c.Oracle.Host == "" {
		errs = append(errs, "oracle: host must not be empty")
	}
	if c.Oracle.CacheTTL.Duration < 0 {
		errs = append(errs, "oracle: cache_ttl must not be negative")
	}

	// The scan needs RPC access.
	if (mode == "scan" || mode == "full") && c.Solana.RPCEndpoint == "" {
		errs = append(errs, "solana: rpc_endpoint is required for scan mode")
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" && c.Database.Host != "" {
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3 settings only matter when archiving is on.
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
	}

	// Snapshot
	if c.Snapshot.Interval.Duration <= 0 {
		errs = append(errs, "snapshot: interval must be positive")
	}
	if c.Snapshot.Cap < 1 {
		errs = append(errs, "snapshot: cap must be >= 1")
	}

	// Scan
	if c.Scan.WindowDays < 1 {
		errs = append(errs, "scan: window_days must be >= 1")
	}
	if c.Scan.MaxTransactions < 1 {
		errs = append(errs, "scan: max_transactions must be >= 1")
	}
	if c.Scan.MaxConsecutiveErrors < 1 {
		errs = append(errs, "scan: max_consecutive_errors must be >= 1")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must not be negative")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
