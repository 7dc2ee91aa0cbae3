package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies LPLENS_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known LPLENS_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.Address, "LPLENS_WALLET_ADDRESS")

	// ── Oracle ──
	setStr(&cfg.Oracle.Host, "LPLENS_ORACLE_HOST")
	setDuration(&cfg.Oracle.CacheTTL, "LPLENS_ORACLE_CACHE_TTL")

	// ── Solana ──
	setStr(&cfg.Solana.RPCEndpoint, "LPLENS_SOLANA_RPC_ENDPOINT")
	setStringSlice(&cfg.Solana.ProgramIDs, "LPLENS_SOLANA_PROGRAM_IDS")

	// ── Database ──
	setStr(&cfg.Database.DSN, "LPLENS_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "LPLENS_DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "LPLENS_DATABASE_HOST")
	setInt(&cfg.Database.Port, "LPLENS_DATABASE_PORT")
	setStr(&cfg.Database.Database, "LPLENS_DATABASE_NAME")
	setStr(&cfg.Database.User, "LPLENS_DATABASE_USER")
	setStr(&cfg.Database.Password, "LPLENS_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "LPLENS_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "LPLENS_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "LPLENS_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "LPLENS_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "LPLENS_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "LPLENS_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "LPLENS_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "LPLENS_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "LPLENS_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "LPLENS_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "LPLENS_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "LPLENS_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "LPLENS_S3_REGION")
	setStr(&cfg.S3.Bucket, "LPLENS_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "LPLENS_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "LPLENS_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "LPLENS_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "LPLENS_S3_FORCE_PATH_STYLE")

	// ── Snapshot ──
	setDuration(&cfg.Snapshot.Interval, "LPLENS_SNAPSHOT_INTERVAL")
	setInt(&cfg.Snapshot.Cap, "LPLENS_SNAPSHOT_CAP")

	// ── Scan ──
	setInt(&cfg.Scan.WindowDays, "LPLENS_SCAN_WINDOW_DAYS")
	setInt(&cfg.Scan.MaxTransactions, "LPLENS_SCAN_MAX_TRANSACTIONS")
	setInt(&cfg.Scan.BatchSize, "LPLENS_SCAN_BATCH_SIZE")
	setDuration(&cfg.Scan.BatchDelay, "LPLENS_SCAN_BATCH_DELAY")
	setInt(&cfg.Scan.MaxConsecutiveErrors, "LPLENS_SCAN_MAX_CONSECUTIVE_ERRORS")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "LPLENS_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Prefix, "LPLENS_ARCHIVE_PREFIX")
	setDuration(&cfg.Archive.Interval, "LPLENS_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "LPLENS_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "LPLENS_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "LPLENS_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "LPLENS_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "LPLENS_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "LPLENS_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "LPLENS_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "LPLENS_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "LPLENS_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "LPLENS_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "LPLENS_MODE")
	setStr(&cfg.LogLevel, "LPLENS_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
