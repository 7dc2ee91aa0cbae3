package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lenslabs/lplens/internal/backfill"
	s3blob "github.com/lenslabs/lplens/internal/blob/s3"
	"github.com/lenslabs/lplens/internal/cache/redis"
	"github.com/lenslabs/lplens/internal/config"
	"github.com/lenslabs/lplens/internal/domain"
	"github.com/lenslabs/lplens/internal/ledger"
	"github.com/lenslabs/lplens/internal/notify"
	"github.com/lenslabs/lplens/internal/oracle"
	"github.com/lenslabs/lplens/internal/platform/jupiter"
	"github.com/lenslabs/lplens/internal/platform/solana"
	"github.com/lenslabs/lplens/internal/service"
	"github.com/lenslabs/lplens/internal/store/memory"
	"github.com/lenslabs/lplens/internal/store/postgres"
)

// Dependencies bundles every concrete implementation the operating modes pick
// from. Optional members are nil when their backing config is absent.
type Dependencies struct {
	KVStore     domain.KVStore
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter
	BlobWriter  domain.BlobWriter

	Ledger     *ledger.Ledger
	Oracle     *oracle.Client
	History    domain.TransactionHistory
	Backfiller *backfill.AutoBackfiller
	Scanner    *backfill.Scanner
	Notifier   *notify.Notifier

	Positions *service.PositionService
	Snapshots *service.SnapshotService
	Archiver  *s3blob.Archiver
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that closes
// connections in reverse creation order.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()
	deps := &Dependencies{}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// Ledger substrate: Postgres when configured, Redis next, memory last.
	switch {
	case cfg.Database.DSN != "" || cfg.Database.Host != "":
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Database.DSN,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Database,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.PoolMaxConns,
			MinConns: cfg.Database.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pg.Close)
		if cfg.Database.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: migrations: %w", err)
			}
		}
		deps.KVStore = postgres.NewKVStore(pg.Pool())
		logger.InfoContext(ctx, "ledger substrate: postgres")
	case cfg.Redis.Enabled:
		// Redis doubles as the substrate when Postgres is absent; the real
		// connection is made below.
	default:
		deps.KVStore = memory.NewKVStore()
		logger.InfoContext(ctx, "ledger substrate: memory (records are lost on restart)")
	}

	// Redis: signal bus and API rate limiter, plus the KV substrate when
	// Postgres is not configured.
	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = rc.Close() })
		deps.SignalBus = redis.NewSignalBus(rc)
		deps.RateLimiter = redis.NewRateLimiter(rc)
		if deps.KVStore == nil {
			deps.KVStore = redis.NewKVStore(rc)
			logger.InfoContext(ctx, "ledger substrate: redis")
		}
	}

	deps.Ledger = ledger.New(deps.KVStore, logger).WithSnapshotCap(cfg.Snapshot.Cap)

	// Price oracle over the Jupiter lite API.
	priceCache := oracle.NewPriceCache(cfg.Oracle.CacheTTL.Duration)
	deps.Oracle = oracle.NewClient(jupiter.NewClient(cfg.Oracle.Host), priceCache, logger)

	deps.Backfiller = backfill.NewAutoBackfiller(deps.Ledger, deps.Oracle, logger)

	// Historical scanner needs an RPC endpoint; without one the scan
	// endpoints and scan mode are unavailable.
	if cfg.Solana.RPCEndpoint != "" {
		deps.History = solana.NewHistoryClient(cfg.Solana.RPCEndpoint)
		scanCfg := backfill.DefaultScanConfig()
		if cfg.Scan.WindowDays > 0 {
			scanCfg.WindowDays = cfg.Scan.WindowDays
		}
		if cfg.Scan.MaxTransactions > 0 {
			scanCfg.MaxTransactions = cfg.Scan.MaxTransactions
		}
		if cfg.Scan.BatchSize > 0 {
			scanCfg.BatchSize = cfg.Scan.BatchSize
		}
		if cfg.Scan.BatchDelay.Duration > 0 {
			scanCfg.BatchDelay = cfg.Scan.BatchDelay.Duration
		}
		if cfg.Scan.MaxConsecutiveErrors > 0 {
			scanCfg.MaxConsecutiveErrors = cfg.Scan.MaxConsecutiveErrors
		}
		scanCfg.ProgramIDs = cfg.Solana.ProgramIDs
		deps.Scanner = backfill.NewScanner(deps.History, deps.Ledger, deps.Oracle, scanCfg, logger)
	}

	// Notifications: build senders from whichever credentials are present.
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	var notifier service.Notifier
	if deps.Notifier != nil {
		notifier = deps.Notifier
	}
	deps.Positions = service.NewPositionService(
		deps.Ledger, deps.Oracle, deps.Backfiller, deps.Scanner,
		deps.SignalBus, notifier, logger,
	)

	snapInterval := cfg.Snapshot.Interval.Duration
	if snapInterval <= 0 {
		snapInterval = service.DefaultSnapshotInterval
	}
	deps.Snapshots = service.NewSnapshotService(deps.Positions, deps.Ledger, deps.SignalBus, snapInterval, logger)

	// Blob archive: only wired when enabled, so S3 credentials stay optional.
	if cfg.Archive.Enabled {
		s3c, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3c.Close() })
		deps.BlobWriter = s3blob.NewWriter(s3c)
		archiveInterval := cfg.Archive.Interval.Duration
		if archiveInterval <= 0 {
			archiveInterval = s3blob.DefaultArchiveInterval
		}
		deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.Ledger, cfg.Archive.Prefix, archiveInterval, logger)
	}

	return deps, cleanup, nil
}
