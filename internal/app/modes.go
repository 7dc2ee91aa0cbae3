package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lenslabs/lplens/internal/server"
	"github.com/lenslabs/lplens/internal/server/handler"
	"github.com/lenslabs/lplens/internal/server/ws"
)

// ServeMode runs the HTTP + WebSocket API, the periodic snapshot recorder,
// and the ledger archiver when blob storage is configured. Positions arrive
// from dashboard sync requests; the auto-backfiller runs as part of sync.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)

	a.startSnapshotRecorder(ctx, g, deps)
	a.startArchiver(ctx, g, deps)
	a.startHTTPServer(ctx, g, deps)

	return g.Wait()
}

// MonitorMode runs only the snapshot recorder for the configured wallet. No
// HTTP surface is exposed; the ledger fills with hourly valuation samples.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode",
		slog.String("wallet", a.cfg.Wallet.Address),
	)

	g, ctx := errgroup.WithContext(ctx)

	a.startSnapshotRecorder(ctx, g, deps)
	a.startArchiver(ctx, g, deps)

	return g.Wait()
}

// ScanMode runs one historical transaction scan for the configured wallet and
// exits. Reconciled entry/exit records land in the ledger.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	if deps.Scanner == nil {
		return fmt.Errorf("scan mode: solana.rpc_endpoint is not configured")
	}

	a.logger.InfoContext(ctx, "starting scan mode",
		slog.String("wallet", a.cfg.Wallet.Address),
	)

	status, err := deps.Scanner.Scan(ctx, a.cfg.Wallet.Address)
	if err != nil {
		return fmt.Errorf("scan mode: %w", err)
	}
	a.logger.InfoContext(ctx, "scan finished",
		slog.Int("processed", status.Processed),
		slog.Int("skipped", status.Skipped),
		slog.Int("positions_found", status.PositionsFound),
		slog.Bool("aborted", status.Aborted),
	)
	return nil
}

// FullMode runs every subsystem: the API server, snapshot recorder, archiver,
// and a historical scan for the configured wallet kicked off at startup.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	a.startSnapshotRecorder(ctx, g, deps)
	a.startArchiver(ctx, g, deps)
	a.startHTTPServer(ctx, g, deps)

	if deps.Scanner != nil && a.cfg.Wallet.Address != "" {
		if _, err := deps.Positions.StartScan(ctx, a.cfg.Wallet.Address); err != nil {
			a.logger.WarnContext(ctx, "full mode: startup scan not started",
				slog.String("error", err.Error()),
			)
		}
	}

	return g.Wait()
}

// startSnapshotRecorder adds the periodic valuation recorder to the errgroup.
func (a *App) startSnapshotRecorder(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	g.Go(func() error {
		err := deps.Snapshots.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})
}

// startArchiver adds the periodic ledger export loop when blob storage is
// wired. A nil archiver is a no-op.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Archiver == nil {
		return
	}
	g.Go(func() error {
		err := deps.Archiver.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})
}

// startHTTPServer adds the API server and WebSocket hub goroutines to the
// errgroup. The server shuts down gracefully when the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.cfg.Mode, a.logger)
		g.Go(func() error {
			err := hub.Run(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return err
		})
	} else {
		a.logger.InfoContext(ctx, "redis disabled, WebSocket endpoint unavailable")
	}

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(a.logger),
		Positions: handler.NewPositionHandler(deps.Positions, a.logger),
		PnL:       handler.NewPnLHandler(deps.Positions, a.logger),
		Scan:      handler.NewScanHandler(deps.Positions, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
