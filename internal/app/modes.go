package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ilertha/Solana-AI-agent-tool/internal/liquidator"
)

// newCoordinator builds the liquidation coordinator from wired dependencies.
func (a *App) newCoordinator(deps *Dependencies) *liquidator.Coordinator {
	return liquidator.New(liquidator.Options{
		Positions:    deps.Positions,
		Trades:       deps.Trades,
		Recommenders: deps.Recommenders,
		Audit:        deps.Audit,
		Market:       deps.Market,
		Queue:        deps.Queue,
		Backend:      deps.Sonar,
		Reporter:     deps.Reporter,
		Tracker:      deps.Tracker,
		Notifier:     deps.Notifier,
		Simulation:   a.cfg.Liquidator.Simulation,
		ScanInterval: a.cfg.Liquidator.ScanInterval.Duration,
		Logger:       deps.Logger,
	})
}

// LiquidateMode runs the full coordinator: queue consumption plus the
// periodic scan, without cold-storage archival.
func (a *App) LiquidateMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "running in liquidate mode")
	return a.newCoordinator(deps).Run(ctx)
}

// ScanMode runs only the scan-and-dispatch loop. Useful when a separate
// instance owns the queue.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "running in scan mode",
		slog.Duration("interval", a.cfg.Liquidator.ScanInterval.Duration),
	)

	coord := a.newCoordinator(deps)
	coord.ScanAndDispatch(ctx)

	ticker := time.NewTicker(a.cfg.Liquidator.ScanInterval.Duration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			coord.ScanAndDispatch(ctx)
		}
	}
}

// ArchiveMode runs only the cold-storage archival loop.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	if deps.Archiver == nil {
		return fmt.Errorf("app: archive mode requires archive.enabled = true")
	}
	a.logger.InfoContext(ctx, "running in archive mode",
		slog.Duration("interval", a.cfg.Archive.Interval.Duration),
		slog.Int("retention_days", a.cfg.Archive.RetentionDays),
	)
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour
	return deps.Archiver.RunPeriodic(ctx, a.cfg.Archive.Interval.Duration, retention)
}

// FullMode runs the coordinator and, when enabled, the archival loop.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "running in full mode")

	g, ctx := errgroup.WithContext(ctx)

	coord := a.newCoordinator(deps)
	g.Go(func() error {
		return coord.Run(ctx)
	})

	if deps.Archiver != nil {
		retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour
		g.Go(func() error {
			return deps.Archiver.RunPeriodic(ctx, a.cfg.Archive.Interval.Duration, retention)
		})
	}

	return g.Wait()
}
