package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"housefin/internal/amqp"
	"housefin/internal/core"
	applog "housefin/internal/log"
	"housefin/internal/sheets"
)

// Store is the read-only view of persistence the worker needs.
type Store interface {
	GetContributionByID(ctx context.Context, id string) (core.Contribution, error)
	GetUserByID(ctx context.Context, id string) (core.User, error)
	GetHomeByName(ctx context.Context, name string) (core.Home, error)
	ListUsersByHome(ctx context.Context, homeID string) ([]core.User, error)
	ListContributionsByHome(ctx context.Context, homeID string) ([]core.Contribution, error)
}

// Consumer delivers contribution events until ctx is done.
type Consumer interface {
	ConsumeContributions(ctx context.Context, handler amqp.EventHandler) error
}

// Stats counts handled events since start.
type Stats struct {
	Mirrored int64
	Skipped  int64
	Failed   int64
}

// SyncWorker mirrors contribution events into a spreadsheet. The store is
// the source of truth: events only say which contribution to copy.
type SyncWorker struct {
	store  Store
	sheets sheets.ContributionWriter
	logger *applog.Logger

	statsInterval time.Duration

	mirrored atomic.Int64
	skipped  atomic.Int64
	failed   atomic.Int64
}

func NewSyncWorker(store Store, writer sheets.ContributionWriter, logger *applog.Logger) *SyncWorker {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &SyncWorker{
		store:         store,
		sheets:        writer,
		logger:        logger.WithComponent(applog.ComponentWorker),
		statsInterval: 10 * time.Minute,
	}
}

// Run consumes events until ctx is done, logging stats periodically.
func (w *SyncWorker) Run(ctx context.Context, consumer Consumer) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.ConsumeContributions(gctx, w.HandleContributionEvent)
	})
	g.Go(func() error {
		ticker := time.NewTicker(w.statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				s := w.Stats()
				w.logger.InfoContext(gctx, "Worker stats",
					"mirrored", s.Mirrored, "skipped", s.Skipped, "failed", s.Failed)
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// HandleContributionEvent processes a single contribution event from AMQP.
// Events for contributions missing from the store are dropped.
func (w *SyncWorker) HandleContributionEvent(ctx context.Context, event *amqp.ContributionEvent) error {
	w.logger.InfoContext(ctx, "Processing contribution event",
		applog.FieldContribution, event.ID,
		applog.FieldHomeID, event.HomeID,
		applog.FieldOperation, applog.OpConsume)

	c, err := w.store.GetContributionByID(ctx, event.ID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			w.skipped.Add(1)
			w.logger.WarnContext(ctx, "Contribution not in store, skipping event",
				applog.FieldContribution, event.ID)
			return nil
		}
		w.failed.Add(1)
		return fmt.Errorf("get contribution from storage: %w", err)
	}

	username := event.Username
	if username == "" {
		u, err := w.store.GetUserByID(ctx, c.UserID)
		if err != nil {
			w.failed.Add(1)
			return fmt.Errorf("get contributor: %w", err)
		}
		username = u.Username
	}

	if err := w.mirror(ctx, c, username); err != nil {
		w.failed.Add(1)
		return err
	}
	w.mirrored.Add(1)
	return nil
}

// BackfillHome mirrors every contribution of the named home, oldest first.
// Rows already present are left alone, so it is safe to repeat.
func (w *SyncWorker) BackfillHome(ctx context.Context, homeName string) (int, error) {
	home, err := w.store.GetHomeByName(ctx, homeName)
	if err != nil {
		return 0, fmt.Errorf("find home %q: %w", homeName, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	var members []core.User
	var contributions []core.Contribution
	g.Go(func() error {
		var err error
		members, err = w.store.ListUsersByHome(gctx, home.ID)
		return err
	})
	g.Go(func() error {
		var err error
		contributions, err = w.store.ListContributionsByHome(gctx, home.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("load home %q: %w", homeName, err)
	}

	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.ID] = m.Username
	}

	sorted := core.SortNewestFirst(contributions)
	count := 0
	for i := len(sorted) - 1; i >= 0; i-- {
		c := sorted[i]
		if err := w.mirror(ctx, c, names[c.UserID]); err != nil {
			return count, err
		}
		count++
	}

	w.logger.InfoContext(ctx, "Backfill completed",
		applog.FieldHomeID, home.ID,
		applog.FieldHomeName, home.Name,
		"count", count)
	return count, nil
}

func (w *SyncWorker) mirror(ctx context.Context, c core.Contribution, username string) error {
	ref, err := w.sheets.AppendContribution(ctx, sheets.NewRow(c, username))
	if err != nil {
		return fmt.Errorf("append to sheets: %w", err)
	}

	w.logger.InfoContext(ctx, "Mirrored contribution",
		applog.FieldContribution, c.ID,
		applog.FieldSheetsRef, ref,
		applog.FieldAmount, core.FormatAmount(c.Amount),
		applog.FieldOperation, applog.OpAppend)
	return nil
}

// Stats returns a snapshot of the counters.
func (w *SyncWorker) Stats() Stats {
	return Stats{
		Mirrored: w.mirrored.Load(),
		Skipped:  w.skipped.Load(),
		Failed:   w.failed.Load(),
	}
}
