// Package sync implements periodic and event-driven mirroring of
// control-plane entities into the store, with per-entity-class sync
// metadata bookkeeping.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sentrynode/sentrynode/internal/model"
	"github.com/sentrynode/sentrynode/internal/store"
	"github.com/sentrynode/sentrynode/internal/telemetry"
	"github.com/sentrynode/sentrynode/pkg/notify"
)

const defaultPageSize = 100

// LifecycleNotifier is the subset of pkg/notify.Dispatcher the worker needs
// to forward control-plane change events to operator chats.
type LifecycleNotifier interface {
	NotifyLifecycle(ctx context.Context, event notify.LifecycleEvent) error
}

// Config configures a new Worker.
type Config struct {
	Interval time.Duration
	PageSize int
}

// Worker runs the periodic and event-driven sync loop. A nil Store (or a
// nil client) makes every sync operation a silent no-op, while HandleEvent
// still forwards lifecycle notifications: when the store is not connected
// the collector keeps working and only identity lookups miss.
type Worker struct {
	store    *store.Store
	client   ControlPlaneClient
	notifier LifecycleNotifier
	logger   *slog.Logger

	interval time.Duration
	pageSize int
	cron     *cron.Cron
}

// New builds a Worker. client or notifier may be nil in a deployment that
// only wants one half of the worker's job.
func New(s *store.Store, client ControlPlaneClient, notifier LifecycleNotifier, cfg Config, logger *slog.Logger) *Worker {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 300 * time.Second
	}

	return &Worker{
		store:    s,
		client:   client,
		notifier: notifier,
		logger:   logger,
		interval: interval,
		pageSize: pageSize,
		cron:     cron.New(),
	}
}

// Start runs one full parallel sync of every entity class immediately,
// then schedules the periodic trigger on w.interval.
func (w *Worker) Start(ctx context.Context) error {
	if !w.connected() {
		return nil
	}

	w.syncAll(ctx)

	schedule := fmt.Sprintf("@every %s", w.interval)
	if _, err := w.cron.AddFunc(schedule, func() { w.syncAll(context.Background()) }); err != nil {
		return fmt.Errorf("sync: scheduling periodic trigger: %w", err)
	}
	w.cron.Start()
	return nil
}

// Stop halts the periodic trigger.
func (w *Worker) Stop() {
	<-w.cron.Stop().Done()
}

func (w *Worker) connected() bool {
	return w.store != nil && w.client != nil
}

// syncAll runs every entity class concurrently. Failure of one class never
// aborts the others; each records its own outcome in sync_metadata.
func (w *Worker) syncAll(ctx context.Context) {
	if !w.connected() {
		return
	}

	classes := []struct {
		key string
		run func(context.Context) (int, error)
	}{
		{"users", w.syncUsers},
		{"nodes", w.syncNodes},
		{"hosts", w.syncHosts},
		{"config_profiles", w.syncConfigProfiles},
	}

	var wg sync.WaitGroup
	for _, c := range classes {
		wg.Add(1)
		go func(key string, run func(context.Context) (int, error)) {
			defer wg.Done()
			w.runClass(ctx, key, run)
		}(c.key, c.run)
	}
	wg.Wait()
}

func (w *Worker) runClass(ctx context.Context, key string, run func(context.Context) (int, error)) {
	count, err := run(ctx)
	meta := model.SyncMetadata{Key: key, RecordsSynced: count, SyncStatus: model.SyncStatusOK}
	outcome := "ok"
	if err != nil {
		meta.SyncStatus = model.SyncStatusFailed
		meta.ErrorMessage = err.Error()
		outcome = "failed"
		if w.logger != nil {
			w.logger.Error("sync: class failed", "class", key, "error", err)
		}
	}
	telemetry.SyncRecordsTotal.WithLabelValues(key, outcome).Add(float64(count))

	if recErr := w.store.RecordSync(ctx, meta); recErr != nil && w.logger != nil {
		w.logger.Error("sync: recording sync metadata failed", "class", key, "error", recErr)
	}
}

func (w *Worker) syncUsers(ctx context.Context) (int, error) {
	total := 0
	page := 1
	for {
		users, hasMore, err := w.client.ListUsers(ctx, page, w.pageSize)
		if err != nil {
			return total, fmt.Errorf("sync: listing users: %w", err)
		}
		for _, u := range users {
			if err := w.store.UpsertUser(ctx, u); err != nil {
				return total, fmt.Errorf("sync: upserting user %s: %w", u.UUID, err)
			}
			total++
		}
		if !hasMore {
			break
		}
		page++
	}
	return total, nil
}

func (w *Worker) syncNodes(ctx context.Context) (int, error) {
	nodes, err := w.client.ListNodes(ctx)
	if err != nil {
		return 0, fmt.Errorf("sync: listing nodes: %w", err)
	}
	for i, n := range nodes {
		if err := w.store.UpsertNode(ctx, n); err != nil {
			return i, fmt.Errorf("sync: upserting node %s: %w", n.UUID, err)
		}
	}
	return len(nodes), nil
}

// syncHosts and syncConfigProfiles observe their entity classes for
// sync_metadata bookkeeping only. Just User and Node are mirrored, so
// hosts/config profiles have no local table to upsert into.
func (w *Worker) syncHosts(ctx context.Context) (int, error) {
	hosts, err := w.client.ListHosts(ctx)
	if err != nil {
		return 0, fmt.Errorf("sync: listing hosts: %w", err)
	}
	return len(hosts), nil
}

func (w *Worker) syncConfigProfiles(ctx context.Context) (int, error) {
	profiles, err := w.client.ListConfigProfiles(ctx)
	if err != nil {
		return 0, fmt.Errorf("sync: listing config profiles: %w", err)
	}
	return len(profiles), nil
}
