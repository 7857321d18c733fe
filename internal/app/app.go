// Package app wires process-role entry points: collector, node agent, sync
// worker, and the one-shot ASN bulk sync.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sentrynode/sentrynode/internal/config"
	"github.com/sentrynode/sentrynode/internal/httpserver"
	"github.com/sentrynode/sentrynode/internal/platform"
	"github.com/sentrynode/sentrynode/internal/store"
	"github.com/sentrynode/sentrynode/internal/telemetry"
	"github.com/sentrynode/sentrynode/pkg/collector"
	"github.com/sentrynode/sentrynode/pkg/enrich"
	"github.com/sentrynode/sentrynode/pkg/monitor"
	"github.com/sentrynode/sentrynode/pkg/notify"
	"github.com/sentrynode/sentrynode/pkg/reporter"
	"github.com/sentrynode/sentrynode/pkg/sync"
	"github.com/sentrynode/sentrynode/pkg/tailer"
	"github.com/sentrynode/sentrynode/pkg/violation"
	"github.com/sentrynode/sentrynode/pkg/webhook"
)

// Run reads config and starts the process role named by cfg.Mode.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting sentrynode", "mode", cfg.Mode)

	switch cfg.Mode {
	case "collector":
		return runCollector(ctx, cfg, logger)
	case "agent":
		return runAgent(ctx, cfg, logger)
	case "syncworker":
		return runSyncWorker(ctx, cfg, logger)
	case "asnsync":
		return runASNSync(ctx, cfg, logger)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

func newNotifier(cfg *config.Config, logger *slog.Logger) *notify.Dispatcher {
	return notify.New(notify.Config{
		BotToken:      cfg.SlackBotToken,
		DefaultChatID: cfg.NotificationsChatID,
		TopicChatIDs: map[notify.Topic]string{
			notify.TopicUsers:      cfg.TopicUsersChatID,
			notify.TopicNodes:      cfg.TopicNodesChatID,
			notify.TopicService:    cfg.TopicServiceChatID,
			notify.TopicHwid:       cfg.TopicHwidChatID,
			notify.TopicCrm:        cfg.TopicCrmChatID,
			notify.TopicErrors:     cfg.TopicErrorsChatID,
			notify.TopicViolations: cfg.TopicViolationsChatID,
		},
	}, logger)
}

// runCollector starts the collector HTTP API: batch ingestion, the
// connection monitor, violation detector, and the notification
// dispatcher as its notifier.
func runCollector(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.DBPoolMinSize, cfg.DBPoolMaxSize)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	s := store.New(db)

	minInterval, err := time.ParseDuration(cfg.GeoIPMinCallInterval)
	if err != nil {
		return fmt.Errorf("parsing GEOIP_MIN_CALL_INTERVAL: %w", err)
	}

	enricher, err := enrich.New(enrich.Config{
		MaxMindDBPath:   cfg.GeoIPMaxMindDBPath,
		UpstreamURL:     cfg.GeoIPUpstreamURL,
		MinCallInterval: minInterval,
	})
	if err != nil {
		return fmt.Errorf("creating enricher: %w", err)
	}
	defer func() {
		if err := enricher.Close(); err != nil {
			logger.Error("closing enricher", "error", err)
		}
	}()

	mon := monitor.New(s)
	detector := violation.New(s, enricher)

	notifier := newNotifier(cfg, logger)
	if err := notifier.Start(); err != nil {
		return fmt.Errorf("starting notification dispatcher: %w", err)
	}
	defer notifier.Stop()
	go func() {
		if err := notifier.SubscribeBatchEvents(ctx, rdb); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("batch-event subscription ended", "error", err)
		}
	}()

	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)
	srv := httpserver.NewServer(httpserver.ServerConfig{CORSAllowedOrigins: cfg.CORSAllowedOrigins}, logger, db, rdb, metricsReg)

	h := collector.New(s, mon, detector, notifier, rdb, logger)
	h.Mount(srv.APIRouter)

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("collector listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down collector")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// runAgent starts the node agent: a realtime tailer polling the tunnel
// process's access log and a reporter flushing batches to the collector.
func runAgent(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	nodeUUID, err := uuid.Parse(cfg.NodeUUID)
	if err != nil {
		return fmt.Errorf("parsing NODE_UUID: %w", err)
	}

	t := tailer.NewRealtimeTailer(cfg.XrayLogPath, cfg.LogReadBufferBytes, nodeUUID, logger)
	r := reporter.New(reporter.Config{
		CollectorURL: cfg.CollectorURL,
		AgentToken:   cfg.AgentToken,
		NodeUUID:     nodeUUID,
	}, logger)

	flushInterval := time.Duration(cfg.ReporterFlushIntervalSeconds) * time.Second
	pollInterval := time.Duration(cfg.TailerPollIntervalSeconds) * time.Second

	reporterDone := make(chan error, 1)
	go func() { reporterDone <- r.Run(ctx, flushInterval) }()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	logger.Info("node agent started", "node_uuid", nodeUUID, "log_path", cfg.XrayLogPath)

	for {
		select {
		case <-ctx.Done():
			<-reporterDone
			return nil
		case <-ticker.C:
			reports, err := t.Poll()
			if err != nil {
				logger.Warn("tailer poll failed", "error", err)
				continue
			}
			if len(reports) > 0 {
				r.Enqueue(reports)
			}
		}
	}
}

// runSyncWorker starts the sync worker: periodic + event-driven
// mirroring of control-plane entities, plus the inbound webhook listener
// that feeds its event-driven half.
func runSyncWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.DBPoolMinSize, cfg.DBPoolMaxSize)
	if err != nil {
		logger.Warn("sync worker starting without a database connection; running as a no-op", "error", err)
		db = nil
	}

	var s *store.Store
	if db != nil {
		defer db.Close()
		s = store.New(db)
	}

	notifier := newNotifier(cfg, logger)
	if err := notifier.Start(); err != nil {
		return fmt.Errorf("starting notification dispatcher: %w", err)
	}
	defer notifier.Stop()

	var client sync.ControlPlaneClient
	if cfg.APIBaseURL != "" {
		client = sync.NewHTTPClient(cfg.APIBaseURL, cfg.APIToken)
	}

	worker := sync.New(s, client, notifier, sync.Config{
		Interval: time.Duration(cfg.SyncIntervalSeconds) * time.Second,
	}, logger)

	if err := worker.Start(ctx); err != nil {
		return fmt.Errorf("starting sync worker: %w", err)
	}
	defer worker.Stop()

	webhookHandler := webhook.New(cfg.WebhookSecret, func(e webhook.Event) {
		worker.HandleEvent(context.Background(), e)
	}, logger)

	mux := http.NewServeMux()
	mux.Handle("/webhook", webhookHandler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.WebhookPort),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("sync worker webhook listener started", "port", cfg.WebhookPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("webhook server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down sync worker")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// runASNSync performs one bulk ASN refresh and exits; it is invoked as a
// one-shot job rather than running as a long-lived loop.
func runASNSync(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.DBPoolMinSize, cfg.DBPoolMaxSize)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	s := store.New(db)
	syncer := enrich.NewBulkSyncer(s, cfg.ASNRegistryURL, cfg.ASNBulkSyncMaxPerRun)

	logger.Info("running ASN bulk sync", "country", cfg.ASNSyncCountryCode)
	if err := syncer.Run(ctx, cfg.ASNSyncCountryCode); err != nil {
		return fmt.Errorf("asn bulk sync: %w", err)
	}
	logger.Info("ASN bulk sync complete")
	return nil
}
