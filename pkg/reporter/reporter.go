// Package reporter implements the node agent's batch delivery to the
// collector: a bounded in-memory queue fed by the tailer, flushed on an
// interval as a BatchReport with retry/backoff on transport and 5xx failures.
// It is not persistent: a report still queued when the process dies is
// acceptable loss.
package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sentrynode/sentrynode/internal/model"
	"github.com/sentrynode/sentrynode/internal/telemetry"
)

const (
	defaultQueueCapacity = 10_000
	defaultMaxBatchSize  = 500
	defaultRetries       = 3
	defaultBaseBackoff   = 1 * time.Second
)

// Config configures a new Reporter.
type Config struct {
	CollectorURL  string
	AgentToken    string
	NodeUUID      uuid.UUID
	QueueCapacity int
	MaxBatchSize  int
	HTTPTimeout   time.Duration
}

// Reporter buffers ConnectionReports in a bounded channel and periodically
// posts them to the collector's batch ingestion endpoint. The tailer writes,
// the Reporter's flush loop reads; the queue is their only shared state.
type Reporter struct {
	client       *http.Client
	collectorURL string
	agentToken   string
	nodeUUID     uuid.UUID
	maxBatch     int
	queue        chan model.ConnectionReport
	logger       *slog.Logger
}

// New builds a Reporter. The queue is unbuffered-safe up to QueueCapacity;
// once full, Enqueue drops the newest reports rather than blocking the
// tailer: loss is acceptable, blocking the tailer is not.
func New(cfg Config, logger *slog.Logger) *Reporter {
	capacity := cfg.QueueCapacity
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	maxBatch := cfg.MaxBatchSize
	if maxBatch <= 0 {
		maxBatch = defaultMaxBatchSize
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Reporter{
		client:       &http.Client{Timeout: timeout},
		collectorURL: cfg.CollectorURL,
		agentToken:   cfg.AgentToken,
		nodeUUID:     cfg.NodeUUID,
		maxBatch:     maxBatch,
		queue:        make(chan model.ConnectionReport, capacity),
		logger:       logger,
	}
}

// Enqueue offers reports to the send queue, dropping (and counting) any that
// don't fit rather than blocking the caller.
func (r *Reporter) Enqueue(reports []model.ConnectionReport) {
	for _, rep := range reports {
		select {
		case r.queue <- rep:
		default:
			telemetry.ReporterReportsDroppedTotal.Inc()
			if r.logger != nil {
				r.logger.Warn("reporter queue full, dropping report", "ip", rep.IPAddress)
			}
		}
	}
}

// Run drains the queue into batches of at most maxBatch reports every
// interval and posts each to the collector, until ctx is canceled.
func (r *Reporter) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.flush(context.Background())
			return ctx.Err()
		case <-ticker.C:
			r.flush(ctx)
		}
	}
}

// flush drains whatever is currently queued (up to maxBatch) and sends it.
func (r *Reporter) flush(ctx context.Context) {
	batch := r.drain()
	if len(batch) == 0 {
		return
	}

	if err := r.sendWithRetry(ctx, batch); err != nil && r.logger != nil {
		r.logger.Error("reporter: batch delivery failed permanently", "error", err, "count", len(batch))
	}
}

func (r *Reporter) drain() []model.ConnectionReport {
	batch := make([]model.ConnectionReport, 0, r.maxBatch)
	for len(batch) < r.maxBatch {
		select {
		case rep := <-r.queue:
			batch = append(batch, rep)
		default:
			return batch
		}
	}
	return batch
}

// sendWithRetry posts batch, retrying on transport errors and 5xx responses
// with exponential backoff. A 401/403 drops the batch permanently: the
// agent token is rejected and retrying can't help.
func (r *Reporter) sendWithRetry(ctx context.Context, batch []model.ConnectionReport) error {
	backoff := defaultBaseBackoff
	var lastErr error

	for attempt := 0; attempt <= defaultRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		status, err := r.send(ctx, batch)
		if err == nil {
			telemetry.ReporterBatchesTotal.WithLabelValues("ok").Inc()
			return nil
		}

		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			telemetry.ReporterBatchesTotal.WithLabelValues("rejected").Inc()
			telemetry.ReporterReportsDroppedTotal.Add(float64(len(batch)))
			if r.logger != nil {
				r.logger.Error("reporter: agent token rejected, dropping batch", "status", status)
			}
			return fmt.Errorf("reporter: batch rejected (status %d): %w", status, err)
		}

		lastErr = err
		if r.logger != nil {
			r.logger.Warn("reporter: batch delivery attempt failed, retrying", "attempt", attempt, "error", err)
		}
	}

	telemetry.ReporterBatchesTotal.WithLabelValues("failed").Inc()
	telemetry.ReporterReportsDroppedTotal.Add(float64(len(batch)))
	return lastErr
}

// send performs a single POST attempt, returning the HTTP status code (0 if
// the request never got a response) alongside any error.
func (r *Reporter) send(ctx context.Context, batch []model.ConnectionReport) (int, error) {
	body := model.BatchReport{
		NodeUUID:    r.nodeUUID,
		Timestamp:   time.Now(),
		Connections: batch,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("reporter: marshaling batch: %w", err)
	}

	url := r.collectorURL + "/api/v1/connections/batch"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("reporter: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.agentToken)

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("reporter: posting batch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.StatusCode, nil
	}
	return resp.StatusCode, fmt.Errorf("reporter: collector responded %d", resp.StatusCode)
}
