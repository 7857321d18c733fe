// Package collector implements the HTTP ingestion endpoint node agents
// post batches of connection reports to.
package collector

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sentrynode/sentrynode/internal/httpserver"
	"github.com/sentrynode/sentrynode/internal/model"
	"github.com/sentrynode/sentrynode/internal/store"
	"github.com/sentrynode/sentrynode/internal/telemetry"
	"github.com/sentrynode/sentrynode/pkg/monitor"
	"github.com/sentrynode/sentrynode/pkg/violation"
)

// BatchProcessedChannel is the Redis pub/sub channel the collector
// publishes to after a batch is persisted, and the notification dispatcher
// subscribes to for cross-replica awareness when the collector runs as
// more than one replica.
const BatchProcessedChannel = "sentrynode:batch_processed"

// batchProcessedEvent is the payload published on BatchProcessedChannel.
type batchProcessedEvent struct {
	NodeUUID  uuid.UUID `json:"node_uuid"`
	Processed int       `json:"processed"`
	Timestamp time.Time `json:"timestamp"`
}

const violationWindowMin = 60

// Notifier dispatches a violation verdict to operator chats. It is
// best-effort: Handler swallows and logs its errors rather than failing
// the ingestion request.
type Notifier interface {
	NotifyViolation(ctx context.Context, user model.User, score model.ViolationScore, force bool) error
}

// Handler serves the collector API routes.
type Handler struct {
	store    *store.Store
	monitor  *monitor.Monitor
	detector *violation.Detector
	notifier Notifier
	redis    *redis.Client
	logger   *slog.Logger
}

// New creates a Handler wired to its collaborators. notifier may be nil, in
// which case violation detections are logged but never dispatched. rdb may
// be nil, in which case the batch-processed fan-out signal is skipped.
func New(s *store.Store, m *monitor.Monitor, d *violation.Detector, n Notifier, rdb *redis.Client, logger *slog.Logger) *Handler {
	return &Handler{store: s, monitor: m, detector: d, notifier: n, redis: rdb, logger: logger}
}

// Mount registers the collector routes under the "/connections" prefix.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/connections", func(sub chi.Router) {
		sub.Post("/batch", h.handleBatch)
		sub.Get("/health", h.handleHealth)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	connected := true
	if err := h.store.Ping(r.Context()); err != nil {
		connected = false
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"service":            "collector",
		"database_connected": connected,
	})
}

// handleBatch ingests one batch: bearer-token auth, node_uuid pinning,
// per-connection identity resolution that never aborts the batch on a
// single failure, a post-batch stale-closure sweep, and per-affected-user
// violation checks.
func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tokenNodeUUID, ok := h.verifyAgentToken(w, r)
	if !ok {
		return
	}

	var report model.BatchReport
	if !httpserver.DecodeAndValidate(w, r, &report) {
		return
	}

	if report.NodeUUID != tokenNodeUUID {
		h.logger.Warn("node UUID mismatch", "token_node", tokenNodeUUID, "report_node", report.NodeUUID)
		httpserver.RespondError(w, http.StatusForbidden, "forbidden", "token does not match node UUID")
		return
	}

	if len(report.Connections) == 0 {
		httpserver.Respond(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"processed": 0,
			"errors":    0,
			"node_uuid": tokenNodeUUID,
			"message":   "no connections to process",
		})
		return
	}

	affected := make(map[uuid.UUID]map[string]struct{})
	processed, failed := 0, 0

	for _, conn := range report.Connections {
		userUUID, err := h.resolveUserUUID(ctx, conn.UserEmail)
		if err != nil {
			h.logger.Warn("user not found for connection report", "identifier", conn.UserEmail, "error", err)
			telemetry.ConnectionsErrorsTotal.WithLabelValues("unknown_user").Inc()
			failed++
			continue
		}

		deviceInfo, _ := json.Marshal(map[string]any{
			"user_email":      conn.UserEmail,
			"bytes_sent":      conn.BytesSent,
			"bytes_received":  conn.BytesReceived,
			"connected_at":    conn.ConnectedAt,
			"disconnected_at": conn.DisconnectedAt,
		})

		if _, err := h.store.InsertConnection(ctx, userUUID, conn.IPAddress, conn.NodeUUID, conn.ConnectedAt, deviceInfo); err != nil {
			h.logger.Error("failed to record connection", "user_uuid", userUUID, "error", err)
			telemetry.ConnectionsErrorsTotal.WithLabelValues("insert_failed").Inc()
			failed++
			continue
		}

		telemetry.ConnectionsIngestedTotal.WithLabelValues(tokenNodeUUID.String()).Inc()

		if affected[userUUID] == nil {
			affected[userUUID] = make(map[string]struct{})
		}
		affected[userUUID][conn.IPAddress] = struct{}{}
		processed++
	}

	if processed > 0 {
		h.sweepAndScore(ctx, affected)
		h.publishBatchProcessed(ctx, tokenNodeUUID, processed)
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"processed": processed,
		"errors":    failed,
		"node_uuid": tokenNodeUUID,
	})
}

// sweepAndScore closes stale connections for every affected user and runs
// the violation detector over each, dispatching a notification when the
// score clears the monitor threshold. A failure for one user never aborts
// the others.
func (h *Handler) sweepAndScore(ctx context.Context, affected map[uuid.UUID]map[string]struct{}) {
	for userUUID, ips := range affected {
		reportedIPs := make([]string, 0, len(ips))
		for ip := range ips {
			reportedIPs = append(reportedIPs, ip)
		}

		closed, err := h.store.CloseConnectionsByIPs(ctx, userUUID, reportedIPs, time.Now())
		if err != nil {
			h.logger.Warn("stale-closure sweep failed", "user_uuid", userUUID, "error", err)
		} else if closed > 0 {
			telemetry.ConnectionsClosedStaleTotal.Add(float64(closed))
		}

		stats, err := h.monitor.UserStats(ctx, userUUID, violationWindowMin)
		if err != nil {
			h.logger.Warn("failed to compute connection stats", "user_uuid", userUUID, "error", err)
		} else {
			h.logger.Debug("connection stats", "user_uuid", userUUID,
				"active", stats.ActiveConnectionsCount,
				"unique_ips", stats.UniqueIPsInWindow,
				"simultaneous", stats.SimultaneousConnections)
		}

		user, err := h.store.UserByUUID(ctx, userUUID)
		deviceLimit := 0
		if err == nil {
			deviceLimit = user.HwidDeviceLimit
		} else {
			user = model.User{UUID: userUUID}
		}

		scoreStart := time.Now()
		score, err := h.detector.CheckUser(ctx, userUUID, deviceLimit, violationWindowMin)
		if err != nil {
			h.logger.Warn("violation check failed", "user_uuid", userUUID, "error", err)
			continue
		}
		telemetry.ViolationScoreDuration.Observe(time.Since(scoreStart).Seconds())
		telemetry.ViolationScoresTotal.WithLabelValues(string(score.RecommendedAction)).Inc()

		h.logger.Info("violation check", "user_uuid", userUUID, "total", score.Total, "action", score.RecommendedAction)

		if score.Total < monitorThreshold {
			continue
		}

		h.logger.Warn("violation detected", "user_uuid", userUUID, "total", score.Total, "action", score.RecommendedAction)
		if h.notifier == nil {
			continue
		}

		if err := h.notifier.NotifyViolation(ctx, user, score, false); err != nil {
			h.logger.Error("failed to dispatch violation notification", "user_uuid", userUUID, "error", err)
		}
	}
}

// publishBatchProcessed broadcasts a fan-out signal so any replica's
// notification dispatcher can observe batch activity that landed on a
// different collector instance. Best-effort: publish failures are logged,
// never surfaced to the agent.
func (h *Handler) publishBatchProcessed(ctx context.Context, nodeUUID uuid.UUID, processed int) {
	if h.redis == nil {
		return
	}
	payload, err := json.Marshal(batchProcessedEvent{NodeUUID: nodeUUID, Processed: processed, Timestamp: time.Now()})
	if err != nil {
		return
	}
	if err := h.redis.Publish(ctx, BatchProcessedChannel, payload).Err(); err != nil {
		h.logger.Warn("failed to publish batch-processed event", "error", err)
	}
}

// monitorThreshold is the lowest total that warrants a dispatch; below it
// a detection is logged but never forwarded to operators.
const monitorThreshold = 30

// verifyAgentToken authenticates the bearer header: 401 on a
// missing/malformed header, 403 on a token that matches no node.
func (h *Handler) verifyAgentToken(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "invalid authorization header format")
		return uuid.Nil, false
	}

	token := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	if token == "" {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "token is required")
		return uuid.Nil, false
	}

	nodeUUID, err := h.store.NodeUUIDByAgentToken(r.Context(), token)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			h.logger.Error("agent token lookup failed", "error", err)
		}
		httpserver.RespondError(w, http.StatusForbidden, "forbidden", "invalid or expired token")
		return uuid.Nil, false
	}
	return nodeUUID, true
}

// resolveUserUUID maps a free-form report identifier to a user: a
// "user_<id>" identifier is first tried against short_uuid, then any
// identifier is tried against email, and finally a "user_<id>" identifier
// is tried against the id embedded in raw_data.
func (h *Handler) resolveUserUUID(ctx context.Context, identifier string) (uuid.UUID, error) {
	rawID, isUserPrefixed := strings.CutPrefix(identifier, "user_")

	if isUserPrefixed {
		if u, err := h.store.UserByShortUUID(ctx, rawID); err == nil {
			return u.UUID, nil
		}
	}

	if u, err := h.store.UserByEmail(ctx, identifier); err == nil {
		return u.UUID, nil
	}

	if isUserPrefixed {
		if u, err := h.store.UserByRawDataID(ctx, rawID); err == nil {
			return u.UUID, nil
		}
	}

	return uuid.Nil, store.ErrNotFound
}
