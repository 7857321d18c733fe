package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	goslack "github.com/slack-go/slack"

	"github.com/sentrynode/sentrynode/internal/model"
	"github.com/sentrynode/sentrynode/internal/telemetry"
)

// Config configures a Dispatcher. BotToken may be empty, in which case the
// Dispatcher logs notifications instead of delivering them; delivery is
// best-effort and a disabled provider must never block the triggering flow.
type Config struct {
	BotToken      string
	DefaultChatID string
	TopicChatIDs  map[Topic]string
}

// Dispatcher delivers violation and lifecycle notifications to topic-routed
// operator chats.
type Dispatcher struct {
	client      *goslack.Client
	topics      map[Topic]string
	defaultChat string
	logger      *slog.Logger

	throttle *throttle
	cron     *cron.Cron
}

// New creates a Dispatcher. It does not start the eviction sweep; call
// Start for that.
func New(cfg Config, logger *slog.Logger) *Dispatcher {
	var client *goslack.Client
	if cfg.BotToken != "" {
		client = goslack.New(cfg.BotToken)
	}

	topics := make(map[Topic]string, len(cfg.TopicChatIDs))
	for topic, chatID := range cfg.TopicChatIDs {
		if chatID != "" {
			topics[topic] = chatID
		}
	}

	return &Dispatcher{
		client:      client,
		topics:      topics,
		defaultChat: cfg.DefaultChatID,
		logger:      logger,
		throttle:    newThrottle(),
		cron:        cron.New(),
	}
}

// Start launches the hourly throttle-eviction sweep. Each call schedules
// another sweep job; Stop releases the cron scheduler.
func (d *Dispatcher) Start() error {
	_, err := d.cron.AddFunc("@hourly", func() {
		d.throttle.evictStale(time.Now())
	})
	if err != nil {
		return fmt.Errorf("notify: scheduling eviction sweep: %w", err)
	}
	d.cron.Start()
	return nil
}

// Stop halts the eviction sweep.
func (d *Dispatcher) Stop() {
	<-d.cron.Stop().Done()
}

// batchProcessedChannel mirrors pkg/collector.BatchProcessedChannel without
// importing the collector package; the dispatcher only needs the channel
// name, not the collector's HTTP surface.
const batchProcessedChannel = "sentrynode:batch_processed"

// SubscribeBatchEvents listens for the collector's cross-replica
// batch-processed fan-out signal and logs each one at debug level. It
// blocks until ctx is canceled or the subscription breaks; callers run it in
// its own goroutine. A nil rdb makes this a no-op.
func (d *Dispatcher) SubscribeBatchEvents(ctx context.Context, rdb *redis.Client) error {
	if rdb == nil {
		return nil
	}
	sub := rdb.Subscribe(ctx, batchProcessedChannel)
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			d.logger.Debug("batch processed elsewhere", "payload", msg.Payload)
		}
	}
}

// channelFor resolves the chat ID for a topic, falling back to the single
// configured default chat when no per-topic override is set.
func (d *Dispatcher) channelFor(topic Topic) string {
	if ch, ok := d.topics[topic]; ok {
		return ch
	}
	return d.defaultChat
}

func (d *Dispatcher) enabled() bool {
	return d.client != nil
}

// NotifyViolation dispatches a graded violation verdict to the violations
// topic, unless the per-user 15-minute cooldown suppresses it. Delivery
// failures are logged and swallowed, never returned as a fatal error to
// the collector.
func (d *Dispatcher) NotifyViolation(ctx context.Context, user model.User, score model.ViolationScore, force bool) error {
	if !d.throttle.allow(score.UserUUID, time.Now(), force) {
		telemetry.NotificationsThrottledTotal.Inc()
		d.logger.Debug("violation notification throttled", "user_uuid", score.UserUUID)
		return nil
	}

	if !d.enabled() {
		d.logger.Info("violation detected (notifier disabled)",
			"user_uuid", score.UserUUID, "username", user.Username, "total", score.Total, "action", score.RecommendedAction)
		return nil
	}

	channel := d.channelFor(TopicViolations)
	if channel == "" {
		d.logger.Warn("no chat configured for violations topic", "user_uuid", score.UserUUID)
		return nil
	}

	blocks := violationBlocks(user, score)
	_, _, err := d.client.PostMessageContext(ctx, channel,
		goslack.MsgOptionBlocks(blocks...),
		goslack.MsgOptionText(violationSummary(user, score), false),
	)
	if err != nil {
		d.logger.Error("failed to dispatch violation notification", "user_uuid", score.UserUUID, "error", err)
		return nil
	}

	telemetry.NotificationsSentTotal.WithLabelValues(string(TopicViolations)).Inc()
	return nil
}

// NotifyLifecycle dispatches a control-plane lifecycle event (user/node/crm/
// hwid/service/errors) to its topic. Lifecycle notifications are never
// throttled.
func (d *Dispatcher) NotifyLifecycle(ctx context.Context, event LifecycleEvent) error {
	if !d.enabled() {
		d.logger.Info("lifecycle event (notifier disabled)", "kind", event.Kind, "entity_id", event.EntityID)
		return nil
	}

	channel := d.channelFor(event.Topic)
	if channel == "" {
		return nil
	}

	blocks := lifecycleBlocks(event)
	_, _, err := d.client.PostMessageContext(ctx, channel,
		goslack.MsgOptionBlocks(blocks...),
		goslack.MsgOptionText(lifecycleSummary(event), false),
	)
	if err != nil {
		d.logger.Error("failed to dispatch lifecycle notification", "kind", event.Kind, "entity_id", event.EntityID, "error", err)
		return nil
	}

	telemetry.NotificationsSentTotal.WithLabelValues(string(event.Topic)).Inc()
	return nil
}
